package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// SQLLogConfig tunes how GORM statements reach the process logger.
type SQLLogConfig struct {
	Level gormlogger.LogLevel
	// SlowThreshold logs statements at least this slow as warnings; zero disables.
	SlowThreshold time.Duration
	// LogNotFound logs gorm.ErrRecordNotFound. Batch and document lookups miss
	// routinely, so it is off unless asked for.
	LogNotFound bool
}

// SQLLogger is a gormlogger.Interface writing through zap. Entries carry the
// request scope and trace of the statement's context.
type SQLLogger struct {
	base *zap.Logger
	cfg  SQLLogConfig
}

var _ gormlogger.Interface = (*SQLLogger)(nil)

// NewSQLLogger builds a GORM logger named "gorm" under base
func NewSQLLogger(base *zap.Logger, cfg SQLLogConfig) *SQLLogger {
	return &SQLLogger{base: base.Named("gorm"), cfg: cfg}
}

// LogMode returns a copy at level
func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.cfg.Level = level
	return &cp
}

func (l *SQLLogger) printf(ctx context.Context, at gormlogger.LogLevel, msg string, data []any) {
	if l.cfg.Level < at {
		return
	}
	s := For(ctx, l.base).Sugar()
	switch at {
	case gormlogger.Error:
		s.Errorf(msg, data...)
	case gormlogger.Warn:
		s.Warnf(msg, data...)
	default:
		s.Infof(msg, data...)
	}
}

func (l *SQLLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, msg, data)
}

func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, msg, data)
}

func (l *SQLLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, msg, data)
}

// Trace logs one finished statement. Failures log at error, except lock
// contention from the ledger's row locks which logs at warn; slow statements
// log at warn; everything else logs at debug when the level is Info.
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	slow := l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold

	var emit func(string, ...zap.Field)
	var msg string
	log := For(ctx, l.base)
	switch {
	case err != nil && l.cfg.Level >= gormlogger.Error:
		if errors.Is(err, gormlogger.ErrRecordNotFound) && !l.cfg.LogNotFound {
			return
		}
		emit, msg = log.Error, "SQL failed"
		if isContention(err) {
			emit, msg = log.Warn, "SQL lock contention"
		}
	case slow && l.cfg.Level >= gormlogger.Warn:
		emit, msg = log.Warn, fmt.Sprintf("Slow SQL over %v", l.cfg.SlowThreshold)
	case l.cfg.Level >= gormlogger.Info:
		emit, msg = log.Debug, "SQL"
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	emit(msg, fields...)
}

type sqlStater interface {
	SQLState() string
}

// isContention reports lock timeouts, serialization failures and deadlocks
func isContention(err error) bool {
	var se sqlStater
	if !errors.As(err, &se) {
		return false
	}
	switch se.SQLState() {
	case "55P03", "40001", "40P01":
		return true
	}
	return false
}

// MapGormLogLevel maps a process log level to the GORM level. Statements are
// logged at debug, so "debug" and "info" both enable them.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	}
	return gormlogger.Warn
}
