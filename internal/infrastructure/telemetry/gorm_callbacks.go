package telemetry

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// gormOperations lists the callback chains the database plugins hook, with the
// SQL verb each one runs. Row and Raw carry arbitrary SQL and report "".
var gormOperations = []struct {
	chain string
	verb  string
}{
	{"create", "INSERT"},
	{"query", "SELECT"},
	{"update", "UPDATE"},
	{"delete", "DELETE"},
	{"row", ""},
	{"raw", ""},
}

// registerAround hooks before and after every gorm operation chain.
// The hook names are prefix:before_<chain> and prefix:after_<chain>.
func registerAround(db *gorm.DB, prefix string, before func(*gorm.DB), after func(db *gorm.DB, verb string)) error {
	cb := db.Callback()
	for _, op := range gormOperations {
		var register struct {
			before, after func(string, func(*gorm.DB)) error
		}
		switch op.chain {
		case "create":
			register.before, register.after = cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register
		case "query":
			register.before, register.after = cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register
		case "update":
			register.before, register.after = cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register
		case "delete":
			register.before, register.after = cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register
		case "row":
			register.before, register.after = cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register
		case "raw":
			register.before, register.after = cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register
		}

		if before != nil {
			if err := register.before(prefix+":before_"+op.chain, before); err != nil {
				return err
			}
		}
		verb := op.verb
		if err := register.after(prefix+":after_"+op.chain, func(db *gorm.DB) { after(db, verb) }); err != nil {
			return err
		}
	}
	return nil
}

// startTimeKey stores when a statement started, shared by the tracing and metrics plugins
type startTimeKey struct{}

// markStart records the statement start time in its context
func markStart(db *gorm.DB) {
	if db.Statement.Context == nil {
		return
	}
	db.Statement.Context = context.WithValue(db.Statement.Context, startTimeKey{}, time.Now())
}

// elapsedSince returns how long the statement has been running, or false when unknown
func elapsedSince(db *gorm.DB) (time.Duration, bool) {
	if db.Statement.Context == nil {
		return 0, false
	}
	start, ok := db.Statement.Context.Value(startTimeKey{}).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}

// sqlStater is implemented by driver errors carrying a SQLSTATE code
type sqlStater interface {
	SQLState() string
}

// isLockContention reports lock timeouts, serialization failures and deadlocks
func isLockContention(err error) bool {
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
