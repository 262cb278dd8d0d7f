package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDocumentRepository implements DocumentRepository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

// FindByID finds a document with its lines
func (r *GormDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Document, error) {
	return r.first(r.withLines(r.db.WithContext(ctx)).Where("id = ?", id))
}

// FindByNumber finds a document with its lines by its number
func (r *GormDocumentRepository) FindByNumber(ctx context.Context, number string) (*inventory.Document, error) {
	return r.first(r.withLines(r.db.WithContext(ctx)).Where("number = ?", number))
}

// FindChildren returns the documents whose parent is parentID, oldest first
func (r *GormDocumentRepository) FindChildren(ctx context.Context, parentID uuid.UUID) ([]inventory.Document, error) {
	var ms []models.DocumentModel
	if err := r.withLines(r.db.WithContext(ctx)).
		Where("parent_id = ?", parentID).
		Order("created_at ASC, number ASC").
		Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	docs := make([]inventory.Document, len(ms))
	for i := range ms {
		docs[i] = *ms[i].ToDomain()
	}
	return docs, nil
}

// LockByID finds a document with its lines and locks the header row
func (r *GormDocumentRepository) LockByID(ctx context.Context, id uuid.UUID) (*inventory.Document, error) {
	return r.first(r.withLines(r.db.WithContext(ctx)).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

// NumberExists checks whether a document number is already taken
func (r *GormDocumentRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("number = ?", number).
		Count(&count).Error; err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

// Create persists the header of a new document
func (r *GormDocumentRepository) Create(ctx context.Context, doc *inventory.Document) error {
	model := models.DocumentModelFromDomain(doc)
	return translateError(r.db.WithContext(ctx).Omit(clause.Associations).Create(model).Error)
}

// AppendLines persists lines of an existing document
func (r *GormDocumentRepository) AppendLines(ctx context.Context, lines []inventory.DocumentLine) error {
	if len(lines) == 0 {
		return nil
	}
	ms := make([]*models.DocumentLineModel, len(lines))
	for i := range lines {
		ms[i] = models.DocumentLineModelFromDomain(&lines[i])
	}
	return translateError(r.db.WithContext(ctx).CreateInBatches(ms, 200).Error)
}

func (r *GormDocumentRepository) withLines(db *gorm.DB) *gorm.DB {
	return db.Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("line_no ASC")
	})
}

func (r *GormDocumentRepository) first(query *gorm.DB) (*inventory.Document, error) {
	var model models.DocumentModel
	if err := query.First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

var _ inventory.DocumentRepository = (*GormDocumentRepository)(nil)
