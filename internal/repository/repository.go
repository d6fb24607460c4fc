package repository

import (
	"context"
	"reflect"

	"gorm.io/gorm"

	"github.com/italosilva18/cte-mdfe-api-sub000/internal/models"
)

// Repository provides data access for documents and their section graph.
// The full-replace and singleton-upsert invariants are enforced here so
// every section parser goes through the same two primitives.
type Repository interface {
	// WithTransaction runs fn inside one atomic transaction; every
	// write made through txRepo is rolled back when fn errors
	WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo Repository) error) error

	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	SaveDocument(ctx context.Context, doc *models.Document) error
	FindDocumentByKey(ctx context.Context, accessKey string) (*models.Document, error)
	ListUnprocessed(ctx context.Context, limit int) ([]*models.Document, error)

	// UpsertSingleton fully replaces the single section row matching
	// conds with record; it never field-merges two parses
	UpsertSingleton(ctx context.Context, conds map[string]interface{}, record interface{}) error

	// ReplaceChildren deletes every row of model matching conds and
	// recreates rows, so a shrinking XML never leaves stale children
	ReplaceChildren(ctx context.Context, model interface{}, conds map[string]interface{}, rows interface{}) error

	// Event operations
	FindEventByDocument(ctx context.Context, documentID uint) (*models.DocumentEvent, error)
	SaveEvent(ctx context.Context, event *models.DocumentEvent) error
}

// repo is an implementation of the Repository interface
type repo struct {
	db *gorm.DB
}

// NewRepository creates a new repository instance
func NewRepository(db *gorm.DB) Repository {
	return &repo{db: db}
}

// WithTransaction runs fn in one all-or-nothing transaction
func (r *repo) WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &repo{db: tx})
	})
}

// CreateDocument creates a new document root
func (r *repo) CreateDocument(ctx context.Context, doc *models.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// SaveDocument persists all fields of an existing document root
func (r *repo) SaveDocument(ctx context.Context, doc *models.Document) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

// FindDocumentByKey gets a document by its 44-digit access key
func (r *repo) FindDocumentByKey(ctx context.Context, accessKey string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).Where("access_key = ?", accessKey).First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// ListUnprocessed finds documents whose normalization has not succeeded yet
func (r *repo) ListUnprocessed(ctx context.Context, limit int) ([]*models.Document, error) {
	var docs []*models.Document
	q := r.db.WithContext(ctx).Where("processed = ?", false).Order("uploaded_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// UpsertSingleton replaces the section row matching conds with record
func (r *repo) UpsertSingleton(ctx context.Context, conds map[string]interface{}, record interface{}) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where(conds).Delete(record).Error; err != nil {
		return err
	}
	return tx.Create(record).Error
}

// ReplaceChildren deletes all rows of model matching conds, then recreates
// rows. An empty rows slice leaves the child set empty.
func (r *repo) ReplaceChildren(ctx context.Context, model interface{}, conds map[string]interface{}, rows interface{}) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where(conds).Delete(model).Error; err != nil {
		return err
	}
	v := reflect.ValueOf(rows)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice || v.Len() == 0 {
		return nil
	}
	return tx.Create(rows).Error
}

// FindEventByDocument gets the lifecycle-event record of a document
func (r *repo) FindEventByDocument(ctx context.Context, documentID uint) (*models.DocumentEvent, error) {
	var event models.DocumentEvent
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).First(&event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

// SaveEvent creates or updates the lifecycle-event record in place
func (r *repo) SaveEvent(ctx context.Context, event *models.DocumentEvent) error {
	return r.db.WithContext(ctx).Save(event).Error
}
