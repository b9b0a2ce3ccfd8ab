package repository

import (
	"context"
	"time"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentFilter narrows a document listing. Zero values match everything.
type DocumentFilter struct {
	Status string
	Query  string
	Offset int
	Limit  int
}

// StatusChange is the set of columns a transition writes.
type StatusChange struct {
	Status          string
	LastModified    time.Time
	ApprovedBy      *uuid.UUID
	ApprovedAt      *time.Time
	RejectionReason *string
}

type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	FindByID(ctx context.Context, kind string, id uuid.UUID) (*model.Document, error)
	FindByIDForUpdate(ctx context.Context, kind string, id uuid.UUID) (*model.Document, error)
	List(ctx context.Context, kind string, filter DocumentFilter) ([]model.Document, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, change StatusChange) error
	UpdateContent(ctx context.Context, doc *model.Document) error
	Delete(ctx context.Context, kind string, id uuid.UUID) error
	CountByStatus(ctx context.Context, kind string) (map[string]int64, error)
}

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) error {
	return GetDB(ctx, r.db).Create(doc).Error
}

func (r *documentRepository) FindByID(ctx context.Context, kind string, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	if err := GetDB(ctx, r.db).
		Preload("Creator").
		Preload("Approver").
		Where("kind = ?", kind).
		First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByIDForUpdate locks the row until the surrounding transaction ends.
func (r *documentRepository) FindByIDForUpdate(ctx context.Context, kind string, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("kind = ?", kind).
		First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) List(ctx context.Context, kind string, filter DocumentFilter) ([]model.Document, int64, error) {
	var docs []model.Document
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Document{}).Where("kind = ?", kind)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		query = query.Where("number ILIKE ? OR title ILIKE ? OR party_name ILIKE ?", like, like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("last_modified desc").Offset(filter.Offset).Limit(filter.Limit).Find(&docs).Error; err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

func (r *documentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, change StatusChange) error {
	updates := map[string]interface{}{
		"status":        change.Status,
		"last_modified": change.LastModified,
	}
	if change.ApprovedBy != nil {
		updates["approved_by"] = change.ApprovedBy
		updates["approved_at"] = change.ApprovedAt
	}
	if change.RejectionReason != nil {
		updates["rejection_reason"] = *change.RejectionReason
	}

	res := GetDB(ctx, r.db).Model(&model.Document{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateContent writes the editable columns of doc. Status is left alone.
func (r *documentRepository) UpdateContent(ctx context.Context, doc *model.Document) error {
	res := GetDB(ctx, r.db).Model(&model.Document{}).Where("id = ?", doc.ID).Updates(map[string]interface{}{
		"title":         doc.Title,
		"party_name":    doc.PartyName,
		"amount":        doc.Amount,
		"currency":      doc.Currency,
		"payload":       doc.Payload,
		"last_modified": doc.LastModified,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *documentRepository) Delete(ctx context.Context, kind string, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("kind = ? AND id = ?", kind, id).Delete(&model.Document{}).Error
}

func (r *documentRepository) CountByStatus(ctx context.Context, kind string) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := GetDB(ctx, r.db).Model(&model.Document{}).
		Select("status, COUNT(*) AS count").
		Where("kind = ?", kind).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
