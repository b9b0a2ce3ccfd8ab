package repository

import (
	"context"
	"time"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TDSSectionRepository interface {
	Create(ctx context.Context, rule *model.TDSSection) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.TDSSection, error)
	List(ctx context.Context, section string, offset, limit int) ([]model.TDSSection, int64, error)
	FindActive(ctx context.Context, section string, on time.Time) (*model.TDSSection, error)
	CountOverlapping(ctx context.Context, section string, from time.Time, to *time.Time, excludeID *uuid.UUID) (int64, error)
}

type tdsSectionRepository struct {
	db *gorm.DB
}

func NewTDSSectionRepository(db *gorm.DB) TDSSectionRepository {
	return &tdsSectionRepository{db: db}
}

func (r *tdsSectionRepository) Create(ctx context.Context, rule *model.TDSSection) error {
	return GetDB(ctx, r.db).Create(rule).Error
}

func (r *tdsSectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.TDSSection{}).Error
}

func (r *tdsSectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.TDSSection, error) {
	var rule model.TDSSection
	if err := GetDB(ctx, r.db).First(&rule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *tdsSectionRepository) List(ctx context.Context, section string, offset, limit int) ([]model.TDSSection, int64, error) {
	var rules []model.TDSSection
	var total int64

	query := GetDB(ctx, r.db).Model(&model.TDSSection{})
	if section != "" {
		query = query.Where("section = ?", section)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("section asc, effective_from desc").Offset(offset).Limit(limit).Find(&rules).Error; err != nil {
		return nil, 0, err
	}

	return rules, total, nil
}

func (r *tdsSectionRepository) FindActive(ctx context.Context, section string, on time.Time) (*model.TDSSection, error) {
	var rule model.TDSSection
	if err := GetDB(ctx, r.db).
		Where("section = ? AND effective_from <= ? AND (effective_to IS NULL OR effective_to >= ?)", section, on, on).
		Order("effective_from DESC").
		First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *tdsSectionRepository) CountOverlapping(ctx context.Context, section string, from time.Time, to *time.Time, excludeID *uuid.UUID) (int64, error) {
	var count int64
	query := GetDB(ctx, r.db).Model(&model.TDSSection{}).Where("section = ?", section)

	if excludeID != nil {
		query = query.Where("id != ?", *excludeID)
	}

	if to != nil {
		// bounded: existing.from <= new.to AND (existing.to IS NULL OR existing.to >= new.from)
		query = query.Where("effective_from <= ? AND (effective_to IS NULL OR effective_to >= ?)", *to, from)
	} else {
		query = query.Where("(effective_to IS NULL OR effective_to >= ?)", from)
	}

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
