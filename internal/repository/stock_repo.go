package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockFilter struct {
	Search string
	Offset int
	Limit  int
}

type StockRepository interface {
	// LockItem returns the item for key, creating it at zero on first use,
	// and holds its row lock until the surrounding transaction ends.
	LockItem(ctx context.Context, key, description string) (*model.StockItem, error)
	UpdateOnHand(ctx context.Context, id uuid.UUID, onHand decimal.Decimal) error
	CreateMovement(ctx context.Context, m *model.StockMovement) error
	List(ctx context.Context, filter StockFilter) ([]model.StockItem, int64, error)
	MovementsByDocument(ctx context.Context, documentID uuid.UUID) ([]model.StockMovement, error)
}

type stockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) StockRepository {
	return &stockRepository{db: db}
}

func (r *stockRepository) LockItem(ctx context.Context, key, description string) (*model.StockItem, error) {
	db := GetDB(ctx, r.db)
	seed := model.StockItem{ItemKey: key, Description: description}
	if err := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "item_key"}}, DoNothing: true}).
		Create(&seed).Error; err != nil {
		return nil, err
	}

	var item model.StockItem
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("item_key = ?", key).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *stockRepository) UpdateOnHand(ctx context.Context, id uuid.UUID, onHand decimal.Decimal) error {
	return GetDB(ctx, r.db).Model(&model.StockItem{}).Where("id = ?", id).Update("on_hand", onHand).Error
}

func (r *stockRepository) CreateMovement(ctx context.Context, m *model.StockMovement) error {
	return GetDB(ctx, r.db).Create(m).Error
}

func (r *stockRepository) List(ctx context.Context, filter StockFilter) ([]model.StockItem, int64, error) {
	var items []model.StockItem
	var total int64

	query := GetDB(ctx, r.db).Model(&model.StockItem{})
	if filter.Search != "" {
		query = query.Where("description ILIKE ?", "%"+filter.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("description asc").Offset(filter.Offset).Limit(filter.Limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *stockRepository) MovementsByDocument(ctx context.Context, documentID uuid.UUID) ([]model.StockMovement, error) {
	var out []model.StockMovement
	if err := GetDB(ctx, r.db).
		Preload("StockItem").
		Where("document_id = ?", documentID).
		Order("created_at asc").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
