package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VendorFilter struct {
	Search     string
	ActiveOnly bool
	Offset     int
	Limit      int
}

type VendorRepository interface {
	Create(ctx context.Context, vendor *model.Vendor) error
	Update(ctx context.Context, vendor *model.Vendor) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Vendor, error)
	List(ctx context.Context, filter VendorFilter) ([]model.Vendor, int64, error)
	DeleteAddressesByVendorID(ctx context.Context, vendorID uuid.UUID) error
	CreateAddresses(ctx context.Context, addresses []model.VendorAddress) error
}

type vendorRepository struct {
	db *gorm.DB
}

func NewVendorRepository(db *gorm.DB) VendorRepository {
	return &vendorRepository{db: db}
}

func (r *vendorRepository) Create(ctx context.Context, vendor *model.Vendor) error {
	return GetDB(ctx, r.db).Create(vendor).Error
}

func (r *vendorRepository) Update(ctx context.Context, vendor *model.Vendor) error {
	return GetDB(ctx, r.db).Omit("Addresses").Save(vendor).Error
}

func (r *vendorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Vendor{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *vendorRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Vendor, error) {
	var vendor model.Vendor
	if err := GetDB(ctx, r.db).Preload("Addresses").First(&vendor, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *vendorRepository) List(ctx context.Context, filter VendorFilter) ([]model.Vendor, int64, error) {
	var vendors []model.Vendor
	var total int64

	scoped := func() *gorm.DB {
		q := GetDB(ctx, r.db).Model(&model.Vendor{})
		if filter.ActiveOnly {
			q = q.Where("is_active = ?", true)
		}
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			q = q.Where("name ILIKE ? OR pan ILIKE ? OR gstin ILIKE ? OR email ILIKE ?", like, like, like, like)
		}
		return q
	}

	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := scoped().Preload("Addresses").
		Order("name ASC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&vendors).Error; err != nil {
		return nil, 0, err
	}

	return vendors, total, nil
}

func (r *vendorRepository) DeleteAddressesByVendorID(ctx context.Context, vendorID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("vendor_id = ?", vendorID).Delete(&model.VendorAddress{}).Error
}

func (r *vendorRepository) CreateAddresses(ctx context.Context, addresses []model.VendorAddress) error {
	if len(addresses) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&addresses).Error
}
