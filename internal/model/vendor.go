package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Address types of a vendor.
const (
	AddressTypeBilling  = "BILLING"
	AddressTypeRemitTo  = "REMIT_TO"
	AddressTypeShipFrom = "SHIP_FROM"
)

// Vendor is a supplier that purchase orders and bills are raised against.
// PAN is the deductee identifier used for TDS.
type Vendor struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name          string          `gorm:"type:varchar(255);not null;index" json:"name"`
	PAN           string          `gorm:"type:varchar(10);index" json:"pan"`
	GSTIN         string          `gorm:"type:varchar(15)" json:"gstin"`
	BankAccount   string          `gorm:"type:varchar(100)" json:"bank_account"`
	ContactPerson string          `gorm:"type:varchar(255)" json:"contact_person"`
	Phone         string          `gorm:"type:varchar(50)" json:"phone"`
	Email         string          `gorm:"type:varchar(255)" json:"email"`
	IsActive      bool            `gorm:"default:true" json:"is_active"`
	Addresses     []VendorAddress `gorm:"foreignKey:VendorID;constraint:OnDelete:CASCADE" json:"addresses"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

type VendorAddress struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	VendorID    uuid.UUID `gorm:"type:uuid;not null;index" json:"vendor_id"`
	AddressType string    `gorm:"type:varchar(20);not null" json:"address_type"`
	FullAddress string    `gorm:"type:text;not null" json:"full_address"`
	IsDefault   bool      `gorm:"default:false" json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
