package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document is any procurement record that moves through an approval lifecycle:
// purchase orders, purchase bills, goods receipt notes, expenses and TDS deductions.
// Kind-specific fields live in Payload.
type Document struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Kind            string          `gorm:"type:varchar(30);not null;index:idx_documents_kind_status" json:"kind"`
	Number          string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"number"`
	Status          string          `gorm:"type:varchar(30);not null;index:idx_documents_kind_status" json:"status"`
	Title           string          `gorm:"type:varchar(255);not null" json:"title"`
	PartyName       string          `gorm:"type:varchar(255)" json:"party_name"` // vendor, employee or deductee
	Amount          decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"amount"`
	Currency        string          `gorm:"type:varchar(3);not null" json:"currency"`
	Payload         datatypes.JSON  `gorm:"type:jsonb" json:"payload"`
	CreatedBy       *uuid.UUID      `gorm:"type:uuid;index" json:"created_by"`
	Creator         *User           `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	ApprovedBy      *uuid.UUID      `gorm:"type:uuid" json:"approved_by"`
	Approver        *User           `gorm:"foreignKey:ApprovedBy" json:"approver,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at"`
	RejectionReason string          `gorm:"type:text" json:"rejection_reason"`
	LastModified    time.Time       `gorm:"not null;index" json:"last_modified"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

// PurchaseOrderPayload is the body of a purchase order.
type PurchaseOrderPayload struct {
	VendorID     string              `json:"vendor_id"`
	ExpectedDate string              `json:"expected_date,omitempty"`
	Lines        []PurchaseOrderLine `json:"lines"`
	Notes        string              `json:"notes,omitempty"`
}

type PurchaseOrderLine struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"` // 0.18 = 18%
}

// PurchaseBillPayload is a vendor bill, usually raised against an order.
type PurchaseBillPayload struct {
	BillNumber      string          `json:"bill_number"`
	PurchaseOrderID string          `json:"purchase_order_id,omitempty"`
	BillDate        string          `json:"bill_date"`
	DueDate         string          `json:"due_date,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
}

// GoodsReceiptPayload records what arrived against a purchase order.
type GoodsReceiptPayload struct {
	PurchaseOrderID string             `json:"purchase_order_id"`
	ReceivedAt      string             `json:"received_at"`
	Lines           []GoodsReceiptLine `json:"lines"`
}

type GoodsReceiptLine struct {
	Description string          `json:"description"`
	Ordered     decimal.Decimal `json:"ordered"`
	Received    decimal.Decimal `json:"received"`
	Rejected    decimal.Decimal `json:"rejected"`
}

// ExpensePayload is an employee expense claim, possibly in a foreign currency.
type ExpensePayload struct {
	Category         string          `json:"category"`
	OriginalAmount   decimal.Decimal `json:"original_amount"`
	OriginalCurrency string          `json:"original_currency"`
	ExchangeRate     decimal.Decimal `json:"exchange_rate"`
	SpentAt          string          `json:"spent_at"`
	Description      string          `json:"description,omitempty"`
}

// TDSPayload is a tax deducted at source on a vendor payment.
type TDSPayload struct {
	Section     string          `json:"section"` // e.g. 194C
	PAN         string          `json:"pan"`
	BaseAmount  decimal.Decimal `json:"base_amount"`
	PaymentDate string          `json:"payment_date"`
	Rate        decimal.Decimal `json:"rate"` // filled from the active TDS rule
	RuleID      string          `json:"rule_id,omitempty"`
}
