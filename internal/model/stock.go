package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MovementIn  = "IN"
	MovementOut = "OUT"
)

// StockItem is the running on-hand quantity of one received article. Goods
// receipt lines carry no product code, so items are keyed by their
// normalised description.
type StockItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ItemKey     string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"item_key"`
	Description string          `gorm:"type:varchar(255);not null" json:"description"`
	OnHand      decimal.Decimal `gorm:"type:decimal(15,3);not null;default:0" json:"on_hand"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// StockMovement is one line of the stock card. Rows are only ever appended.
type StockMovement struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	StockItemID uuid.UUID       `gorm:"type:uuid;not null;index" json:"stock_item_id"`
	StockItem   *StockItem      `gorm:"foreignKey:StockItemID" json:"stock_item,omitempty"`
	DocumentID  *uuid.UUID      `gorm:"type:uuid;index" json:"document_id"`
	Direction   string          `gorm:"type:varchar(10);not null" json:"direction"`
	Quantity    decimal.Decimal `gorm:"type:decimal(15,3);not null" json:"quantity"`
	OnHandAfter decimal.Decimal `gorm:"type:decimal(15,3);not null" json:"on_hand_after"`
	CreatedAt   time.Time       `json:"created_at"`
}
