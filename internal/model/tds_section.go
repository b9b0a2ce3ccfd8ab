package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TDSSection is a withholding rate for one TDS section (194C, 194J...) with
// temporal validity. At most one rule per section is active on any date.
type TDSSection struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Section       string          `gorm:"type:varchar(20);not null;index" json:"section"`
	Rate          decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"rate"` // 0.02 = 2%
	Threshold     decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"threshold"`
	EffectiveFrom time.Time       `gorm:"type:date;not null;index" json:"effective_from"`
	EffectiveTo   *time.Time      `gorm:"type:date;index" json:"effective_to"` // nil = open ended
	Description   string          `gorm:"type:text" json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
