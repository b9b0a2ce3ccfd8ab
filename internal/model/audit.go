package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActionCreateDocument  = "CREATE_DOCUMENT"
	ActionUpdateDocument  = "UPDATE_DOCUMENT"
	ActionChangeStatus    = "CHANGE_STATUS"
	ActionApproveDocument = "APPROVE_DOCUMENT"
	ActionRejectDocument  = "REJECT_DOCUMENT"
	ActionDeleteDocument  = "DELETE_DOCUMENT"
	ActionPostReceipt     = "POST_RECEIPT"

	ActionCreateTDSSection = "CREATE_TDS_SECTION"
	ActionDeleteTDSSection = "DELETE_TDS_SECTION"
)

// AuditLog tracks who changed what and when.
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"` // nil for system actions
	User       *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityKind string         `gorm:"type:varchar(30);index" json:"entity_kind"`
	EntityID   string         `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string         `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    datatypes.JSON `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}
