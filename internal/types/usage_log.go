package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsageLogEntry is an append-only cost record per AI call. Write-once, used
// only for reporting, never read back into control flow.
type UsageLogEntry struct {
	gorm.Model
	ID            uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Provider      string     `gorm:"not null;index;column:provider" json:"provider"`
	ModelName     string     `gorm:"not null;column:model" json:"model"`
	InputTokens   int        `gorm:"not null;column:input_tokens" json:"input_tokens"`
	OutputTokens  int        `gorm:"not null;column:output_tokens" json:"output_tokens"`
	TotalTokens   int        `gorm:"not null;column:total_tokens" json:"total_tokens"`
	EstimatedCost float64    `gorm:"not null;column:estimated_cost" json:"estimated_cost"`
	UserID        *uuid.UUID `gorm:"type:uuid;index;column:user_id" json:"user_id,omitempty"`
	Endpoint      string     `gorm:"column:endpoint" json:"endpoint"`
	Week          string     `gorm:"index;column:week" json:"week"`
	Month         string     `gorm:"index;column:month" json:"month"`
	CreatedAt     time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (UsageLogEntry) TableName() string {
	return "usage_log"
}
