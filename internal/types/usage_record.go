package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ServiceGemini     = "gemini"
	ServicePerplexity = "perplexity"
)

// Quota-gated actions. Keys match the embedded limits table.
const (
	ActionQuestionGeneration = "questionGeneration"
	ActionAnswerAssistance   = "answerAssistance"
	ActionOutlineGeneration  = "outlineGeneration"
	ActionAnswerFromSources  = "answerFromSources"
	ActionSourceDiscovery    = "sourceDiscovery"
)

// UsageRecord is the quota ledger row for one (user, service, action). Count
// never exceeds the configured daily limit; ResetAt is the start of the next
// calendar day at first consumption in a window.
type UsageRecord struct {
	gorm.Model
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_usage_user_service_action;column:user_id" json:"user_id"`
	Service   string    `gorm:"not null;uniqueIndex:idx_usage_user_service_action;column:service" json:"service"`
	Action    string    `gorm:"not null;uniqueIndex:idx_usage_user_service_action;column:action" json:"action"`
	Count     int       `gorm:"not null;default:0;column:count" json:"count"`
	ResetAt   time.Time `gorm:"not null;column:reset_at" json:"reset_at"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (UsageRecord) TableName() string {
	return "usage_record"
}

// QuotaDecision is the check-and-consume result. QuotaExceeded is a state,
// not an error.
type QuotaDecision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
	Limit     int       `json:"limit"`
}

// ActionUsage is one entry of a user usage snapshot.
type ActionUsage struct {
	Service   string     `json:"service"`
	Action    string     `json:"action"`
	Used      int        `json:"used"`
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
	ResetAt   *time.Time `json:"resetAt,omitempty"`
}
