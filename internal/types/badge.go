package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Badge kinds awarded to authors.
const (
	BadgeFirstPublished     = "first_published"
	BadgeFivePublished      = "five_published"
	BadgeInterviewCompleted = "interview_completed"
	BadgeSourcedAuthor      = "sourced_author"
)

type UserBadge struct {
	gorm.Model
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_badge;column:user_id" json:"user_id"`
	Badge     string    `gorm:"not null;uniqueIndex:idx_user_badge;column:badge" json:"badge"`
	AwardedAt time.Time `gorm:"not null;column:awarded_at" json:"awarded_at"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (UserBadge) TableName() string {
	return "user_badge"
}
