package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Topic struct {
	gorm.Model
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Slug      string    `gorm:"uniqueIndex;not null;column:slug" json:"slug"`
	NameIT    string    `gorm:"not null;column:name_it" json:"name_it"`
	NameEN    string    `gorm:"not null;column:name_en" json:"name_en"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Topic) TableName() string {
	return "topic"
}

// Article is the published projection of a contribution.
type Article struct {
	gorm.Model
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ContributionID uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null;column:contribution_id" json:"contribution_id"`
	AuthorID       uuid.UUID      `gorm:"type:uuid;index;not null;column:author_id" json:"author_id"`
	TopicID        *uuid.UUID     `gorm:"type:uuid;index;column:topic_id" json:"topic_id,omitempty"`
	Slug           string         `gorm:"uniqueIndex;not null;column:slug" json:"slug"`
	Title          string         `gorm:"not null;column:title" json:"title"`
	Language       string         `gorm:"not null;index;column:language" json:"language"`
	Outline        datatypes.JSON `gorm:"type:jsonb;column:outline" json:"outline"`
	Sources        datatypes.JSON `gorm:"type:jsonb;column:sources" json:"sources"`
	PublishedAt    time.Time      `gorm:"not null;column:published_at" json:"published_at"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Article) TableName() string {
	return "article"
}
