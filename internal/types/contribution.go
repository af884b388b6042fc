package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusPitch     = "pitch"
	StatusInterview = "interview"
	StatusOutline   = "outline"
	StatusDraft     = "draft"
	StatusReview    = "review"
	StatusScheduled = "scheduled"
	StatusPublished = "published"
)

const (
	PathAutonomy  = "autonomy"
	PathGuided    = "guided"
	PathInterview = "interview"
)

var ValidStatuses = map[string]struct{}{
	StatusPitch: {}, StatusInterview: {}, StatusOutline: {}, StatusDraft: {},
	StatusReview: {}, StatusScheduled: {}, StatusPublished: {},
}

var ValidPaths = map[string]struct{}{
	PathAutonomy: {}, PathGuided: {}, PathInterview: {},
}

// Brief is the user-authored pitch that seeds the interview.
type Brief struct {
	Topic          string   `json:"topic"`
	TargetAudience string   `json:"targetAudience"`
	Format         string   `json:"format"`
	Thesis         string   `json:"thesis"`
	Context        string   `json:"context,omitempty"`
	Sources        []string `json:"sources,omitempty"`
}

// Agreement records the signed contributor terms.
type Agreement struct {
	Version  string    `json:"version"`
	SignedAt time.Time `json:"signedAt"`
	SignedBy string    `json:"signedBy"`
}

// Contribution is the aggregate root of an in-progress article submission.
// Document-shaped fields live in jsonb columns.
type Contribution struct {
	gorm.Model
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;index;not null;column:user_id" json:"user_id"`
	TopicID         *uuid.UUID     `gorm:"type:uuid;index;column:topic_id" json:"topic_id,omitempty"`
	Status          string         `gorm:"not null;default:pitch;column:status" json:"status"`
	CurrentStep     string         `gorm:"column:current_step" json:"current_step"`
	Path            string         `gorm:"not null;default:interview;column:path" json:"path"`
	Language        string         `gorm:"not null;default:it;column:language" json:"language"`
	Brief           datatypes.JSON `gorm:"type:jsonb;column:brief" json:"brief"`
	InterviewHist   datatypes.JSON `gorm:"type:jsonb;column:interview_history" json:"interview_history"`
	CurrentQuestion datatypes.JSON `gorm:"type:jsonb;column:current_question" json:"current_question"`
	SourceDiscovery datatypes.JSON `gorm:"type:jsonb;column:source_discovery" json:"source_discovery"`
	Outline         datatypes.JSON `gorm:"type:jsonb;column:generated_outline" json:"generated_outline"`
	Agreement       datatypes.JSON `gorm:"type:jsonb;column:agreement" json:"agreement"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Contribution) TableName() string {
	return "contribution"
}

func (c *Contribution) GetBrief() (Brief, error) {
	var b Brief
	if len(c.Brief) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(c.Brief, &b); err != nil {
		return b, fmt.Errorf("Failed to decode brief: %w", err)
	}
	return b, nil
}

func (c *Contribution) SetBrief(b Brief) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	c.Brief = datatypes.JSON(raw)
	return nil
}

func (c *Contribution) GetHistory() ([]InterviewQnA, error) {
	if len(c.InterviewHist) == 0 {
		return nil, nil
	}
	var hist []InterviewQnA
	if err := json.Unmarshal(c.InterviewHist, &hist); err != nil {
		return nil, fmt.Errorf("Failed to decode interview history: %w", err)
	}
	return hist, nil
}

func (c *Contribution) SetHistory(hist []InterviewQnA) error {
	raw, err := json.Marshal(hist)
	if err != nil {
		return err
	}
	c.InterviewHist = datatypes.JSON(raw)
	return nil
}

// GetCurrentQuestion returns nil when no question is pending.
func (c *Contribution) GetCurrentQuestion() (*GeneratedQuestion, error) {
	if len(c.CurrentQuestion) == 0 || string(c.CurrentQuestion) == "null" {
		return nil, nil
	}
	var q GeneratedQuestion
	if err := json.Unmarshal(c.CurrentQuestion, &q); err != nil {
		return nil, fmt.Errorf("Failed to decode current question: %w", err)
	}
	if q.ID == "" {
		return nil, nil
	}
	return &q, nil
}

func (c *Contribution) SetCurrentQuestion(q *GeneratedQuestion) error {
	if q == nil {
		c.CurrentQuestion = datatypes.JSON([]byte("null"))
		return nil
	}
	raw, err := json.Marshal(q)
	if err != nil {
		return err
	}
	c.CurrentQuestion = datatypes.JSON(raw)
	return nil
}
