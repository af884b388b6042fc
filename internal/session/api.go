package session

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/inkwell-backend/internal/types"
)

// GenerateRequest asks the backend for the next interview question batch.
type GenerateRequest struct {
	ContributionID   string                `json:"contributionId"`
	Brief            types.Brief           `json:"brief"`
	InterviewHistory []types.InterviewQnA  `json:"interviewHistory"`
	Language         string                `json:"language"`
	MaxQuestions     int                   `json:"maxQuestions,omitempty"`
	ForceComplete    bool                  `json:"forceComplete,omitempty"`
}

// SaveRequest is a partial progress write. Set* flags distinguish "set field
// to zero value" from "leave field alone".
type SaveRequest struct {
	InterviewHistory   []types.InterviewQnA     `json:"interviewHistory,omitempty"`
	SetHistory         bool                     `json:"-"`
	CurrentQuestion    *types.GeneratedQuestion `json:"currentQuestion"`
	SetCurrentQuestion bool                     `json:"-"`
	Status             string                   `json:"status,omitempty"`
}

// ContributionSnapshot is the subset of server contribution state the
// interview session needs for reconciliation.
type ContributionSnapshot struct {
	ID               string
	Status           string
	Brief            types.Brief
	Language         string
	InterviewHistory []types.InterviewQnA
	CurrentQuestion  *types.GeneratedQuestion
}

// API is the backend surface the session drives. Implementations translate
// these calls to HTTP; tests supply fakes.
type API interface {
	GenerateQuestions(ctx context.Context, req GenerateRequest) (*types.QuestionBatch, error)
	SaveProgress(ctx context.Context, contributionID string, req SaveRequest) error
	GetContribution(ctx context.Context, contributionID string) (*ContributionSnapshot, error)
}

// RateLimitError reports a denied generation. It is a recoverable session
// state rather than a failure: the author keeps their answers and may finish
// with the questions already asked.
type RateLimitError struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("question generation quota exhausted (limit %d, resets %s)", e.Limit, e.ResetAt.Format(time.RFC3339))
}
