package types

import "time"

// Data points classify what aspect of the article an answer strengthens.
const (
	DataPointThesisDepth      = "thesis_depth"
	DataPointContextRelevance = "context_relevance"
	DataPointAuthorExpertise  = "author_expertise"
	DataPointKeyMechanisms    = "key_mechanisms"
	DataPointEvidence         = "evidence"
)

var AllDataPoints = []string{
	DataPointThesisDepth,
	DataPointContextRelevance,
	DataPointAuthorExpertise,
	DataPointKeyMechanisms,
	DataPointEvidence,
}

// AnswerSkipped is the literal sentinel stored when the user skips a question.
const AnswerSkipped = "SKIPPED"

// InterviewQnA is immutable once appended to the history.
type InterviewQnA struct {
	QuestionID string    `json:"questionId"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	DataPoint  string    `json:"dataPoint"`
	AnsweredAt time.Time `json:"answeredAt"`
}

func (q InterviewQnA) Skipped() bool {
	return q.Answer == AnswerSkipped
}

// GeneratedQuestion is the single live question of a session. Superseded once
// answered or skipped.
type GeneratedQuestion struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	DataPoint        string `json:"dataPoint"`
	Motivation       string `json:"motivation"`
	HelperText       string `json:"helperText,omitempty"`
	AssistanceType   string `json:"assistanceType,omitempty"`
	AssistancePrompt string `json:"assistancePrompt,omitempty"`
}

const (
	CoverageStrong     = "strong"
	CoverageAcceptable = "acceptable"
	CoverageWeak       = "weak"
)

// CoverageAssessment is recomputed on every generation call; the latest one
// is authoritative.
type CoverageAssessment struct {
	Score          int      `json:"score"`
	Covered        []string `json:"covered"`
	Missing        []string `json:"missing"`
	Recommendation string   `json:"recommendation"`
	WarningMessage string   `json:"warningMessage,omitempty"`
}

// CoverageRecommendation derives the tier from a 0-100 score: strong >= 80,
// acceptable 50-79, weak < 50.
func CoverageRecommendation(score int) string {
	switch {
	case score >= 80:
		return CoverageStrong
	case score >= 50:
		return CoverageAcceptable
	default:
		return CoverageWeak
	}
}

// QuestionBatch is the generation engine result for one call.
type QuestionBatch struct {
	Questions         []GeneratedQuestion `json:"questions"`
	ReadyForOutline   bool                `json:"readyForOutline"`
	MissingDataPoints []string            `json:"missingDataPoints"`
	Coverage          CoverageAssessment  `json:"coverageAssessment"`
	MaxQuestions      int                 `json:"maxQuestions"`
}
