package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/inkwell-backend/internal/apierr"
	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/types"
)

const (
	// DefaultMaxQuestions is the hard cap on interview questions per session.
	DefaultMaxQuestions = 5

	// readyCoverageThreshold: the interview is done once coverage reaches this.
	readyCoverageThreshold = 70

	// defaultCoverageScore is reported when the engine short-circuits
	// (cap reached or force-complete) without consulting the model. Fixed
	// product heuristic; clients depend on the literal value.
	defaultCoverageScore = 70
)

type QuestionGenInput struct {
	Brief          types.Brief
	History        []types.InterviewQnA
	QuestionNumber int
	MaxQuestions   int
	ForceComplete  bool
	Language       string
}

type InterviewService interface {
	// GenerateQuestions returns at most one new question, or a ready-for-outline
	// signal, always with a coverage assessment.
	GenerateQuestions(ctx context.Context, in QuestionGenInput) (*types.QuestionBatch, error)
}

type interviewService struct {
	log    *logger.Logger
	gemini GeminiClient
	usage  UsageLogService
}

func NewInterviewService(log *logger.Logger, gemini GeminiClient, usage UsageLogService) InterviewService {
	return &interviewService{
		log:    log.With("service", "InterviewService"),
		gemini: gemini,
		usage:  usage,
	}
}

func capReachedMessage(language string) string {
	if language == "it" {
		return "Hai raggiunto il numero massimo di domande: il materiale raccolto è sufficiente per la scaletta."
	}
	return "You have reached the maximum number of questions: the collected material is enough for the outline."
}

func userFinishedMessage(language string) string {
	if language == "it" {
		return "Intervista conclusa su tua richiesta: procediamo con la scaletta usando le risposte raccolte."
	}
	return "Interview ended at your request: proceeding to the outline with the answers collected so far."
}

func (is *interviewService) GenerateQuestions(ctx context.Context, in QuestionGenInput) (*types.QuestionBatch, error) {
	maxQuestions := in.MaxQuestions
	if maxQuestions <= 0 {
		maxQuestions = DefaultMaxQuestions
	}

	// Cap and force-complete short-circuit before any model call: no token is
	// spent once the interview is over.
	if in.QuestionNumber > maxQuestions || in.ForceComplete {
		warning := capReachedMessage(in.Language)
		if in.ForceComplete {
			warning = userFinishedMessage(in.Language)
		}
		covered, missing := coveredAndMissing(in.History)
		return &types.QuestionBatch{
			Questions:         []types.GeneratedQuestion{},
			ReadyForOutline:   true,
			MissingDataPoints: missing,
			Coverage: types.CoverageAssessment{
				Score:          defaultCoverageScore,
				Covered:        covered,
				Missing:        missing,
				Recommendation: types.CoverageRecommendation(defaultCoverageScore),
				WarningMessage: warning,
			},
			MaxQuestions: maxQuestions,
		}, nil
	}

	system := buildQuestionSystemPrompt(in.Language)
	user := buildQuestionUserPrompt(in, maxQuestions)

	raw, usage, err := is.gemini.GenerateJSON(ctx, system, user, "interview_questions", questionBatchSchema())
	if usage != nil {
		is.usage.LogUsage(types.ServiceGemini, is.gemini.Model(), usage.InputTokens, usage.OutputTokens, usageContext(ctx, "generate-questions"))
	}
	if err != nil {
		return nil, err
	}

	batch, err := parseQuestionBatch(raw)
	if err != nil {
		return nil, err
	}
	batch.MaxQuestions = maxQuestions

	if batch.Coverage.Score >= readyCoverageThreshold {
		batch.ReadyForOutline = true
	}
	if batch.ReadyForOutline {
		batch.Questions = []types.GeneratedQuestion{}
	}
	return batch, nil
}

// coveredAndMissing derives the data points already answered (non-skipped)
// from the history, for the no-model short-circuit path.
func coveredAndMissing(history []types.InterviewQnA) (covered []string, missing []string) {
	seen := map[string]struct{}{}
	for _, qna := range history {
		if qna.Skipped() || qna.DataPoint == "" {
			continue
		}
		seen[qna.DataPoint] = struct{}{}
	}
	for _, dp := range types.AllDataPoints {
		if _, ok := seen[dp]; ok {
			covered = append(covered, dp)
		} else {
			missing = append(missing, dp)
		}
	}
	return covered, missing
}

func buildQuestionSystemPrompt(language string) string {
	var b strings.Builder
	b.WriteString("You are an editorial interviewer helping a contributor strengthen an article pitch.\n")
	b.WriteString("Each question must target exactly one data point among: ")
	b.WriteString(strings.Join(types.AllDataPoints, ", "))
	b.WriteString(".\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Never ask about a data point the answers already cover fully.\n")
	b.WriteString("- If the previous answer was skipped, pivot: a different angle on the same data point, or a different data point.\n")
	b.WriteString(fmt.Sprintf("- Set readyForOutline=true once coverage score is %d or higher.\n", readyCoverageThreshold))
	b.WriteString("- Produce at most one question, with a motivation explaining why it increases the article's authority.\n")
	b.WriteString("- Score coverage 0-100 and list covered and missing data points.\n")
	if language == "it" {
		b.WriteString("Write all user-facing text in Italian.\n")
	} else {
		b.WriteString("Write all user-facing text in English.\n")
	}
	return b.String()
}

func buildQuestionUserPrompt(in QuestionGenInput, maxQuestions int) string {
	var b strings.Builder
	b.WriteString("BRIEF\n")
	fmt.Fprintf(&b, "Topic: %s\n", in.Brief.Topic)
	fmt.Fprintf(&b, "Target audience: %s\n", in.Brief.TargetAudience)
	fmt.Fprintf(&b, "Format: %s\n", in.Brief.Format)
	fmt.Fprintf(&b, "Thesis: %s\n", in.Brief.Thesis)
	if in.Brief.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", in.Brief.Context)
	}
	if len(in.Brief.Sources) > 0 {
		fmt.Fprintf(&b, "Sources provided by the author: %s\n", strings.Join(in.Brief.Sources, "; "))
	}

	b.WriteString("\nINTERVIEW SO FAR\n")
	if len(in.History) == 0 {
		b.WriteString("(no answers yet)\n")
	}
	for i, qna := range in.History {
		fmt.Fprintf(&b, "Q%d [%s]: %s\n", i+1, qna.DataPoint, qna.Question)
		if qna.Skipped() {
			fmt.Fprintf(&b, "A%d: (the author skipped this question)\n", i+1)
		} else {
			fmt.Fprintf(&b, "A%d: %s\n", i+1, qna.Answer)
		}
	}

	fmt.Fprintf(&b, "\nYou are preparing question %d of at most %d.\n", in.QuestionNumber, maxQuestions)
	return b.String()
}

func questionBatchSchema() map[string]any {
	questionSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text":             map[string]any{"type": "string"},
			"dataPoint":        map[string]any{"type": "string", "enum": types.AllDataPoints},
			"motivation":       map[string]any{"type": "string"},
			"helperText":       map[string]any{"type": "string"},
			"assistanceType":   map[string]any{"type": "string"},
			"assistancePrompt": map[string]any{"type": "string"},
		},
		"required":             []string{"text", "dataPoint", "motivation"},
		"additionalProperties": false,
	}
	coverageSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":   map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
			"covered": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"missing": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required":             []string{"score", "covered", "missing"},
		"additionalProperties": false,
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions":          map[string]any{"type": "array", "items": questionSchema, "maxItems": 1},
			"readyForOutline":    map[string]any{"type": "boolean"},
			"missingDataPoints":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"coverageAssessment": coverageSchema,
		},
		"required":             []string{"questions", "readyForOutline", "missingDataPoints", "coverageAssessment"},
		"additionalProperties": false,
	}
}

// parseQuestionBatch validates the duck-typed model output at the boundary so
// malformed shapes become typed generation errors instead of runtime crashes
// deeper in.
func parseQuestionBatch(raw map[string]any) (*types.QuestionBatch, error) {
	ready, ok := raw["readyForOutline"].(bool)
	if !ok {
		return nil, apierr.GenerationMalformed("missing or invalid readyForOutline")
	}

	coverageRaw, ok := raw["coverageAssessment"].(map[string]any)
	if !ok {
		return nil, apierr.GenerationMalformed("missing coverageAssessment")
	}
	score, ok := anyToInt(coverageRaw["score"])
	if !ok {
		return nil, apierr.GenerationMalformed("coverageAssessment.score missing or not a number")
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	batch := &types.QuestionBatch{
		ReadyForOutline:   ready,
		MissingDataPoints: anyToStringSlice(raw["missingDataPoints"]),
		Coverage: types.CoverageAssessment{
			Score:   score,
			Covered: anyToStringSlice(coverageRaw["covered"]),
			Missing: anyToStringSlice(coverageRaw["missing"]),
			// Tier is derived server-side, never trusted from the model.
			Recommendation: types.CoverageRecommendation(score),
		},
	}

	questionsRaw, ok := raw["questions"].([]any)
	if !ok {
		return nil, apierr.GenerationMalformed("missing questions array")
	}
	if !ready && len(questionsRaw) == 0 {
		return nil, apierr.GenerationMalformed("model produced no question while not ready for outline")
	}
	for _, qr := range questionsRaw {
		qm, ok := qr.(map[string]any)
		if !ok {
			return nil, apierr.GenerationMalformed("question entry is not an object")
		}
		text, _ := qm["text"].(string)
		dataPoint, _ := qm["dataPoint"].(string)
		motivation, _ := qm["motivation"].(string)
		if strings.TrimSpace(text) == "" || strings.TrimSpace(motivation) == "" {
			return nil, apierr.GenerationMalformed("question missing text or motivation")
		}
		if !isValidDataPoint(dataPoint) {
			return nil, apierr.GenerationMalformed("question has invalid dataPoint %q", dataPoint)
		}
		question := types.GeneratedQuestion{
			ID:         uuid.New().String(),
			Text:       text,
			DataPoint:  dataPoint,
			Motivation: motivation,
		}
		question.HelperText, _ = qm["helperText"].(string)
		question.AssistanceType, _ = qm["assistanceType"].(string)
		question.AssistancePrompt, _ = qm["assistancePrompt"].(string)
		batch.Questions = append(batch.Questions, question)
		if len(batch.Questions) == 1 {
			break
		}
	}
	return batch, nil
}

func isValidDataPoint(dp string) bool {
	for _, known := range types.AllDataPoints {
		if dp == known {
			return true
		}
	}
	return false
}

func anyToInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	}
	return 0, false
}

func anyToStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
