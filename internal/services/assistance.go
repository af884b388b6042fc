package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/inkwell-backend/internal/apierr"
	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/types"
)

// Assistance types a contributor can request while answering.
const (
	AssistExamples   = "examples"
	AssistClaims     = "claims"
	AssistSources    = "sources"
	AssistDefinition = "definition"
	AssistDrafting   = "drafting"
)

var validAssistanceTypes = map[string]struct{}{
	AssistExamples: {}, AssistClaims: {}, AssistSources: {},
	AssistDefinition: {}, AssistDrafting: {},
}

type AssistanceInput struct {
	Type     string
	Question types.GeneratedQuestion
	Brief    types.Brief
	Draft    string
	Language string
}

type AssistanceService interface {
	// FindAssistance produces 2-4 short suggestions helping the author answer
	// the live question.
	FindAssistance(ctx context.Context, in AssistanceInput) ([]string, error)
	// GenerateAnswerSuggestions drafts 2-3 candidate answers the author can
	// pick from and edit.
	GenerateAnswerSuggestions(ctx context.Context, question types.GeneratedQuestion, brief types.Brief, history []types.InterviewQnA, language string) ([]string, error)
	// GenerateAnswerFromSources synthesizes a draft answer from claims the
	// author selected among discovered sources.
	GenerateAnswerFromSources(ctx context.Context, question types.GeneratedQuestion, sources []types.DiscoveredSource, language string) (string, error)
}

type assistanceService struct {
	log    *logger.Logger
	gemini GeminiClient
	usage  UsageLogService
}

func NewAssistanceService(log *logger.Logger, gemini GeminiClient, usage UsageLogService) AssistanceService {
	return &assistanceService{
		log:    log.With("service", "AssistanceService"),
		gemini: gemini,
		usage:  usage,
	}
}

func (as *assistanceService) FindAssistance(ctx context.Context, in AssistanceInput) ([]string, error) {
	if _, ok := validAssistanceTypes[in.Type]; !ok {
		return nil, apierr.Configuration("unknown assistance type %q", in.Type)
	}

	var b strings.Builder
	b.WriteString("You help an article author answer an interview question. ")
	switch in.Type {
	case AssistExamples:
		b.WriteString("Suggest concrete examples the author could draw on.")
	case AssistClaims:
		b.WriteString("Suggest factual claims worth making, phrased carefully.")
	case AssistSources:
		b.WriteString("Suggest kinds of sources worth consulting (no URLs).")
	case AssistDefinition:
		b.WriteString("Define the key terms in the question plainly.")
	case AssistDrafting:
		b.WriteString("Improve and extend the author's draft answer.")
	}
	if in.Language == "it" {
		b.WriteString(" Answer in Italian.")
	} else {
		b.WriteString(" Answer in English.")
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Article topic: %s\nThesis: %s\n", in.Brief.Topic, in.Brief.Thesis)
	fmt.Fprintf(&user, "Interview question: %s\n", in.Question.Text)
	if in.Question.AssistancePrompt != "" {
		fmt.Fprintf(&user, "Hint from the interviewer: %s\n", in.Question.AssistancePrompt)
	}
	if in.Draft != "" {
		fmt.Fprintf(&user, "Author's draft answer so far: %s\n", in.Draft)
	}

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"suggestions": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 2,
				"maxItems": 4,
			},
		},
		"required":             []string{"suggestions"},
		"additionalProperties": false,
	}

	raw, usage, err := as.gemini.GenerateJSON(ctx, b.String(), user.String(), "answer_assistance", schema)
	if usage != nil {
		as.usage.LogUsage(types.ServiceGemini, as.gemini.Model(), usage.InputTokens, usage.OutputTokens, usageContext(ctx, "find-assistance"))
	}
	if err != nil {
		return nil, err
	}

	suggestions := anyToStringSlice(raw["suggestions"])
	if len(suggestions) == 0 {
		return nil, apierr.GenerationMalformed("assistance returned no suggestions")
	}
	return suggestions, nil
}

func (as *assistanceService) GenerateAnswerSuggestions(ctx context.Context, question types.GeneratedQuestion, brief types.Brief, history []types.InterviewQnA, language string) ([]string, error) {
	system := "You draft candidate interview answers on behalf of an article author. Each candidate must be self-contained, 2-4 sentences, and consistent with what the author already said. "
	if language == "it" {
		system += "Write in Italian."
	} else {
		system += "Write in English."
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Article topic: %s\nThesis: %s\n", brief.Topic, brief.Thesis)
	if len(history) > 0 {
		user.WriteString("\nAnswers given so far:\n")
		for _, qna := range history {
			if qna.Skipped() {
				continue
			}
			fmt.Fprintf(&user, "Q: %s\nA: %s\n", qna.Question, qna.Answer)
		}
	}
	fmt.Fprintf(&user, "\nQuestion to answer: %s\n", question.Text)

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answers": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 2,
				"maxItems": 3,
			},
		},
		"required":             []string{"answers"},
		"additionalProperties": false,
	}

	raw, usage, err := as.gemini.GenerateJSON(ctx, system, user.String(), "answer_suggestions", schema)
	if usage != nil {
		as.usage.LogUsage(types.ServiceGemini, as.gemini.Model(), usage.InputTokens, usage.OutputTokens, usageContext(ctx, "generate-answer-suggestions"))
	}
	if err != nil {
		return nil, err
	}

	answers := anyToStringSlice(raw["answers"])
	if len(answers) == 0 {
		return nil, apierr.GenerationMalformed("answer suggestion returned no candidates")
	}
	return answers, nil
}

func (as *assistanceService) GenerateAnswerFromSources(ctx context.Context, question types.GeneratedQuestion, sources []types.DiscoveredSource, language string) (string, error) {
	if len(sources) == 0 {
		return "", apierr.Configuration("no sources selected")
	}

	system := "You draft an interview answer strictly from the supplied source claims. Do not invent facts. "
	if language == "it" {
		system += "Write in Italian."
	} else {
		system += "Write in English."
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Question: %s\n\nSelected source claims:\n", question.Text)
	for _, src := range sources {
		for _, claim := range src.Claims {
			fmt.Fprintf(&user, "- %s (%s)\n", claim, src.Domain)
		}
	}
	user.WriteString("\nWrite a first-person draft answer of 3-6 sentences.\n")

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answer": map[string]any{"type": "string"},
		},
		"required":             []string{"answer"},
		"additionalProperties": false,
	}

	raw, usage, err := as.gemini.GenerateJSON(ctx, system, user.String(), "answer_from_sources", schema)
	if usage != nil {
		as.usage.LogUsage(types.ServiceGemini, as.gemini.Model(), usage.InputTokens, usage.OutputTokens, usageContext(ctx, "generate-answer-from-sources"))
	}
	if err != nil {
		return "", err
	}

	answer, _ := raw["answer"].(string)
	if strings.TrimSpace(answer) == "" {
		return "", apierr.GenerationMalformed("answer synthesis returned empty text")
	}
	return answer, nil
}
