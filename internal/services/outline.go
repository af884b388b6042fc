package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/inkwell-backend/internal/apierr"
	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/types"
)

type OutlineGenInput struct {
	Brief    types.Brief
	History  []types.InterviewQnA
	Sources  []types.DiscoveredSource
	Language string
}

type OutlineService interface {
	GenerateOutline(ctx context.Context, in OutlineGenInput) (*types.GeneratedOutline, error)
}

type outlineService struct {
	log    *logger.Logger
	gemini GeminiClient
	usage  UsageLogService
}

func NewOutlineService(log *logger.Logger, gemini GeminiClient, usage UsageLogService) OutlineService {
	return &outlineService{
		log:    log.With("service", "OutlineService"),
		gemini: gemini,
		usage:  usage,
	}
}

func (os *outlineService) GenerateOutline(ctx context.Context, in OutlineGenInput) (*types.GeneratedOutline, error) {
	system := buildOutlineSystemPrompt(in.Language, len(in.Sources) > 0)
	user := buildOutlineUserPrompt(in)

	raw, usage, err := os.gemini.GenerateJSON(ctx, system, user, "article_outline", outlineSchema())
	if usage != nil {
		os.usage.LogUsage(types.ServiceGemini, os.gemini.Model(), usage.InputTokens, usage.OutputTokens, usageContext(ctx, "generate-outline"))
	}
	if err != nil {
		return nil, err
	}

	outline, err := parseOutline(raw)
	if err != nil {
		return nil, err
	}
	return outline, nil
}

func buildOutlineSystemPrompt(language string, hasSources bool) string {
	var b strings.Builder
	b.WriteString("You are an editorial planner producing a structured article outline from a brief and an interview.\n")
	b.WriteString("Sections must each carry a type among: intro, context, core, evidence, takeaways.\n")
	b.WriteString("Give every section a word budget and 2-4 bullet prompts.\n")
	if hasSources {
		b.WriteString("Cite ONLY the verified source URLs and claims supplied; never invent citations.\n")
	} else {
		b.WriteString("Do not attach any citation: no sources were verified.\n")
	}
	b.WriteString("Also produce: a quality checklist (originalAngle, evidenceRatio like \"3/5 sections\", targetAlignment),\n")
	b.WriteString("and GEO suggestions: a direct answer of at most 30 words plus one term with its definition.\n")
	if language == "it" {
		b.WriteString("Write all user-facing text in Italian.\n")
	} else {
		b.WriteString("Write all user-facing text in English.\n")
	}
	return b.String()
}

func buildOutlineUserPrompt(in OutlineGenInput) string {
	var b strings.Builder
	b.WriteString("BRIEF\n")
	fmt.Fprintf(&b, "Topic: %s\nAudience: %s\nFormat: %s\nThesis: %s\n", in.Brief.Topic, in.Brief.TargetAudience, in.Brief.Format, in.Brief.Thesis)
	if in.Brief.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", in.Brief.Context)
	}

	b.WriteString("\nINTERVIEW\n")
	for i, qna := range in.History {
		fmt.Fprintf(&b, "Q%d [%s]: %s\n", i+1, qna.DataPoint, qna.Question)
		if qna.Skipped() {
			fmt.Fprintf(&b, "A%d: (skipped)\n", i+1)
		} else {
			fmt.Fprintf(&b, "A%d: %s\n", i+1, qna.Answer)
		}
	}

	if len(in.Sources) > 0 {
		b.WriteString("\nVERIFIED SOURCES (cite these exact URLs)\n")
		for i, src := range in.Sources {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, src.Title, src.URL)
			for _, claim := range src.Claims {
				fmt.Fprintf(&b, "   claim: %s\n", claim)
			}
		}
	}
	return b.String()
}

func outlineSchema() map[string]any {
	sectionTypes := []string{types.SectionIntro, types.SectionContext, types.SectionCore, types.SectionEvidence, types.SectionTakeaways}
	sectionSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":         map[string]any{"type": "string"},
			"type":          map[string]any{"type": "string", "enum": sectionTypes},
			"wordBudget":    map[string]any{"type": "integer", "minimum": 50},
			"bulletPrompts": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"sourceRefs":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"claimRefs":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required":             []string{"title", "type", "wordBudget", "bulletPrompts"},
		"additionalProperties": false,
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":    map[string]any{"type": "string"},
			"sections": map[string]any{"type": "array", "items": sectionSchema, "minItems": 3},
			"qualityChecklist": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"originalAngle":   map[string]any{"type": "boolean"},
					"evidenceRatio":   map[string]any{"type": "string"},
					"targetAlignment": map[string]any{"type": "boolean"},
				},
				"required":             []string{"originalAngle", "evidenceRatio", "targetAlignment"},
				"additionalProperties": false,
			},
			"geoSuggestions": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"directAnswer": map[string]any{"type": "string"},
					"term":         map[string]any{"type": "string"},
					"definition":   map[string]any{"type": "string"},
				},
				"required":             []string{"directAnswer", "term", "definition"},
				"additionalProperties": false,
			},
		},
		"required":             []string{"title", "sections", "qualityChecklist", "geoSuggestions"},
		"additionalProperties": false,
	}
}

func parseOutline(raw map[string]any) (*types.GeneratedOutline, error) {
	title, _ := raw["title"].(string)
	if strings.TrimSpace(title) == "" {
		return nil, apierr.GenerationMalformed("outline missing title")
	}

	sectionsRaw, ok := raw["sections"].([]any)
	if !ok || len(sectionsRaw) == 0 {
		return nil, apierr.GenerationMalformed("outline missing sections")
	}

	outline := &types.GeneratedOutline{Title: title}
	for i, sr := range sectionsRaw {
		sm, ok := sr.(map[string]any)
		if !ok {
			return nil, apierr.GenerationMalformed("outline section %d is not an object", i)
		}
		secTitle, _ := sm["title"].(string)
		secType, _ := sm["type"].(string)
		if strings.TrimSpace(secTitle) == "" {
			return nil, apierr.GenerationMalformed("outline section %d missing title", i)
		}
		if _, ok := types.ValidSectionTypes[secType]; !ok {
			return nil, apierr.GenerationMalformed("outline section %d has invalid type %q", i, secType)
		}
		wordBudget, _ := anyToInt(sm["wordBudget"])
		outline.Sections = append(outline.Sections, types.OutlineSection{
			Title:         secTitle,
			Type:          secType,
			WordBudget:    wordBudget,
			BulletPrompts: anyToStringSlice(sm["bulletPrompts"]),
			SourceRefs:    anyToStringSlice(sm["sourceRefs"]),
			ClaimRefs:     anyToStringSlice(sm["claimRefs"]),
		})
	}

	if checklistRaw, ok := raw["qualityChecklist"].(map[string]any); ok {
		outline.Checklist.OriginalAngle, _ = checklistRaw["originalAngle"].(bool)
		outline.Checklist.EvidenceRatio, _ = checklistRaw["evidenceRatio"].(string)
		outline.Checklist.TargetAlignment, _ = checklistRaw["targetAlignment"].(bool)
	} else {
		return nil, apierr.GenerationMalformed("outline missing qualityChecklist")
	}

	geoRaw, ok := raw["geoSuggestions"].(map[string]any)
	if !ok {
		return nil, apierr.GenerationMalformed("outline missing geoSuggestions")
	}
	outline.GEO.DirectAnswer, _ = geoRaw["directAnswer"].(string)
	outline.GEO.Term, _ = geoRaw["term"].(string)
	outline.GEO.Definition, _ = geoRaw["definition"].(string)
	if wordCount(outline.GEO.DirectAnswer) > 30 {
		outline.GEO.DirectAnswer = truncateWords(outline.GEO.DirectAnswer, 30)
	}
	return outline, nil
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func truncateWords(s string, max int) string {
	fields := strings.Fields(s)
	if len(fields) <= max {
		return s
	}
	return strings.Join(fields[:max], " ")
}
