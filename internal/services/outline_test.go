package services

import (
	"context"
	"strings"
	"testing"

	"github.com/yungbote/inkwell-backend/internal/apierr"
	"github.com/yungbote/inkwell-backend/internal/types"
)

func validOutlineRaw() map[string]any {
	section := func(title, secType string) map[string]any {
		return map[string]any{
			"title":         title,
			"type":          secType,
			"wordBudget":    float64(200),
			"bulletPrompts": []any{"point one", "point two"},
		}
	}
	return map[string]any{
		"title": "Cold-climate heat pumps, explained",
		"sections": []any{
			section("Why now", "intro"),
			section("The alpine context", "context"),
			section("How modern compressors cope", "core"),
			section("Field data above 1500m", "evidence"),
			section("What to check before buying", "takeaways"),
		},
		"qualityChecklist": map[string]any{
			"originalAngle":   true,
			"evidenceRatio":   "2/5 sections",
			"targetAlignment": true,
		},
		"geoSuggestions": map[string]any{
			"directAnswer": "Yes, modern cold-climate heat pumps heat efficiently above 1500m.",
			"term":         "COP",
			"definition":   "Coefficient of performance, heat output per unit of electricity.",
		},
	}
}

func TestGenerateOutline_ParsesSectionsAndChecklist(t *testing.T) {
	gemini := &fakeGemini{
		raw:   validOutlineRaw(),
		usage: &TokenUsage{InputTokens: 900, OutputTokens: 400, TotalTokens: 1300},
	}
	usageLog := &fakeUsageLog{}
	svc := NewOutlineService(testLogger(t), gemini, usageLog)

	outline, err := svc.GenerateOutline(context.Background(), OutlineGenInput{
		Brief:    testBrief(),
		Language: "en",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outline.Sections) != 5 {
		t.Fatalf("expected 5 sections, got %d", len(outline.Sections))
	}
	if outline.Sections[0].Type != types.SectionIntro {
		t.Fatalf("expected intro first, got %q", outline.Sections[0].Type)
	}
	if outline.Sections[3].WordBudget != 200 {
		t.Fatalf("expected word budget 200, got %d", outline.Sections[3].WordBudget)
	}
	if !outline.Checklist.OriginalAngle || outline.Checklist.EvidenceRatio != "2/5 sections" {
		t.Fatalf("unexpected checklist: %+v", outline.Checklist)
	}
	if outline.GEO.Term != "COP" {
		t.Fatalf("unexpected geo term %q", outline.GEO.Term)
	}
	if len(usageLog.entries) != 1 {
		t.Fatalf("expected one usage entry, got %v", usageLog.entries)
	}
}

func TestParseOutline_TruncatesDirectAnswerTo30Words(t *testing.T) {
	raw := validOutlineRaw()
	long := strings.Repeat("word ", 45)
	raw["geoSuggestions"].(map[string]any)["directAnswer"] = strings.TrimSpace(long)

	outline, err := parseOutline(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := wordCount(outline.GEO.DirectAnswer); got != 30 {
		t.Fatalf("expected 30 words, got %d", got)
	}
}

func TestParseOutline_RejectsInvalidShapes(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing title", func(raw map[string]any) { raw["title"] = " " }},
		{"missing sections", func(raw map[string]any) { delete(raw, "sections") }},
		{"invalid section type", func(raw map[string]any) {
			raw["sections"].([]any)[0].(map[string]any)["type"] = "prologue"
		}},
		{"missing checklist", func(raw map[string]any) { delete(raw, "qualityChecklist") }},
		{"missing geo", func(raw map[string]any) { delete(raw, "geoSuggestions") }},
	}
	for _, tc := range cases {
		raw := validOutlineRaw()
		tc.mutate(raw)
		_, err := parseOutline(raw)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		isGen, retryable := apierr.IsGeneration(err)
		if !isGen || retryable {
			t.Fatalf("%s: expected non-retryable generation error, got %v", tc.name, err)
		}
	}
}

func TestBuildOutlineSystemPrompt_CitationContractFollowsSources(t *testing.T) {
	withSources := buildOutlineSystemPrompt("en", true)
	if !strings.Contains(withSources, "never invent citations") {
		t.Fatalf("expected citation rule with sources:\n%s", withSources)
	}
	withoutSources := buildOutlineSystemPrompt("en", false)
	if !strings.Contains(withoutSources, "no sources were verified") {
		t.Fatalf("expected no-citation rule without sources:\n%s", withoutSources)
	}
}
