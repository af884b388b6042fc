package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/inkwell-backend/internal/apierr"
	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/types"
)

type SourceDiscoveryService interface {
	// DiscoverSources returns ranked, evidence-bearing source candidates for
	// the brief. Best-effort: URLs are as retrieved by the search provider,
	// not re-verified here.
	DiscoverSources(ctx context.Context, brief types.Brief, history []types.InterviewQnA, language string) ([]types.DiscoveredSource, error)
}

type sourceDiscoveryService struct {
	log        *logger.Logger
	perplexity PerplexityClient
	usage      UsageLogService
}

func NewSourceDiscoveryService(log *logger.Logger, perplexity PerplexityClient, usage UsageLogService) (SourceDiscoveryService, error) {
	if perplexity == nil {
		return nil, apierr.Configuration("source discovery requires a Perplexity client")
	}
	return &sourceDiscoveryService{
		log:        log.With("service", "SourceDiscoveryService"),
		perplexity: perplexity,
		usage:      usage,
	}, nil
}

func buildDiscoverySystemPrompt(language string) string {
	var b strings.Builder
	b.WriteString("You are a research assistant finding real, verifiable sources for an article.\n")
	b.WriteString("Only list sources your search actually retrieved; never fabricate a URL.\n")
	b.WriteString("Score authority 0-100: favor primary sources, penalize aggregators and SEO spam.\n")
	b.WriteString("For each source give 2-3 extractable claims and a suggested evidence use.\n")
	b.WriteString("Answer with ONLY a JSON array of objects with keys: ")
	b.WriteString("title, url, domain, authorityScore, relevanceReason, claims, suggestedUse.\n")
	if language == "it" {
		b.WriteString("Write relevanceReason, claims and suggestedUse in Italian.\n")
	} else {
		b.WriteString("Write relevanceReason, claims and suggestedUse in English.\n")
	}
	return b.String()
}

func buildDiscoveryUserPrompt(brief types.Brief, history []types.InterviewQnA) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\nThesis: %s\nAudience: %s\n", brief.Topic, brief.Thesis, brief.TargetAudience)
	answered := 0
	for _, qna := range history {
		if qna.Skipped() {
			continue
		}
		if answered == 0 {
			b.WriteString("\nKey points from the author interview:\n")
		}
		fmt.Fprintf(&b, "- %s\n", qna.Answer)
		answered++
	}
	b.WriteString("\nFind 5-8 sources that support or challenge the thesis.\n")
	return b.String()
}

func (sds *sourceDiscoveryService) DiscoverSources(ctx context.Context, brief types.Brief, history []types.InterviewQnA, language string) ([]types.DiscoveredSource, error) {
	system := buildDiscoverySystemPrompt(language)
	user := buildDiscoveryUserPrompt(brief, history)

	content, citations, usage, err := sds.perplexity.Search(ctx, system, user)
	if usage != nil {
		sds.usage.LogUsage(types.ServicePerplexity, sds.perplexity.Model(), usage.InputTokens, usage.OutputTokens, usageContext(ctx, "discover-sources"))
	}
	if err != nil {
		return nil, err
	}

	sources, err := parseDiscoveredSources(content)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, apierr.GenerationMalformed("source discovery returned no sources")
	}
	sds.log.Debug("Discovered sources", "count", len(sources), "citations", len(citations))
	return sources, nil
}

func parseDiscoveredSources(content string) ([]types.DiscoveredSource, error) {
	// Models occasionally wrap the JSON in a fenced block.
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var sources []types.DiscoveredSource
	if err := json.Unmarshal([]byte(content), &sources); err != nil {
		return nil, apierr.GenerationMalformed("failed to parse discovered sources: %v", err)
	}

	out := make([]types.DiscoveredSource, 0, len(sources))
	for _, src := range sources {
		if strings.TrimSpace(src.URL) == "" || strings.TrimSpace(src.Title) == "" {
			continue
		}
		if src.AuthorityScore < 0 {
			src.AuthorityScore = 0
		}
		if src.AuthorityScore > 100 {
			src.AuthorityScore = 100
		}
		if src.Domain == "" {
			if u, err := url.Parse(src.URL); err == nil {
				src.Domain = u.Hostname()
			}
		}
		out = append(out, src)
	}
	return out, nil
}
