package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/inkwell-backend/internal/config"
	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/repos"
	"github.com/yungbote/inkwell-backend/internal/requestdata"
	"github.com/yungbote/inkwell-backend/internal/types"
)

// UsageLogContext tags a cost entry with who triggered the call and where.
type UsageLogContext struct {
	UserID   *uuid.UUID
	Endpoint string
}

// usageContext builds a log context from the authenticated request data in
// ctx, when present.
func usageContext(ctx context.Context, endpoint string) *UsageLogContext {
	logCtx := &UsageLogContext{Endpoint: endpoint}
	if rd := requestdata.GetRequestData(ctx); rd != nil && rd.UserID != uuid.Nil {
		userID := rd.UserID
		logCtx.UserID = &userID
	}
	return logCtx
}

// UsageLogService is best-effort observability. It must never block or fail
// the AI-call path it is logging for.
type UsageLogService interface {
	CalculateCost(provider, model string, inputTokens, outputTokens int) float64
	LogUsage(provider, model string, inputTokens, outputTokens int, logCtx *UsageLogContext)
	// MonthToDateCost sums the user's estimated cost for the current month.
	MonthToDateCost(ctx context.Context, userID uuid.UUID) (float64, error)
}

type usageLogService struct {
	log     *logger.Logger
	repo    repos.UsageLogRepo
	pricing config.PricingTable
	now     func() time.Time
	// sink is swapped in tests to observe the async write.
	sink func(entry *types.UsageLogEntry)
}

func NewUsageLogService(log *logger.Logger, repo repos.UsageLogRepo, pricing config.PricingTable) UsageLogService {
	uls := &usageLogService{
		log:     log.With("service", "UsageLogService"),
		repo:    repo,
		pricing: pricing,
		now:     time.Now,
	}
	uls.sink = uls.persist
	return uls
}

const defaultModelKey = "_default"

func (uls *usageLogService) CalculateCost(provider, model string, inputTokens, outputTokens int) float64 {
	models, ok := uls.pricing[provider]
	if !ok {
		uls.log.Warn("No pricing entry for provider, reporting zero cost", "provider", provider, "model", model)
		return 0
	}
	entry, ok := models[model]
	if !ok {
		entry, ok = models[defaultModelKey]
		if !ok {
			uls.log.Warn("No pricing entry or provider default for model, reporting zero cost", "provider", provider, "model", model)
			return 0
		}
	}
	return float64(inputTokens)/1e6*entry.InputPerMTok +
		float64(outputTokens)/1e6*entry.OutputPerMTok +
		entry.PerRequest
}

// WeekKey formats an ISO-8601 week key, e.g. "2026-W35".
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// MonthKey formats a month key, e.g. "2026-08".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

func (uls *usageLogService) LogUsage(provider, model string, inputTokens, outputTokens int, logCtx *UsageLogContext) {
	cost := uls.CalculateCost(provider, model, inputTokens, outputTokens)
	now := uls.now().UTC()

	entry := &types.UsageLogEntry{
		ID:            uuid.New(),
		Provider:      provider,
		ModelName:     model,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		TotalTokens:   inputTokens + outputTokens,
		EstimatedCost: cost,
		Week:          WeekKey(now),
		Month:         MonthKey(now),
		CreatedAt:     now,
	}
	if logCtx != nil {
		entry.UserID = logCtx.UserID
		entry.Endpoint = logCtx.Endpoint
	}

	go uls.sink(entry)
}

func (uls *usageLogService) MonthToDateCost(ctx context.Context, userID uuid.UUID) (float64, error) {
	total, err := uls.repo.SumCostByMonth(ctx, nil, userID, MonthKey(uls.now().UTC()))
	if err != nil {
		return 0, fmt.Errorf("Failed to sum monthly usage cost: %w", err)
	}
	return total, nil
}

func (uls *usageLogService) persist(entry *types.UsageLogEntry) {
	defer func() {
		if r := recover(); r != nil {
			uls.log.Error("Usage log write panicked", "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := uls.repo.Create(ctx, nil, []*types.UsageLogEntry{entry}); err != nil {
		// Swallowed: cost logging never propagates into the calling flow.
		uls.log.Error("Failed to write usage log entry", "provider", entry.Provider, "model", entry.ModelName, "error", err)
	}
}
