package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/inkwell-backend/internal/apierr"
	"github.com/yungbote/inkwell-backend/internal/config"
	"github.com/yungbote/inkwell-backend/internal/repos"
	"github.com/yungbote/inkwell-backend/internal/types"
)

func newQuotaHarness(t *testing.T, limits config.QuotaLimits, admins []string) (*quotaService, repos.UsageRecordRepo) {
	t.Helper()
	log := testLogger(t)
	db := openTestDB(t, usageRecordDDL)
	repo := repos.NewUsageRecordRepo(db, log)
	svc := NewQuotaService(db, log, repo, limits, admins).(*quotaService)
	return svc, repo
}

func TestCheckAndConsume_GrantsUntilLimitThenDenies(t *testing.T) {
	limits := config.QuotaLimits{"perplexity": {"sourceDiscovery": 3}}
	svc, repo := newQuotaHarness(t, limits, nil)
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		decision, err := svc.CheckAndConsume(ctx, userID, "perplexity", "sourceDiscovery", "user@example.com")
		if err != nil {
			t.Fatalf("grant %d failed: %v", i+1, err)
		}
		if !decision.Allowed {
			t.Fatalf("grant %d: expected allowed", i+1)
		}
		if decision.Remaining != 3-(i+1) {
			t.Fatalf("grant %d: expected remaining %d, got %d", i+1, 3-(i+1), decision.Remaining)
		}
		if decision.Limit != 3 {
			t.Fatalf("expected limit 3, got %d", decision.Limit)
		}
	}

	// Denials never mutate, so repeated over-limit calls look identical.
	for i := 0; i < 2; i++ {
		decision, err := svc.CheckAndConsume(ctx, userID, "perplexity", "sourceDiscovery", "user@example.com")
		if err != nil {
			t.Fatalf("denial call failed: %v", err)
		}
		if decision.Allowed {
			t.Fatalf("expected denial after limit")
		}
		if decision.Remaining != 0 {
			t.Fatalf("expected remaining 0, got %d", decision.Remaining)
		}
	}

	records, err := repo.GetByUserID(ctx, nil, userID)
	if err != nil {
		t.Fatalf("failed to read ledger: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(records))
	}
	if records[0].Count != 3 {
		t.Fatalf("expected count 3, got %d", records[0].Count)
	}
}

func TestCheckAndConsume_ExpiredWindowResetsToFresh(t *testing.T) {
	limits := config.QuotaLimits{"gemini": {"outlineGeneration": 1}}
	svc, _ := newQuotaHarness(t, limits, nil)
	ctx := context.Background()
	userID := uuid.New()

	day1 := time.Date(2026, 8, 29, 15, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return day1 }

	first, err := svc.CheckAndConsume(ctx, userID, "gemini", "outlineGeneration", "")
	if err != nil || !first.Allowed {
		t.Fatalf("expected first grant, got %+v err=%v", first, err)
	}
	denied, err := svc.CheckAndConsume(ctx, userID, "gemini", "outlineGeneration", "")
	if err != nil || denied.Allowed {
		t.Fatalf("expected denial within window, got %+v err=%v", denied, err)
	}

	day2 := day1.Add(24 * time.Hour)
	svc.now = func() time.Time { return day2 }

	again, err := svc.CheckAndConsume(ctx, userID, "gemini", "outlineGeneration", "")
	if err != nil {
		t.Fatalf("post-reset grant failed: %v", err)
	}
	if !again.Allowed {
		t.Fatalf("expected grant after window reset")
	}
	wantReset := nextMidnight(day2)
	if !again.ResetAt.Equal(wantReset) {
		t.Fatalf("expected reset at %v, got %v", wantReset, again.ResetAt)
	}
}

func TestCheckAndConsume_UnknownActionIsConfigurationError(t *testing.T) {
	limits := config.QuotaLimits{"gemini": {"questionGeneration": 20}}
	svc, _ := newQuotaHarness(t, limits, nil)

	_, err := svc.CheckAndConsume(context.Background(), uuid.New(), "gemini", "unknownAction", "")
	if err == nil {
		t.Fatalf("expected error for unknown action")
	}
	if !apierr.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	_, err = svc.CheckAndConsume(context.Background(), uuid.New(), "unknownService", "questionGeneration", "")
	if err == nil || !apierr.IsConfiguration(err) {
		t.Fatalf("expected configuration error for unknown service, got %v", err)
	}
}

func TestCheckAndConsume_AdminBypassLeavesLedgerUntouched(t *testing.T) {
	limits := config.QuotaLimits{"gemini": {"questionGeneration": 2}}
	svc, repo := newQuotaHarness(t, limits, []string{"Admin@Example.com"})
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 10; i++ {
		decision, err := svc.CheckAndConsume(ctx, userID, "gemini", "questionGeneration", "admin@example.com")
		if err != nil {
			t.Fatalf("admin call failed: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("expected admin always allowed")
		}
		if decision.Remaining != 999 {
			t.Fatalf("expected admin remaining 999, got %d", decision.Remaining)
		}
	}

	records, err := repo.GetByUserID(ctx, nil, userID)
	if err != nil {
		t.Fatalf("failed to read ledger: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no ledger rows for admin, got %d", len(records))
	}
}

func TestCheckAndConsume_ConcurrentCallsNeverExceedLimit(t *testing.T) {
	const limit = 5
	const callers = 20
	limits := config.QuotaLimits{"gemini": {"answerAssistance": limit}}
	svc, repo := newQuotaHarness(t, limits, nil)
	ctx := context.Background()
	userID := uuid.New()

	var wg sync.WaitGroup
	granted := make(chan struct{}, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := svc.CheckAndConsume(ctx, userID, "gemini", "answerAssistance", "")
			if err != nil {
				errs <- err
				return
			}
			if decision.Allowed {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}
	if got := len(granted); got != limit {
		t.Fatalf("expected exactly %d grants, got %d", limit, got)
	}

	records, err := repo.GetByUserID(ctx, nil, userID)
	if err != nil {
		t.Fatalf("failed to read ledger: %v", err)
	}
	if len(records) != 1 || records[0].Count != limit {
		t.Fatalf("expected single row with count %d, got %+v", limit, records)
	}
}

func TestGetUserUsage_SnapshotAcrossAllConfiguredActions(t *testing.T) {
	limits := config.QuotaLimits{
		"gemini":     {"questionGeneration": 20, "answerAssistance": 15},
		"perplexity": {"sourceDiscovery": 3},
	}
	svc, repo := newQuotaHarness(t, limits, nil)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return now }

	// One active row, one expired row, one action never touched.
	active := &types.UsageRecord{
		ID: uuid.New(), UserID: userID,
		Service: "gemini", Action: "questionGeneration",
		Count: 4, ResetAt: nextMidnight(now),
	}
	expired := &types.UsageRecord{
		ID: uuid.New(), UserID: userID,
		Service: "perplexity", Action: "sourceDiscovery",
		Count: 3, ResetAt: now.Add(-time.Hour),
	}
	if err := repo.Save(ctx, nil, active); err != nil {
		t.Fatalf("seed active row: %v", err)
	}
	if err := repo.Save(ctx, nil, expired); err != nil {
		t.Fatalf("seed expired row: %v", err)
	}

	usage, err := svc.GetUserUsage(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserUsage failed: %v", err)
	}
	if len(usage) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(usage))
	}

	byKey := map[string]types.ActionUsage{}
	for _, entry := range usage {
		byKey[entry.Service+"/"+entry.Action] = entry
	}

	qg := byKey["gemini/questionGeneration"]
	if qg.Used != 4 || qg.Remaining != 16 || qg.ResetAt == nil {
		t.Fatalf("unexpected questionGeneration usage: %+v", qg)
	}
	aa := byKey["gemini/answerAssistance"]
	if aa.Used != 0 || aa.Remaining != 15 || aa.ResetAt != nil {
		t.Fatalf("unexpected answerAssistance usage: %+v", aa)
	}
	// Expired windows report as untouched.
	sd := byKey["perplexity/sourceDiscovery"]
	if sd.Used != 0 || sd.Remaining != 3 || sd.ResetAt != nil {
		t.Fatalf("unexpected sourceDiscovery usage: %+v", sd)
	}
}

func TestNextMidnight_StartOfNextDay(t *testing.T) {
	now := time.Date(2026, 8, 30, 23, 59, 59, 0, time.Local)
	got := nextMidnight(now)
	want := time.Date(2026, 8, 31, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
