package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	return log
}

type fakeAPI struct {
	mu       sync.Mutex
	snapshot *ContributionSnapshot
	getErr   error
	generate func(GenerateRequest) (*types.QuestionBatch, error)
	genReqs  []GenerateRequest
	saveReqs []SaveRequest
	saveErr  error
}

func (f *fakeAPI) GenerateQuestions(ctx context.Context, req GenerateRequest) (*types.QuestionBatch, error) {
	f.mu.Lock()
	f.genReqs = append(f.genReqs, req)
	gen := f.generate
	f.mu.Unlock()
	if gen == nil {
		return nil, fmt.Errorf("unexpected generation request")
	}
	return gen(req)
}

func (f *fakeAPI) SaveProgress(ctx context.Context, contributionID string, req SaveRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveReqs = append(f.saveReqs, req)
	return f.saveErr
}

func (f *fakeAPI) GetContribution(ctx context.Context, contributionID string) (*ContributionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.snapshot, nil
}

func (f *fakeAPI) generateCalls() []GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]GenerateRequest(nil), f.genReqs...)
}

func (f *fakeAPI) saveCalls() []SaveRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SaveRequest(nil), f.saveReqs...)
}

func question(id string) *types.GeneratedQuestion {
	return &types.GeneratedQuestion{
		ID:         id,
		Text:       "What evidence backs your thesis?",
		DataPoint:  "evidence",
		Motivation: "anchor the argument",
	}
}

func questionBatch(q *types.GeneratedQuestion) *types.QuestionBatch {
	return &types.QuestionBatch{
		Questions:       []types.GeneratedQuestion{*q},
		ReadyForOutline: false,
		Coverage: types.CoverageAssessment{
			Score:          40,
			Recommendation: types.CoverageWeak,
		},
		MissingDataPoints: []string{"evidence", "unique_angle"},
		MaxQuestions:      5,
	}
}

func readyBatch(score int) *types.QuestionBatch {
	return &types.QuestionBatch{
		ReadyForOutline: true,
		Coverage: types.CoverageAssessment{
			Score:          score,
			Recommendation: types.CoverageRecommendation(score),
		},
		MaxQuestions: 5,
	}
}

func qna(id string) types.InterviewQnA {
	return types.InterviewQnA{
		QuestionID: id,
		Question:   "Q " + id,
		Answer:     "A " + id,
		DataPoint:  "evidence",
		AnsweredAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
}

func newTestSession(t *testing.T, api *fakeAPI, cfg Config) *Session {
	t.Helper()
	if cfg.ContributionID == "" {
		cfg.ContributionID = "c1"
	}
	if cfg.AutosaveDelay == 0 {
		// Long enough that autosave never fires during a test on its own.
		cfg.AutosaveDelay = time.Hour
	}
	s, err := New(testLogger(t), api, NewMemoryQuestionCache(), cfg)
	if err != nil {
		t.Fatalf("failed to build session: %v", err)
	}
	return s
}

func TestNew_RequiresAPIAndContributionID(t *testing.T) {
	log := testLogger(t)
	if _, err := New(log, nil, nil, Config{ContributionID: "c1"}); err == nil {
		t.Fatalf("expected missing api to be rejected")
	}
	if _, err := New(log, &fakeAPI{}, nil, Config{}); err == nil {
		t.Fatalf("expected missing contribution id to be rejected")
	}
}

func TestStart_ResumesPendingServerQuestionWithoutGenerating(t *testing.T) {
	pending := question("q2")
	api := &fakeAPI{snapshot: &ContributionSnapshot{
		ID:               "c1",
		Status:           types.StatusInterview,
		Language:         "en",
		InterviewHistory: []types.InterviewQnA{qna("q1")},
		CurrentQuestion:  pending,
	}}
	s := newTestSession(t, api, Config{})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if got := s.State(); got != StateAnswering {
		t.Fatalf("expected answering, got %q", got)
	}
	current := s.CurrentQuestion()
	if current == nil || current.ID != "q2" {
		t.Fatalf("expected pending question q2, got %+v", current)
	}
	if len(api.generateCalls()) != 0 {
		t.Fatalf("expected no generation call when a question is pending")
	}
	if got := len(s.History()); got != 1 {
		t.Fatalf("expected server history adopted, got %d entries", got)
	}
}

func TestStart_InitialQuestionOutranksServerAndCache(t *testing.T) {
	cache := NewMemoryQuestionCache()
	cache.Put(context.Background(), "c1", question("cached"))
	api := &fakeAPI{snapshot: &ContributionSnapshot{
		ID:              "c1",
		CurrentQuestion: question("server"),
	}}
	s, err := New(testLogger(t), api, cache, Config{
		ContributionID:  "c1",
		InitialQuestion: question("initial"),
		AutosaveDelay:   time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to build session: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	current := s.CurrentQuestion()
	if current == nil || current.ID != "initial" {
		t.Fatalf("expected the server-rendered question to win, got %+v", current)
	}
}

func TestStart_DiscardsCandidateAlreadyInHistory(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryQuestionCache()
	cache.Put(ctx, "c1", question("q1"))
	api := &fakeAPI{
		snapshot: &ContributionSnapshot{
			ID:               "c1",
			InterviewHistory: []types.InterviewQnA{qna("q1")},
		},
		generate: func(GenerateRequest) (*types.QuestionBatch, error) {
			return questionBatch(question("q2")), nil
		},
	}
	s, err := New(testLogger(t), api, cache, Config{ContributionID: "c1", AutosaveDelay: time.Hour})
	if err != nil {
		t.Fatalf("failed to build session: %v", err)
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	current := s.CurrentQuestion()
	if current == nil || current.ID != "q2" {
		t.Fatalf("expected freshly generated question, got %+v", current)
	}
	if _, ok := cache.Get(ctx, "c1"); !ok {
		t.Fatalf("expected the new question to replace the stale cache entry")
	}
	if got, _ := cache.Get(ctx, "c1"); got.ID != "q2" {
		t.Fatalf("expected q2 cached, got %q", got.ID)
	}
}

func TestStart_LongerServerHistoryWins(t *testing.T) {
	api := &fakeAPI{
		snapshot: &ContributionSnapshot{
			ID:               "c1",
			InterviewHistory: []types.InterviewQnA{qna("q1"), qna("q2"), qna("q3")},
		},
		generate: func(GenerateRequest) (*types.QuestionBatch, error) {
			return questionBatch(question("q4")), nil
		},
	}
	s := newTestSession(t, api, Config{InitialHistory: []types.InterviewQnA{qna("q1")}})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if got := len(s.History()); got != 3 {
		t.Fatalf("expected the longer server history, got %d entries", got)
	}
	calls := api.generateCalls()
	if len(calls) != 1 || len(calls[0].InterviewHistory) != 3 {
		t.Fatalf("expected generation over the reconciled history, got %+v", calls)
	}
}

func TestStart_SyncFailureToleratedWithLocalState(t *testing.T) {
	api := &fakeAPI{getErr: fmt.Errorf("backend unreachable")}
	s := newTestSession(t, api, Config{InitialQuestion: question("q1")})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("expected start to continue from local state, got %v", err)
	}
	if got := s.State(); got != StateAnswering {
		t.Fatalf("expected answering, got %q", got)
	}
}

func TestStart_SyncFailureWithoutLocalStateErrors(t *testing.T) {
	api := &fakeAPI{getErr: fmt.Errorf("backend unreachable")}
	s := newTestSession(t, api, Config{})

	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected start to fail with nothing to restore")
	}
	if got := s.State(); got != StateError {
		t.Fatalf("expected error state, got %q", got)
	}
}

func TestSubmit_AppendsHardSavesAndRequestsNext(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{
		snapshot: &ContributionSnapshot{ID: "c1", CurrentQuestion: question("q1")},
		generate: func(GenerateRequest) (*types.QuestionBatch, error) {
			return questionBatch(question("q2")), nil
		},
	}
	s := newTestSession(t, api, Config{})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	answeredAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return answeredAt }

	if err := s.Submit(ctx, "my answer"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	history := s.History()
	if len(history) != 1 {
		t.Fatalf("expected one answered pair, got %d", len(history))
	}
	if history[0].QuestionID != "q1" || history[0].Answer != "my answer" {
		t.Fatalf("unexpected history entry %+v", history[0])
	}
	if !history[0].AnsweredAt.Equal(answeredAt) {
		t.Fatalf("expected answeredAt stamped, got %v", history[0].AnsweredAt)
	}

	saves := api.saveCalls()
	if len(saves) != 1 {
		t.Fatalf("expected one hard save, got %d", len(saves))
	}
	if !saves[0].SetHistory || !saves[0].SetCurrentQuestion || saves[0].CurrentQuestion != nil {
		t.Fatalf("expected the save to clear the pending question, got %+v", saves[0])
	}

	calls := api.generateCalls()
	if len(calls) != 1 {
		t.Fatalf("expected one generation call, got %d", len(calls))
	}
	if len(calls[0].InterviewHistory) != 1 {
		t.Fatalf("expected generation over the appended history")
	}
	current := s.CurrentQuestion()
	if current == nil || current.ID != "q2" {
		t.Fatalf("expected next question live, got %+v", current)
	}
}

func TestSubmit_HardSaveRetriesOnceThenContinues(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{
		snapshot: &ContributionSnapshot{ID: "c1", CurrentQuestion: question("q1")},
		saveErr:  fmt.Errorf("write failed"),
		generate: func(GenerateRequest) (*types.QuestionBatch, error) {
			return questionBatch(question("q2")), nil
		},
	}
	s := newTestSession(t, api, Config{})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := s.Submit(ctx, "answer"); err != nil {
		t.Fatalf("expected submit to survive a failed save, got %v", err)
	}
	if got := len(api.saveCalls()); got != 2 {
		t.Fatalf("expected one retry after the failed save, got %d attempts", got)
	}
	if got := s.State(); got != StateAnswering {
		t.Fatalf("expected the session to move on, got %q", got)
	}
}

func TestSkip_RecordsSentinelAnswer(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{
		snapshot: &ContributionSnapshot{ID: "c1", CurrentQuestion: question("q1")},
		generate: func(GenerateRequest) (*types.QuestionBatch, error) {
			return questionBatch(question("q2")), nil
		},
	}
	s := newTestSession(t, api, Config{})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.Skip(ctx); err != nil {
		t.Fatalf("skip failed: %v", err)
	}
	history := s.History()
	if len(history) != 1 || history[0].Answer != types.AnswerSkipped {
		t.Fatalf("expected skip sentinel recorded, got %+v", history)
	}
}

func TestGenerate_RateLimitIsRecoverable(t *testing.T) {
	ctx := context.Background()
	resetAt := time.Date(2026, 8, 31, 0, 0, 0, 0, time.Local)
	calls := 0
	api := &fakeAPI{
		snapshot: &ContributionSnapshot{
			ID:               "c1",
			InterviewHistory: []types.InterviewQnA{qna("q1")},
		},
		generate: func(req GenerateRequest) (*types.QuestionBatch, error) {
			calls++
			if !req.ForceComplete {
				return nil, &RateLimitError{Remaining: 0, Limit: 20, ResetAt: resetAt}
			}
			return readyBatch(60), nil
		},
	}
	s := newTestSession(t, api, Config{})

	if err := s.Start(ctx); err != nil {
		t.Fatalf("expected rate limiting not to surface as an error, got %v", err)
	}
	if got := s.State(); got != StateRateLimited {
		t.Fatalf("expected rate_limited, got %q", got)
	}
	rl := s.RateLimit()
	if rl == nil || rl.Limit != 20 || !rl.ResetAt.Equal(resetAt) {
		t.Fatalf("expected quota details exposed, got %+v", rl)
	}
	if !strings.Contains(rl.Error(), "quota exhausted") {
		t.Fatalf("unexpected error text %q", rl.Error())
	}

	// The escape hatch still works: finish with the answers collected so far.
	if err := s.ForceComplete(ctx); err != nil {
		t.Fatalf("force complete failed: %v", err)
	}
	if got := s.State(); got != StateCompleted {
		t.Fatalf("expected completed, got %q", got)
	}
	if calls != 2 {
		t.Fatalf("expected two generation calls, got %d", calls)
	}
}

func TestGenerate_FailureThenRetry(t *testing.T) {
	ctx := context.Background()
	failures := 1
	api := &fakeAPI{
		snapshot: &ContributionSnapshot{ID: "c1"},
		generate: func(GenerateRequest) (*types.QuestionBatch, error) {
			if failures > 0 {
				failures--
				return nil, fmt.Errorf("model unavailable")
			}
			return questionBatch(question("q1")), nil
		},
	}
	s := newTestSession(t, api, Config{})

	if err := s.Start(ctx); err == nil {
		t.Fatalf("expected the generation failure to surface")
	}
	if got := s.State(); got != StateError {
		t.Fatalf("expected error state, got %q", got)
	}
	if s.Err() == nil {
		t.Fatalf("expected Err populated")
	}

	if err := s.Retry(ctx); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if got := s.State(); got != StateAnswering {
		t.Fatalf("expected answering after retry, got %q", got)
	}
	if s.Err() != nil {
		t.Fatalf("expected Err cleared, got %v", s.Err())
	}
}

func TestCompletion_PersistsOutlineStatusAndNotifies(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{
		snapshot: &ContributionSnapshot{
			ID:               "c1",
			InterviewHistory: []types.InterviewQnA{qna("q1"), qna("q2")},
			CurrentQuestion:  question("q3"),
		},
	}
	var completedHistory []types.InterviewQnA
	var completedCoverage *types.CoverageAssessment
	s := newTestSession(t, api, Config{
		OnComplete: func(history []types.InterviewQnA, coverage *types.CoverageAssessment) {
			completedHistory = history
			completedCoverage = coverage
		},
	})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	api.mu.Lock()
	api.generate = func(GenerateRequest) (*types.QuestionBatch, error) {
		return readyBatch(85), nil
	}
	api.mu.Unlock()

	if err := s.Submit(ctx, "final answer"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if got := s.State(); got != StateCompleted {
		t.Fatalf("expected completed, got %q", got)
	}
	if s.CurrentQuestion() != nil {
		t.Fatalf("expected no live question after completion")
	}
	if len(completedHistory) != 3 {
		t.Fatalf("expected full history handed to onComplete, got %d", len(completedHistory))
	}
	if completedCoverage == nil || completedCoverage.Score != 85 {
		t.Fatalf("expected coverage handed to onComplete, got %+v", completedCoverage)
	}
	if cov := s.Coverage(); cov == nil || cov.Recommendation != types.CoverageStrong {
		t.Fatalf("expected strong coverage exposed, got %+v", cov)
	}

	saves := api.saveCalls()
	last := saves[len(saves)-1]
	if last.Status != types.StatusOutline {
		t.Fatalf("expected completion to advance status to outline, got %q", last.Status)
	}
}

func TestReviewNavigation(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{
		snapshot: &ContributionSnapshot{
			ID:               "c1",
			InterviewHistory: []types.InterviewQnA{qna("q1"), qna("q2")},
			CurrentQuestion:  question("q3"),
		},
	}
	s := newTestSession(t, api, Config{})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	s.Back()
	if got := s.State(); got != StateReviewing {
		t.Fatalf("expected reviewing, got %q", got)
	}
	item := s.ReviewItem()
	if item == nil || item.QuestionID != "q2" {
		t.Fatalf("expected newest answered pair first, got %+v", item)
	}

	s.Back()
	if item := s.ReviewItem(); item == nil || item.QuestionID != "q1" {
		t.Fatalf("expected q1 under review, got %+v", item)
	}
	s.Back()
	if item := s.ReviewItem(); item == nil || item.QuestionID != "q1" {
		t.Fatalf("expected review to stop at the oldest pair, got %+v", item)
	}

	s.Forward()
	if item := s.ReviewItem(); item == nil || item.QuestionID != "q2" {
		t.Fatalf("expected q2 under review, got %+v", item)
	}
	s.Forward()
	if got := s.State(); got != StateAnswering {
		t.Fatalf("expected forward past the end to resume answering, got %q", got)
	}
	if s.ReviewItem() != nil {
		t.Fatalf("expected no review item outside review mode")
	}
	current := s.CurrentQuestion()
	if current == nil || current.ID != "q3" {
		t.Fatalf("expected the live question preserved, got %+v", current)
	}
}

func TestSubmit_RejectedOutsideAnsweringState(t *testing.T) {
	api := &fakeAPI{snapshot: &ContributionSnapshot{
		ID:               "c1",
		InterviewHistory: []types.InterviewQnA{qna("q1")},
		CurrentQuestion:  question("q2"),
	}}
	s := newTestSession(t, api, Config{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	s.Back()
	if err := s.Submit(context.Background(), "answer"); err == nil {
		t.Fatalf("expected submit to be rejected while reviewing")
	}
}

func TestForceComplete_RequiresAnswers(t *testing.T) {
	api := &fakeAPI{snapshot: &ContributionSnapshot{ID: "c1", CurrentQuestion: question("q1")}}
	s := newTestSession(t, api, Config{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.ForceComplete(context.Background()); err == nil {
		t.Fatalf("expected force complete to require at least one answer")
	}
}

func TestClose_FlushesPendingAutosave(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{
		snapshot: &ContributionSnapshot{ID: "c1", CurrentQuestion: question("q1")},
		generate: func(GenerateRequest) (*types.QuestionBatch, error) {
			return questionBatch(question("q2")), nil
		},
	}
	s := newTestSession(t, api, Config{})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.Submit(ctx, "answer"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	before := len(api.saveCalls())
	s.Close()
	after := api.saveCalls()
	if len(after) != before+1 {
		t.Fatalf("expected close to flush the debounced autosave, got %d saves", len(after))
	}
	last := after[len(after)-1]
	if !last.SetHistory || len(last.InterviewHistory) != 1 {
		t.Fatalf("expected the autosave to carry the history, got %+v", last)
	}
}
