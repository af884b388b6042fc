package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/types"
)

// State is the wizard's current mode. Transitions are driven by Start,
// Submit, Skip, ForceComplete, Retry and the review navigation calls.
type State string

const (
	StateRestoring   State = "restoring"
	StateAnswering   State = "answering"
	StateGenerating  State = "generating"
	StateReviewing   State = "reviewing"
	StateRateLimited State = "rate_limited"
	StateError       State = "error"
	StateCompleted   State = "completed"
)

const defaultAutosaveDelay = time.Second

// Config seeds a Session with the contribution it drives and any
// server-rendered initial state.
type Config struct {
	ContributionID   string
	Brief            types.Brief
	Language         string
	MaxQuestions     int
	InitialHistory   []types.InterviewQnA
	InitialQuestion  *types.GeneratedQuestion
	AutosaveDelay    time.Duration
	OnComplete       func(history []types.InterviewQnA, coverage *types.CoverageAssessment)
}

// Session orchestrates one contributor interview: restoring persisted
// progress, requesting questions, recording answers and keeping the server
// copy in sync. All exported methods are safe for use from a single
// goroutine; internal callbacks (debounced autosave) synchronize through the
// session mutex.
type Session struct {
	log   *logger.Logger
	api   API
	cache QuestionCache

	contributionID string
	brief          types.Brief
	language       string
	maxQuestions   int
	onComplete     func([]types.InterviewQnA, *types.CoverageAssessment)

	debouncer *Debouncer
	now       func() time.Time

	mu          sync.Mutex
	state       State
	resumeState State
	history     []types.InterviewQnA
	current     *types.GeneratedQuestion
	initial     *types.GeneratedQuestion
	reviewIndex int
	reqToken    uint64
	coverage    *types.CoverageAssessment
	missing     []string
	rateLimit   *RateLimitError
	lastErr     error
}

func New(log *logger.Logger, api API, cache QuestionCache, cfg Config) (*Session, error) {
	if api == nil {
		return nil, fmt.Errorf("missing api")
	}
	if cfg.ContributionID == "" {
		return nil, fmt.Errorf("missing contribution id")
	}
	if cache == nil {
		cache = NewMemoryQuestionCache()
	}
	delay := cfg.AutosaveDelay
	if delay <= 0 {
		delay = defaultAutosaveDelay
	}
	return &Session{
		log:            log.With("service", "InterviewSession", "contribution_id", cfg.ContributionID),
		api:            api,
		cache:          cache,
		contributionID: cfg.ContributionID,
		brief:          cfg.Brief,
		language:       cfg.Language,
		maxQuestions:   cfg.MaxQuestions,
		onComplete:     cfg.OnComplete,
		debouncer:      NewDebouncer(delay),
		now:            time.Now,
		state:          StateRestoring,
		resumeState:    StateAnswering,
		history:        append([]types.InterviewQnA(nil), cfg.InitialHistory...),
		initial:        cfg.InitialQuestion,
		reviewIndex:    -1,
	}, nil
}

// Start restores local and server state, reconciles them and either resumes
// the pending question or requests the first one.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateRestoring
	s.mu.Unlock()

	var (
		cached   *types.GeneratedQuestion
		snapshot *ContributionSnapshot
		syncErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if q, ok := s.cache.Get(gctx, s.contributionID); ok {
			cached = q
		}
		return nil
	})
	g.Go(func() error {
		snap, err := s.api.GetContribution(gctx, s.contributionID)
		if err != nil {
			syncErr = err
			return nil
		}
		snapshot = snap
		return nil
	})
	_ = g.Wait()

	s.mu.Lock()
	if snapshot != nil {
		// The server copy wins whenever it has seen more answers than we
		// have locally.
		if len(snapshot.InterviewHistory) > len(s.history) {
			s.history = append([]types.InterviewQnA(nil), snapshot.InterviewHistory...)
		}
		if s.language == "" {
			s.language = snapshot.Language
		}
	} else if syncErr != nil {
		if len(s.history) == 0 && s.initial == nil && cached == nil {
			s.state = StateError
			s.lastErr = syncErr
			s.mu.Unlock()
			return syncErr
		}
		s.log.Warn("Failed to sync contribution, continuing from local state", "error", syncErr)
	}

	candidate := s.initial
	if candidate == nil && snapshot != nil {
		candidate = snapshot.CurrentQuestion
	}
	if candidate == nil {
		candidate = cached
	}
	if candidate != nil && s.historyHas(candidate.ID) {
		// Already answered on another device or before a reload.
		candidate = nil
		s.cache.Clear(ctx, s.contributionID)
	}
	if candidate != nil {
		q := *candidate
		s.current = &q
		s.state = StateAnswering
		s.mu.Unlock()
		s.cache.Put(ctx, s.contributionID, &q)
		return nil
	}
	s.mu.Unlock()
	return s.generate(ctx, false)
}

// Submit records the answer to the live question, persists the append and
// requests the next question.
func (s *Session) Submit(ctx context.Context, answer string) error {
	s.mu.Lock()
	if s.state != StateAnswering || s.current == nil {
		s.mu.Unlock()
		return fmt.Errorf("no question awaiting an answer")
	}
	if s.historyHas(s.current.ID) {
		// Stale pending question, drop it instead of double-recording.
		s.current = nil
		s.mu.Unlock()
		s.cache.Clear(ctx, s.contributionID)
		return s.generate(ctx, false)
	}
	qna := types.InterviewQnA{
		QuestionID: s.current.ID,
		Question:   s.current.Text,
		DataPoint:  s.current.DataPoint,
		Answer:     answer,
		AnsweredAt: s.now(),
	}
	s.history = append(s.history, qna)
	s.current = nil
	historyCopy := append([]types.InterviewQnA(nil), s.history...)
	s.mu.Unlock()

	s.cache.Clear(ctx, s.contributionID)
	s.persistAppend(ctx, historyCopy)
	s.scheduleAutosave()
	return s.generate(ctx, false)
}

// Skip records the sentinel answer and moves on.
func (s *Session) Skip(ctx context.Context) error {
	return s.Submit(ctx, types.AnswerSkipped)
}

// ForceComplete ends the interview with the answers collected so far. It is
// the escape hatch from the rate-limited and error states.
func (s *Session) ForceComplete(ctx context.Context) error {
	s.mu.Lock()
	if len(s.history) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("nothing answered yet")
	}
	switch s.state {
	case StateAnswering, StateRateLimited, StateError:
	default:
		s.mu.Unlock()
		return fmt.Errorf("cannot finish from state %q", s.state)
	}
	s.mu.Unlock()
	return s.generate(ctx, true)
}

// Retry re-requests a question after a generation failure.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateError {
		s.mu.Unlock()
		return fmt.Errorf("nothing to retry from state %q", s.state)
	}
	s.lastErr = nil
	s.mu.Unlock()
	return s.generate(ctx, false)
}

// Back steps into review mode, or one answered pair further back.
func (s *Session) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateReviewing:
		if s.reviewIndex > 0 {
			s.reviewIndex--
		}
	case StateAnswering, StateRateLimited:
		if len(s.history) == 0 {
			return
		}
		s.resumeState = s.state
		s.state = StateReviewing
		s.reviewIndex = len(s.history) - 1
	}
}

// Forward steps toward the live question; past the newest answered pair it
// leaves review mode.
func (s *Session) Forward() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewing {
		return
	}
	s.reviewIndex++
	if s.reviewIndex >= len(s.history) {
		s.reviewIndex = -1
		s.state = s.resumeState
	}
}

// Close flushes any pending autosave and releases the debounce timer.
func (s *Session) Close() {
	s.debouncer.Flush()
	s.debouncer.Stop()
}

func (s *Session) generate(ctx context.Context, force bool) error {
	s.mu.Lock()
	if s.state == StateGenerating {
		s.mu.Unlock()
		return nil
	}
	s.reqToken++
	token := s.reqToken
	s.state = StateGenerating
	req := GenerateRequest{
		ContributionID:   s.contributionID,
		Brief:            s.brief,
		InterviewHistory: append([]types.InterviewQnA(nil), s.history...),
		Language:         s.language,
		MaxQuestions:     s.maxQuestions,
		ForceComplete:    force,
	}
	s.mu.Unlock()

	batch, err := s.api.GenerateQuestions(ctx, req)

	s.mu.Lock()
	if token != s.reqToken {
		// A newer request superseded this one.
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		var rateLimited *RateLimitError
		if errors.As(err, &rateLimited) {
			s.state = StateRateLimited
			s.rateLimit = rateLimited
			s.mu.Unlock()
			return nil
		}
		s.state = StateError
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	s.rateLimit = nil
	s.coverage = &batch.Coverage
	s.missing = append([]string(nil), batch.MissingDataPoints...)

	if batch.ReadyForOutline {
		s.current = nil
		s.state = StateCompleted
		historyCopy := append([]types.InterviewQnA(nil), s.history...)
		coverage := s.coverage
		s.mu.Unlock()

		s.cache.Clear(ctx, s.contributionID)
		s.persistCompletion(ctx, historyCopy)
		if s.onComplete != nil {
			s.onComplete(historyCopy, coverage)
		}
		return nil
	}
	if len(batch.Questions) == 0 {
		err := fmt.Errorf("generation returned neither a question nor completion")
		s.state = StateError
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	question := batch.Questions[0]
	s.current = &question
	s.state = StateAnswering
	s.mu.Unlock()

	s.cache.Put(ctx, s.contributionID, &question)
	return nil
}

// persistAppend is the hard save after an answer. One retry; on persistent
// failure the local history stays authoritative and the next save carries it.
func (s *Session) persistAppend(ctx context.Context, history []types.InterviewQnA) {
	req := SaveRequest{
		InterviewHistory:   history,
		SetHistory:         true,
		CurrentQuestion:    nil,
		SetCurrentQuestion: true,
	}
	err := s.api.SaveProgress(ctx, s.contributionID, req)
	if err != nil {
		err = s.api.SaveProgress(ctx, s.contributionID, req)
	}
	if err != nil {
		s.log.Warn("Failed to persist answer, will retry on next save", "error", err)
	}
}

func (s *Session) persistCompletion(ctx context.Context, history []types.InterviewQnA) {
	req := SaveRequest{
		InterviewHistory:   history,
		SetHistory:         true,
		CurrentQuestion:    nil,
		SetCurrentQuestion: true,
		Status:             types.StatusOutline,
	}
	if err := s.api.SaveProgress(ctx, s.contributionID, req); err != nil {
		s.log.Warn("Failed to persist interview completion", "error", err)
	}
}

func (s *Session) scheduleAutosave() {
	s.debouncer.Trigger(func() {
		s.mu.Lock()
		history := append([]types.InterviewQnA(nil), s.history...)
		s.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := s.api.SaveProgress(ctx, s.contributionID, SaveRequest{
			InterviewHistory: history,
			SetHistory:       true,
		})
		if err != nil {
			s.log.Debug("Autosave failed", "error", err)
		}
	})
}

func (s *Session) historyHas(questionID string) bool {
	for _, qna := range s.history {
		if qna.QuestionID == questionID {
			return true
		}
	}
	return false
}

// State reports the current mode.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentQuestion returns a copy of the live question, nil when none is
// pending.
func (s *Session) CurrentQuestion() *types.GeneratedQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	q := *s.current
	return &q
}

// History returns a copy of the answered pairs so far.
func (s *Session) History() []types.InterviewQnA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.InterviewQnA(nil), s.history...)
}

// ReviewItem returns the answered pair under review, nil outside review mode.
func (s *Session) ReviewItem() *types.InterviewQnA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewing || s.reviewIndex < 0 || s.reviewIndex >= len(s.history) {
		return nil
	}
	item := s.history[s.reviewIndex]
	return &item
}

// Coverage returns the latest coverage assessment, nil before the first
// generation response.
func (s *Session) Coverage() *types.CoverageAssessment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coverage
}

// MissingDataPoints returns the data points the latest assessment flagged as
// uncovered.
func (s *Session) MissingDataPoints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.missing...)
}

// RateLimit returns the quota details when the session is rate limited.
func (s *Session) RateLimit() *RateLimitError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rateLimit
}

// Err returns the failure that put the session in the error state.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
