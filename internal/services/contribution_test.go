package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/inkwell-backend/internal/apierr"
	"github.com/yungbote/inkwell-backend/internal/repos"
	"github.com/yungbote/inkwell-backend/internal/requestdata"
	"github.com/yungbote/inkwell-backend/internal/types"
)

const contributionDDL = `CREATE TABLE contribution (
	id text PRIMARY KEY,
	created_at datetime,
	updated_at datetime,
	deleted_at datetime,
	user_id text NOT NULL,
	topic_id text,
	status text NOT NULL DEFAULT 'pitch',
	current_step text,
	path text NOT NULL DEFAULT 'interview',
	language text NOT NULL DEFAULT 'it',
	brief text,
	interview_history text,
	current_question text,
	source_discovery text,
	generated_outline text,
	agreement text
)`

const articleDDL = `CREATE TABLE article (
	id text PRIMARY KEY,
	created_at datetime,
	updated_at datetime,
	deleted_at datetime,
	contribution_id text NOT NULL UNIQUE,
	author_id text NOT NULL,
	topic_id text,
	slug text NOT NULL UNIQUE,
	title text NOT NULL,
	language text NOT NULL,
	outline text,
	sources text,
	published_at datetime NOT NULL
)`

const userBadgeDDL = `CREATE TABLE user_badge (
	id text PRIMARY KEY,
	created_at datetime,
	updated_at datetime,
	deleted_at datetime,
	user_id text NOT NULL,
	badge text NOT NULL,
	awarded_at datetime NOT NULL,
	UNIQUE (user_id, badge)
)`

type contributionHarness struct {
	svc       ContributionService
	badges    BadgeService
	badgeRepo repos.UserBadgeRepo
	db        *gorm.DB
}

func newContributionHarness(t *testing.T) *contributionHarness {
	t.Helper()
	log := testLogger(t)
	db := openTestDB(t, contributionDDL, articleDDL, userBadgeDDL)
	contributionRepo := repos.NewContributionRepo(db, log)
	articleRepo := repos.NewArticleRepo(db, log)
	badgeRepo := repos.NewUserBadgeRepo(db, log)
	badges := NewBadgeService(db, log, badgeRepo, contributionRepo)
	svc := NewContributionService(db, log, contributionRepo, articleRepo, badges)
	return &contributionHarness{svc: svc, badges: badges, badgeRepo: badgeRepo, db: db}
}

func authedCtx(userID uuid.UUID, role string) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
		UserID: userID,
		Email:  "author@example.com",
		Role:   role,
	})
}

func TestContributionCreate_ValidatesPathLanguageAndBrief(t *testing.T) {
	h := newContributionHarness(t)
	ctx := authedCtx(uuid.New(), requestdata.RoleContributor)

	if _, err := h.svc.Create(ctx, "freestyle", "it", testBrief()); err == nil {
		t.Fatalf("expected invalid path to be rejected")
	}
	if _, err := h.svc.Create(ctx, types.PathInterview, "de", testBrief()); err == nil {
		t.Fatalf("expected invalid language to be rejected")
	}
	if _, err := h.svc.Create(ctx, types.PathInterview, "it", types.Brief{Topic: "t"}); err == nil {
		t.Fatalf("expected brief without thesis to be rejected")
	}

	contribution, err := h.svc.Create(ctx, types.PathInterview, "it", testBrief())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if contribution.Status != types.StatusPitch {
		t.Fatalf("expected pitch status, got %q", contribution.Status)
	}
}

func TestContributionGet_EnforcesOwnership(t *testing.T) {
	h := newContributionHarness(t)
	owner := uuid.New()
	ownerCtx := authedCtx(owner, requestdata.RoleContributor)

	contribution, err := h.svc.Create(ownerCtx, types.PathInterview, "en", testBrief())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// A different contributor sees not-found, not forbidden, so ids do not leak.
	strangerCtx := authedCtx(uuid.New(), requestdata.RoleContributor)
	if _, err := h.svc.Get(strangerCtx, contribution.ID); err != apierr.ErrNotFound {
		t.Fatalf("expected ErrNotFound for stranger, got %v", err)
	}

	adminCtx := authedCtx(uuid.New(), requestdata.RoleAdmin)
	if _, err := h.svc.Get(adminCtx, contribution.ID); err != nil {
		t.Fatalf("expected admin read to succeed, got %v", err)
	}
}

func TestSaveProgress_RejectsDuplicateQuestionIDs(t *testing.T) {
	h := newContributionHarness(t)
	ctx := authedCtx(uuid.New(), requestdata.RoleContributor)
	contribution, err := h.svc.Create(ctx, types.PathInterview, "en", testBrief())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	history := []types.InterviewQnA{
		{QuestionID: "q1", Question: "?", Answer: "a"},
		{QuestionID: "q1", Question: "?", Answer: "b"},
	}
	_, err = h.svc.SaveProgress(ctx, contribution.ID, ProgressPatch{
		InterviewHistory: history,
		SetHistory:       true,
	})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate questionId rejection, got %v", err)
	}
}

func TestSaveProgress_ExplicitNullClearsCurrentQuestion(t *testing.T) {
	h := newContributionHarness(t)
	ctx := authedCtx(uuid.New(), requestdata.RoleContributor)
	contribution, err := h.svc.Create(ctx, types.PathInterview, "en", testBrief())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	question := &types.GeneratedQuestion{ID: uuid.New().String(), Text: "?", DataPoint: "evidence", Motivation: "m"}
	updated, err := h.svc.SaveProgress(ctx, contribution.ID, ProgressPatch{
		CurrentQuestion:    question,
		SetCurrentQuestion: true,
	})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := updated.GetCurrentQuestion()
	if err != nil || got == nil || got.ID != question.ID {
		t.Fatalf("expected stored question, got %+v err=%v", got, err)
	}

	cleared, err := h.svc.SaveProgress(ctx, contribution.ID, ProgressPatch{
		CurrentQuestion:    nil,
		SetCurrentQuestion: true,
	})
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	got, err = cleared.GetCurrentQuestion()
	if err != nil || got != nil {
		t.Fatalf("expected cleared question, got %+v err=%v", got, err)
	}
}

func TestAppendAnswer_AppendsAndClearsPendingQuestion(t *testing.T) {
	h := newContributionHarness(t)
	ctx := authedCtx(uuid.New(), requestdata.RoleContributor)
	contribution, err := h.svc.Create(ctx, types.PathInterview, "en", testBrief())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	question := &types.GeneratedQuestion{ID: "q1", Text: "?", DataPoint: "evidence", Motivation: "m"}
	if _, err := h.svc.SaveProgress(ctx, contribution.ID, ProgressPatch{
		CurrentQuestion:    question,
		SetCurrentQuestion: true,
	}); err != nil {
		t.Fatalf("seed question failed: %v", err)
	}

	updated, err := h.svc.AppendAnswer(ctx, contribution.ID, types.InterviewQnA{
		QuestionID: "q1", Question: "?", Answer: "an answer", DataPoint: "evidence",
	}, 5, false)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	history, err := updated.GetHistory()
	if err != nil || len(history) != 1 {
		t.Fatalf("expected one history entry, got %v err=%v", history, err)
	}
	if history[0].AnsweredAt.IsZero() {
		t.Fatalf("expected answeredAt stamped")
	}
	if current, _ := updated.GetCurrentQuestion(); current != nil {
		t.Fatalf("expected current question cleared after append")
	}
	if updated.Status != types.StatusInterview {
		t.Fatalf("expected interview status, got %q", updated.Status)
	}

	// The same question id cannot be recorded twice.
	if _, err := h.svc.AppendAnswer(ctx, contribution.ID, types.InterviewQnA{
		QuestionID: "q1", Question: "?", Answer: "again",
	}, 5, false); err == nil {
		t.Fatalf("expected duplicate answer rejection")
	}
}

func TestAppendAnswer_EnforcesQuestionCapUnlessForced(t *testing.T) {
	h := newContributionHarness(t)
	ctx := authedCtx(uuid.New(), requestdata.RoleContributor)
	contribution, err := h.svc.Create(ctx, types.PathInterview, "en", testBrief())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := h.svc.AppendAnswer(ctx, contribution.ID, types.InterviewQnA{
			QuestionID: uuid.New().String(), Question: "?", Answer: "a",
		}, 2, false); err != nil {
			t.Fatalf("append %d failed: %v", i+1, err)
		}
	}
	if _, err := h.svc.AppendAnswer(ctx, contribution.ID, types.InterviewQnA{
		QuestionID: uuid.New().String(), Question: "?", Answer: "a",
	}, 2, false); err == nil {
		t.Fatalf("expected cap rejection at 2 answers")
	}
	if _, err := h.svc.AppendAnswer(ctx, contribution.ID, types.InterviewQnA{
		QuestionID: uuid.New().String(), Question: "?", Answer: types.AnswerSkipped,
	}, 2, true); err != nil {
		t.Fatalf("expected forced append past cap to succeed, got %v", err)
	}
}

func TestPublish_CreatesArticleAndAwardsBadges(t *testing.T) {
	h := newContributionHarness(t)
	userID := uuid.New()
	ctx := authedCtx(userID, requestdata.RoleContributor)
	contribution, err := h.svc.Create(ctx, types.PathInterview, "en", testBrief())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	sources := []types.DiscoveredSource{{
		Title: "IEA report", URL: "https://www.iea.org/reports/heat-pumps",
		Domain: "www.iea.org", AuthorityScore: 95,
	}}
	if _, err := h.svc.SaveProgress(ctx, contribution.ID, ProgressPatch{
		SourceDiscovery:    sources,
		SetSourceDiscovery: true,
	}); err != nil {
		t.Fatalf("seed sources failed: %v", err)
	}

	article, err := h.svc.Publish(ctx, contribution.ID, "Heat pumps above 1500m", "Heat-Pumps-Above-1500m")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if article.Slug != "heat-pumps-above-1500m" {
		t.Fatalf("expected lowercased slug, got %q", article.Slug)
	}
	if article.AuthorID != userID {
		t.Fatalf("unexpected author id")
	}
	if article.PublishedAt.After(time.Now().Add(time.Minute)) {
		t.Fatalf("unexpected publishedAt %v", article.PublishedAt)
	}

	badges, err := h.badges.GetUserBadges(ctx, userID)
	if err != nil {
		t.Fatalf("failed to fetch badges: %v", err)
	}
	kinds := map[string]bool{}
	for _, b := range badges {
		kinds[b.Badge] = true
	}
	if !kinds[types.BadgeFirstPublished] {
		t.Fatalf("expected first_published badge, got %v", kinds)
	}
	if !kinds[types.BadgeSourcedAuthor] {
		t.Fatalf("expected sourced_author badge, got %v", kinds)
	}

	// Publishing twice is rejected, and a second contribution cannot reuse
	// the slug. Both are conflicts, not bad requests.
	_, err = h.svc.Publish(ctx, contribution.ID, "t", "another-slug")
	if err == nil {
		t.Fatalf("expected re-publish rejection")
	}
	var conflict *apierr.Error
	if !errors.As(err, &conflict) || conflict.Status != http.StatusConflict {
		t.Fatalf("expected 409 conflict on re-publish, got %v", err)
	}
	second, err := h.svc.Create(ctx, types.PathInterview, "en", testBrief())
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	_, err = h.svc.Publish(ctx, second.ID, "t", "heat-pumps-above-1500m")
	if err == nil {
		t.Fatalf("expected slug collision rejection")
	}
	conflict = nil
	if !errors.As(err, &conflict) || conflict.Status != http.StatusConflict {
		t.Fatalf("expected 409 conflict on slug collision, got %v", err)
	}
}

func TestSaveProgress_OutlineTransitionAwardsInterviewBadge(t *testing.T) {
	h := newContributionHarness(t)
	userID := uuid.New()
	ctx := authedCtx(userID, requestdata.RoleContributor)

	contribution, err := h.svc.Create(ctx, types.PathInterview, "en", testBrief())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	outline := types.StatusOutline
	for i := 0; i < 2; i++ {
		if _, err := h.svc.SaveProgress(ctx, contribution.ID, ProgressPatch{Status: &outline}); err != nil {
			t.Fatalf("save %d failed: %v", i+1, err)
		}
	}

	badges, err := h.badgeRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		t.Fatalf("failed to fetch badges: %v", err)
	}
	if len(badges) != 1 || badges[0].Badge != types.BadgeInterviewCompleted {
		t.Fatalf("expected a single interview_completed badge, got %v", badges)
	}
}

func TestAwardBadges_Idempotent(t *testing.T) {
	h := newContributionHarness(t)
	userID := uuid.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := h.badges.AwardInterviewCompleted(ctx, nil, userID); err != nil {
			t.Fatalf("award %d failed: %v", i+1, err)
		}
	}
	badges, err := h.badgeRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		t.Fatalf("failed to fetch badges: %v", err)
	}
	if len(badges) != 1 {
		t.Fatalf("expected a single badge row, got %d", len(badges))
	}
}
