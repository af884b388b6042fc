package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/inkwell-backend/internal/apierr"
	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/repos"
	"github.com/yungbote/inkwell-backend/internal/requestdata"
	"github.com/yungbote/inkwell-backend/internal/types"
)

// ProgressPatch is the partial update accepted by SaveProgress. Nil fields
// are left untouched; CurrentQuestion distinguishes "clear" (set, nil value)
// from "leave alone" via the Set flag.
type ProgressPatch struct {
	Status             *string
	CurrentStep        *string
	Brief              *types.Brief
	InterviewHistory   []types.InterviewQnA
	SetHistory         bool
	CurrentQuestion    *types.GeneratedQuestion
	SetCurrentQuestion bool
	SourceDiscovery    []types.DiscoveredSource
	SetSourceDiscovery bool
	Outline            *types.GeneratedOutline
	Agreement          *types.Agreement
}

type ContributionService interface {
	Create(ctx context.Context, path, language string, brief types.Brief) (*types.Contribution, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Contribution, error)
	ListMine(ctx context.Context) ([]*types.Contribution, error)
	SaveProgress(ctx context.Context, id uuid.UUID, patch ProgressPatch) (*types.Contribution, error)
	// AppendAnswer appends one QnA and clears the pending question in a single
	// transaction. Duplicate question ids are rejected.
	AppendAnswer(ctx context.Context, id uuid.UUID, qna types.InterviewQnA, maxQuestions int, forceComplete bool) (*types.Contribution, error)
	Publish(ctx context.Context, id uuid.UUID, title, slug string) (*types.Article, error)
}

type contributionService struct {
	db           *gorm.DB
	log          *logger.Logger
	repo         repos.ContributionRepo
	articleRepo  repos.ArticleRepo
	badgeService BadgeService
}

func NewContributionService(db *gorm.DB, log *logger.Logger, repo repos.ContributionRepo, articleRepo repos.ArticleRepo, badgeService BadgeService) ContributionService {
	return &contributionService{
		db:           db,
		log:          log.With("service", "ContributionService"),
		repo:         repo,
		articleRepo:  articleRepo,
		badgeService: badgeService,
	}
}

func (cs *contributionService) Create(ctx context.Context, path, language string, brief types.Brief) (*types.Contribution, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.ErrUnauthorized
	}
	if _, ok := types.ValidPaths[path]; !ok {
		return nil, fmt.Errorf("invalid path %q", path)
	}
	if language != "it" && language != "en" {
		return nil, fmt.Errorf("invalid language %q", language)
	}
	if strings.TrimSpace(brief.Topic) == "" || strings.TrimSpace(brief.Thesis) == "" {
		return nil, fmt.Errorf("brief requires topic and thesis")
	}

	contribution := &types.Contribution{
		ID:          uuid.New(),
		UserID:      rd.UserID,
		Status:      types.StatusPitch,
		CurrentStep: "pitch",
		Path:        path,
		Language:    language,
	}
	if err := contribution.SetBrief(brief); err != nil {
		return nil, err
	}
	if err := contribution.SetHistory(nil); err != nil {
		return nil, err
	}
	if err := contribution.SetCurrentQuestion(nil); err != nil {
		return nil, err
	}

	created, err := cs.repo.Create(ctx, nil, []*types.Contribution{contribution})
	if err != nil {
		return nil, fmt.Errorf("Failed to create contribution: %w", err)
	}
	return created[0], nil
}

// getOwned loads the contribution and enforces ownership; admins can read any.
func (cs *contributionService) getOwned(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Contribution, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.ErrUnauthorized
	}
	found, err := cs.repo.GetByIDs(ctx, tx, []uuid.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch contribution: %w", err)
	}
	if len(found) == 0 {
		return nil, apierr.ErrNotFound
	}
	contribution := found[0]
	if contribution.UserID != rd.UserID && !rd.IsAdmin() {
		return nil, apierr.ErrNotFound
	}
	return contribution, nil
}

func (cs *contributionService) Get(ctx context.Context, id uuid.UUID) (*types.Contribution, error) {
	return cs.getOwned(ctx, nil, id)
}

func (cs *contributionService) ListMine(ctx context.Context) ([]*types.Contribution, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.ErrUnauthorized
	}
	contributions, err := cs.repo.GetByUserID(ctx, nil, rd.UserID)
	if err != nil {
		return nil, fmt.Errorf("Failed to list contributions: %w", err)
	}
	return contributions, nil
}

func (cs *contributionService) SaveProgress(ctx context.Context, id uuid.UUID, patch ProgressPatch) (*types.Contribution, error) {
	var out *types.Contribution
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contribution, err := cs.getOwned(ctx, tx, id)
		if err != nil {
			return err
		}
		prevStatus := contribution.Status

		if patch.Status != nil {
			if _, ok := types.ValidStatuses[*patch.Status]; !ok {
				return fmt.Errorf("invalid status %q", *patch.Status)
			}
			contribution.Status = *patch.Status
		}
		if patch.CurrentStep != nil {
			contribution.CurrentStep = *patch.CurrentStep
		}
		if patch.Brief != nil {
			if err := contribution.SetBrief(*patch.Brief); err != nil {
				return err
			}
		}
		if patch.SetHistory {
			if err := validateHistory(patch.InterviewHistory); err != nil {
				return err
			}
			if err := contribution.SetHistory(patch.InterviewHistory); err != nil {
				return err
			}
		}
		if patch.SetCurrentQuestion {
			if err := contribution.SetCurrentQuestion(patch.CurrentQuestion); err != nil {
				return err
			}
		}
		if patch.SetSourceDiscovery {
			raw, err := json.Marshal(patch.SourceDiscovery)
			if err != nil {
				return err
			}
			contribution.SourceDiscovery = datatypes.JSON(raw)
		}
		if patch.Outline != nil {
			raw, err := json.Marshal(patch.Outline)
			if err != nil {
				return err
			}
			contribution.Outline = datatypes.JSON(raw)
		}
		if patch.Agreement != nil {
			raw, err := json.Marshal(patch.Agreement)
			if err != nil {
				return err
			}
			contribution.Agreement = datatypes.JSON(raw)
		}

		if err := cs.repo.Save(ctx, tx, contribution); err != nil {
			return fmt.Errorf("Failed to save contribution: %w", err)
		}

		// Reaching the outline step means the interview is done.
		if contribution.Status == types.StatusOutline && prevStatus != types.StatusOutline {
			if err := cs.badgeService.AwardInterviewCompleted(ctx, tx, contribution.UserID); err != nil {
				return err
			}
		}
		out = contribution
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func validateHistory(history []types.InterviewQnA) error {
	seen := make(map[string]struct{}, len(history))
	for _, qna := range history {
		if qna.QuestionID == "" {
			return fmt.Errorf("history entry missing questionId")
		}
		if _, dup := seen[qna.QuestionID]; dup {
			return fmt.Errorf("duplicate questionId %q in history", qna.QuestionID)
		}
		seen[qna.QuestionID] = struct{}{}
	}
	return nil
}

func (cs *contributionService) AppendAnswer(ctx context.Context, id uuid.UUID, qna types.InterviewQnA, maxQuestions int, forceComplete bool) (*types.Contribution, error) {
	if maxQuestions <= 0 {
		maxQuestions = DefaultMaxQuestions
	}
	if qna.QuestionID == "" {
		return nil, fmt.Errorf("answer requires a questionId")
	}
	if qna.AnsweredAt.IsZero() {
		qna.AnsweredAt = time.Now().UTC()
	}

	var out *types.Contribution
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contribution, err := cs.getOwned(ctx, tx, id)
		if err != nil {
			return err
		}

		history, err := contribution.GetHistory()
		if err != nil {
			return err
		}
		for _, existing := range history {
			if existing.QuestionID == qna.QuestionID {
				return fmt.Errorf("question %q already answered", qna.QuestionID)
			}
		}
		if len(history) >= maxQuestions && !forceComplete {
			return fmt.Errorf("interview history already at the maximum of %d questions", maxQuestions)
		}

		history = append(history, qna)
		if err := contribution.SetHistory(history); err != nil {
			return err
		}
		if err := contribution.SetCurrentQuestion(nil); err != nil {
			return err
		}
		contribution.Status = types.StatusInterview

		if err := cs.repo.Save(ctx, tx, contribution); err != nil {
			return fmt.Errorf("Failed to persist answer: %w", err)
		}
		out = contribution
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (cs *contributionService) Publish(ctx context.Context, id uuid.UUID, title, slug string) (*types.Article, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.ErrUnauthorized
	}
	title = strings.TrimSpace(title)
	slug = strings.TrimSpace(strings.ToLower(slug))
	if title == "" || slug == "" {
		return nil, fmt.Errorf("publish requires title and slug")
	}

	var article *types.Article
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contribution, err := cs.getOwned(ctx, tx, id)
		if err != nil {
			return err
		}
		if contribution.Status == types.StatusPublished {
			return apierr.New(http.StatusConflict, "already_published", fmt.Errorf("contribution already published"))
		}

		exists, err := cs.articleRepo.SlugExists(ctx, tx, slug)
		if err != nil {
			return err
		}
		if exists {
			return apierr.New(http.StatusConflict, "slug_taken", fmt.Errorf("slug %q already in use", slug))
		}

		now := time.Now().UTC()
		article = &types.Article{
			ID:             uuid.New(),
			ContributionID: contribution.ID,
			AuthorID:       contribution.UserID,
			TopicID:        contribution.TopicID,
			Slug:           slug,
			Title:          title,
			Language:       contribution.Language,
			Outline:        contribution.Outline,
			Sources:        contribution.SourceDiscovery,
			PublishedAt:    now,
		}
		if _, err := cs.articleRepo.Create(ctx, tx, []*types.Article{article}); err != nil {
			return fmt.Errorf("Failed to create article: %w", err)
		}

		if err := cs.repo.UpdateFields(ctx, tx, contribution.ID, map[string]interface{}{
			"status":       types.StatusPublished,
			"current_step": "published",
		}); err != nil {
			return err
		}

		return cs.badgeService.AwardPublishBadges(ctx, tx, contribution)
	})
	if err != nil {
		return nil, err
	}
	return article, nil
}
