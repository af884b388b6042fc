package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/inkwell-backend/internal/apierr"
	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/repos"
	"github.com/yungbote/inkwell-backend/internal/types"
)

// ContentService backs the public browsing surface: topics and published
// articles.
type ContentService interface {
	ListTopics(ctx context.Context) ([]*types.Topic, error)
	ListArticles(ctx context.Context, topicSlug, language string, limit int) ([]*types.Article, error)
	GetArticle(ctx context.Context, slug string) (*types.Article, error)
}

type contentService struct {
	db          *gorm.DB
	log         *logger.Logger
	topicRepo   repos.TopicRepo
	articleRepo repos.ArticleRepo
}

func NewContentService(db *gorm.DB, log *logger.Logger, topicRepo repos.TopicRepo, articleRepo repos.ArticleRepo) ContentService {
	return &contentService{
		db:          db,
		log:         log.With("service", "ContentService"),
		topicRepo:   topicRepo,
		articleRepo: articleRepo,
	}
}

func (cs *contentService) ListTopics(ctx context.Context) ([]*types.Topic, error) {
	return cs.topicRepo.GetAll(ctx, nil)
}

func (cs *contentService) ListArticles(ctx context.Context, topicSlug, language string, limit int) ([]*types.Article, error) {
	var topicID *uuid.UUID
	if topicSlug != "" {
		topic, err := cs.topicRepo.GetBySlug(ctx, nil, topicSlug)
		if err != nil {
			return nil, fmt.Errorf("Failed to resolve topic: %w", err)
		}
		if topic == nil {
			return nil, apierr.ErrNotFound
		}
		topicID = &topic.ID
	}
	return cs.articleRepo.List(ctx, nil, topicID, language, limit)
}

func (cs *contentService) GetArticle(ctx context.Context, slug string) (*types.Article, error) {
	article, err := cs.articleRepo.GetBySlug(ctx, nil, slug)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, apierr.ErrNotFound
	}
	return article, nil
}
