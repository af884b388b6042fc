package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/types"
)

// QuestionCache stores the last-issued pending question per contribution so a
// reload does not re-spend an AI call. It is a pure optimization: every
// failure is swallowed and treated as a cache miss, and cached content is
// never authoritative over server state.
type QuestionCache interface {
	Get(ctx context.Context, contributionID string) (*types.GeneratedQuestion, bool)
	Put(ctx context.Context, contributionID string, question *types.GeneratedQuestion)
	Clear(ctx context.Context, contributionID string)
}

const questionCacheTTL = 24 * time.Hour

type redisQuestionCache struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisQuestionCache(log *logger.Logger) (QuestionCache, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisQuestionCache{
		log: log.With("service", "RedisQuestionCache"),
		rdb: rdb,
	}, nil
}

func cacheKey(contributionID string) string {
	return "interview:question:" + contributionID
}

func (qc *redisQuestionCache) Get(ctx context.Context, contributionID string) (*types.GeneratedQuestion, bool) {
	raw, err := qc.rdb.Get(ctx, cacheKey(contributionID)).Bytes()
	if err != nil {
		return nil, false
	}
	var question types.GeneratedQuestion
	if err := json.Unmarshal(raw, &question); err != nil {
		// Corrupt entry: drop it and treat as a miss.
		qc.Clear(ctx, contributionID)
		return nil, false
	}
	if question.ID == "" {
		return nil, false
	}
	return &question, true
}

func (qc *redisQuestionCache) Put(ctx context.Context, contributionID string, question *types.GeneratedQuestion) {
	if question == nil {
		qc.Clear(ctx, contributionID)
		return
	}
	raw, err := json.Marshal(question)
	if err != nil {
		return
	}
	if err := qc.rdb.Set(ctx, cacheKey(contributionID), raw, questionCacheTTL).Err(); err != nil {
		qc.log.Debug("Question cache write failed", "error", err)
	}
}

func (qc *redisQuestionCache) Clear(ctx context.Context, contributionID string) {
	if err := qc.rdb.Del(ctx, cacheKey(contributionID)).Err(); err != nil {
		qc.log.Debug("Question cache clear failed", "error", err)
	}
}

// MemoryQuestionCache is the in-process fallback used when redis is not
// configured, and by tests.
type MemoryQuestionCache struct {
	mu      sync.Mutex
	entries map[string]types.GeneratedQuestion
}

func NewMemoryQuestionCache() *MemoryQuestionCache {
	return &MemoryQuestionCache{entries: map[string]types.GeneratedQuestion{}}
}

func (mc *MemoryQuestionCache) Get(_ context.Context, contributionID string) (*types.GeneratedQuestion, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	question, ok := mc.entries[contributionID]
	if !ok {
		return nil, false
	}
	return &question, true
}

func (mc *MemoryQuestionCache) Put(_ context.Context, contributionID string, question *types.GeneratedQuestion) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if question == nil {
		delete(mc.entries, contributionID)
		return
	}
	mc.entries[contributionID] = *question
}

func (mc *MemoryQuestionCache) Clear(_ context.Context, contributionID string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.entries, contributionID)
}
