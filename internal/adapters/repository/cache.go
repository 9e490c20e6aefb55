package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/softai/coursecore/internal/domain/model"
	"github.com/softai/coursecore/pkg/logger"
	"github.com/softai/coursecore/pkg/metrics"
)

const (
	defaultCacheTTL    = 5 * time.Minute
	defaultCachePrefix = "coursecore:"
)

// RedisClient is the subset of *redis.Client used by QuizCache.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// QuizCache is a read-through Redis cache in front of a QuizReader.
// Cache failures degrade to the underlying reader; misses on the underlying
// reader are not cached.
type QuizCache struct {
	next   QuizReader
	client RedisClient
	ttl    time.Duration
	prefix string
	log    logger.Logger
}

// NewQuizCache wraps next. A non-positive ttl selects the default.
func NewQuizCache(next QuizReader, client RedisClient, ttl time.Duration, log logger.Logger) *QuizCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &QuizCache{next: next, client: client, ttl: ttl, prefix: defaultCachePrefix, log: log}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (model.Quiz, error) {
	key := c.prefix + "quiz:" + quizID
	var q model.Quiz
	if c.get(ctx, key, &q) {
		return q, nil
	}

	q, err := c.next.GetQuiz(ctx, quizID)
	if err != nil {
		return model.Quiz{}, err
	}
	c.set(ctx, key, q)
	return q, nil
}

func (c *QuizCache) ListQuestions(ctx context.Context, quizID string) ([]model.Question, error) {
	key := c.prefix + "questions:" + quizID
	var qs []model.Question
	if c.get(ctx, key, &qs) {
		return qs, nil
	}

	qs, err := c.next.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, qs)
	return qs, nil
}

func (c *QuizCache) get(ctx context.Context, key string, dst any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.RecordCacheLookup("miss")
		return false
	case err != nil:
		metrics.RecordCacheLookup("error")
		c.log.Warn(ctx, "quiz cache read failed", logger.String("key", key), logger.Error(err))
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		metrics.RecordCacheLookup("error")
		c.log.Warn(ctx, "quiz cache entry corrupt", logger.String("key", key), logger.Error(err))
		return false
	}
	metrics.RecordCacheLookup("hit")
	return true
}

func (c *QuizCache) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn(ctx, "quiz cache write failed", logger.String("key", key), logger.Error(err))
	}
}
