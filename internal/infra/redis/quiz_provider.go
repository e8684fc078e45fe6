package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-session-service/internal/domain"
)

// QuizSource fetches quiz definitions from a backing store.
type QuizSource interface {
	FetchBySlug(ctx context.Context, slug string) (domain.Quiz, error)
}

// QuizProvider caches full quiz definitions as JSON in Redis
// (quiz:def:{slug}) and falls back to a source on cache miss, so several
// service instances share one cache.
type QuizProvider struct {
	client *redis.Client
	source QuizSource
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizProvider(client *redis.Client, source QuizSource, ttl time.Duration) *QuizProvider {
	return &QuizProvider{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *QuizProvider) FetchBySlug(ctx context.Context, slug string) (domain.Quiz, error) {
	key := p.key(slug)

	if raw, err := p.client.Get(ctx, key).Bytes(); err == nil {
		var quiz domain.Quiz
		if err := json.Unmarshal(raw, &quiz); err == nil {
			return quiz, nil
		}
		// corrupt cache entry, fall through to the source
	}

	result, err, _ := p.sf.Do(slug, func() (interface{}, error) {
		// re-check in case another goroutine filled the cache
		if raw, err := p.client.Get(ctx, key).Bytes(); err == nil {
			var quiz domain.Quiz
			if err := json.Unmarshal(raw, &quiz); err == nil {
				return quiz, nil
			}
		}

		quiz, err := p.source.FetchBySlug(ctx, slug)
		if err != nil {
			return domain.Quiz{}, err
		}

		if raw, err := json.Marshal(quiz); err == nil {
			_ = p.client.Set(ctx, key, raw, p.ttlWithJitter()).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (p *QuizProvider) key(slug string) string {
	return "quiz:def:" + slug
}

func (p *QuizProvider) ttlWithJitter() time.Duration {
	if p.ttl <= 0 {
		return 0
	}
	jitterMax := int64(p.ttl) / 10
	return p.ttl + time.Duration(p.rnd.Int63n(jitterMax+1))
}
