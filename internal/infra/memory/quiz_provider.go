package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-session-service/internal/domain"
)

// QuizSource fetches quiz definitions from a backing store (Postgres, the
// upstream admin API, a static map).
type QuizSource interface {
	FetchBySlug(ctx context.Context, slug string) (domain.Quiz, error)
}

// StaticQuizProvider serves definitions from a slug-keyed map (demos and
// tests).
type StaticQuizProvider struct {
	quizzes map[string]domain.Quiz
}

func NewStaticQuizProvider(quizzes map[string]domain.Quiz) *StaticQuizProvider {
	return &StaticQuizProvider{quizzes: quizzes}
}

func (p *StaticQuizProvider) FetchBySlug(_ context.Context, slug string) (domain.Quiz, error) {
	if quiz, ok := p.quizzes[slug]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// CachedQuizProvider caches definitions with TTL in front of a slower
// source so respondents hitting the same quiz do not refetch it.
type CachedQuizProvider struct {
	source QuizSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewCachedQuizProvider(source QuizSource, ttl time.Duration) *CachedQuizProvider {
	return &CachedQuizProvider{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (p *CachedQuizProvider) FetchBySlug(ctx context.Context, slug string) (domain.Quiz, error) {
	now := p.clock()

	p.mu.RLock()
	if entry, ok := p.cache[slug]; ok && entry.expiresAt.After(now) {
		p.mu.RUnlock()
		return entry.quiz, nil
	}
	p.mu.RUnlock()

	result, err, _ := p.sf.Do(slug, func() (interface{}, error) {
		now := p.clock()
		p.mu.RLock()
		if entry, ok := p.cache[slug]; ok && entry.expiresAt.After(now) {
			p.mu.RUnlock()
			return entry.quiz, nil
		}
		p.mu.RUnlock()

		quiz, err := p.source.FetchBySlug(ctx, slug)
		if err != nil {
			return domain.Quiz{}, err
		}

		p.mu.Lock()
		p.cache[slug] = cachedQuiz{
			quiz:      quiz,
			expiresAt: now.Add(p.ttlWithJitter()),
		}
		p.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (p *CachedQuizProvider) ttlWithJitter() time.Duration {
	if p.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(p.ttl) / 10
	return p.ttl + time.Duration(p.rnd.Int63n(jitterMax+1))
}
