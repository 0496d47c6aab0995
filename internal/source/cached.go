package source

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-quiz/internal/platform/cache"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

// CachedSource serves the question list from a cache and falls back to the
// wrapped source on a miss. Cache failures are logged and never fail a load.
type CachedSource struct {
	inner quiz.QuestionSource
	store cache.Store
	key   string
	ttl   time.Duration
}

// NewCachedSource wraps inner with store under key.
func NewCachedSource(inner quiz.QuestionSource, store cache.Store, key string, ttl time.Duration) *CachedSource {
	return &CachedSource{
		inner: inner,
		store: store,
		key:   key,
		ttl:   ttl,
	}
}

func (s *CachedSource) Questions(ctx context.Context) ([]quiz.Question, error) {
	data, ok, err := s.store.Get(ctx, s.key)
	switch {
	case err != nil:
		slog.Warn("question cache read failed", "key", s.key, "error", err)
	case ok:
		var questions []quiz.Question
		if err := json.Unmarshal(data, &questions); err == nil {
			slog.Debug("question cache hit", "key", s.key, "questions", len(questions))
			return questions, nil
		}
		slog.Warn("discarding unreadable cached questions", "key", s.key)
	}

	questions, err := s.inner.Questions(ctx)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(questions)
	if err != nil {
		slog.Warn("encode questions for cache", "error", err)
		return questions, nil
	}
	if err := s.store.Set(ctx, s.key, data, s.ttl); err != nil {
		slog.Warn("question cache write failed", "key", s.key, "error", err)
	}
	return questions, nil
}
