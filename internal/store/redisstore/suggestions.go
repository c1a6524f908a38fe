package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type cachedSuggestions struct {
	MessageCount int      `json:"message_count"`
	Questions    []string `json:"questions"`
}

// SuggestionCache keeps the latest next-question list per session. An entry
// only counts as a hit for the message count it was computed at.
type SuggestionCache struct {
	store *Store
	ttl   time.Duration
}

func NewSuggestionCache(s *Store, ttl time.Duration) *SuggestionCache {
	return &SuggestionCache{store: s, ttl: ttl}
}

func (c *SuggestionCache) GetSuggestions(ctx context.Context, globalSessionID string, messageCount int) ([]string, bool, error) {
	raw, err := c.store.rdb.Get(ctx, c.store.key("suggestions", globalSessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v cachedSuggestions
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, nil
	}
	if v.MessageCount != messageCount {
		return nil, false, nil
	}
	return v.Questions, true, nil
}

func (c *SuggestionCache) SetSuggestions(ctx context.Context, globalSessionID string, messageCount int, questions []string) error {
	raw, err := json.Marshal(cachedSuggestions{MessageCount: messageCount, Questions: questions})
	if err != nil {
		return err
	}
	return c.store.rdb.Set(ctx, c.store.key("suggestions", globalSessionID), raw, c.ttl).Err()
}
