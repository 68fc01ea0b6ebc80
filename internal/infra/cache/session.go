package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"nova-xfinity/internal/domain"
)

const (
	tokensKeyPrefix       = "ai-assistant-session-tokens:"
	conversationKeyPrefix = "ai-assistant-conversation:"
)

var _ domain.SessionStore = (*RedisSessionStore)(nil)

// ErrCorruptSession is returned when a stored session value cannot be decoded.
var ErrCorruptSession = errors.New("corrupt session data")

// RedisSessionStore keeps assistant session totals and conversations in Redis.
// Every write refreshes the TTL, so a session lives as long as it is used.
type RedisSessionStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisSessionStore creates the store. A zero ttl keeps keys forever.
func NewRedisSessionStore(client redis.Cmdable, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (s *RedisSessionStore) AddTokens(ctx context.Context, sessionKey string, delta int) (int, error) {
	key := tokensKeyPrefix + sessionKey
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.IncrBy(ctx, key, int64(delta))
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("add session tokens: %w", err)
	}
	return int(incr.Val()), nil
}

func (s *RedisSessionStore) Tokens(ctx context.Context, sessionKey string) (int, error) {
	raw, err := s.client.Get(ctx, tokensKeyPrefix+sessionKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get session tokens: %w", err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: token counter %q", ErrCorruptSession, raw)
	}
	return n, nil
}

// AppendConversation pushes every message as its own list element, so
// concurrent turns of one session never overwrite each other.
func (s *RedisSessionStore) AppendConversation(ctx context.Context, sessionKey string, messages []domain.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	values := make([]any, 0, len(messages))
	for _, m := range messages {
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		values = append(values, payload)
	}
	key := conversationKeyPrefix + sessionKey
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store conversation: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Conversation(ctx context.Context, sessionKey string) ([]domain.ChatMessage, error) {
	raw, err := s.client.LRange(ctx, conversationKeyPrefix+sessionKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return decodeConversation(raw)
}

func decodeConversation(raw []string) ([]domain.ChatMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	messages := make([]domain.ChatMessage, 0, len(raw))
	for i, item := range raw {
		var m domain.ChatMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("%w: message %d: %v", ErrCorruptSession, i, err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (s *RedisSessionStore) Clear(ctx context.Context, sessionKey string) error {
	if err := s.client.Del(ctx, tokensKeyPrefix+sessionKey, conversationKeyPrefix+sessionKey).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
