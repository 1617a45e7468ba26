package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const stateKeyPrefix = "conv_state:"

// Store persists one Conversation per phone number.
type Store interface {
	// Load returns the live conversation for the phone, or nil when none
	// exists or the stored one expired.
	Load(ctx context.Context, phone string) (*Conversation, error)
	Save(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, phone string) error
}

// RedisStore keeps conversation state in redis with the dialogue TTL as the
// key TTL, so expiry holds even if the lazy check is never reached.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	now    func() time.Time
}

// NewRedisStore creates a redis-backed conversation store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("booking: redis client cannot be nil")
	}
	return &RedisStore{
		redis:  redisClient,
		tracer: otel.Tracer("atendeai/booking/store"),
		now:    time.Now,
	}
}

// WithClock overrides the store clock. Test hook.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *RedisStore) Load(ctx context.Context, phone string) (*Conversation, error) {
	if phone == "" {
		return nil, errors.New("booking: phone required")
	}

	ctx, span := s.tracer.Start(ctx, "booking.store.load")
	defer span.End()

	raw, err := s.redis.Get(ctx, stateKey(phone)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("booking: load conversation: %w", err)
	}

	var conv Conversation
	if err := json.Unmarshal([]byte(raw), &conv); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("booking: decode conversation: %w", err)
	}
	if conv.Expired(s.now()) {
		return nil, nil
	}
	return &conv, nil
}

func (s *RedisStore) Save(ctx context.Context, conv *Conversation) error {
	if conv == nil || conv.Phone == "" {
		return errors.New("booking: conversation with phone required")
	}

	ctx, span := s.tracer.Start(ctx, "booking.store.save")
	defer span.End()

	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("booking: encode conversation: %w", err)
	}
	if err := s.redis.Set(ctx, stateKey(conv.Phone), data, StateTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: save conversation: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	if phone == "" {
		return errors.New("booking: phone required")
	}

	ctx, span := s.tracer.Start(ctx, "booking.store.delete")
	defer span.End()

	if err := s.redis.Del(ctx, stateKey(phone)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: delete conversation: %w", err)
	}
	return nil
}

func stateKey(phone string) string {
	return stateKeyPrefix + phone
}

// MemoryStore is the in-process fallback used in tests and local runs
// without redis. Expiry is purely lazy.
type MemoryStore struct {
	mu    sync.Mutex
	conns map[string]*Conversation
	now   func() time.Time
}

// NewMemoryStore creates an in-memory conversation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conns: make(map[string]*Conversation),
		now:   time.Now,
	}
}

// WithClock overrides the store clock. Test hook.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *MemoryStore) Load(_ context.Context, phone string) (*Conversation, error) {
	if phone == "" {
		return nil, errors.New("booking: phone required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conns[phone]
	if !ok {
		return nil, nil
	}
	if conv.Expired(s.now()) {
		delete(s.conns, phone)
		return nil, nil
	}
	clone := *conv
	return &clone, nil
}

func (s *MemoryStore) Save(_ context.Context, conv *Conversation) error {
	if conv == nil || conv.Phone == "" {
		return errors.New("booking: conversation with phone required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *conv
	s.conns[conv.Phone] = &clone
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, phone string) error {
	if phone == "" {
		return errors.New("booking: phone required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conns, phone)
	return nil
}
