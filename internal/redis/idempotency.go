package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// IdempotencyTTL is how long a finished request's response is replayed
	IdempotencyTTL = 24 * time.Hour

	// processingTTL bounds the lock held while a request is being handled
	processingTTL = 2 * time.Minute

	processingMarker = "processing"
)

// ErrDuplicateRequest is returned while another request with the same key is in flight
var ErrDuplicateRequest = errors.New("duplicate request: idempotency key already exists")

// IdempotencyResult is the response replayed for a repeated key
type IdempotencyResult struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
	CreatedAt  int64           `json:"created_at"`
}

// IdempotencyService deduplicates requests by a client supplied key
type IdempotencyService struct {
	client *Client
	logger *zap.Logger
}

func NewIdempotencyService(client *Client, logger *zap.Logger) *IdempotencyService {
	return &IdempotencyService{
		client: client,
		logger: logger,
	}
}

func (s *IdempotencyService) buildKey(scope, idempotencyKey string) string {
	return fmt.Sprintf("idempotency:%s:%s", scope, idempotencyKey)
}

// Check returns (nil, nil) for an unknown key, the stored result for a
// finished one and ErrDuplicateRequest for one still in flight.
func (s *IdempotencyService) Check(ctx context.Context, scope, idempotencyKey string) (*IdempotencyResult, error) {
	val, err := s.client.rdb.Get(ctx, s.buildKey(scope, idempotencyKey)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	if val == processingMarker {
		return nil, ErrDuplicateRequest
	}

	var result IdempotencyResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		s.logger.Error("failed to unmarshal idempotency result", zap.Error(err))
		return nil, fmt.Errorf("invalid cached result: %w", err)
	}

	return &result, nil
}

// Store saves the response of a finished request, replacing the reservation
func (s *IdempotencyService) Store(ctx context.Context, scope, idempotencyKey string, result *IdempotencyResult) error {
	if result.CreatedAt == 0 {
		result.CreatedAt = time.Now().Unix()
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := s.client.rdb.Set(ctx, s.buildKey(scope, idempotencyKey), data, IdempotencyTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// Reserve takes the in-flight lock with SET NX. It reports false when the key exists.
func (s *IdempotencyService) Reserve(ctx context.Context, scope, idempotencyKey string) (bool, error) {
	set, err := s.client.rdb.SetNX(ctx, s.buildKey(scope, idempotencyKey), processingMarker, processingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return set, nil
}

// Release drops a reservation so a failed request can be retried
func (s *IdempotencyService) Release(ctx context.Context, scope, idempotencyKey string) error {
	if err := s.client.rdb.Del(ctx, s.buildKey(scope, idempotencyKey)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// CheckOrReserve returns a stored result, or reserves the key and returns nil
func (s *IdempotencyService) CheckOrReserve(ctx context.Context, scope, idempotencyKey string) (*IdempotencyResult, error) {
	result, err := s.Check(ctx, scope, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}

	reserved, err := s.Reserve(ctx, scope, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return nil, ErrDuplicateRequest
	}

	return nil, nil
}
