package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/repositories"
)

const (
	keyOrderStatus   = "order_status:%s"
	defaultStatusTTL = 5 * time.Minute
)

// Commands is the subset of the go-redis client used by the cache.
type Commands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// OrderStatusCache stores order_status:{id} -> {"status": "...", "user_id": "...", "updated_at": "..."}.
type OrderStatusCache struct {
	rdb   Commands
	ttl   time.Duration
	clock func() time.Time
}

var _ repositories.OrderStatusCache = (*OrderStatusCache)(nil)

type cachedStatus struct {
	Status    string    `json:"status"`
	UserID    string    `json:"user_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewClient opens a go-redis client with short timeouts suitable for a cache.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

// NewOrderStatusCache wraps rdb. A non-positive ttl uses five minutes.
func NewOrderStatusCache(rdb Commands, ttl time.Duration) (*OrderStatusCache, error) {
	if rdb == nil {
		return nil, errors.New("order status cache requires redis client")
	}
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	return &OrderStatusCache{rdb: rdb, ttl: ttl, clock: time.Now}, nil
}

// GetStatus returns the cached status. A miss or an unreadable entry reports ok=false.
func (c *OrderStatusCache) GetStatus(ctx context.Context, orderID string) (domain.OrderStatusEntry, bool, error) {
	raw, err := c.rdb.Get(ctx, statusKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.OrderStatusEntry{}, false, nil
	}
	if err != nil {
		return domain.OrderStatusEntry{}, false, fmt.Errorf("order status cache: get: %w", err)
	}
	var payload cachedStatus
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.OrderStatusEntry{}, false, nil
	}
	status := domain.OrderStatus(payload.Status)
	if !status.Valid() || payload.UserID == "" {
		return domain.OrderStatusEntry{}, false, nil
	}
	return domain.OrderStatusEntry{Status: status, UserID: payload.UserID}, true, nil
}

func (c *OrderStatusCache) SetStatus(ctx context.Context, orderID string, entry domain.OrderStatusEntry) error {
	payload, err := json.Marshal(cachedStatus{Status: string(entry.Status), UserID: entry.UserID, UpdatedAt: c.clock().UTC()})
	if err != nil {
		return fmt.Errorf("order status cache: encode: %w", err)
	}
	if err := c.rdb.Set(ctx, statusKey(orderID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("order status cache: set: %w", err)
	}
	return nil
}

func (c *OrderStatusCache) Invalidate(ctx context.Context, orderID string) error {
	if err := c.rdb.Del(ctx, statusKey(orderID)).Err(); err != nil {
		return fmt.Errorf("order status cache: invalidate: %w", err)
	}
	return nil
}

func statusKey(orderID string) string {
	return fmt.Sprintf(keyOrderStatus, strings.TrimSpace(orderID))
}
