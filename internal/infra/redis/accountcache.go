package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kislikjeka/walletcore/internal/wallet"
	"github.com/kislikjeka/walletcore/pkg/logger"
	"github.com/kislikjeka/walletcore/pkg/money"
)

const (
	// DefaultTTL is how long cached account identity lives. Currency and
	// type never change after creation, so the TTL only bounds memory.
	DefaultTTL = 24 * time.Hour

	// KeyPrefix is the prefix for account cache keys.
	KeyPrefix = "account:"
)

// AccountCache is a read-through cache over account identity. Balances are
// never cached anywhere; only the immutable account row is. On any cache
// failure reads fall through to the underlying source.
type AccountCache struct {
	client *redis.Client
	source wallet.AccountGetter
	ttl    time.Duration
	logger *logger.Logger
}

// NewAccountCache creates a read-through account cache with the default TTL.
func NewAccountCache(client *redis.Client, source wallet.AccountGetter, log *logger.Logger) *AccountCache {
	return NewAccountCacheWithTTL(client, source, DefaultTTL, log)
}

// NewAccountCacheWithTTL creates a read-through account cache with a custom TTL.
func NewAccountCacheWithTTL(client *redis.Client, source wallet.AccountGetter, ttl time.Duration, log *logger.Logger) *AccountCache {
	return &AccountCache{
		client: client,
		source: source,
		ttl:    ttl,
		logger: log.WithField("component", "account_cache"),
	}
}

// cachedAccount is the serialized form of an account row.
type cachedAccount struct {
	ID          uuid.UUID `json:"id"`
	Currency    string    `json:"currency"`
	AccountType string    `json:"account_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// GetAccount implements wallet.AccountGetter.
func (c *AccountCache) GetAccount(ctx context.Context, id uuid.UUID) (*wallet.Account, error) {
	if account, ok := c.get(ctx, id); ok {
		return account, nil
	}

	account, err := c.source.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, account)
	return account, nil
}

func (c *AccountCache) get(ctx context.Context, id uuid.UUID) (*wallet.Account, bool) {
	key := c.key(id)

	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		c.logger.Debug("cache miss", "account_id", id)
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).Warn("cache error", "operation", "get", "account_id", id)
		return nil, false
	}

	var cached cachedAccount
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.logger.WithError(err).Warn("corrupt cache entry", "account_id", id)
		return nil, false
	}

	c.logger.Debug("cache hit", "account_id", id)
	return &wallet.Account{
		ID:        cached.ID,
		Currency:  money.Currency(cached.Currency),
		Type:      wallet.AccountType(cached.AccountType),
		CreatedAt: cached.CreatedAt,
	}, true
}

func (c *AccountCache) set(ctx context.Context, account *wallet.Account) {
	cached := cachedAccount{
		ID:          account.ID,
		Currency:    string(account.Currency),
		AccountType: string(account.Type),
		CreatedAt:   account.CreatedAt,
	}

	data, err := json.Marshal(cached)
	if err != nil {
		c.logger.WithError(err).Warn("cache error", "operation", "marshal", "account_id", account.ID)
		return
	}
	if err := c.client.Set(ctx, c.key(account.ID), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("cache error", "operation", "set", "account_id", account.ID)
	}
}

func (c *AccountCache) key(id uuid.UUID) string {
	return fmt.Sprintf("%s%s", KeyPrefix, id)
}

// Ping verifies connectivity to Redis.
func (c *AccountCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
