package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Script results: status, then balances.
const (
	statusOK           = 0
	statusInsufficient = -1
	statusNotFound     = -2
	statusExists       = -3
)

var openScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return {-3} end
redis.call('HSET', KEYS[1], 'tickets', ARGV[1], 'diamonds', ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then redis.call('PEXPIRE', KEYS[1], ttl) end
return {0}
`)

var debitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return {-2, 0} end
local have = tonumber(redis.call('HGET', KEYS[1], 'tickets'))
local amount = tonumber(ARGV[1])
if have < amount then return {-1, have} end
local left = redis.call('HINCRBY', KEYS[1], 'tickets', -amount)
local ttl = tonumber(ARGV[2])
if ttl > 0 then redis.call('PEXPIRE', KEYS[1], ttl) end
return {0, left}
`)

// Tickets are credited before diamonds are taken: HINCRBY fails on
// overflow, and a failed script must leave the hash untouched.
var exchangeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return {-2, 0, 0} end
local diamonds = tonumber(redis.call('HGET', KEYS[1], 'diamonds'))
local cost = tonumber(ARGV[1])
if diamonds < cost then
  return {-1, tonumber(redis.call('HGET', KEYS[1], 'tickets')), diamonds}
end
local t = redis.call('HINCRBY', KEYS[1], 'tickets', ARGV[2])
local d = redis.call('HINCRBY', KEYS[1], 'diamonds', -cost)
local ttl = tonumber(ARGV[3])
if ttl > 0 then redis.call('PEXPIRE', KEYS[1], ttl) end
return {0, t, d}
`)

// RedisStore keeps balances in Redis hashes. Each mutation is a Lua script,
// so concurrent pulls across server instances serialize on the key.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store. With ttl > 0 an account expires once it
// has gone ttl without being opened, debited or exchanged.
func NewRedisStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "tarot_house:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(accountID string) string {
	return s.prefix + "account:" + accountID
}

func (s *RedisStore) Open(ctx context.Context, accountID string, initial Balance) (Balance, error) {
	if initial.Tickets < 0 || initial.Diamonds < 0 {
		return Balance{}, fmt.Errorf("%w: initial balance %+v", ErrInvalidAmount, initial)
	}
	res, err := openScript.Run(ctx, s.rdb, []string{s.key(accountID)},
		initial.Tickets, initial.Diamonds, s.ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return Balance{}, fmt.Errorf("redis open %s: %w", accountID, err)
	}
	if res[0] == statusExists {
		return Balance{}, fmt.Errorf("%w: %s", ErrAccountExists, accountID)
	}
	return initial, nil
}

func (s *RedisStore) Balance(ctx context.Context, accountID string) (Balance, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(accountID)).Result()
	if err != nil {
		return Balance{}, fmt.Errorf("redis balance %s: %w", accountID, err)
	}
	if len(fields) == 0 {
		return Balance{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	var b Balance
	if b.Tickets, err = strconv.ParseInt(fields["tickets"], 10, 64); err != nil {
		return Balance{}, fmt.Errorf("redis balance %s: tickets: %w", accountID, err)
	}
	if b.Diamonds, err = strconv.ParseInt(fields["diamonds"], 10, 64); err != nil {
		return Balance{}, fmt.Errorf("redis balance %s: diamonds: %w", accountID, err)
	}
	return b, nil
}

func (s *RedisStore) Debit(ctx context.Context, accountID string, tickets int64) (int64, error) {
	if tickets <= 0 {
		return 0, fmt.Errorf("%w: debit %d", ErrInvalidAmount, tickets)
	}
	res, err := debitScript.Run(ctx, s.rdb, []string{s.key(accountID)}, tickets, s.ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("redis debit %s: %w", accountID, err)
	}
	switch res[0] {
	case statusNotFound:
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	case statusInsufficient:
		return res[1], fmt.Errorf("%w: have %d tickets, need %d", ErrInsufficientFunds, res[1], tickets)
	}
	return res[1], nil
}

func (s *RedisStore) Exchange(ctx context.Context, accountID string, diamonds, tickets int64) (Balance, error) {
	if diamonds <= 0 || tickets <= 0 {
		return Balance{}, fmt.Errorf("%w: exchange %d diamonds for %d tickets", ErrInvalidAmount, diamonds, tickets)
	}
	res, err := exchangeScript.Run(ctx, s.rdb, []string{s.key(accountID)}, diamonds, tickets, s.ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return Balance{}, fmt.Errorf("redis exchange %s: %w", accountID, err)
	}
	b := Balance{Tickets: res[1], Diamonds: res[2]}
	switch res[0] {
	case statusNotFound:
		return Balance{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	case statusInsufficient:
		return b, fmt.Errorf("%w: have %d diamonds, need %d", ErrInsufficientFunds, b.Diamonds, diamonds)
	}
	return b, nil
}

func (s *RedisStore) Close(ctx context.Context, accountID string) error {
	n, err := s.rdb.Del(ctx, s.key(accountID)).Result()
	if err != nil {
		return fmt.Errorf("redis close %s: %w", accountID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return nil
}
