package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/realforestry/hortus-auth/internal/common"
	"github.com/realforestry/hortus-auth/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// issueLua replaces the account's current token with a new one.
// KEYS[1] = account pointer key
// KEYS[2] = new token key
// ARGV[1] = token key prefix
// ARGV[2] = account id
// ARGV[3] = new token hash
// ARGV[4] = expiry (unix ms)
// ARGV[5] = ttl (ms)
var issueLua = redis.NewScript(`
local old = redis.call('GET', KEYS[1])
if old then
  redis.call('DEL', ARGV[1] .. old)
end
redis.call('SET', KEYS[2], ARGV[2] .. '|' .. ARGV[4], 'PX', ARGV[5])
redis.call('SET', KEYS[1], ARGV[3], 'PX', ARGV[5])
return 1
`)

// redeemLua looks up a token and optionally rotates it.
// KEYS[1] = token key
// ARGV[1] = token key prefix
// ARGV[2] = account pointer key prefix
// ARGV[3] = token hash
// ARGV[4] = now (unix ms)
// ARGV[5] = rotate ("1" or "0")
// ARGV[6] = new token hash
// ARGV[7] = new expiry (unix ms)
// ARGV[8] = new ttl (ms)
//
// Returns the account id, or an error string: "not_found", "expired".
var redeemLua = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
  return {err='not_found'}
end

local sep = string.find(v, '|', 1, true)
if not sep then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local acct = string.sub(v, 1, sep - 1)
local exp = tonumber(string.sub(v, sep + 1))
local acctKey = ARGV[2] .. acct

if tonumber(ARGV[4]) >= exp then
  redis.call('DEL', KEYS[1])
  if redis.call('GET', acctKey) == ARGV[3] then
    redis.call('DEL', acctKey)
  end
  return {err='expired'}
end

if ARGV[5] == '1' then
  redis.call('DEL', KEYS[1])
  redis.call('SET', ARGV[1] .. ARGV[6], acct .. '|' .. ARGV[7], 'PX', ARGV[8])
  redis.call('SET', acctKey, ARGV[6], 'PX', ARGV[8])
end

return acct
`)

// revokeLua drops the account's token and pointer.
// KEYS[1] = account pointer key
// ARGV[1] = token key prefix
var revokeLua = redis.NewScript(`
local old = redis.call('GET', KEYS[1])
if old then
  redis.call('DEL', ARGV[1] .. old)
end
redis.call('DEL', KEYS[1])
return 1
`)

// RedisStore keeps sessions in Redis. Each account has a pointer key naming
// its single live token hash; the scripts keep the pair consistent.
//
// The scripts derive the partner key from the value they read, so not every
// key they touch is declared in KEYS. That only works against a single Redis
// node (or a primary with replicas), which is why the store takes a
// *redis.Client rather than a cluster-capable client.
type RedisStore struct {
	redis  *redis.Client
	prefix string
	issuer RefreshIssuer
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, prefix string, issuer RefreshIssuer) *RedisStore {
	if prefix == "" {
		prefix = "rt"
	}
	return &RedisStore{redis: client, prefix: prefix, issuer: issuer, now: time.Now}
}

func (s *RedisStore) tokenPrefix() string   { return s.prefix + ":" }
func (s *RedisStore) accountPrefix() string { return s.prefix + ":acct:" }

func (s *RedisStore) Issue(ctx context.Context, accountID string) (*models.IssuedToken, error) {
	value, expires, err := s.issuer.IssueRefresh(accountID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	hash := HashToken(value)

	err = issueLua.Run(ctx, s.redis,
		[]string{s.accountPrefix() + accountID, s.tokenPrefix() + hash},
		s.tokenPrefix(),
		accountID,
		hash,
		expires.UnixMilli(),
		s.ttl(expires),
	).Err()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	return &models.IssuedToken{Value: value, AccountID: accountID, Expires: expires}, nil
}

func (s *RedisStore) Redeem(ctx context.Context, token string, rotate bool) (*Redemption, error) {
	hash := HashToken(token)

	var (
		next     *models.IssuedToken
		nextHash string
		nextExp  int64
		nextTTL  int64
		flag     = "0"
	)
	if rotate {
		// The account is unknown until the script runs; the raw value does
		// not encode its owner, so it is minted up front.
		value, expires, err := s.issuer.IssueRefresh("")
		if err != nil {
			return nil, fmt.Errorf("issue refresh token: %w", err)
		}
		next = &models.IssuedToken{Value: value, Expires: expires}
		nextHash, nextExp, nextTTL, flag = HashToken(value), expires.UnixMilli(), s.ttl(expires), "1"
	}

	res, err := redeemLua.Run(ctx, s.redis,
		[]string{s.tokenPrefix() + hash},
		s.tokenPrefix(),
		s.accountPrefix(),
		hash,
		s.now().UnixMilli(),
		flag,
		nextHash,
		nextExp,
		nextTTL,
	).Result()
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "not_found"):
			return nil, common.ErrInvalidRefreshToken
		case strings.Contains(err.Error(), "expired"):
			return nil, common.ErrRefreshTokenExpired
		case errors.Is(err, redis.Nil):
			return nil, common.ErrInvalidRefreshToken
		default:
			return nil, fmt.Errorf("redis error: %w", err)
		}
	}

	accountID, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("redis error: unexpected script result %T", res)
	}

	if next != nil {
		next.AccountID = accountID
	}
	return &Redemption{AccountID: accountID, Next: next}, nil
}

func (s *RedisStore) RevokeAll(ctx context.Context, accountID string) error {
	err := revokeLua.Run(ctx, s.redis, []string{s.accountPrefix() + accountID}, s.tokenPrefix()).Err()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

// ttl never returns less than one millisecond; Redis rejects PX 0.
func (s *RedisStore) ttl(expires time.Time) int64 {
	ms := expires.Sub(s.now()).Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}
