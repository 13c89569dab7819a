package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/barbartender/bartender/internal/config"
	"github.com/barbartender/bartender/internal/model"
	appErr "github.com/barbartender/bartender/internal/pkg/errors"
	"github.com/barbartender/bartender/internal/pkg/timeutil"
)

// Expired codes outlive their expiry for a while so a resend can still
// recover the pending registration.
const verificationGrace = time.Hour

var removeIfIDScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return 0 end
local d = cjson.decode(v)
if d.id == ARGV[1] then return redis.call('DEL', KEYS[1]) end
return 0
`)

var removeIfExpiredScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return 0 end
local d = cjson.decode(v)
if tonumber(d.expires_at) < tonumber(ARGV[1]) then return redis.call('DEL', KEYS[1]) end
return 0
`)

func OpenRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.Password == "" && cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// VerificationRedisRepo keeps one key per email, so a SET is already a
// replace of any previous code.
type VerificationRedisRepo struct {
	client redis.UniversalClient
	prefix string
}

func NewVerificationRedisRepo(client redis.UniversalClient, prefix string) *VerificationRedisRepo {
	return &VerificationRedisRepo{client: client, prefix: prefix}
}

func (r *VerificationRedisRepo) key(email string) string {
	return r.prefix + "verify:" + email
}

func (r *VerificationRedisRepo) Replace(ctx context.Context, code *model.VerificationCode) error {
	raw, err := json.Marshal(code)
	if err != nil {
		return err
	}
	ttl := time.Duration(code.ExpiresAt-timeutil.NowUnix())*time.Second + verificationGrace
	if ttl <= 0 {
		ttl = verificationGrace
	}
	return r.client.Set(ctx, r.key(code.Email), raw, ttl).Err()
}

func (r *VerificationRedisRepo) GetByEmail(ctx context.Context, email string) (*model.VerificationCode, error) {
	raw, err := r.client.Get(ctx, r.key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	var code model.VerificationCode
	if err := json.Unmarshal(raw, &code); err != nil {
		return nil, fmt.Errorf("decode verification code: %w", err)
	}
	return &code, nil
}

func (r *VerificationRedisRepo) Remove(ctx context.Context, code *model.VerificationCode) (bool, error) {
	n, err := removeIfIDScript.Run(ctx, r.client, []string{r.key(code.Email)}, code.ID).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *VerificationRedisRepo) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	var (
		cursor  uint64
		removed int64
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"verify:*", 100).Result()
		if err != nil {
			return removed, err
		}
		for _, key := range keys {
			n, err := removeIfExpiredScript.Run(ctx, r.client, []string{key}, now).Int64()
			if err != nil {
				return removed, err
			}
			removed += n
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}
