package abuse

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/config"
	orgdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/domain"
)

const (
	keyLogin    = "abuse:login:%s"
	keyRegister = "abuse:register:%s"
	keyReset    = "abuse:reset:%s"
	keyTenant   = "abuse:tenant:%s"
)

// Limiter throttles credential endpoints per identity and API traffic per
// tenant. It is redis-backed when an address is configured and falls back to
// an in-process store otherwise.
type Limiter struct {
	window windowStore
	bucket bucketStore

	cfg     config.LimitConfig
	trusted map[string]struct{}
	log     *zap.Logger
}

// New builds the limiter from configuration.
func New(cfg config.Config) *Limiter {
	l := &Limiter{
		cfg:     cfg.Limits,
		trusted: make(map[string]struct{}, len(cfg.Limits.TrustedIPs)),
		log:     zap.L().Named("abuse.limiter"),
	}
	for _, ip := range cfg.Limits.TrustedIPs {
		l.trusted[strings.TrimSpace(ip)] = struct{}{}
	}

	if addr := strings.TrimSpace(cfg.Limits.RedisAddr); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Limits.RedisPassword,
			DB:       cfg.Limits.RedisDB,
		})
		l.window = newRedisWindow(client)
		l.bucket = newRedisBucket(client)
		l.log.Info("redis rate limiting enabled", zap.String("addr", addr))
	} else {
		l.window = newMemoryWindow()
		l.bucket = newMemoryBucket()
		l.log.Warn("no redis address configured, using in-process rate limiting")
	}
	return l
}

// Trusted reports whether the IP is exempt from throttling.
func (l *Limiter) Trusted(ip string) bool {
	_, ok := l.trusted[strings.TrimSpace(ip)]
	return ok
}

// AllowLogin throttles login attempts per client identity.
func (l *Limiter) AllowLogin(ctx context.Context, ip, email string) (*Result, error) {
	return l.allowWindow(ctx, fmt.Sprintf(keyLogin, identity(ip, email)), ip, l.cfg.LoginLimit, l.cfg.LoginWindow)
}

// ResetLogin clears the login window after a successful authentication so a
// legitimate user does not inherit a stranger's failed attempts.
func (l *Limiter) ResetLogin(ctx context.Context, ip, email string) error {
	return l.window.Reset(ctx, fmt.Sprintf(keyLogin, identity(ip, email)))
}

// AllowRegister throttles account creation per source IP.
func (l *Limiter) AllowRegister(ctx context.Context, ip string) (*Result, error) {
	return l.allowWindow(ctx, fmt.Sprintf(keyRegister, identity(ip, "")), ip, l.cfg.RegisterLimit, l.cfg.RegisterWindow)
}

// AllowPasswordReset throttles reset requests per client identity.
func (l *Limiter) AllowPasswordReset(ctx context.Context, ip, email string) (*Result, error) {
	return l.allowWindow(ctx, fmt.Sprintf(keyReset, identity(ip, email)), ip, l.cfg.ResetLimit, l.cfg.ResetWindow)
}

// AllowTenant applies the per-organization budget for the subscription plan.
// An unset budget means unlimited, mirroring allowWindow.
func (l *Limiter) AllowTenant(ctx context.Context, orgID, plan string) (*Result, error) {
	rate, burst := l.planBudget(plan)
	if rate <= 0 || burst <= 0 {
		return &Result{Allowed: true, Remaining: burst}, nil
	}
	return l.bucket.Take(ctx, fmt.Sprintf(keyTenant, orgID), rate, burst)
}

func (l *Limiter) allowWindow(ctx context.Context, key, ip string, limit int, window time.Duration) (*Result, error) {
	if l.Trusted(ip) || limit <= 0 {
		return &Result{Allowed: true, Remaining: limit}, nil
	}
	count, retryAfter, err := l.window.Incr(ctx, key, window)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Allowed:   count <= int64(limit),
		Remaining: limit - int(count),
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	if !result.Allowed {
		result.RetryAfter = retryAfter
	}
	return result, nil
}

func (l *Limiter) planBudget(plan string) (float64, int) {
	switch plan {
	case orgdomain.PlanPremium:
		return l.cfg.PremiumRate, l.cfg.PremiumBurst
	case orgdomain.PlanBasic:
		return l.cfg.BasicRate, l.cfg.BasicBurst
	default:
		return l.cfg.FreeRate, l.cfg.FreeBurst
	}
}

// identity keys a client by IP plus a digest of the normalized email, so the
// raw address never lands in the rate-limit store.
func identity(ip, email string) string {
	ip = strings.TrimSpace(ip)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ip
	}
	sum := sha256.Sum256([]byte(email))
	return ip + ":" + hex.EncodeToString(sum[:8])
}
