package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/tracebridge-backend/api/responses"
	"github.com/angelmondragon/tracebridge-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
)

// WindowLimiter counts hits per scope inside a fixed window.
type WindowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// PublicRateLimitPolicy throttles an unauthenticated surface per client IP
// and, when TokenParam names a route param, per hashed URL token so guessing
// invite tokens from many addresses is still bounded.
type PublicRateLimitPolicy struct {
	Name       string
	Window     time.Duration
	IPLimit    int64
	TokenLimit int64
	TokenParam string
}

// PolicyFromConfig applies the configured public limits to a named surface.
func PolicyFromConfig(name string, cfg config.RateLimitConfig, tokenParam string) PublicRateLimitPolicy {
	policy := PublicRateLimitPolicy{
		Name:       strings.ToLower(strings.TrimSpace(name)),
		Window:     cfg.PublicWindow,
		IPLimit:    int64(cfg.PublicIPLimit),
		TokenParam: tokenParam,
	}
	if tokenParam != "" {
		policy.TokenLimit = int64(cfg.PublicTokenLimit)
	}
	return policy
}

func (p PublicRateLimitPolicy) enabled() bool {
	return p.Window > 0 && (p.IPLimit > 0 || p.TokenLimit > 0)
}

func (p PublicRateLimitPolicy) scope(kind, value string) string {
	name := p.Name
	if name == "" {
		name = "public"
	}
	return "public:" + name + ":" + kind + ":" + value
}

type limitCheck struct {
	kind  string
	value string
	limit int64
}

func (p PublicRateLimitPolicy) checks(r *http.Request) []limitCheck {
	var out []limitCheck
	if ip := remoteIP(r); p.IPLimit > 0 && ip != "" {
		out = append(out, limitCheck{kind: "ip", value: ip, limit: p.IPLimit})
	}
	if p.TokenLimit > 0 && p.TokenParam != "" {
		if token := strings.TrimSpace(chi.URLParam(r, p.TokenParam)); token != "" {
			sum := sha256.Sum256([]byte(token))
			out = append(out, limitCheck{kind: "token", value: hex.EncodeToString(sum[:]), limit: p.TokenLimit})
		}
	}
	return out
}

// PublicRateLimit rejects requests over any of the policy's limits with 429.
// A limiter failure is reported as a dependency error rather than failing open.
func PublicRateLimit(policy PublicRateLimitPolicy, limiter WindowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			for _, check := range policy.checks(r) {
				allowed, count, err := limiter.FixedWindowAllow(ctx, policy.scope(check.kind, check.value), check.limit, policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"policy":   policy.Name,
							"scope":    check.kind,
							"key":      check.value,
							"attempts": count,
							"limit":    check.limit,
						}), "public rate limit exceeded")
					}
					responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// remoteIP expects chi's RealIP middleware to have resolved proxy headers.
func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
