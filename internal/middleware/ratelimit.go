package middleware

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/technosupport/campus-presence/internal/ratelimit"
	"github.com/technosupport/campus-presence/internal/tokens"
)

// Internal Service Key for Bypass (In prod, use secret manager)
var InternalServiceKey = os.Getenv("INTERNAL_SERVICE_KEY")

type RateLimitMiddleware struct {
	limiter         *ratelimit.Limiter
	tokens          TokenValidator // Reused from JWTAuth
	config          *Config
	endpointsLimits map[string]ratelimit.LimitConfig
}

type Config struct {
	GlobalIP  ratelimit.LimitConfig            `yaml:"global_ip"`
	User      ratelimit.LimitConfig            `yaml:"user"`
	Login     ratelimit.LimitConfig            `yaml:"login"`
	Endpoints map[string]ratelimit.LimitConfig `yaml:"endpoints"`
}

func NewRateLimitMiddleware(l *ratelimit.Limiter, t TokenValidator, c Config, epLimits map[string]ratelimit.LimitConfig) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:         l,
		tokens:          t,
		config:          &c,
		endpointsLimits: epLimits,
	}
}

// isInternalService lets the stream manager and other in-process callers
// bypass HTTP rate limiting using a service token signed with a separate key.
func (m *RateLimitMiddleware) isInternalService(r *http.Request) bool {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return false
	}
	if InternalServiceKey == "" {
		return false
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	mgr := tokens.NewManager(InternalServiceKey)
	claims, err := mgr.ValidateToken(tokenString)
	if err != nil {
		return false
	}

	return claims.TokenType == "service"
}

func (m *RateLimitMiddleware) GlobalLimiter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.isInternalService(r) {
			log.Println("RateLimit Bypass: Internal Service")
			next.ServeHTTP(w, r)
			return
		}

		ip := strings.Split(r.RemoteAddr, ":")[0]
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ip = strings.Split(xff, ",")[0]
		}

		ipHash := m.limiter.HashIP(ip)
		key := fmt.Sprintf("rl:ip:%s", ipHash)

		decision, err := m.limiter.CheckRateLimit(r.Context(), key, m.config.GlobalIP)

		if err == ratelimit.ErrRedisUnavailable {
			// Auth endpoints fail closed; everything else fails open and just logs.
			if strings.HasPrefix(r.URL.Path, "/api/v1/auth/") {
				log.Printf("RateLimit Redis Error (Auth, Fail Closed): %v", err)
				http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
				return
			}
			log.Printf("RateLimit Redis Error (API, Fail Open): %v", err)
			next.ServeHTTP(w, r)
			return
		} else if err != nil {
			log.Printf("RateLimit Error: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		if !decision.Allowed {
			m.writeRateLimitHeaders(w, decision)
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		if ac, ok := GetAuthContext(r.Context()); ok {
			userKey := fmt.Sprintf("rl:user:%s", ac.UserID)
			uDecision, err := m.limiter.CheckRateLimit(r.Context(), userKey, m.config.User)
			if err == nil && !uDecision.Allowed {
				m.writeRateLimitHeaders(w, uDecision)
				http.Error(w, "User rate limit exceeded", http.StatusTooManyRequests)
				return
			}
		}

		path := r.URL.Path
		if limitConfig, found := m.endpointsLimits[path]; found {
			epKey := fmt.Sprintf("rl:ep:%s:%s", ipHash, path)
			epDecision, err := m.limiter.CheckRateLimit(r.Context(), epKey, limitConfig)
			if err == nil && !epDecision.Allowed {
				m.writeRateLimitHeaders(w, epDecision)
				http.Error(w, "Endpoint rate limit exceeded", http.StatusTooManyRequests)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// LoginLimiter passes the request through unchanged and applies no limit.
// Repeated login failures are bounded instead by session.Manager's
// per-email lockout, which the login handler checks.
func (m *RateLimitMiddleware) LoginLimiter(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
	}
}

func (m *RateLimitMiddleware) writeRateLimitHeaders(w http.ResponseWriter, d *ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	if !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
	}
}
