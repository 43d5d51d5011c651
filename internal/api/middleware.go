package api

import (
	"errors"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/internal/errs"
	"github.com/huangsam/exprora/schema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Headers read or written by the API.
const (
	HeaderAPIKey    = "X-API-Key"
	HeaderRequestID = "X-Request-ID"
	HeaderCountry   = "X-Country"
)

const (
	requestIDKey = "exprora_request_id"
	accountKey   = "exprora_account"
)

// RequestID propagates the caller's X-Request-ID or generates a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// GetRequestID returns the request id set by RequestID, if any.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// AccessLog writes one structured line per request.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", GetRequestID(c)),
		}
		if acct, ok := GetAccount(c); ok {
			fields = append(fields, zap.Int64("account_id", acct.ID))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("request", fields...)
		case status >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// Recovery turns a panic into a 500 with the standard error body.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", GetRequestID(c)))
		respondError(c, errs.New(errs.CodeInternal, "internal server error"))
	})
}

// Auth resolves the X-API-Key header to an account.
func Auth(store contract.AccountStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderAPIKey)
		if key == "" {
			respondError(c, errs.New(errs.CodeUnauthorized, "API key required"))
			return
		}

		acct, err := store.GetAccountByAPIKey(c.Request.Context(), key)
		if errors.Is(err, errs.ErrNotFound) {
			respondError(c, errs.New(errs.CodeUnauthorized, "invalid API key"))
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}

		c.Set(accountKey, acct)
		c.Next()
	}
}

// GetAccount returns the account resolved by Auth.
func GetAccount(c *gin.Context) (schema.Account, bool) {
	if v, exists := c.Get(accountKey); exists {
		if acct, ok := v.(schema.Account); ok {
			return acct, true
		}
	}
	return schema.Account{}, false
}

// keyLimiters holds one token bucket per API key.
type keyLimiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newKeyLimiters(rps float64, burst int) *keyLimiters {
	if burst < 1 {
		burst = 1
	}
	return &keyLimiters{limit: rate.Limit(rps), burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (k *keyLimiters) get(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.limiters[key]
	if !ok {
		l = rate.NewLimiter(k.limit, k.burst)
		k.limiters[key] = l
	}
	return l
}

// RateLimit rejects requests beyond rps per API key. A non-positive rps
// disables limiting. Must run after Auth.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiters := newKeyLimiters(rps, burst)
	return func(c *gin.Context) {
		if !limiters.get(c.GetHeader(HeaderAPIKey)).Allow() {
			rateLimitedTotal.Inc()
			respondError(c, errs.New(errs.CodeRateLimited, "rate limit exceeded"))
			return
		}
		c.Next()
	}
}
