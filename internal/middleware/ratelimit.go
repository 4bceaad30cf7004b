package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/rkobroo/Ownrkoapi/internal/config"
	"github.com/rkobroo/Ownrkoapi/internal/models"
)

// RateLimiter 限流器, 由 main 创建并注入
type RateLimiter struct {
	globalLimiter *rate.Limiter
	ipRPS         rate.Limit
	ipBurst       int

	mu         sync.Mutex
	ipLimiters map[string]*rate.Limiter
}

// NewRateLimiter 创建限流器
func NewRateLimiter(cfg *config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		globalLimiter: rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.Burst*2),
		ipRPS:         rate.Limit(cfg.IPRPS),
		ipBurst:       cfg.Burst,
		ipLimiters:    make(map[string]*rate.Limiter),
	}
}

// limiterFor 获取 IP 对应的限流器
func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.ipLimiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rl.ipRPS, rl.ipBurst)
		rl.ipLimiters[ip] = limiter
	}
	return limiter
}

// Reset 清空所有 IP 的限流状态
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	rl.ipLimiters = make(map[string]*rate.Limiter)
	rl.mu.Unlock()
}

// Tracked 当前跟踪的 IP 数
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.ipLimiters)
}

// IPRateLimit 全局 + IP 限流中间件
func IPRateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.globalLimiter.Allow() {
			models.AbortWithError(c, http.StatusTooManyRequests, "Rate limit exceeded",
				"global rate limit exceeded, please try again later")
			return
		}

		limiter := rl.limiterFor(c.ClientIP())
		if !limiter.Allow() {
			c.Header("X-RateLimit-Remaining", "0")
			models.AbortWithError(c, http.StatusTooManyRequests, "Rate limit exceeded",
				"You have exceeded the maximum number of requests. Please try again later.")
			return
		}

		remaining := max(int(limiter.Tokens()), 0)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Next()
	}
}
