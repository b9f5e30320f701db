package middleware

import (
	"DriverWatch/pkg/redis"
	"DriverWatch/pkg/response"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

var (
	ErrTooManyRequests = response.NewError(http.StatusTooManyRequests, "too many requests")
)

type rateLimiter struct {
	bucket    map[string]*rate.Limiter
	rate      rate.Limit
	burstSize int
	redis     redis.IRedis
	mutex     *sync.RWMutex
}

func newRateLimiter(reqRate rate.Limit, burstSize int, redisClient redis.IRedis) *rateLimiter {
	return &rateLimiter{
		bucket:    make(map[string]*rate.Limiter),
		rate:      reqRate,
		burstSize: burstSize,
		redis:     redisClient,
		mutex:     &sync.RWMutex{},
	}
}

func (r *rateLimiter) GetLimiterFrom(ip string) *rate.Limiter {
	r.mutex.RLock()
	limiter, exist := r.bucket[ip]
	r.mutex.RUnlock()
	if exist {
		return limiter
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exist := r.bucket[ip]; !exist {
		r.bucket[ip] = rate.NewLimiter(r.rate, r.burstSize)
	}

	return r.bucket[ip]
}

// sharedWindow converts the token bucket into a fixed window for the shared
// counter: burst requests per burst/rate seconds keeps the sustained rate.
// Windows shorter than a second fall back to rate requests per second.
func (r *rateLimiter) sharedWindow() (int, time.Duration) {
	window := time.Duration(float64(r.burstSize) / float64(r.rate) * float64(time.Second))
	if window >= time.Second {
		return r.burstSize, window
	}
	return int(math.Ceil(float64(r.rate))), time.Second
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	clientIP := ctx.IP()

	if m.rateLimitter.redis != nil {
		limit, window := m.rateLimitter.sharedWindow()
		allowed, err := m.rateLimitter.redis.Allow(ctx.UserContext(), clientIP, limit, window)
		if err == nil {
			if !allowed {
				return m.tooManyRequests(ctx, clientIP)
			}
			return ctx.Next()
		}
		m.log.Warnf("shared rate limiter unavailable, falling back to local limiter: %v", err)
	}

	if !m.rateLimitter.GetLimiterFrom(clientIP).Allow() {
		return m.tooManyRequests(ctx, clientIP)
	}

	return ctx.Next()
}

func (m *middleware) tooManyRequests(ctx *fiber.Ctx, clientIP string) error {
	m.log.Warnf("too many requests for IP %s", clientIP)
	return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error": ErrTooManyRequests.Error(),
		"code":  "TOO_MANY_REQUESTS",
	})
}
