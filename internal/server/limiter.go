package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// ClientLimiter is a per-client token bucket. Buckets for clients that stay
// quiet for longer than the idle window are evicted.
type ClientLimiter struct {
	buckets *cache.Cache
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
}

// NewClientLimiter allows perSecond requests per client with the given burst.
// perSecond <= 0 disables limiting.
func NewClientLimiter(perSecond float64, burst int, idle time.Duration) *ClientLimiter {
	if burst <= 0 {
		burst = 1
	}
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &ClientLimiter{
		buckets: cache.New(idle, idle/2),
		rate:    rate.Limit(perSecond),
		burst:   burst,
	}
}

// Allow reports whether client may make a request now.
func (l *ClientLimiter) Allow(client string) bool {
	if l == nil || l.rate <= 0 {
		return true
	}
	return l.bucket(client).Allow()
}

func (l *ClientLimiter) bucket(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.buckets.Get(client); ok {
		lim := v.(*rate.Limiter)
		// refresh the idle expiry
		l.buckets.SetDefault(client, lim)
		return lim
	}
	lim := rate.NewLimiter(l.rate, l.burst)
	l.buckets.SetDefault(client, lim)
	return lim
}

// Middleware rejects over-limit HTTP clients with 429.
func (l *ClientLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r.RemoteAddr)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UnaryInterceptor applies the limiter to gRPC calls, keyed by peer address.
func (l *ClientLimiter) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		client := "unknown"
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			client = clientIP(p.Addr.String())
		}
		if !l.Allow(client) {
			return nil, status.Error(codes.ResourceExhausted, "too many requests")
		}
		return handler(ctx, req)
	}
}

func clientIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSpace(addr)
}
