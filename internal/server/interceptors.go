package server

import (
	"context"
	"log/slog"
	"net"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/doc-intake/internal/common"
)

// methods callable without an owner id
var anonymous = map[string]bool{
	FullMethod(MethodExtractText): true,
}

// OwnerInterceptor puts the x-owner-id metadata value on the context and
// rejects intake calls that need one but carry none.
func OwnerInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {
			return handler(ctx, req)
		}
		var owner string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(OwnerMetadataKey); len(vals) > 0 {
				owner = strings.TrimSpace(vals[0])
			}
		}
		if owner == "" && !anonymous[info.FullMethod] {
			logger.Warn("request missing owner id", "method", info.FullMethod)
			return nil, common.UnauthenticatedError(OwnerMetadataKey + " metadata is required")
		}
		if owner != "" {
			ctx = common.WithOwnerID(ctx, owner)
		}
		return handler(ctx, req)
	}
}

// Idle limiters are dropped once per limiterSweep.
const (
	limiterIdle  = 10 * time.Minute
	limiterSweep = time.Minute
)

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per peer host.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastSweep time.Time
}

// NewRateLimiter allows perSecond requests per peer with the given burst.
// A non-positive rate disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
		limiters: map[string]*limiterEntry{},
	}
}

func (r *RateLimiter) get(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if now.Sub(r.lastSweep) >= limiterSweep {
		for k, e := range r.limiters {
			if now.Sub(e.lastSeen) >= limiterIdle {
				delete(r.limiters, k)
			}
		}
		r.lastSweep = now
	}
	e, ok := r.limiters[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[key] = e
	}
	e.lastSeen = now
	return e.lim
}

// Allow reports whether the peer may make another request now.
func (r *RateLimiter) Allow(key string) bool {
	if r.limit <= 0 {
		return true
	}
	return r.get(key).Allow()
}

// peerKey is the caller's host, so every connection from one machine shares a bucket.
func peerKey(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func (r *RateLimiter) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !r.Allow(peerKey(ctx)) {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

// requestID is the caller's x-request-id, or a fresh one.
func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
			if id := strings.TrimSpace(vals[0]); id != "" && len(id) <= 128 {
				return id
			}
		}
	}
	return uuid.NewString()
}

// ErrorInterceptor stamps a request id, logs each call and turns application
// errors into gRPC statuses. The id is echoed back in the response header.
func ErrorInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		id := requestID(ctx)
		ctx = common.WithRequestID(ctx, id)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDMetadataKey, id))

		resp, err := handler(ctx, req)
		if err != nil {
			st := common.ToStatus(err)
			logger.Warn("grpc call failed",
				"method", info.FullMethod,
				"request_id", common.RequestIDFromContext(ctx),
				"code", status.Code(st).String(),
				"elapsed_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
			return nil, st
		}
		logger.Debug("grpc call ok",
			"method", info.FullMethod,
			"request_id", common.RequestIDFromContext(ctx),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, nil
	}
}

// RecoveryInterceptor turns a handler panic into an Internal status.
func RecoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc handler panicked",
					"method", info.FullMethod,
					"request_id", common.RequestIDFromContext(ctx),
					"panic", r,
					"stack", string(debug.Stack()),
				)
				resp, err = nil, common.InternalErrorf("panic in %s", info.FullMethod)
			}
		}()
		return handler(ctx, req)
	}
}
