package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/flowgate-ai/flowgate/types"
)

// Rule bounds one identity to Requests per Period. A Burst above zero adds
// a short-term token-bucket guard on top of the window so a caller cannot
// spend the whole window allowance in a single spike.
type Rule struct {
	Requests int           `yaml:"requests" json:"requests"`
	Period   time.Duration `yaml:"period" json:"period"`
	Burst    int           `yaml:"burst,omitempty" json:"burst,omitempty"`
}

func (r Rule) String() string {
	return fmt.Sprintf("%d/%s", r.Requests, r.Period)
}

// Limiter applies a set of rules conjunctively: a request is admitted only
// when every rule admits it. The first exceeded rule determines the retry
// hint in the returned error.
type Limiter struct {
	rules  []Rule
	store  Store
	logger *zap.Logger
	nowFn  func() time.Time

	mu     sync.Mutex
	bursts map[string]*rate.Limiter
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithStore replaces the default in-memory ledger.
func WithStore(s Store) Option {
	return func(l *Limiter) { l.store = s }
}

// WithLogger attaches a logger for rejection events.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// WithClock overrides the time source. Tests use this to drive the window.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.nowFn = now }
}

// New builds a Limiter over rules. Rules with a non-positive request count
// or period are ignored.
func New(rules []Rule, opts ...Option) *Limiter {
	l := &Limiter{
		store:  NewMemoryStore(),
		logger: zap.NewNop(),
		nowFn:  time.Now,
		bursts: make(map[string]*rate.Limiter),
	}
	for _, r := range rules {
		if r.Requests > 0 && r.Period > 0 {
			l.rules = append(l.rules, r)
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one request for identity and returns nil when every rule
// admits it, or a *types.RateLimitError naming the wait until the oldest
// in-window request of the exceeded rule expires. A request rejected by a
// later rule still counts against the earlier rules it passed.
func (l *Limiter) Check(identity string) error {
	now := l.nowFn()
	for _, rule := range l.rules {
		key := identity + ":" + rule.Period.String()
		count, oldest, ok := l.store.Increment(key, now, rule.Period, rule.Requests)
		if !ok {
			retryAfter := oldest.Add(rule.Period).Sub(now)
			if retryAfter < 0 {
				retryAfter = 0
			}
			l.logger.Debug("rate limit exceeded",
				zap.String("identity", identity),
				zap.String("rule", rule.String()),
				zap.Int("count", count),
				zap.Duration("retry_after", retryAfter))
			return &types.RateLimitError{Identity: identity, RetryAfter: retryAfter}
		}
		if rule.Burst > 0 {
			if err := l.checkBurst(identity, rule, now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Limiter) checkBurst(identity string, rule Rule, now time.Time) error {
	l.mu.Lock()
	key := identity + ":" + rule.Period.String() + ":burst"
	rl := l.bursts[key]
	if rl == nil {
		perSecond := rate.Limit(float64(rule.Requests) / rule.Period.Seconds())
		rl = rate.NewLimiter(perSecond, rule.Burst)
		l.bursts[key] = rl
	}
	l.mu.Unlock()

	res := rl.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return &types.RateLimitError{Identity: identity, RetryAfter: delay}
	}
	return nil
}

// Reset clears all recorded requests and burst state for identity.
func (l *Limiter) Reset(identity string) {
	l.store.Reset(identity + ":")
	l.mu.Lock()
	for key := range l.bursts {
		if len(key) > len(identity) && key[:len(identity)+1] == identity+":" {
			delete(l.bursts, key)
		}
	}
	l.mu.Unlock()
}

// StartCleanup sweeps expired ledger records every interval until ctx is
// cancelled. An interval of zero defaults to one minute.
func (l *Limiter) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.store.Sweep(l.nowFn())
			}
		}
	}()
}
