package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterMaxTracked = 1024
)

type chatLimiter struct {
	lim    *rate.Limiter
	seen   time.Time
	warned bool
}

// chatLimiters - token bucket на каждый чат.
type chatLimiters struct {
	mu    sync.Mutex
	m     map[int64]*chatLimiter
	r     rate.Limit
	burst int
}

func newChatLimiters(r rate.Limit, burst int) *chatLimiters {
	return &chatLimiters{m: make(map[int64]*chatLimiter), r: r, burst: burst}
}

// Allow списывает токен чата. notify выставляется только для первого отказа подряд,
// чтобы предупреждение о лимите уходило в чат один раз.
func (l *chatLimiters) Allow(chatID int64) (allowed, notify bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if len(l.m) >= limiterMaxTracked {
		for id, cl := range l.m {
			if now.Sub(cl.seen) > limiterIdleTTL {
				delete(l.m, id)
			}
		}
	}

	cl, ok := l.m[chatID]
	if !ok {
		cl = &chatLimiter{lim: rate.NewLimiter(l.r, l.burst)}
		l.m[chatID] = cl
	}
	cl.seen = now
	if cl.lim.Allow() {
		cl.warned = false
		return true, false
	}
	notify = !cl.warned
	cl.warned = true
	return false, notify
}
