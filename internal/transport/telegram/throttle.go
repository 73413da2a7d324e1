package telegram

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdle = 10 * time.Minute
	pruneEvery  = time.Minute
)

type userLimit struct {
	lim    *rate.Limiter
	warned bool
	seen   time.Time
}

// limiter keeps one token bucket per user. Idle buckets are dropped.
type limiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	users     map[int64]*userLimit
	lastPrune time.Time
	now       func() time.Time
}

func newLimiter(perSecond float64, burst int) *limiter {
	if burst < 1 {
		burst = 1
	}
	return &limiter{
		limit: rate.Limit(perSecond),
		burst: burst,
		users: make(map[int64]*userLimit),
		now:   time.Now,
	}
}

// allow reports whether the user may send now. warn is true only for the
// first rejection after an accepted message.
func (l *limiter) allow(userID int64) (ok, warn bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) >= pruneEvery {
		for id, u := range l.users {
			if now.Sub(u.seen) >= limiterIdle {
				delete(l.users, id)
			}
		}
		l.lastPrune = now
	}

	u, found := l.users[userID]
	if !found {
		u = &userLimit{lim: rate.NewLimiter(l.limit, l.burst)}
		l.users[userID] = u
	}
	u.seen = now
	if u.lim.AllowN(now, 1) {
		u.warned = false
		return true, false
	}
	warn = !u.warned
	u.warned = true
	return false, warn
}

func (l *limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}
