package handlers

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/personaliza/api/internal/platform/httpx"
)

// pollBudget grants limit requests per key in fixed windows aligned to the clock, so a buyer
// polling a PIX order gets a fresh budget at each window boundary.
type pollBudget struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	current int64
	used    map[string]int
}

func newPollBudget(limit int, window time.Duration, clock func() time.Time) *pollBudget {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &pollBudget{limit: limit, window: window, clock: clock, used: map[string]int{}}
}

// take spends one request from key's budget. When the budget is exhausted it returns false and
// the time left until the next window.
func (b *pollBudget) take(key string) (bool, time.Duration) {
	if b == nil {
		return true, 0
	}
	now := b.clock()
	slot := now.UnixNano() / int64(b.window)

	b.mu.Lock()
	defer b.mu.Unlock()
	if slot != b.current {
		b.current = slot
		clear(b.used)
	}
	if b.used[key] >= b.limit {
		next := time.Unix(0, (slot+1)*int64(b.window))
		return false, next.Sub(now)
	}
	b.used[key]++
	return true, 0
}

// spendOrReject writes a 429 with Retry-After when key has no budget left.
func spendOrReject(budget *pollBudget, key string, w http.ResponseWriter, r *http.Request) bool {
	ok, wait := budget.take(key)
	if ok {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many status requests", http.StatusTooManyRequests))
	return false
}
