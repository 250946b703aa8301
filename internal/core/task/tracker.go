package task

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Tracker remembers the latest authoritative snapshot per task so that
// out-of-order or stale poll results are not shown as current.
type Tracker struct {
	cache *cache.Cache
}

// NewTracker creates a tracker whose entries expire after ttl of inactivity.
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tracker{cache: cache.New(ttl, 10*time.Minute)}
}

// Observe records t if it is not older than the snapshot already held and
// returns the snapshot that is now authoritative. The boolean is false when
// t was rejected as stale.
func (tr *Tracker) Observe(t Task) (Task, bool) {
	t = Normalize(t)

	prev, ok := tr.Latest(t.TaskID)
	if ok && isStale(prev, t) {
		return prev, false
	}
	// a failed task may report zero progress; keep what was already shown
	if ok && t.Progress < prev.Progress {
		t.Progress = prev.Progress
	}

	tr.cache.Set(t.TaskID, t, cache.DefaultExpiration)
	return t, true
}

// Latest returns the authoritative snapshot for taskID, if any.
func (tr *Tracker) Latest(taskID string) (Task, bool) {
	v, ok := tr.cache.Get(taskID)
	if !ok {
		return Task{}, false
	}
	return v.(Task), true
}

// Forget drops any snapshot held for taskID.
func (tr *Tracker) Forget(taskID string) {
	tr.cache.Delete(taskID)
}

func isStale(prev, next Task) bool {
	if prev.Seq > 0 && next.Seq > 0 {
		return next.Seq < prev.Seq
	}
	if !CanTransition(prev.Status, next.Status) {
		return true
	}
	if !next.Status.IsTerminal() && next.Progress < prev.Progress {
		return true
	}
	return false
}
