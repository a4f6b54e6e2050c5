package sshproxy

import (
	"strings"
	"sync"
	"time"
)

// historyCap is the default per-session FIFO job history cap (spec §3:
// "default 1000 entries per session, oldest evicted").
const historyCap = 1000

// jobHistory is an append-only (outside of FIFO eviction) ordered list of
// jobs for one session, guarded by its own lock so buffer trimming
// (session.go) and history eviction never contend on the same mutex
// (spec §4.3: "continuous-buffer and job lifetimes are independent").
type jobHistory struct {
	mu   sync.Mutex
	jobs []*Job
	byID map[string]*Job
}

func newJobHistory() *jobHistory {
	return &jobHistory{byID: make(map[string]*Job)}
}

// add appends job, evicting the oldest entry if the cap is exceeded (spec
// §8 testable property: "inserting the (cap+1)-th job evicts the oldest
// and leaves the newest cap in order").
func (h *jobHistory) add(j *Job) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobs = append(h.jobs, j)
	h.byID[j.ID] = j
	if len(h.jobs) > historyCap {
		evicted := h.jobs[0]
		h.jobs = h.jobs[1:]
		delete(h.byID, evicted.ID)
	}
}

func (h *jobHistory) get(id string) (*Job, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	j, ok := h.byID[id]
	return j, ok
}

// list returns jobs matching the optional filters (spec §4.3 get_history:
// limit, search substring against command/output, since a time cutoff),
// newest first.
func (h *jobHistory) list(limit int, search string, since time.Time) []Job {
	h.mu.Lock()
	jobs := make([]*Job, len(h.jobs))
	copy(jobs, h.jobs)
	h.mu.Unlock()

	out := make([]Job, 0, len(jobs))
	for i := len(jobs) - 1; i >= 0; i-- {
		snap := jobs[i].Snapshot()
		if !since.IsZero() && snap.StartedAt.Before(since) {
			continue
		}
		if search != "" && !strings.Contains(snap.Command, search) && !strings.Contains(snap.Output, search) {
			continue
		}
		out = append(out, snap)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
