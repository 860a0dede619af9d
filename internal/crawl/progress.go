package crawl

import (
	"sync/atomic"
	"time"

	"jobsift/internal/model"
)

// Progress tracks batch-wide counters. All fields are atomics because
// completions arrive from concurrent workers; a plain int would lose
// updates.
type Progress struct {
	total      atomic.Int64
	processed  atomic.Int64
	succeeded  atomic.Int64
	duplicates atomic.Int64
	empty      atomic.Int64
	errors     atomic.Int64

	// UnixNano, because Reset runs on the batch goroutine while the
	// progress endpoint calls Summary; a plain time.Time would race.
	startedAtNs atomic.Int64
}

// Reset prepares the counters for a new batch of n jobs.
func (p *Progress) Reset(n int) {
	p.total.Store(int64(n))
	p.processed.Store(0)
	p.succeeded.Store(0)
	p.duplicates.Store(0)
	p.empty.Store(0)
	p.errors.Store(0)
	p.startedAtNs.Store(time.Now().UTC().UnixNano())
}

func (p *Progress) RecordSuccess() {
	p.processed.Add(1)
	p.succeeded.Add(1)
}

func (p *Progress) RecordDuplicate() {
	p.processed.Add(1)
	p.duplicates.Add(1)
}

func (p *Progress) RecordEmpty() {
	p.processed.Add(1)
	p.empty.Add(1)
}

func (p *Progress) RecordError() {
	p.processed.Add(1)
	p.errors.Add(1)
}

// Processed returns how many jobs have completed so far.
func (p *Progress) Processed() int64 { return p.processed.Load() }

// Total returns the batch size set by Reset.
func (p *Progress) Total() int64 { return p.total.Load() }

// Summary snapshots the counters into a RunSummary.
func (p *Progress) Summary() model.RunSummary {
	var started time.Time
	if ns := p.startedAtNs.Load(); ns != 0 {
		started = time.Unix(0, ns).UTC()
	}
	return model.RunSummary{
		Total:      int(p.total.Load()),
		Succeeded:  int(p.succeeded.Load()),
		Duplicates: int(p.duplicates.Load()),
		Empty:      int(p.empty.Load()),
		Errors:     int(p.errors.Load()),
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
}
