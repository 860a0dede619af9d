package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// flushMu serializes Flush calls so each job's buffered block lands in
// the output contiguously.
var flushMu sync.Mutex

type logEntry struct {
	level   slog.Level
	message string
}

// Collector buffers a single job's log lines instead of writing them
// immediately. With several jobs in flight at once, per-line logging
// interleaves into an unattributable mess; the collector flushes one
// block per job when processing ends.
type Collector struct {
	entries []logEntry
}

func (c *Collector) log(level slog.Level, format string, args ...any) {
	c.entries = append(c.entries, logEntry{level: level, message: fmt.Sprintf(format, args...)})
}

func (c *Collector) Debugf(format string, args ...any) { c.log(slog.LevelDebug, format, args...) }
func (c *Collector) Infof(format string, args ...any)  { c.log(slog.LevelInfo, format, args...) }
func (c *Collector) Warnf(format string, args ...any)  { c.log(slog.LevelWarn, format, args...) }
func (c *Collector) Errorf(format string, args ...any) { c.log(slog.LevelError, format, args...) }

// Len returns the number of buffered entries.
func (c *Collector) Len() int { return len(c.entries) }

// Flush writes all buffered entries as one contiguous block, each line
// tagged with the job URL.
func (c *Collector) Flush(logger *slog.Logger, url string) {
	if len(c.entries) == 0 {
		return
	}

	flushMu.Lock()
	defer flushMu.Unlock()

	for _, e := range c.entries {
		logger.Log(context.Background(), e.level, e.message, "url", url)
	}
	c.entries = c.entries[:0]
}
