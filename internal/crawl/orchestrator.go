package crawl

import (
	"context"
	"log/slog"
	"sync"

	"jobsift/internal/model"
)

// Orchestrator fans a batch of job URLs out to a bounded pool of
// workers. Pool width caps concurrent browser pages and AI calls; the
// duplicate guarantees come from the store, not from here.
type Orchestrator struct {
	processor *Processor
	progress  *Progress
	poolSize  int
	logger    *slog.Logger
}

func NewOrchestrator(processor *Processor, poolSize int, logger *slog.Logger) *Orchestrator {
	if poolSize < 1 {
		poolSize = 1
	}
	return &Orchestrator{
		processor: processor,
		progress:  &Progress{},
		poolSize:  poolSize,
		logger:    logger,
	}
}

// Progress exposes the live counters for the current batch.
func (o *Orchestrator) Progress() *Progress {
	return o.progress
}

// Run processes the whole batch and blocks until every worker has
// finished. A panicking job is contained, logged, and counted as an
// error; the rest of the batch keeps running.
func (o *Orchestrator) Run(ctx context.Context, jobs []model.JobURL) model.RunSummary {
	if len(jobs) == 0 {
		o.logger.Warn("no job urls to process")
		return o.progress.Summary()
	}

	o.progress.Reset(len(jobs))
	o.logger.Info("starting batch run", "jobs", len(jobs), "workers", o.poolSize)

	sem := make(chan struct{}, o.poolSize)
	var wg sync.WaitGroup

	for _, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(job model.JobURL) {
			defer wg.Done()
			defer func() { <-sem }()
			o.runOne(ctx, job)
		}(job)
	}

	wg.Wait()

	summary := o.progress.Summary()
	o.logger.Info("batch run finished",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"duplicates", summary.Duplicates,
		"empty", summary.Empty,
		"errors", summary.Errors,
		"success_rate", summary.SuccessRate(),
	)
	return summary
}

func (o *Orchestrator) runOne(ctx context.Context, job model.JobURL) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("job worker panicked", "url", job.URL, "panic", r)
			o.progress.RecordError()
		}
	}()

	switch o.processor.Process(ctx, job) {
	case OutcomeSuccess, OutcomeRejected:
		o.progress.RecordSuccess()
	case OutcomeDuplicate:
		o.progress.RecordDuplicate()
	case OutcomeEmpty:
		o.progress.RecordEmpty()
	default:
		o.progress.RecordError()
	}
}
