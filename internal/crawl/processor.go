package crawl

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"jobsift/internal/ai"
	"jobsift/internal/browser"
	"jobsift/internal/metrics"
	"jobsift/internal/model"
	"jobsift/internal/parser"
	"jobsift/internal/prompt"
	"jobsift/internal/store"
)

// Outcome classifies what happened to one job URL.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeEmpty     Outcome = "empty"
	OutcomeRejected  Outcome = "rejected"
	OutcomeError     Outcome = "error"
)

// Fetcher is the slice of the browser session the processor needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*model.FetchResult, error)
}

// JobStore is the slice of the persistent store the processor needs.
type JobStore interface {
	IsDuplicate(ctx context.Context, url string) (bool, error)
	Store(ctx context.Context, rec *model.Record) (store.Outcome, error)
}

// Processor runs the per-URL pipeline: duplicate check, fetch, empty
// check, keyword pre-filter, AI analysis, parse, store. Each step
// short-circuits on its terminal condition. A Processor is safe for
// concurrent use; per-job state lives on the stack.
type Processor struct {
	store    JobStore
	fetcher  Fetcher
	analyzer ai.Analyzer
	prompts  *prompt.Builder
	keywords []string
	logger   *slog.Logger
}

func NewProcessor(st JobStore, fetcher Fetcher, analyzer ai.Analyzer, prompts *prompt.Builder, keywords []string, logger *slog.Logger) *Processor {
	return &Processor{
		store:    st,
		fetcher:  fetcher,
		analyzer: analyzer,
		prompts:  prompts,
		keywords: keywords,
		logger:   logger,
	}
}

// Process handles one job URL end to end. It never panics on bad input;
// failures are logged, classified, and returned as an Outcome so the
// batch keeps running.
func (p *Processor) Process(ctx context.Context, job model.JobURL) Outcome {
	logs := &Collector{}
	defer logs.Flush(p.logger, job.URL)

	outcome := p.process(ctx, job, logs)
	metrics.RecordJobOutcome(string(outcome))
	return outcome
}

func (p *Processor) process(ctx context.Context, job model.JobURL, logs *Collector) Outcome {
	dup, err := p.store.IsDuplicate(ctx, job.URL)
	if err != nil {
		logs.Errorf("duplicate check failed: %v", err)
		return OutcomeError
	}
	if dup {
		logs.Infof("skipping duplicate job")
		return OutcomeDuplicate
	}

	logs.Debugf("starting job processing")

	res, err := p.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		metrics.RecordFetch("error")
		if errors.Is(err, browser.ErrAuthenticationFailed) {
			logs.Errorf("authentication failed: %v", err)
		} else {
			logs.Errorf("fetch failed: %v", err)
		}
		return OutcomeError
	}
	metrics.RecordFetch("ok")

	description := strings.TrimSpace(res.Text)
	if description == "" {
		logs.Warnf("empty content detected; skipping store")
		return OutcomeEmpty
	}

	if !p.matchesKeywords(job.Title, description) {
		logs.Infof("no inclusion keyword matched; storing rejected record without analysis")
		return p.storeRejected(ctx, job, description, logs)
	}

	logs.Debugf("requesting analysis from model")
	started := time.Now()
	reply, err := p.analyzer.Ask(ctx, p.prompts.Build(description))
	metrics.RecordAICall(err == nil, time.Since(started).Milliseconds())
	if err != nil {
		logs.Errorf("analysis failed: %v", err)
		return OutcomeError
	}

	fields := parser.Parse(reply)
	rec := buildRecord(job, description, reply, fields)

	logs.Debugf("storing parsed results")
	stored, err := p.store.Store(ctx, rec)
	if err != nil {
		logs.Errorf("store failed: %v", err)
		return OutcomeError
	}
	if stored == store.OutcomeDuplicate {
		logs.Infof("duplicate detected during save; a sibling worker won the race")
		return OutcomeDuplicate
	}

	logs.Infof("stored job: matchScore=%v score=%d remote=%q company=%q",
		scoreLabel(fields.MatchScore), rec.Score, rec.Remote, rec.CompanyName)
	return OutcomeSuccess
}

// matchesKeywords is the cheap pre-filter deciding whether the job is
// worth an AI call at all. No configured keywords means no filtering.
func (p *Processor) matchesKeywords(title, description string) bool {
	if len(p.keywords) == 0 {
		return true
	}
	for _, kw := range p.keywords {
		if kw == "" {
			continue
		}
		if containsFold(title, kw) || containsFold(description, kw) {
			return true
		}
	}
	return false
}

// storeRejected persists a minimal record so the URL is never fetched
// again, without spending an AI call on it.
func (p *Processor) storeRejected(ctx context.Context, job model.JobURL, description string, logs *Collector) Outcome {
	rec := &model.Record{
		URL:         job.URL,
		JobTitle:    job.Title,
		Description: description,
		Score:       0,
		Rejected:    true,
	}

	stored, err := p.store.Store(ctx, rec)
	if err != nil {
		logs.Errorf("store rejected record failed: %v", err)
		return OutcomeError
	}
	if stored == store.OutcomeDuplicate {
		logs.Infof("duplicate detected during save")
		return OutcomeDuplicate
	}
	return OutcomeRejected
}

func buildRecord(job model.JobURL, description, reply string, f parser.Fields) *model.Record {
	// score is the denormalized sort column; the reply may carry either
	// key, so fall back to matchScore when score is absent.
	score := 0
	if f.Score != nil {
		score = *f.Score
	} else if f.MatchScore != nil {
		score = *f.MatchScore
	}

	title := f.JobTitle
	if title == "" {
		title = job.Title
	}

	return &model.Record{
		URL:            job.URL,
		JobTitle:       title,
		Description:    description,
		AIResponse:     reply,
		CompanyName:    f.CompanyName,
		Location:       f.Location,
		Remote:         f.Remote,
		ContractType:   f.ContractType,
		Seniority:      f.Seniority,
		Currency:       f.Currency,
		HourlyMin:      f.HourlyMin,
		HourlyMax:      f.HourlyMax,
		SalaryText:     f.SalaryText,
		TechKeywords:   f.TechKeywords,
		MissingSkills:  f.MissingSkills,
		Strengths:      f.Strengths,
		Confidence:     f.Confidence,
		Summary:        f.Summary,
		Recommendation: f.Recommendation,
		Notes:          f.Notes,
		MatchScore:     f.MatchScore,
		Score:          score,
	}
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func scoreLabel(score *int) any {
	if score == nil {
		return "absent"
	}
	return *score
}
