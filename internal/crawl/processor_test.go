package crawl

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"jobsift/internal/model"
	"jobsift/internal/prompt"
	"jobsift/internal/store"
)

const analyzerReply = "<<<RESULTS>>>\ncompanyName: Acme\njobTitle: Go Developer\nmatchScore: 8\nremote: yes\ntechKeywords: go, postgres\n<<<END>>>"

type fakeStore struct {
	mu       sync.Mutex
	records  map[string]*model.Record
	dupErr   error
	storeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*model.Record{}}
}

func (f *fakeStore) IsDuplicate(_ context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dupErr != nil {
		return false, f.dupErr
	}
	_, ok := f.records[url]
	return ok, nil
}

func (f *fakeStore) Store(_ context.Context, rec *model.Record) (store.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return 0, f.storeErr
	}
	if _, ok := f.records[rec.URL]; ok {
		return store.OutcomeDuplicate, nil
	}
	f.records[rec.URL] = rec
	return store.OutcomeStored, nil
}

func (f *fakeStore) get(url string) *model.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[url]
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeFetcher struct {
	text string
	err  error
}

func (f *fakeFetcher) Fetch(context.Context, string) (*model.FetchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.FetchResult{Text: f.text, HTML: "<html></html>", Markdown: f.text}, nil
}

type countingAnalyzer struct {
	calls atomic.Int64
	reply string
	err   error
}

func (a *countingAnalyzer) Ask(context.Context, string) (string, error) {
	a.calls.Add(1)
	if a.err != nil {
		return "", a.err
	}
	return a.reply, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPrompts(t *testing.T) *prompt.Builder {
	t.Helper()
	dir := t.TempDir()
	tplPath := filepath.Join(dir, "prompt.txt")
	cvPath := filepath.Join(dir, "cv.txt")
	if err := os.WriteFile(tplPath, []byte("CV: {{CV}}\nJob: {{JOB_DESCRIPTION}}"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := os.WriteFile(cvPath, []byte("ten years of Go"), 0o644); err != nil {
		t.Fatalf("write cv: %v", err)
	}
	b, err := prompt.NewBuilder(tplPath, cvPath)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b
}

func newTestProcessor(t *testing.T, st JobStore, fetcher Fetcher, analyzer *countingAnalyzer, keywords []string) *Processor {
	t.Helper()
	return NewProcessor(st, fetcher, analyzer, testPrompts(t), keywords, testLogger())
}

func TestProcessStoresParsedRecord(t *testing.T) {
	st := newFakeStore()
	analyzer := &countingAnalyzer{reply: analyzerReply}
	p := newTestProcessor(t, st, &fakeFetcher{text: "We are hiring a Go developer in Berlin."}, analyzer, nil)

	got := p.Process(context.Background(), model.JobURL{Title: "Go Developer", URL: "https://example.com/jobs/1"})
	if got != OutcomeSuccess {
		t.Fatalf("outcome = %q, want %q", got, OutcomeSuccess)
	}
	if n := analyzer.calls.Load(); n != 1 {
		t.Fatalf("analyzer calls = %d, want 1", n)
	}

	rec := st.get("https://example.com/jobs/1")
	if rec == nil {
		t.Fatal("record not stored")
	}
	if rec.CompanyName != "Acme" {
		t.Errorf("CompanyName = %q, want %q", rec.CompanyName, "Acme")
	}
	if rec.MatchScore == nil || *rec.MatchScore != 8 {
		t.Errorf("MatchScore = %v, want 8", rec.MatchScore)
	}
	if rec.Score != 8 {
		t.Errorf("Score = %d, want 8", rec.Score)
	}
	if rec.AIResponse != analyzerReply {
		t.Errorf("AIResponse not preserved")
	}
	if rec.Rejected {
		t.Error("Rejected = true for a matching job")
	}
}

func TestProcessScoreFallsBackToMatchScore(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  int
	}{
		{"matchScore only", "<<<RESULTS>>>\nmatchScore: 8\n<<<END>>>", 8},
		{"score wins over matchScore", "<<<RESULTS>>>\nscore: 6\nmatchScore: 9\n<<<END>>>", 6},
		{"both absent", "<<<RESULTS>>>\ncompanyName: Acme\n<<<END>>>", 0},
	}

	for _, c := range cases {
		st := newFakeStore()
		analyzer := &countingAnalyzer{reply: c.reply}
		p := newTestProcessor(t, st, &fakeFetcher{text: "Go developer role."}, analyzer, nil)

		got := p.Process(context.Background(), model.JobURL{URL: "https://example.com/jobs/score"})
		if got != OutcomeSuccess {
			t.Fatalf("%s: outcome = %q, want %q", c.name, got, OutcomeSuccess)
		}
		rec := st.get("https://example.com/jobs/score")
		if rec == nil {
			t.Fatalf("%s: record not stored", c.name)
		}
		if rec.Score != c.want {
			t.Errorf("%s: Score = %d, want %d", c.name, rec.Score, c.want)
		}
	}
}

func TestProcessSkipsKnownDuplicate(t *testing.T) {
	st := newFakeStore()
	st.records["https://example.com/jobs/1"] = &model.Record{URL: "https://example.com/jobs/1"}
	analyzer := &countingAnalyzer{reply: analyzerReply}
	fetcher := &fakeFetcher{err: errors.New("fetch must not run for a duplicate")}
	p := newTestProcessor(t, st, fetcher, analyzer, nil)

	got := p.Process(context.Background(), model.JobURL{URL: "https://example.com/jobs/1"})
	if got != OutcomeDuplicate {
		t.Fatalf("outcome = %q, want %q", got, OutcomeDuplicate)
	}
	if n := analyzer.calls.Load(); n != 0 {
		t.Fatalf("analyzer calls = %d, want 0", n)
	}
}

func TestProcessEmptyContent(t *testing.T) {
	st := newFakeStore()
	analyzer := &countingAnalyzer{reply: analyzerReply}
	p := newTestProcessor(t, st, &fakeFetcher{text: "   \n  "}, analyzer, nil)

	got := p.Process(context.Background(), model.JobURL{URL: "https://example.com/jobs/1"})
	if got != OutcomeEmpty {
		t.Fatalf("outcome = %q, want %q", got, OutcomeEmpty)
	}
	if st.count() != 0 {
		t.Fatalf("stored %d records for empty content, want 0", st.count())
	}
	if n := analyzer.calls.Load(); n != 0 {
		t.Fatalf("analyzer calls = %d, want 0", n)
	}
}

func TestProcessKeywordRejectSkipsAnalyzer(t *testing.T) {
	st := newFakeStore()
	analyzer := &countingAnalyzer{reply: analyzerReply}
	p := newTestProcessor(t, st, &fakeFetcher{text: "Senior accountant wanted."}, analyzer, []string{"golang", "kubernetes"})

	got := p.Process(context.Background(), model.JobURL{Title: "Accountant", URL: "https://example.com/jobs/2"})
	if got != OutcomeRejected {
		t.Fatalf("outcome = %q, want %q", got, OutcomeRejected)
	}
	if n := analyzer.calls.Load(); n != 0 {
		t.Fatalf("analyzer calls = %d, want 0", n)
	}

	rec := st.get("https://example.com/jobs/2")
	if rec == nil {
		t.Fatal("rejected record not stored")
	}
	if !rec.Rejected {
		t.Error("Rejected = false, want true")
	}
	if rec.Score != 0 {
		t.Errorf("Score = %d, want 0", rec.Score)
	}
}

func TestProcessKeywordMatchIsCaseInsensitive(t *testing.T) {
	st := newFakeStore()
	analyzer := &countingAnalyzer{reply: analyzerReply}
	p := newTestProcessor(t, st, &fakeFetcher{text: "We use GOLANG and Postgres."}, analyzer, []string{"golang"})

	got := p.Process(context.Background(), model.JobURL{URL: "https://example.com/jobs/3"})
	if got != OutcomeSuccess {
		t.Fatalf("outcome = %q, want %q", got, OutcomeSuccess)
	}
	if n := analyzer.calls.Load(); n != 1 {
		t.Fatalf("analyzer calls = %d, want 1", n)
	}
}

func TestProcessFetchError(t *testing.T) {
	st := newFakeStore()
	analyzer := &countingAnalyzer{reply: analyzerReply}
	p := newTestProcessor(t, st, &fakeFetcher{err: errors.New("navigation timeout")}, analyzer, nil)

	got := p.Process(context.Background(), model.JobURL{URL: "https://example.com/jobs/4"})
	if got != OutcomeError {
		t.Fatalf("outcome = %q, want %q", got, OutcomeError)
	}
	if st.count() != 0 {
		t.Fatalf("stored %d records after fetch error, want 0", st.count())
	}
}

func TestProcessAnalyzerError(t *testing.T) {
	st := newFakeStore()
	analyzer := &countingAnalyzer{err: errors.New("model unavailable")}
	p := newTestProcessor(t, st, &fakeFetcher{text: "Go developer role."}, analyzer, nil)

	got := p.Process(context.Background(), model.JobURL{URL: "https://example.com/jobs/5"})
	if got != OutcomeError {
		t.Fatalf("outcome = %q, want %q", got, OutcomeError)
	}
	if st.count() != 0 {
		t.Fatalf("stored %d records after analyzer error, want 0", st.count())
	}
}

func TestProcessRaceLoserIsDuplicate(t *testing.T) {
	st := newFakeStore()
	// Simulate losing the insert race: the duplicate check passes but a
	// sibling worker stores the URL before we do.
	st.records["https://example.com/jobs/6"] = &model.Record{URL: "https://example.com/jobs/6"}
	racingStore := &raceStore{fakeStore: st}
	analyzer := &countingAnalyzer{reply: analyzerReply}
	p := NewProcessor(racingStore, &fakeFetcher{text: "Go developer role."}, analyzer, testPrompts(t), nil, testLogger())

	got := p.Process(context.Background(), model.JobURL{URL: "https://example.com/jobs/6"})
	if got != OutcomeDuplicate {
		t.Fatalf("outcome = %q, want %q", got, OutcomeDuplicate)
	}
}

// raceStore reports every URL as new during the pre-check so the
// pipeline reaches the insert, where the underlying store still
// enforces uniqueness.
type raceStore struct {
	*fakeStore
}

func (r *raceStore) IsDuplicate(context.Context, string) (bool, error) {
	return false, nil
}

func TestProcessGarbageReplyStillStores(t *testing.T) {
	st := newFakeStore()
	analyzer := &countingAnalyzer{reply: "\x00\xffnot even close to key-value"}
	p := newTestProcessor(t, st, &fakeFetcher{text: "Go developer role."}, analyzer, nil)

	got := p.Process(context.Background(), model.JobURL{Title: "Go Developer", URL: "https://example.com/jobs/7"})
	if got != OutcomeSuccess {
		t.Fatalf("outcome = %q, want %q", got, OutcomeSuccess)
	}

	rec := st.get("https://example.com/jobs/7")
	if rec == nil {
		t.Fatal("record not stored")
	}
	if rec.MatchScore != nil {
		t.Errorf("MatchScore = %v, want nil for garbage reply", rec.MatchScore)
	}
	if rec.JobTitle != "Go Developer" {
		t.Errorf("JobTitle = %q, want fallback to the input title", rec.JobTitle)
	}
}
