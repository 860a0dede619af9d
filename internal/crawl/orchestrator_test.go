package crawl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"jobsift/internal/model"
)

func TestRunConcurrentSameURLStoresOnce(t *testing.T) {
	st := newFakeStore()
	racing := &raceStore{fakeStore: st}
	analyzer := &countingAnalyzer{reply: analyzerReply}
	p := NewProcessor(racing, &fakeFetcher{text: "Go developer role."}, analyzer, testPrompts(t), nil, testLogger())
	o := NewOrchestrator(p, 8, testLogger())

	jobs := make([]model.JobURL, 16)
	for i := range jobs {
		jobs[i] = model.JobURL{URL: "https://example.com/jobs/contested"}
	}

	summary := o.Run(context.Background(), jobs)

	if st.count() != 1 {
		t.Fatalf("stored %d records, want exactly 1", st.count())
	}
	if summary.Succeeded != 1 {
		t.Errorf("Succeeded = %d, want 1", summary.Succeeded)
	}
	if summary.Duplicates != 15 {
		t.Errorf("Duplicates = %d, want 15", summary.Duplicates)
	}
}

func TestRunBatchSurvivesFailures(t *testing.T) {
	st := newFakeStore()
	analyzer := &countingAnalyzer{reply: analyzerReply}
	fetcher := &selectiveFetcher{failURL: "https://example.com/jobs/3"}
	p := NewProcessor(st, fetcher, analyzer, testPrompts(t), nil, testLogger())
	o := NewOrchestrator(p, 2, testLogger())

	var jobs []model.JobURL
	for i := 1; i <= 5; i++ {
		jobs = append(jobs, model.JobURL{URL: fmt.Sprintf("https://example.com/jobs/%d", i)})
	}

	summary := o.Run(context.Background(), jobs)

	if summary.Total != 5 {
		t.Errorf("Total = %d, want 5", summary.Total)
	}
	if summary.Succeeded != 4 {
		t.Errorf("Succeeded = %d, want 4", summary.Succeeded)
	}
	if summary.Errors != 1 {
		t.Errorf("Errors = %d, want 1", summary.Errors)
	}
	if st.count() != 4 {
		t.Errorf("stored %d records, want 4", st.count())
	}
}

type selectiveFetcher struct {
	failURL string
}

func (f *selectiveFetcher) Fetch(_ context.Context, url string) (*model.FetchResult, error) {
	if url == f.failURL {
		return nil, fmt.Errorf("connection reset")
	}
	return &model.FetchResult{Text: "Go developer role at " + url}, nil
}

func TestRunEmptyBatch(t *testing.T) {
	st := newFakeStore()
	analyzer := &countingAnalyzer{reply: analyzerReply}
	p := newTestProcessor(t, st, &fakeFetcher{text: "irrelevant"}, analyzer, nil)
	o := NewOrchestrator(p, 4, testLogger())

	summary := o.Run(context.Background(), nil)
	if summary.Total != 0 {
		t.Fatalf("Total = %d, want 0", summary.Total)
	}
	if st.count() != 0 {
		t.Fatalf("stored %d records, want 0", st.count())
	}
}

func TestLoadJobURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.txt")
	content := "Go Developer,https://example.com/jobs/1\n" +
		"\n" +
		"Engineer, Backend,https://example.com/jobs/2\n" +
		"https://example.com/jobs/3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	jobs, err := LoadJobURLs(path)
	if err != nil {
		t.Fatalf("LoadJobURLs: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("len(jobs) = %d, want 3", len(jobs))
	}
	if jobs[0].Title != "Go Developer" || jobs[0].URL != "https://example.com/jobs/1" {
		t.Errorf("jobs[0] = %+v", jobs[0])
	}
	// A title containing commas splits at the last comma.
	if jobs[1].Title != "Engineer, Backend" || jobs[1].URL != "https://example.com/jobs/2" {
		t.Errorf("jobs[1] = %+v", jobs[1])
	}
	if jobs[2].Title != "" || jobs[2].URL != "https://example.com/jobs/3" {
		t.Errorf("jobs[2] = %+v", jobs[2])
	}
}

func TestLoadJobURLsMissingFile(t *testing.T) {
	if _, err := LoadJobURLs(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
