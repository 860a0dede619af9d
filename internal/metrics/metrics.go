package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for the crawl pipeline.
// This is intentionally minimal and in-memory only.

var (
	mu sync.RWMutex

	jobOutcomesTotal = make(map[string]int64)
	fetchesTotal     = make(map[string]int64)
	aiCallsTotal     = make(map[string]int64)
	aiLatencyMsSum   int64
	aiLatencyMsCount int64
	loginsTotal      int64
	retentionDeletes = make(map[string]int64)
	httpRequests     = make(map[reqKey]int64)
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

// RecordJobOutcome increments the per-outcome job counter
// (success, duplicate, empty, rejected, error).
func RecordJobOutcome(outcome string) {
	mu.Lock()
	defer mu.Unlock()
	jobOutcomesTotal[outcome]++
}

// RecordFetch increments the fetch counter for a result class
// (ok, logged_out, error).
func RecordFetch(result string) {
	mu.Lock()
	defer mu.Unlock()
	fetchesTotal[result]++
}

// RecordAICall increments AI call counters and accumulates latency.
func RecordAICall(success bool, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	s := "false"
	if success {
		s = "true"
	}
	aiCallsTotal[s]++
	aiLatencyMsSum += latencyMs
	aiLatencyMsCount++
}

// RecordLogin increments the re-authentication counter.
func RecordLogin() {
	mu.Lock()
	defer mu.Unlock()
	loginsTotal++
}

// RecordRetention accumulates rows deleted by TTL cleanup, keyed by
// table kind (rejected_jobs, crawl_runs).
func RecordRetention(kind string, n int64) {
	mu.Lock()
	defer mu.Unlock()
	retentionDeletes[kind] += n
}

// RecordRequest increments the HTTP request counter for the review API.
func RecordRequest(method, path string, status int) {
	mu.Lock()
	defer mu.Unlock()
	httpRequests[reqKey{Method: method, Path: path, Status: status}]++
}

// Export renders all counters in Prometheus text exposition format.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# TYPE jobsift_job_outcomes_total counter\n")
	for _, k := range sortedKeys(jobOutcomesTotal) {
		fmt.Fprintf(&b, "jobsift_job_outcomes_total{outcome=%q} %d\n", k, jobOutcomesTotal[k])
	}

	b.WriteString("# TYPE jobsift_fetches_total counter\n")
	for _, k := range sortedKeys(fetchesTotal) {
		fmt.Fprintf(&b, "jobsift_fetches_total{result=%q} %d\n", k, fetchesTotal[k])
	}

	b.WriteString("# TYPE jobsift_ai_calls_total counter\n")
	for _, k := range sortedKeys(aiCallsTotal) {
		fmt.Fprintf(&b, "jobsift_ai_calls_total{success=%q} %d\n", k, aiCallsTotal[k])
	}

	b.WriteString("# TYPE jobsift_ai_latency_ms summary\n")
	fmt.Fprintf(&b, "jobsift_ai_latency_ms_sum %d\n", aiLatencyMsSum)
	fmt.Fprintf(&b, "jobsift_ai_latency_ms_count %d\n", aiLatencyMsCount)

	b.WriteString("# TYPE jobsift_logins_total counter\n")
	fmt.Fprintf(&b, "jobsift_logins_total %d\n", loginsTotal)

	b.WriteString("# TYPE jobsift_retention_deleted_total counter\n")
	for _, k := range sortedKeys(retentionDeletes) {
		fmt.Fprintf(&b, "jobsift_retention_deleted_total{kind=%q} %d\n", k, retentionDeletes[k])
	}

	b.WriteString("# TYPE jobsift_http_requests_total counter\n")
	reqKeys := make([]reqKey, 0, len(httpRequests))
	for k := range httpRequests {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})
	for _, k := range reqKeys {
		fmt.Fprintf(&b, "jobsift_http_requests_total{method=%q,path=%q,status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, httpRequests[k])
	}

	return b.String()
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
