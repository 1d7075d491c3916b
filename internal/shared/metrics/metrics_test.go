package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	snap := h.Snapshot()
	if snap.count != 3 {
		t.Fatalf("expected count 3, got %d", snap.count)
	}
	if snap.counts[0] != 1 || snap.counts[1] != 1 {
		t.Fatalf("expected one observation per bucket, got %v", snap.counts)
	}

	var buf bytes.Buffer
	writeHistogram(&buf, "h", "test histogram", snap)

	for _, want := range []string{
		`h_bucket{le="10"} 1`,
		`h_bucket{le="100"} 2`,
		`h_bucket{le="+Inf"} 3`,
		`h_sum 555`,
		`h_count 3`,
	} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, buf.String())
		}
	}
}

func TestRenderIncludesStageCounters(t *testing.T) {
	IncStageStarted()
	IncStageCompleted()
	AddQueryOutcomes(2, 1)

	out := Render()
	for _, name := range []string{
		"query_results_started_total",
		"query_results_completed_total",
		"query_results_failed_total",
		"queries_matched_total",
		"queries_unmatched_total",
		"worker_jobs_deleted_unrecoverable_total",
		"query_results_duration_ms_count",
	} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in rendered metrics", name)
		}
	}
}
