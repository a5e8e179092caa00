package metrics

import (
	"strings"
	"testing"
)

func TestHistogramBucketsAreCumulativeOnce(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	var b strings.Builder
	snap := h.Snapshot()
	var cumulative uint64
	for i := range snap.buckets {
		cumulative += snap.counts[i]
		b.WriteString(formatFloat(snap.buckets[i]))
		b.WriteString("=")
		b.WriteString(formatFloat(float64(cumulative)))
		b.WriteString(";")
	}
	if got := b.String(); got != "10=1;100=2;" {
		t.Fatalf("unexpected cumulative buckets %q", got)
	}
	if snap.count != 3 {
		t.Fatalf("expected count 3, got %d", snap.count)
	}
}

func TestRenderIncludesStageLabels(t *testing.T) {
	ObserveStage("verification", "ok", 12)
	ObserveStage("verification", "timeout", 5000)

	out := Render()
	if !strings.Contains(out, `pipeline_stage_total{stage="verification",outcome="ok"}`) {
		t.Fatalf("missing ok stage series:\n%s", out)
	}
	if !strings.Contains(out, `pipeline_stage_total{stage="verification",outcome="timeout"}`) {
		t.Fatalf("missing timeout stage series:\n%s", out)
	}
	if !strings.Contains(out, "# TYPE job_duration_ms histogram") {
		t.Fatalf("missing job histogram:\n%s", out)
	}
}
