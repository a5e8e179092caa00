package health

import (
	"context"
	"errors"
	"testing"
)

func TestReadyAggregatesChecks(t *testing.T) {
	svc := NewService()
	svc.Register("database", func(ctx context.Context) error { return nil })

	report := svc.Ready(context.Background())
	if !report.OK || report.Checks["database"] != "ok" {
		t.Fatalf("expected healthy report, got %+v", report)
	}

	svc.Register("queue", func(ctx context.Context) error { return errors.New("queue not configured") })
	report = svc.Ready(context.Background())
	if report.OK {
		t.Fatalf("expected unhealthy report")
	}
	if report.Checks["queue"] != "queue not configured" || report.Checks["database"] != "ok" {
		t.Fatalf("unexpected checks %+v", report.Checks)
	}
}

func TestStatusIsAlwaysOK(t *testing.T) {
	if !NewService().Status()["ok"] {
		t.Fatalf("expected ok")
	}
}
