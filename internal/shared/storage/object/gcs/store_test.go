package gcs

import (
	"context"
	"testing"
)

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), "  ", "findoc"); err == nil {
		t.Fatalf("expected error for blank bucket")
	}
}
