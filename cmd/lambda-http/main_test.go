package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"findoc-backend/internal/shared/config"
)

type stubProxy struct{ calls int }

func (p *stubProxy) ProxyWithContext(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	p.calls++
	return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusOK}, nil
}

func TestLambdaServerBuildsOnce(t *testing.T) {
	builds := 0
	p := &stubProxy{}
	srv := &lambdaServer{build: func() (proxy, error) {
		builds++
		return p, nil
	}}

	for i := 0; i < 3; i++ {
		resp, err := srv.handle(context.Background(), events.APIGatewayV2HTTPRequest{})
		if err != nil || resp.StatusCode != http.StatusOK {
			t.Fatalf("unexpected response %d %v", resp.StatusCode, err)
		}
	}
	if builds != 1 || p.calls != 3 {
		t.Fatalf("expected one build and three proxied calls, got %d/%d", builds, p.calls)
	}
}

func TestLambdaServerBootstrapFailure(t *testing.T) {
	srv := &lambdaServer{build: func() (proxy, error) { return nil, errors.New("no database") }}

	resp, err := srv.handle(context.Background(), events.APIGatewayV2HTTPRequest{})
	if err != nil {
		t.Fatalf("expected envelope instead of invocation error, got %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Body, `"code":"bootstrap_failed"`) {
		t.Fatalf("unexpected body %s", resp.Body)
	}
}

func TestLambdaConfigFallsBackToSync(t *testing.T) {
	if got := lambdaConfig(config.Config{QueueType: "local", AnalyzeMode: "async"}); got.AnalyzeMode != "sync" {
		t.Fatalf("expected sync fallback, got %q", got.AnalyzeMode)
	}
	if got := lambdaConfig(config.Config{QueueType: "sqs", AnalyzeMode: "async"}); got.AnalyzeMode != "async" {
		t.Fatalf("expected async with sqs, got %q", got.AnalyzeMode)
	}
}
