package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"findoc-backend/internal/bootstrap"
	"findoc-backend/internal/shared/config"
	"findoc-backend/internal/shared/server/respond"
	"findoc-backend/internal/shared/telemetry"
)

type proxy interface {
	ProxyWithContext(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)
}

// lambdaServer builds the app on the first invocation and reuses it while the execution
// environment stays warm.
type lambdaServer struct {
	once  sync.Once
	build func() (proxy, error)
	proxy proxy
	err   error
}

func (s *lambdaServer) handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	s.once.Do(func() { s.proxy, s.err = s.build() })
	if s.err != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": s.err})
		return unavailable(), nil
	}
	return s.proxy.ProxyWithContext(ctx, req)
}

func unavailable() events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.ErrorResponse{Error: respond.ErrorBody{
		Code:    "bootstrap_failed",
		Message: "Service unavailable",
	}})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// lambdaConfig forces synchronous analysis when no durable queue is configured: the
// in-process queue dies with the invocation, so async jobs would never run.
func lambdaConfig(cfg config.Config) config.Config {
	if cfg.QueueType != "sqs" && cfg.AnalyzeMode != "sync" {
		telemetry.Warn("lambda.sync_fallback", map[string]any{"queue_type": cfg.QueueType})
		cfg.AnalyzeMode = "sync"
	}
	return cfg
}

func main() {
	srv := &lambdaServer{build: func() (proxy, error) {
		app, err := bootstrap.Build(context.Background(), lambdaConfig(config.Load()))
		if err != nil {
			return nil, err
		}
		return ginadapter.NewV2(app.Router), nil
	}}
	lambda.Start(srv.handle)
}
