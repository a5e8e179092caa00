package jobs

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"findoc-backend/internal/agents"
	"findoc-backend/internal/cleanup"
	"findoc-backend/internal/documents"
	"findoc-backend/internal/llm"
	"findoc-backend/internal/llm/llmtest"
	"findoc-backend/internal/pipeline"
	"findoc-backend/internal/queue"
	"findoc-backend/internal/shared/server/middleware"
	"findoc-backend/internal/shared/storage/object"
	"findoc-backend/internal/shared/storage/object/local"
	"findoc-backend/internal/tools"
)

type staticExtractor string

func (e staticExtractor) Text(ctx context.Context, data []byte) (string, error) {
	return string(e), nil
}

type testEnv struct {
	svc    *Service
	repo   *MemoryRepo
	docs   *documents.Service
	store  *local.Store
	queue  *queue.Local
	calls  *atomic.Int32
	router *gin.Engine
}

// echoRole answers every model call with the calling agent's first system line.
func echoRole(calls *atomic.Int32) llm.Client {
	return llmtest.Func(func(ctx context.Context, req llm.Request) (llm.Response, error) {
		calls.Add(1)
		first, _, _ := strings.Cut(req.System, "\n")
		return llm.Response{Text: "Report from: " + first}, nil
	})
}

func newTestEnv(t *testing.T, documentText string) *testEnv {
	t.Helper()
	store := local.New(t.TempDir())
	docs := &documents.Service{
		Store:     store,
		Extractor: staticExtractor(documentText),
		Inspect:   func([]byte) (int, error) { return 3, nil },
		MaxBytes:  1 << 20,
	}

	registry, err := tools.NewRegistry(
		tools.DocumentReader{},
		tools.NewSearch("http://127.0.0.1:1/"),
		tools.NewInvestmentAnalysis(),
		tools.NewRiskAssessment(),
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	roster, err := agents.LoadRoster("", registry.Has)
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	p, err := pipeline.Financial(roster)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	calls := &atomic.Int32{}
	runner := &agents.Runner{LLM: echoRole(calls), Tools: registry, Limits: agents.NewLimiters(), Roster: roster}
	repo := NewMemoryRepo()
	q := queue.NewLocal(16)
	svc := &Service{
		Repo:       repo,
		Queue:      q,
		Pipeline:   &pipeline.Executor{Pipeline: p, Agents: runner, StageTimeout: 5 * time.Second, RunTimeout: 20 * time.Second},
		Documents:  docs,
		Cleanup:    &cleanup.Coordinator{Releaser: docs},
		WorkerID:   "test-worker",
		RetryDelay: time.Millisecond,
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RequestID())
	NewHandler(svc, docs, ModeAsync, 1<<20).RegisterRoutes(router.Group("/api/v1"))

	return &testEnv{svc: svc, repo: repo, docs: docs, store: store, queue: q, calls: calls, router: router}
}

func (e *testEnv) acceptPDF(t *testing.T) documents.Handle {
	t.Helper()
	h, err := e.docs.Accept(context.Background(), "annual-report.pdf", strings.NewReader("%PDF-1.7 test"))
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return h
}

func (e *testEnv) nextMessage(t *testing.T) queue.Message {
	t.Helper()
	select {
	case msg := <-e.queue.Messages():
		return msg
	case <-time.After(time.Second):
		t.Fatalf("no queued message")
		return queue.Message{}
	}
}

func (e *testEnv) documentExists(t *testing.T, h documents.Handle) bool {
	t.Helper()
	rc, err := e.store.Open(context.Background(), h.StorageKey)
	if errors.Is(err, object.ErrNotFound) {
		return false
	}
	if err != nil {
		t.Fatalf("open document: %v", err)
	}
	_ = rc.Close()
	return true
}

func (e *testEnv) jobCount() int {
	e.repo.mu.RLock()
	defer e.repo.mu.RUnlock()
	return len(e.repo.byID)
}

func uploadRequest(t *testing.T, fileName string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if fileName != "" {
		part, err := w.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}
