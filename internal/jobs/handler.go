package jobs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"findoc-backend/internal/documents"
	"findoc-backend/internal/pipeline"
	"findoc-backend/internal/shared/server/middleware"
	"findoc-backend/internal/shared/server/respond"
)

const (
	ModeAsync = "async"
	ModeSync  = "sync"

	multipartOverhead = 1 << 20
	defaultUploadMax  = 20 << 20
)

// Uploads validates and stores an uploaded document.
type Uploads interface {
	Accept(ctx context.Context, fileName string, r io.Reader) (documents.Handle, error)
}

// Handler wires HTTP handlers to the jobs service.
type Handler struct {
	Svc            *Service
	Uploads        Uploads
	DefaultMode    string
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, uploads Uploads, defaultMode string, maxUploadBytes int64) *Handler {
	return &Handler{Svc: svc, Uploads: uploads, DefaultMode: defaultMode, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.analyze)
	rg.GET("/results/:taskID", h.result)
}

func (h *Handler) analyze(c *gin.Context) {
	maxBytes := h.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultUploadMax
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "Uploaded file is too large", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", []map[string]string{
			{"field": "file", "issue": documents.CodeMissingFile},
		})
		return
	}

	mode, ok := parseMode(c.DefaultPostForm("mode", c.Query("mode")), h.DefaultMode)
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "mode must be sync or async", []map[string]string{
			{"field": "mode", "issue": "invalid"},
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file could not be read", nil)
		return
	}
	defer file.Close()

	requestID := middleware.RequestIDFromContext(c)
	ctx := WithRequestID(c.Request.Context(), requestID)
	doc, err := h.Uploads.Accept(ctx, fileHeader.Filename, file)
	if err != nil {
		if ie, ok := documents.AsInputError(err); ok {
			status, code := http.StatusBadRequest, "validation_error"
			if ie.Code == documents.CodeTooLarge {
				status, code = http.StatusRequestEntityTooLarge, "payload_too_large"
			}
			respond.Error(c, status, code, ie.Message, []map[string]string{
				{"field": "file", "issue": ie.Code},
			})
			return
		}
		respond.Error(c, http.StatusInternalServerError, "storage_error", "failed to store document", nil)
		return
	}

	query := documents.EffectiveQuery(c.PostForm("query"))
	if mode == ModeSync {
		h.runSync(ctx, c, query, doc)
		return
	}

	job, err := h.Svc.Submit(ctx, query, doc)
	if err != nil {
		var transportErr *TransportError
		switch {
		case errors.As(err, &transportErr), errors.Is(err, ErrJobQueueNotConfigured):
			respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "analysis queue is unavailable, try again later", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		}
		return
	}

	middleware.SetTaskID(c, job.ID)
	respond.Accepted(c, gin.H{
		"task_id": job.ID,
		"status":  StatusPending,
	})
}

func (h *Handler) runSync(ctx context.Context, c *gin.Context, query string, doc documents.Handle) {
	output, err := h.Svc.RunSync(ctx, query, doc)
	if err != nil {
		message := "Error processing financial document: " + sanitizeError(err)
		if se, ok := pipeline.AsStageError(err); ok {
			details := gin.H{"stage": se.Stage, "kind": string(se.Kind)}
			if se.Kind == pipeline.KindInput {
				respond.Error(c, http.StatusUnprocessableEntity, "unprocessable_document", message, details)
				return
			}
			respond.Error(c, http.StatusInternalServerError, "analysis_failed", message, details)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "analysis_failed", message, nil)
		return
	}

	respond.OK(c, gin.H{
		"status":          "success",
		"query":           query,
		"analysis":        output,
		"file_processed":  doc.FileName,
		"file_size_bytes": doc.SizeBytes,
	})
}

func (h *Handler) result(c *gin.Context) {
	taskID := strings.TrimSpace(c.Param("taskID"))
	if taskID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "task id is required", nil)
		return
	}
	middleware.SetTaskID(c, taskID)

	job, err := h.Svc.Poll(c.Request.Context(), taskID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "task not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch task", nil)
		}
		return
	}

	respond.OK(c, PollView(job))
}

// PollView is the client-facing shape of a job. RUNNING is reported as PENDING with a state hint.
func PollView(job Job) gin.H {
	resp := gin.H{"task_id": job.ID}
	switch job.Status {
	case StatusSuccess:
		resp["status"] = StatusSuccess
		resp["result"] = job.Result
	case StatusFailure:
		resp["status"] = StatusFailure
		resp["result"] = job.ErrorMessage
		resp["error_code"] = job.ErrorCode
		if job.FailedStage != "" {
			resp["failed_stage"] = job.FailedStage
		}
	case StatusRunning:
		resp["status"] = StatusPending
		resp["state"] = StatusRunning
	default:
		resp["status"] = StatusPending
	}
	return resp
}

func parseMode(raw, fallback string) (string, bool) {
	mode := strings.ToLower(strings.TrimSpace(raw))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(fallback))
	}
	switch mode {
	case "", ModeAsync:
		return ModeAsync, true
	case ModeSync:
		return ModeSync, true
	default:
		return "", false
	}
}
