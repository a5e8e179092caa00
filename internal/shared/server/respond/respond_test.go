package respond

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestErrorWritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/x", func(c *gin.Context) {
		Error(c, http.StatusNotFound, "not_found", "task not found", nil)
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "not_found" || body.Error.Message != "task not found" || body.Error.Details != nil {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestErrorKeepsDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/x", func(c *gin.Context) {
		Error(c, http.StatusTooManyRequests, "rate_limited", "slow down", map[string]any{"retry_after_ms": 1500})
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/x", nil))

	var body struct {
		Error struct {
			Details map[string]float64 `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Details["retry_after_ms"] != 1500 {
		t.Fatalf("expected details to be kept, got %+v", body.Error.Details)
	}
}

func TestAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/x", func(c *gin.Context) { Accepted(c, gin.H{"task_id": "t1"}) })

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/x", nil))

	if resp.Code != http.StatusAccepted || resp.Body.String() != `{"task_id":"t1"}` {
		t.Fatalf("unexpected response %d %s", resp.Code, resp.Body.String())
	}
}
