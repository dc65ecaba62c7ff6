package server

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"voxbridge/internal/history"
	"voxbridge/internal/pipeline"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type historyBody struct {
	Success bool            `json:"success"`
	Items   []history.Entry `json:"items"`
}

func (s *Server) health(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) record(c *gin.Context) {
	// catch-all param: "/3" for /record/3, "/" for /record/
	raw := strings.TrimSuffix(strings.TrimPrefix(c.Param("duration"), "/"), "/")
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		writeJSON(c, http.StatusOK, pipeline.Failure(fmt.Errorf("invalid duration: %q", raw)))
		return
	}

	// the recording is not abandoned when the client goes away
	ctx := context.WithoutCancel(c.Request.Context())
	res := s.deps.Pipeline.Run(ctx, seconds, nil)
	writeJSON(c, http.StatusOK, res)
}

func (s *Server) history(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(c, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid limit: %q", raw)})
			return
		}
		limit = min(max(n, 1), maxHistoryLimit)
	}

	items, err := s.deps.History.List(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		writeJSON(c, http.StatusInternalServerError, errorBody{Error: "history unavailable"})
		return
	}
	writeJSON(c, http.StatusOK, historyBody{Success: true, Items: items})
}

func (s *Server) notFound(c *gin.Context) {
	writeJSON(c, http.StatusNotFound, errorBody{Error: "not found"})
}

// writeJSON sends v with an explicit Content-Length. A failed write means the
// client disconnected; it is logged and otherwise ignored.
func writeJSON(c *gin.Context, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error("Failed to encode response", "err", err)
		status = http.StatusInternalServerError
		body = []byte(`{"success":false,"error":"internal error"}`)
	}

	c.Header("Content-Type", "application/json; charset=utf-8")
	c.Header("Content-Length", strconv.Itoa(len(body)))
	c.Status(status)
	if _, err := c.Writer.Write(body); err != nil {
		log.Debug("Client disconnected before response", "path", c.Request.URL.Path, "err", err)
	}
}
