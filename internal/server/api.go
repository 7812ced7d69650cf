package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sevir/hueste/internal/confpatch"
	"github.com/sevir/hueste/internal/fsops"
	"github.com/sevir/hueste/internal/orchestrator"
	"github.com/sevir/hueste/internal/registry"
	"github.com/sevir/hueste/internal/runner"
	"github.com/sevir/hueste/pkg/models"
)

func (s *Server) newGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	{
		api.GET("/version", s.handleVersion)
		api.GET("/models", s.handleModels)

		api.POST("/runs", s.handleRunStart)
		api.POST("/runs/:id/cancel", s.handleRunCancel)
		api.POST("/login", s.handleLogin)
		api.GET("/tools/:tool/resolve", s.handleToolResolve)

		api.GET("/fs/file", s.handleFSRead)
		api.PUT("/fs/file", s.handleFSWrite)
		api.DELETE("/fs/file", s.handleFSRemove)
		api.GET("/fs/dir", s.handleFSReadDir)
		api.POST("/fs/dir/clear", s.handleFSClearDir)
		api.GET("/fs/untitled", s.handleFSUntitled)

		api.GET("/config/codex/path", s.handleCodexConfigPath)
		api.PUT("/config/codex", s.handleCodexConfigSet)
	}

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"active_runs": s.orchestrator.ActiveRuns(),
	})
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": s.version,
		"commit":  s.commit,
	})
}

func (s *Server) handleModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default_model": s.config.DefaultModel,
		"models":        s.config.Models,
	})
}

// handleRunStart launches an execution run. With Accept: text/event-stream
// (or ?stream=true) the response is a live SSE stream of `stream` events
// followed by one `complete` event. Otherwise the handler blocks until the
// run finishes and returns the completion as JSON — the legacy
// collect-and-return mode, subject to the optional run timeout.
func (s *Server) handleRunStart(c *gin.Context) {
	var req models.ExecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := s.orchestrator.BuildRun(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if wantsStream(c) {
		sink := &sseSink{c: c}
		execErr := s.orchestrator.Exec(c.Request.Context(), run, sink)
		if execErr != nil && !sink.started {
			// Failed before any event: spawn failure or duplicate id.
			writeExecError(c, execErr)
		}
		return
	}

	sink := &runner.CollectSink{}
	execErr := s.orchestrator.Exec(c.Request.Context(), run, sink)
	completion := sink.Completion()
	if completion == nil {
		writeExecError(c, execErr)
		return
	}
	c.JSON(http.StatusOK, completion)
}

func (s *Server) handleRunCancel(c *gin.Context) {
	id := c.Param("id")
	if err := s.orchestrator.Cancel(id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true, "run_id": id})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sink := &sseSink{c: c}
	loginErr := s.orchestrator.Login(c.Request.Context(), req.Tool, req.RunID, sink)
	if loginErr != nil && !sink.started {
		writeExecError(c, loginErr)
	}
}

func (s *Server) handleToolResolve(c *gin.Context) {
	tool := c.Param("tool")
	if !models.ValidTool(models.Tool(tool)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tool: " + tool})
		return
	}
	path, resolved := s.orchestrator.ResolveTool(tool)
	c.JSON(http.StatusOK, gin.H{
		"tool":     tool,
		"resolved": resolved,
		"path":     path,
	})
}

func writeExecError(c *gin.Context, err error) {
	if err == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "run failed"})
		return
	}
	if errors.Is(err, orchestrator.ErrDuplicateRun) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

func wantsStream(c *gin.Context) bool {
	if c.Query("stream") == "true" {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}

// sseSink forwards run events to the HTTP response as server-sent events.
// Stream is called from the run's aggregator goroutine and Complete from the
// executor goroutine strictly after every Stream call, so writes never
// overlap.
type sseSink struct {
	c       *gin.Context
	started bool
}

func (s *sseSink) writeHeader() {
	if s.started {
		return
	}
	s.started = true
	h := s.c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	s.c.Writer.WriteHeader(http.StatusOK)
}

func (s *sseSink) Stream(ev models.StreamEvent) {
	s.writeHeader()
	data, _ := json.Marshal(ev)
	fmt.Fprintf(s.c.Writer, "event: stream\ndata: %s\n\n", data)
	s.c.Writer.Flush()
}

func (s *sseSink) Complete(ev models.CompletionEvent) {
	s.writeHeader()
	data, _ := json.Marshal(ev)
	fmt.Fprintf(s.c.Writer, "event: complete\ndata: %s\n\n", data)
	s.c.Writer.Flush()
}

func (s *Server) handleFSRead(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}
	content, err := fsops.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path, "content": content})
}

func (s *Server) handleFSWrite(c *gin.Context) {
	var req struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}
	if err := fsops.WriteFile(req.Path, req.Content); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleFSRemove(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}
	if err := fsops.RemoveFile(path); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleFSReadDir(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}
	entries, err := fsops.ReadDir(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path, "entries": entries})
}

func (s *Server) handleFSClearDir(c *gin.Context) {
	var req struct {
		Path string `json:"path"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}
	if err := fsops.ClearDir(req.Path); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleFSUntitled(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"name": fsops.NewUntitledName()})
}

func (s *Server) handleCodexConfigPath(c *gin.Context) {
	path, err := confpatch.Path()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

func (s *Server) handleCodexConfigSet(c *gin.Context) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}
	if err := confpatch.Set(req.Key, req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
