// Package server exposes the studio service over HTTP. The API mirrors
// the service facade one to one; all graph mutation still flows through
// the session and version layers underneath.
package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/goliatone/go-errors"

	studio "github.com/goliatone/go-agent-studio"
	"github.com/goliatone/go-agent-studio/catalog"
	"github.com/goliatone/go-agent-studio/graph"
	"github.com/goliatone/go-agent-studio/session"
	"github.com/goliatone/go-agent-studio/store"
	"github.com/goliatone/go-agent-studio/version"
)

// Server wraps a gin engine around the studio service.
type Server struct {
	svc    *studio.Service
	engine *gin.Engine
	logger studio.Logger
}

// Option customizes the server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger studio.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds the HTTP server and registers all routes.
func New(svc *studio.Service, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		svc:    svc,
		engine: gin.New(),
		logger: studio.NewFmtLogger(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

// Handler returns the http.Handler for mounting or testing.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on the given address until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("http server listening on %s", addr)
	return s.engine.Run(addr)
}

func (s *Server) routes() {
	api := s.engine.Group("/api")

	api.POST("/compile", s.compile)
	api.POST("/validate", s.validate)
	api.POST("/convert/visual", s.convertVisual)
	api.POST("/convert/execution", s.convertExecution)
	api.POST("/layout", s.layout)

	api.GET("/graphs", s.listGraphs)
	api.POST("/graphs", s.importGraph)
	api.GET("/graphs/:id", s.getGraph)
	api.DELETE("/graphs/:id", s.deleteGraph)
	api.GET("/graphs/:id/versions", s.listVersions)

	api.GET("/schemas", s.listSchemas)
	api.POST("/schemas", s.saveSchema)
	api.GET("/triggers", s.listTriggers)
	api.POST("/triggers", s.saveTrigger)
}

func (s *Server) compile(c *gin.Context) {
	var doc graph.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := doc.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc.Nodes = graph.Layout(doc.Nodes)
	c.JSON(http.StatusOK, s.svc.CompileDocument(&doc))
}

func (s *Server) validate(c *gin.Context) {
	var req struct {
		Source string `json:"source"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.svc.ValidateSource(req.Source))
}

func (s *Server) convertVisual(c *gin.Context) {
	var req struct {
		Execution  []graph.ExecutionNode `json:"execution"`
		EntryPoint string                `json:"entry_point"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.svc.ConvertToVisual(req.Execution, req.EntryPoint))
}

func (s *Server) convertExecution(c *gin.Context) {
	var req struct {
		Nodes []graph.Node `json:"nodes"`
		Edges []graph.Edge `json:"edges"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"execution": s.svc.ConvertToExecution(req.Nodes, req.Edges)})
}

func (s *Server) layout(c *gin.Context) {
	var req struct {
		Nodes []graph.Node `json:"nodes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": graph.Layout(req.Nodes)})
}

func (s *Server) listGraphs(c *gin.Context) {
	filter := store.Filter{
		GraphType: graph.GraphType(c.Query("type")),
		Channel:   graph.Channel(c.Query("channel")),
		Status:    graph.GraphStatus(c.Query("status")),
	}
	summaries, err := s.svc.ListGraphs(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"graphs": summaries})
}

func (s *Server) importGraph(c *gin.Context) {
	var doc graph.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := doc.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc.Nodes = graph.Layout(doc.Nodes)
	res, err := s.svc.ImportDocument(c.Request.Context(), &doc)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) getGraph(c *gin.Context) {
	rec, err := s.svc.GetGraph(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) deleteGraph(c *gin.Context) {
	if err := s.svc.DeleteGraph(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listVersions(c *gin.Context) {
	versions, err := s.svc.ListVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

func (s *Server) listSchemas(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"schemas": s.svc.Catalog().ListSchemas()})
}

func (s *Server) saveSchema(c *gin.Context) {
	var schema graph.StateSchema
	if err := c.ShouldBindJSON(&schema); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	saved, err := s.svc.Catalog().SaveSchema(schema)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (s *Server) listTriggers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"triggers": s.svc.Catalog().ListTriggers()})
}

func (s *Server) saveTrigger(c *gin.Context) {
	var trig graph.TriggerDefinition
	if err := c.ShouldBindJSON(&trig); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	saved, err := s.svc.Catalog().SaveTrigger(trig)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

var errStatus = map[string]int{
	session.ErrCodeTabNotFound:      http.StatusNotFound,
	catalog.ErrCodeNotFound:         http.StatusNotFound,
	catalog.ErrCodeSchemaInvalid:    http.StatusBadRequest,
	catalog.ErrCodeTriggerInvalid:   http.StatusBadRequest,
	version.ErrCodeInvalidVersion:   http.StatusBadRequest,
	version.ErrCodeInvalidGraph:     http.StatusUnprocessableEntity,
	session.ErrCodeTabDirty:         http.StatusConflict,
	session.ErrCodeSaveInFlight:     http.StatusConflict,
	session.ErrCodeDeployInFlight:   http.StatusConflict,
	session.ErrCodeReadonlyNode:     http.StatusConflict,
	version.ErrCodeDeployDirty:      http.StatusConflict,
	version.ErrCodeDeployDraft:      http.StatusConflict,
	version.ErrCodeCanonicalChanged: http.StatusConflict,
}

// fail maps service errors to HTTP statuses by error code. Store
// not-found sentinels become 404; anything unmapped is a 500.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrGraphNotFound) || errors.Is(err, store.ErrVersionNotFound) {
		status = http.StatusNotFound
	} else {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			if mapped, ok := errStatus[appErr.TextCode]; ok {
				status = mapped
			}
		}
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
