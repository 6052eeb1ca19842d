// Package server exposes the knowledge-base REST contract over gin. It fronts
// any Source: the in-memory Fixture for development and tests, or the graph
// store through driver.GraphSource.
package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/agenthands/nutrigraph/internal/core/catalog"
	"github.com/agenthands/nutrigraph/internal/core/common"
	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/agenthands/nutrigraph/internal/core/relations"
	"github.com/agenthands/nutrigraph/internal/core/search"
	"github.com/agenthands/nutrigraph/internal/platform/apierr"
	"github.com/agenthands/nutrigraph/internal/platform/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source is the full backend contract.
type Source interface {
	catalog.Source
	relations.Source
	search.Backend
}

type Options struct {
	Logger      *logger.Logger
	CORSOrigins []string
	// Gatherer, when set, is served on /metrics.
	Gatherer prometheus.Gatherer
}

type Server struct {
	Source Source
	log    *logger.Logger
	opts   Options
}

func NewServer(src Source, opts Options) *Server {
	return &Server{
		Source: src,
		log:    logger.OrNop(opts.Logger).With("component", "http"),
		opts:   opts,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.cors())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if s.opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.GET("/entities/:collection", s.ListEntities)
	api.GET("/relations/:collection", s.ListRelations)
	api.POST("/:collection/:id/relations", s.CreateRelation)
	api.DELETE("/:collection/:id/relations/:type/:target", s.DeleteRelation)
	api.POST("/semantic-search", s.SemanticSearch)
	api.GET("/search-suggestions", s.SearchSuggestions)
	api.GET("/search-stats", s.SearchStats)

	return r
}

func (s *Server) cors() gin.HandlerFunc {
	origins := s.opts.CORSOrigins
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if id := c.GetHeader("X-Request-ID"); id != "" {
			fields = append(fields, "request_id", id)
		}
		switch {
		case status >= 500:
			s.log.Error("HTTP request", fields...)
		case status >= 400:
			s.log.Warn("HTTP request", fields...)
		default:
			s.log.Debug("HTTP request", fields...)
		}
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if k, ok := apierr.KindOf(err); ok {
		switch k {
		case apierr.Validation:
			status = http.StatusBadRequest
		case apierr.Backend:
			status = http.StatusConflict
		case apierr.Transport:
			status = http.StatusBadGateway
		}
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

func (s *Server) kind(c *gin.Context) (model.EntityKind, bool) {
	raw := c.Param("collection")
	k, ok := model.ParseKind(raw)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Collection inconnue: " + raw})
		return model.KindUnknown, false
	}
	return k, true
}

func (s *Server) ListEntities(c *gin.Context) {
	k, ok := s.kind(c)
	if !ok {
		return
	}
	recs, err := s.Source.ListEntities(c.Request.Context(), k)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// ListRelations answers in the legacy shape the web client reads:
// {<kind>Id, typeRelation, cibleId, cibleNom, ...attributes}.
func (s *Server) ListRelations(c *gin.Context) {
	k, ok := s.kind(c)
	if !ok {
		return
	}
	recs, err := s.Source.ListRelations(c.Request.Context(), k)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(recs))
	for _, r := range recs {
		row := gin.H{
			k.LegacyIDField(): r.SubjectID,
			"typeRelation":    r.RelationType.String(),
			"cibleId":         r.ObjectID,
		}
		if r.ObjectName != "" {
			row["cibleNom"] = r.ObjectName
		}
		for key, v := range r.Attributes {
			row[key] = v
		}
		out = append(out, row)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) CreateRelation(c *gin.Context) {
	k, ok := s.kind(c)
	if !ok {
		return
	}
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	typeCode, _ := common.ExtractScalar(body["typeRelation"])
	t, ok := model.ParseRelationType(typeCode)
	if !ok {
		s.fail(c, apierr.Validationf("create_relation", "Type de relation inconnu: %s", typeCode))
		return
	}
	target, _ := common.ExtractScalar(body["cibleId"])
	if strings.TrimSpace(target) == "" {
		s.fail(c, apierr.Validationf("create_relation", "cibleId requis"))
		return
	}
	attrs := map[string]string{}
	for key, v := range body {
		if key == "typeRelation" || key == "cibleId" {
			continue
		}
		if sv, ok := common.ExtractScalar(v); ok && sv != "" {
			attrs[key] = sv
		}
	}

	if err := s.Source.CreateRelation(c.Request.Context(), k, c.Param("id"), t, target, attrs); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

func (s *Server) DeleteRelation(c *gin.Context) {
	k, ok := s.kind(c)
	if !ok {
		return
	}
	t, ok := model.ParseRelationType(c.Param("type"))
	if !ok {
		s.fail(c, apierr.Validationf("delete_relation", "Type de relation inconnu: %s", c.Param("type")))
		return
	}
	if err := s.Source.DeleteRelation(c.Request.Context(), k, c.Param("id"), t, c.Param("target")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type SearchRequest struct {
	Query string `json:"query"`
}

func (s *Server) SemanticSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Requête vide"})
		return
	}

	resp, err := s.Source.SemanticSearch(c.Request.Context(), req.Query)
	if err != nil {
		s.fail(c, err)
		return
	}
	if resp == nil {
		s.fail(c, errors.New("empty search response"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"results":          resp.Results,
		"generated_sparql": resp.GeneratedSPARQL,
		"original_query":   req.Query,
		"count":            len(resp.Results),
		"interpretation":   resp.Interpretation,
	})
}

func (s *Server) SearchSuggestions(c *gin.Context) {
	list, err := s.Source.SearchSuggestions(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if list == nil {
		list = []string{}
	}
	c.JSON(http.StatusOK, list)
}

// SearchStats answers with a flat {label: count, "total": n} object.
func (s *Server) SearchStats(c *gin.Context) {
	stats, err := s.Source.SearchStats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	out := gin.H{"total": stats.TotalEntities}
	for label, n := range stats.ByKind {
		out[label] = n
	}
	c.JSON(http.StatusOK, out)
}
