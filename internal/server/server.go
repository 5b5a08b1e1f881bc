// Package server exposes the HTTP API: event ingestion, channel
// directory management, per-channel stats and manual report refresh.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/agorabot/agora/internal/core/activity"
	"github.com/agorabot/agora/internal/core/report"
)

// ChannelDirectory is the directory surface the API manages.
type ChannelDirectory interface {
	ListEntities(ctx context.Context, category string) ([]report.Entity, error)
	AddChannel(ctx context.Context, category string, entity report.Entity) error
	RemoveChannel(ctx context.Context, channelID int64) error
}

// Refresher triggers report regeneration on demand.
type Refresher interface {
	RefreshReport(ctx context.Context, kind string) error
	Kinds() []string
}

// Server wires the HTTP handlers to the activity engine.
type Server struct {
	store     activity.CounterStore
	agg       *activity.Aggregator
	dir       ChannelDirectory
	refresher Refresher
	log       zerolog.Logger
	engine    *gin.Engine
}

// New creates a Server and registers all routes.
func New(store activity.CounterStore, agg *activity.Aggregator, dir ChannelDirectory, refresher Refresher, log zerolog.Logger) *Server {
	s := &Server{
		store:     store,
		agg:       agg,
		dir:       dir,
		refresher: refresher,
		log:       log.With().Str("component", "server").Logger(),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(s.requestID(), s.requestLog(), gin.Recovery())

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")
	api.POST("/events", s.handleRecordEvent)
	api.GET("/channels", s.handleListChannels)
	api.POST("/channels", s.handleAddChannel)
	api.DELETE("/channels/:id", s.handleRemoveChannel)
	api.GET("/channels/:id/stats", s.handleChannelStats)
	api.DELETE("/channels/:id/stats", s.handleClearStats)
	api.POST("/reports/:kind/refresh", s.handleRefreshReport)

	s.engine = engine
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// requestID assigns each request a uuid, echoed in the response header.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// requestLog emits one structured log line per request.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.log.Info().
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
