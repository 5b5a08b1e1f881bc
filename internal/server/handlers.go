package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agorabot/agora/internal/core/report"
	"github.com/agorabot/agora/internal/metrics"
)

type recordEventRequest struct {
	ChannelID int64 `json:"channel_id" binding:"required"`
	EventID   int64 `json:"event_id" binding:"required"`
	Timestamp int64 `json:"timestamp"`
}

// handleRecordEvent ingests one activity event. Replays of the same
// event id are accepted and counted once.
func (s *Server) handleRecordEvent(c *gin.Context) {
	var req recordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel_id and event_id are required"})
		return
	}
	if req.Timestamp == 0 {
		req.Timestamp = time.Now().Unix()
	}

	if err := s.store.RecordEvent(c.Request.Context(), req.ChannelID, req.EventID, req.Timestamp); err != nil {
		metrics.EventsDropped.Inc()
		s.log.Error().
			Str("request_id", c.GetString("request_id")).
			Int64("channel_id", req.ChannelID).
			Err(err).
			Msg("event not recorded")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "activity store unavailable"})
		return
	}

	metrics.EventsRecorded.Inc()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) handleListChannels(c *gin.Context) {
	category := c.Query("category")
	if category == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category query parameter is required"})
		return
	}

	entities, err := s.dir.ListEntities(c.Request.Context(), category)
	if err != nil {
		s.log.Error().Str("category", category).Err(err).Msg("list channels failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "directory unavailable"})
		return
	}

	channels := make([]gin.H, 0, len(entities))
	for _, entity := range entities {
		channels = append(channels, gin.H{
			"id":         entity.ID,
			"name":       entity.Name,
			"created_at": entity.CreatedAt.Unix(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"category": category, "channels": channels})
}

type addChannelRequest struct {
	ID        int64  `json:"id" binding:"required"`
	Category  string `json:"category" binding:"required"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

func (s *Server) handleAddChannel(c *gin.Context) {
	var req addChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id and category are required"})
		return
	}
	if req.CreatedAt == 0 {
		req.CreatedAt = time.Now().Unix()
	}

	entity := report.Entity{
		ID:        req.ID,
		Name:      req.Name,
		CreatedAt: time.Unix(req.CreatedAt, 0).UTC(),
	}
	if err := s.dir.AddChannel(c.Request.Context(), req.Category, entity); err != nil {
		s.log.Error().Int64("channel_id", req.ID).Err(err).Msg("add channel failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "directory unavailable"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "tracked"})
}

func (s *Server) handleRemoveChannel(c *gin.Context) {
	id, ok := s.channelID(c)
	if !ok {
		return
	}

	if err := s.dir.RemoveChannel(c.Request.Context(), id); err != nil {
		s.log.Error().Int64("channel_id", id).Err(err).Msg("remove channel failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "directory unavailable"})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleChannelStats reports the current counters and score for one
// channel. Unknown channels report zeros, not an error.
func (s *Server) handleChannelStats(c *gin.Context) {
	id, ok := s.channelID(c)
	if !ok {
		return
	}

	m, err := s.agg.Metrics(c.Request.Context(), id)
	if err != nil {
		s.log.Error().Int64("channel_id", id).Err(err).Msg("stats computation failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "activity store unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel_id": id,
		"total":      m.Total,
		"recent":     m.Recent,
		"score":      m.Score,
	})
}

func (s *Server) handleClearStats(c *gin.Context) {
	id, ok := s.channelID(c)
	if !ok {
		return
	}

	if err := s.store.Clear(c.Request.Context(), id); err != nil {
		s.log.Error().Int64("channel_id", id).Err(err).Msg("clear stats failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "activity store unavailable"})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleRefreshReport triggers an immediate regeneration of one report.
// Failure detail stays in the logs; the client gets a generic error.
func (s *Server) handleRefreshReport(c *gin.Context) {
	kind := c.Param("kind")

	known := false
	for _, k := range s.refresher.Kinds() {
		if k == kind {
			known = true
			break
		}
	}
	if !known {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown report kind"})
		return
	}

	if err := s.refresher.RefreshReport(c.Request.Context(), kind); err != nil {
		s.log.Error().Str("kind", kind).Err(err).Msg("manual report refresh failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report refresh failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "refreshed", "kind": kind})
}

func (s *Server) channelID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return 0, false
	}
	return id, true
}
