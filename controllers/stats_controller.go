package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/askboard/store"
	"github.com/cppla/askboard/utils"
)

// ClientCounter reports how many live subscribers are connected.
type ClientCounter interface {
	Count() int
}

// StatsController provides board statistics.
type StatsController struct {
	store   store.Store
	clients ClientCounter
	backend store.Backend
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(s store.Store, clients ClientCounter, backend store.Backend) *StatsController {
	return &StatsController{store: s, clients: clients, backend: backend}
}

// GetStats returns aggregate counters plus the number of connected clients.
func (s *StatsController) GetStats(ctx *gin.Context) {
	stats, err := s.store.Stats(ctx.Request.Context())
	if err != nil {
		utils.Logger.Error("failed to compute stats", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to compute stats", "")
		return
	}

	connected := 0
	if s.clients != nil {
		connected = s.clients.Count()
	}
	utils.Success(ctx, gin.H{
		"post_count":        stats.Posts,
		"reply_count":       stats.Replies,
		"answered_count":    stats.AnsweredPosts,
		"connected_clients": connected,
		"backend":           s.backend,
	})
}
