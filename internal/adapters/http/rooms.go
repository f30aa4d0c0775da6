package http

import (
	"net/http"
	"strconv"

	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxHistory = 500

func (h *handlers) rooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Orch.Rooms.List())
}

func (h *handlers) messages(c *gin.Context) {
	room, err := domain.ParseRoomID(c.Param("room"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": err.Error()})
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "invalid limit"})
			return
		}
		limit = min(n, maxHistory)
	}

	msgs, err := h.deps.History.RecentMessages(c.Request.Context(), room, limit)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", string(room)).Msg("history")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "msg": "history unavailable"})
		return
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *handlers) ice(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.cfg.ICEServers})
}

func (h *handlers) metrics(c *gin.Context) {
	if h.deps.Orch.Metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, h.deps.Orch.Metrics.Snapshot())
}
