package http

import (
	"errors"
	"net/http"

	"github.com/gibridargos/live-suhbat/internal/auth"
	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *handlers) login(c *gin.Context) {
	if !h.deps.LoginLimit.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"ok": false, "msg": "too many attempts"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "missing fields"})
		return
	}

	account, created, err := h.deps.Auth.Authenticate(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrMissingCredentials), errors.Is(err, domain.ErrUsernameTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": err.Error()})
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		log.Warn().Str("module", "adapters.http").Str("user", req.Username).Str("ip", c.ClientIP()).Msg("login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "msg": err.Error()})
		return
	case err != nil:
		log.Error().Err(err).Str("module", "adapters.http").Msg("login")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "msg": "internal error"})
		return
	}

	sess := sessions.Default(c)
	sess.Set(sessionUserKey, account.Username)
	if err := sess.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
	}
	if h.deps.Orch != nil && h.deps.Orch.Metrics != nil {
		h.deps.Orch.Metrics.IncLogin()
	}
	log.Info().Str("module", "adapters.http").Str("user", account.Username).Bool("created", created).Msg("login")
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": account})
}
