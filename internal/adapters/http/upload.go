package http

import (
	"errors"
	"net/http"

	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/gibridargos/live-suhbat/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func (h *handlers) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.deps.Uploads.MaxBytes()+1<<20)

	room, err := domain.ParseRoomID(c.PostForm("room"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "room is required"})
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": err.Error()})
		return
	}
	defer f.Close()

	blob, err := h.deps.Uploads.Save(c.Request.Context(), c.PostForm("user"), room, fh.Filename, f)
	switch {
	case errors.Is(err, upload.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"ok": false, "msg": err.Error()})
		return
	case errors.Is(err, upload.ErrInvalidFilename):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": err.Error()})
		return
	case err != nil:
		log.Error().Err(err).Str("module", "adapters.http").Msg("upload")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "msg": "upload failed"})
		return
	}

	if h.deps.Orch != nil && h.deps.Orch.Metrics != nil {
		h.deps.Orch.Metrics.IncUpload()
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"id":     blob.ID,
		"url":    blob.URL,
		"sha256": blob.SHA256,
		"size":   blob.Size,
	})
}
