// Package upload persists media blobs sent by clients and hands back a
// reference that can be served from /uploads.
package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrInvalidFilename = errors.New("invalid filename")
)

// MetaStore records blob metadata.
type MetaStore interface {
	SaveUpload(ctx context.Context, blob domain.StoredBlob) error
}

type Store struct {
	dir       string
	maxBytes  int64
	meta      MetaStore
	urlPrefix string
}

func NewStore(dir string, maxBytes int64, meta MetaStore) *Store {
	return &Store{dir: dir, maxBytes: maxBytes, meta: meta, urlPrefix: "/uploads"}
}

func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save writes r under <dir>/<room>/<uuid>-<filename> and records it.
func (s *Store) Save(ctx context.Context, user string, room domain.RoomID, filename string, r io.Reader) (domain.StoredBlob, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return domain.StoredBlob{}, ErrInvalidFilename
	}
	if strings.TrimSpace(user) == "" {
		user = "anonymous"
	}

	id := uuid.NewString()
	roomDir := sanitizePathComponent(string(room))
	stored := fmt.Sprintf("%s-%s", id, sanitizePathComponent(name))
	dir := filepath.Join(s.dir, roomDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.StoredBlob{}, fmt.Errorf("create upload directory: %w", err)
	}
	fullPath := filepath.Join(dir, stored)

	dst, err := os.Create(fullPath)
	if err != nil {
		return domain.StoredBlob{}, fmt.Errorf("create file: %w", err)
	}
	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(dst, hasher), io.LimitReader(r, s.maxBytes+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(fullPath)
		return domain.StoredBlob{}, fmt.Errorf("save file: %w", err)
	}
	if written > s.maxBytes {
		_ = os.Remove(fullPath)
		return domain.StoredBlob{}, ErrTooLarge
	}

	blob := domain.StoredBlob{
		ID:         id,
		Room:       room,
		User:       user,
		Filename:   name,
		Size:       written,
		SHA256:     hex.EncodeToString(hasher.Sum(nil)),
		Path:       filepath.Join(roomDir, stored),
		URL:        s.urlPrefix + "/" + url.PathEscape(roomDir) + "/" + url.PathEscape(stored),
		UploadedAt: time.Now().UTC(),
	}
	if s.meta != nil {
		if err := s.meta.SaveUpload(ctx, blob); err != nil {
			_ = os.Remove(fullPath)
			return domain.StoredBlob{}, err
		}
	}
	log.Info().Str("module", "upload").Str("room", string(room)).Str("user", user).Int64("size", written).Str("id", id).Msg("stored blob")
	return blob, nil
}

// sanitizePathComponent removes dangerous characters from path components
func sanitizePathComponent(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == ".." {
		return "unnamed"
	}
	return s
}
