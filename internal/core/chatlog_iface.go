package core

import (
	"context"

	"github.com/gibridargos/live-suhbat/internal/domain"
)

// ChatLog is the append-only sink for accepted chat messages.
type ChatLog interface {
	Append(ctx context.Context, msg domain.ChatMessage) error
}
