package domain

import "time"

// StoredBlob references an uploaded media file.
type StoredBlob struct {
	ID         string    `json:"id"`
	Room       RoomID    `json:"room"`
	User       string    `json:"user"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	SHA256     string    `json:"sha256"`
	Path       string    `json:"-"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadedAt"`
}
