package domain

import "strings"

const MaxRoomIDLen = 64

type RoomID string

// ParseRoomID trims raw and rejects empty or oversized room ids.
func ParseRoomID(raw string) (RoomID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", Malformed("room", "empty room")
	}
	if len(raw) > MaxRoomIDLen {
		return "", Malformed("room", "room id too long")
	}
	return RoomID(raw), nil
}
