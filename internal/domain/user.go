// Package domain contains entities and error kinds without transport logic.
package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	MaxUsernameLen = 36
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type UserID string

// User is the display identity of a live session. The ID is the session id,
// the Username is whatever the client asked to be shown as; it is not unique.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
}

// NewUser validates the display name and binds it to id.
func NewUser(id UserID, username string) (*User, error) {
	u := &User{ID: id}
	if err := u.SetUsername(username); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) SetUsername(username string) error {
	username = strings.TrimSpace(username)
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Username = username
	return nil
}

// Account is a persisted login record. It never carries the password hash.
type Account struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}
