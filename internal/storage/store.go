package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gibridargos/live-suhbat/internal/domain"
	sqlite "modernc.org/sqlite"
)

const (
	sqliteConstraintCode = 19
	defaultBusyTimeout   = 5000
)

// Store wraps the SQLite handle. It backs the login boundary, the chat log
// and upload metadata.
type Store struct {
	db *sql.DB
}

// User represents a row in the users table.
type User struct {
	ID           int64
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

func (u *User) Account() domain.Account {
	return domain.Account{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

// ErrUserExists is returned when attempting to insert a duplicate username.
var ErrUserExists = errors.New("user already exists")

// NewStore opens the SQLite database at path. Call Close when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "data/live-suhbat.db"
	}
	if isPlainPath(path) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isPlainPath(path string) bool {
	return !strings.HasPrefix(path, "sqlite://") && !strings.HasPrefix(path, "file:") && !strings.HasPrefix(path, ":memory:")
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d&_pragma=foreign_keys=ON", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) (err error) {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password_hash BLOB NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room TEXT NOT NULL,
			user TEXT NOT NULL,
			text TEXT NOT NULL,
			sent_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS messages_room_id ON messages(room, id);`,
		`CREATE TABLE IF NOT EXISTS uploads (
			id TEXT PRIMARY KEY,
			room TEXT NOT NULL,
			user TEXT NOT NULL,
			filename TEXT NOT NULL,
			size INTEGER NOT NULL,
			sha256 TEXT NOT NULL,
			path TEXT NOT NULL,
			uploaded_at DATETIME NOT NULL
		);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return tx.Commit()
}

// CreateUser inserts a new user. ErrUserExists is returned on conflicts.
func (s *Store) CreateUser(ctx context.Context, username string, passwordHash []byte) (*User, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `INSERT INTO users(username, password_hash, created_at) VALUES(?, ?, ?)`, username, passwordHash, now)
	if err != nil {
		if isConstraintError(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &User{ID: id, Username: username, PasswordHash: passwordHash, CreatedAt: now}, nil
}

// GetUserByUsername fetches a user by username. A missing user is (nil, nil).
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
	var user User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Append stores an accepted chat message; it satisfies core.ChatLog.
func (s *Store) Append(ctx context.Context, msg domain.ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages(room, user, text, sent_at) VALUES(?, ?, ?, ?)`,
		string(msg.Room), msg.User, msg.Text, msg.Time.UTC())
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit of the newest messages of room, oldest first.
func (s *Store) RecentMessages(ctx context.Context, room domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT room, user, text, sent_at FROM messages WHERE room = ? ORDER BY id DESC LIMIT ?`,
		string(room), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var (
			msg  domain.ChatMessage
			name string
		)
		if err := rows.Scan(&name, &msg.User, &msg.Text, &msg.Time); err != nil {
			return nil, err
		}
		msg.Room = domain.RoomID(name)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// SaveUpload records metadata of a stored blob.
func (s *Store) SaveUpload(ctx context.Context, blob domain.StoredBlob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads(id, room, user, filename, size, sha256, path, uploaded_at) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		blob.ID, string(blob.Room), blob.User, blob.Filename, blob.Size, blob.SHA256, blob.Path, blob.UploadedAt.UTC())
	if err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	return nil
}

// GetUpload fetches blob metadata by id. A missing id is (nil, nil).
func (s *Store) GetUpload(ctx context.Context, id string) (*domain.StoredBlob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, room, user, filename, size, sha256, path, uploaded_at FROM uploads WHERE id = ?`, id)
	var (
		blob domain.StoredBlob
		room string
	)
	if err := row.Scan(&blob.ID, &room, &blob.User, &blob.Filename, &blob.Size, &blob.SHA256, &blob.Path, &blob.UploadedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	blob.Room = domain.RoomID(room)
	return &blob, nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqliteConstraintCode
	}
	return false
}
