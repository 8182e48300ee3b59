package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/ichat-server/internal/store"
)

// Schema creates every table the store needs. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	avatar        TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'offline',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS friendships (
	user_id    INTEGER NOT NULL,
	friend_id  INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, friend_id),
	FOREIGN KEY (user_id) REFERENCES users(id),
	FOREIGN KEY (friend_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS friend_requests (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	from_user_id INTEGER NOT NULL,
	to_user_id   INTEGER NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (from_user_id) REFERENCES users(id),
	FOREIGN KEY (to_user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS messages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	from_user_id INTEGER NOT NULL,
	to_user_id   INTEGER NOT NULL,
	content      TEXT NOT NULL,
	type         TEXT NOT NULL DEFAULT 'text',
	read         BOOLEAN NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL,
	FOREIGN KEY (from_user_id) REFERENCES users(id),
	FOREIGN KEY (to_user_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(from_user_id, to_user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(to_user_id, read);
CREATE INDEX IF NOT EXISTS idx_friend_requests_to ON friend_requests(to_user_id, status);
`

const dsnParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema or seed rows.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; in-memory databases need it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ApplySchema creates the tables if they do not exist yet.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

const userColumns = `id, username, email, password_hash, avatar, status, created_at`

func scanUser(row interface{ Scan(...any) error }) (*store.User, error) {
	var user store.User
	var status string
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Avatar,
		&status,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	user.Status = store.UserStatus(status)
	return &user, nil
}

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, email, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchUsers matches username or email, case-insensitively for ASCII.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query string, limit int) ([]*store.User, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	q := `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(username) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\'
		ORDER BY username ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, q, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetUserStatus persists the presence status of a user.
func (s *SQLiteStore) SetUserStatus(ctx context.Context, userID int64, status store.UserStatus) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET status = ? WHERE id = ?`, string(status), userID)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %d: %w", userID, store.ErrNotFound)
	}
	return nil
}

// ==== MessageStore implementation ====

const messageSelect = `
	SELECT m.id, m.from_user_id, fu.username, fu.avatar,
	       m.to_user_id, tu.username, tu.avatar,
	       m.content, m.type, m.read, m.created_at
	FROM messages m
	JOIN users fu ON fu.id = m.from_user_id
	JOIN users tu ON tu.id = m.to_user_id
`

func scanMessage(row interface{ Scan(...any) error }) (*store.Message, error) {
	var msg store.Message
	var msgType string
	if err := row.Scan(
		&msg.ID,
		&msg.From.ID, &msg.From.Username, &msg.From.Avatar,
		&msg.To.ID, &msg.To.Username, &msg.To.Avatar,
		&msg.Content,
		&msgType,
		&msg.Read,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}
	msg.Type = store.MessageType(msgType)
	return &msg, nil
}

// CreateMessage persists a message and returns it with display metadata resolved.
func (s *SQLiteStore) CreateMessage(ctx context.Context, fromUserID, toUserID int64, content string, msgType store.MessageType) (*store.Message, error) {
	if msgType == "" {
		msgType = store.MessageTypeText
	}
	query := `
		INSERT INTO messages (from_user_id, to_user_id, content, type, read, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`
	// Millisecond precision matches the timestamps clients see and page with.
	createdAt := time.Now().UTC().Truncate(time.Millisecond)
	result, err := s.db.ExecContext(ctx, query, fromUserID, toUserID, content, string(msgType), createdAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	msg, err := scanMessage(s.db.QueryRowContext(ctx, messageSelect+` WHERE m.id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("query message: %w", err)
	}
	return msg, nil
}

// ListConversation returns messages exchanged between two users, oldest first.
func (s *SQLiteStore) ListConversation(ctx context.Context, userID, peerID int64, limit int, cursor *store.HistoryCursor) ([]*store.Message, error) {
	query := messageSelect + `
		WHERE ((m.from_user_id = ? AND m.to_user_id = ?) OR (m.from_user_id = ? AND m.to_user_id = ?))
	`
	args := []any{userID, peerID, peerID, userID}
	if cursor != nil {
		before := cursor.Before.UTC().Truncate(time.Millisecond)
		if cursor.BeforeID > 0 {
			query += ` AND (m.created_at < ? OR (m.created_at = ? AND m.id < ?))`
			args = append(args, before, before, cursor.BeforeID)
		} else {
			query += ` AND m.created_at < ?`
			args = append(args, before)
		}
	}
	query += ` ORDER BY m.created_at DESC, m.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, rows.Err()
}

// MarkRead flags the given messages as read when addressed to recipientID.
func (s *SQLiteStore) MarkRead(ctx context.Context, recipientID int64, messageIDs []int64) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(messageIDs)), ",")
	query := `UPDATE messages SET read = 1 WHERE to_user_id = ? AND read = 0 AND id IN (` + placeholders + `)`

	args := make([]any, 0, len(messageIDs)+1)
	args = append(args, recipientID)
	for _, id := range messageIDs {
		args = append(args, id)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return rows, nil
}

// CountUnread counts unread messages addressed to the user.
func (s *SQLiteStore) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE to_user_id = ? AND read = 0`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// ==== FriendStore implementation ====

const friendRequestColumns = `id, from_user_id, to_user_id, status, created_at, updated_at`

func scanFriendRequest(row interface{ Scan(...any) error }) (*store.FriendRequest, error) {
	var req store.FriendRequest
	var status string
	if err := row.Scan(
		&req.ID,
		&req.FromUserID,
		&req.ToUserID,
		&status,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return nil, err
	}
	req.Status = store.FriendRequestStatus(status)
	return &req, nil
}

// CreateFriendRequest creates a new pending friend request.
func (s *SQLiteStore) CreateFriendRequest(ctx context.Context, fromUserID, toUserID int64) (*store.FriendRequest, error) {
	query := `
		INSERT INTO friend_requests (from_user_id, to_user_id, status)
		VALUES (?, ?, 'pending')
	`
	result, err := s.db.ExecContext(ctx, query, fromUserID, toUserID)
	if err != nil {
		return nil, fmt.Errorf("insert friend request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetFriendRequest(ctx, id)
}

// GetFriendRequest retrieves a friend request by ID.
func (s *SQLiteStore) GetFriendRequest(ctx context.Context, id int64) (*store.FriendRequest, error) {
	query := `SELECT ` + friendRequestColumns + ` FROM friend_requests WHERE id = ?`
	req, err := scanFriendRequest(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("friend request %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query friend request: %w", err)
	}
	return req, nil
}

// GetPendingRequest retrieves the pending request from one user to another.
func (s *SQLiteStore) GetPendingRequest(ctx context.Context, fromUserID, toUserID int64) (*store.FriendRequest, error) {
	query := `
		SELECT ` + friendRequestColumns + `
		FROM friend_requests
		WHERE from_user_id = ? AND to_user_id = ? AND status = 'pending'
		ORDER BY id DESC
		LIMIT 1
	`
	req, err := scanFriendRequest(s.db.QueryRowContext(ctx, query, fromUserID, toUserID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("pending request %d->%d: %w", fromUserID, toUserID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query pending request: %w", err)
	}
	return req, nil
}

// ListPendingRequests lists pending requests addressed to the user.
func (s *SQLiteStore) ListPendingRequests(ctx context.Context, toUserID int64) ([]*store.FriendRequest, error) {
	query := `
		SELECT ` + friendRequestColumns + `
		FROM friend_requests
		WHERE to_user_id = ? AND status = 'pending'
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, toUserID)
	if err != nil {
		return nil, fmt.Errorf("query friend requests: %w", err)
	}
	defer rows.Close()

	var requests []*store.FriendRequest
	for rows.Next() {
		req, err := scanFriendRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// UpdateFriendRequestStatus moves a pending request to its final status.
func (s *SQLiteStore) UpdateFriendRequestStatus(ctx context.Context, id int64, status store.FriendRequestStatus) error {
	return updateRequestStatus(ctx, s.db, id, status)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateRequestStatus(ctx context.Context, db execer, id int64, status store.FriendRequestStatus) error {
	query := `
		UPDATE friend_requests
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'
	`
	result, err := db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("update friend request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("pending friend request %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// AcceptFriendRequest marks the request accepted and records the friendship both ways.
func (s *SQLiteStore) AcceptFriendRequest(ctx context.Context, id int64) error {
	req, err := s.GetFriendRequest(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := updateRequestStatus(ctx, tx, id, store.FriendRequestAccepted); err != nil {
		return err
	}

	query := `INSERT OR IGNORE INTO friendships (user_id, friend_id) VALUES (?, ?), (?, ?)`
	if _, err := tx.ExecContext(ctx, query, req.FromUserID, req.ToUserID, req.ToUserID, req.FromUserID); err != nil {
		return fmt.Errorf("insert friendship: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// FriendIDs returns the ids of all friends of the user.
func (s *SQLiteStore) FriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT friend_id FROM friendships WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query friend ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friend id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListFriends returns the friends of the user.
func (s *SQLiteStore) ListFriends(ctx context.Context, userID int64) ([]*store.User, error) {
	query := `
		SELECT u.id, u.username, u.email, u.password_hash, u.avatar, u.status, u.created_at
		FROM friendships f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = ?
		ORDER BY u.username ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// IsFriend checks if two users are friends.
func (s *SQLiteStore) IsFriend(ctx context.Context, userID, friendID int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM friendships WHERE user_id = ? AND friend_id = ?`, userID, friendID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query friendship: %w", err)
	}
	return true, nil
}
