package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/zhouzirui/ragebot/backend/internal/model/chat"
	"github.com/zhouzirui/ragebot/backend/internal/model/user"
)

// Dialect selects the SQL flavour of a SQLStore.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore keeps users and chat sessions in a relational database.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

var _ user.Store = (*SQLStore)(nil)

// OpenSQLite opens (or creates) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	// WAL lets readers proceed while a write is in flight.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite doesn't support multiple writers well.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return newSQLStore(ctx, db, DialectSQLite)
}

// OpenPostgres connects to the database named by dsn.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return newSQLStore(ctx, db, DialectPostgres)
}

func newSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLStore{db: db, dialect: dialect}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == DialectPostgres {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			id            ` + idColumn + `,
			user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			saved_at      BIGINT NOT NULL,
			average_score DOUBLE PRECISION NOT NULL,
			messages      TEXT NOT NULL,
			summary       TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_sessions_user ON chat_sessions(user_id, id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Create inserts u. The email column is unique, so a concurrent duplicate still fails.
func (s *SQLStore) Create(ctx context.Context, u user.User) (user.User, error) {
	if _, err := s.FindByEmail(ctx, u.Email); err == nil {
		return user.User{}, user.ErrEmailTaken
	} else if !errors.Is(err, user.ErrUserNotFound) {
		return user.User{}, err
	}

	_, err := s.db.ExecContext(ctx,
		s.rebind("INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)"),
		u.ID, strings.ToLower(u.Email), u.PasswordHash, u.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("failed to insert user: %w", err)
	}

	u.ChatHistory = []chat.Record{}
	return u, nil
}

// FindByEmail looks a user up by email, without loading chat history.
func (s *SQLStore) FindByEmail(ctx context.Context, email string) (user.User, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT id, email, password_hash, created_at FROM users WHERE email = ?"),
		strings.ToLower(email))
	return scanUser(row)
}

// FindByID looks a user up by id, chat history included.
func (s *SQLStore) FindByID(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT id, email, password_hash, created_at FROM users WHERE id = ?"), id)
	u, err := scanUser(row)
	if err != nil {
		return user.User{}, err
	}

	u.ChatHistory, err = s.Sessions(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

// AppendSession stores record for userID.
func (s *SQLStore) AppendSession(ctx context.Context, userID string, record chat.Record) error {
	var exists int
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT 1 FROM users WHERE id = ?"), userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return user.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	messages, err := json.Marshal(record.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		s.rebind("INSERT INTO chat_sessions (user_id, saved_at, average_score, messages, summary) VALUES (?, ?, ?, ?, ?)"),
		userID, record.Timestamp, record.AverageScore, string(messages), record.Summary)
	if err != nil {
		return fmt.Errorf("failed to insert chat session: %w", err)
	}
	return nil
}

// Sessions returns the user's records in save order.
func (s *SQLStore) Sessions(ctx context.Context, userID string) ([]chat.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT saved_at, average_score, messages, summary FROM chat_sessions WHERE user_id = ? ORDER BY id ASC"),
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat sessions: %w", err)
	}
	defer rows.Close()

	records := []chat.Record{}
	for rows.Next() {
		var (
			record   chat.Record
			messages string
		)
		if err := rows.Scan(&record.Timestamp, &record.AverageScore, &messages, &record.Summary); err != nil {
			return nil, fmt.Errorf("failed to scan chat session: %w", err)
		}
		if err := json.Unmarshal([]byte(messages), &record.Messages); err != nil {
			return nil, fmt.Errorf("failed to decode messages: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Close closes the underlying pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var builder strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&builder, "$%d", n)
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

func scanUser(row *sql.Row) (user.User, error) {
	var (
		u         user.User
		createdAt int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrUserNotFound
		}
		return user.User{}, fmt.Errorf("failed to scan user: %w", err)
	}
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	return u, nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
