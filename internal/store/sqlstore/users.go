package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Makepad-fr/todos/internal/model"
)

// UserRecord is a user row. Inactive users can not log in or be invited.
type UserRecord struct {
	model.User
	Active bool
}

const userColumns = `id, phone, name, email, is_active`

func scanUser(row interface{ Scan(...any) error }) (UserRecord, error) {
	var (
		u      UserRecord
		active int
	)
	if err := row.Scan(&u.ID, &u.Phone, &u.Name, &u.Email, &active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserRecord{}, ErrNotFound
		}
		return UserRecord{}, err
	}
	u.Active = active != 0
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (UserRecord, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (s *Store) UserByPhone(ctx context.Context, phone int64) (UserRecord, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = ?`, phone))
}

// CreateUser inserts an active user with phone. greeting, when non-empty,
// is created as the user's first todos in the same transaction.
func (s *Store) CreateUser(ctx context.Context, phone int64, greeting []model.TodoDraft) (UserRecord, error) {
	u := UserRecord{User: model.User{ID: uuid.NewString(), Phone: phone}, Active: true}
	now := s.now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, phone, created_at_unixms) VALUES (?, ?, ?)`,
			u.ID, phone, unixms(now)); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		for i, d := range greeting {
			// Distinct timestamps keep the greeting order stable.
			if _, err := insertTodo(ctx, tx, u.ID, d, now.Add(time.Duration(i)*time.Millisecond)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return UserRecord{}, err
	}
	return u, nil
}

// UpdateUser sets the non-nil fields.
func (s *Store) UpdateUser(ctx context.Context, id string, name, email *string) (UserRecord, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = COALESCE(?, name), email = COALESCE(?, email) WHERE id = ?`,
		name, email, id)
	if err != nil {
		return UserRecord{}, fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return UserRecord{}, ErrNotFound
	}
	return s.UserByID(ctx, id)
}

// SaveCode stores a bcrypt hash of code for phone, replacing any pending
// code.
func (s *Store) SaveCode(ctx context.Context, phone int64, code string, ttl time.Duration) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO login_codes (phone, code_hash, expires_at_unixms) VALUES (?, ?, ?)
		 ON CONFLICT(phone) DO UPDATE SET code_hash = excluded.code_hash, expires_at_unixms = excluded.expires_at_unixms`,
		phone, string(hash), unixms(s.now().Add(ttl)))
	if err != nil {
		return fmt.Errorf("save code: %w", err)
	}
	return nil
}

// ConsumeCode checks code against the pending code for phone and deletes
// it on a match. With anyCode set every code matches, but a pending,
// unexpired code must still exist.
func (s *Store) ConsumeCode(ctx context.Context, phone int64, code string, anyCode bool) (bool, error) {
	var (
		hash    string
		expires int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT code_hash, expires_at_unixms FROM login_codes WHERE phone = ?`, phone).Scan(&hash, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load code: %w", err)
	}
	if s.now().After(fromUnixms(expires)) {
		return false, nil
	}
	if !anyCode && bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) != nil {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM login_codes WHERE phone = ?`, phone); err != nil {
		return false, fmt.Errorf("delete code: %w", err)
	}
	return true, nil
}

// CreateSession returns a new opaque session id for userID.
func (s *Store) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, time.Time, error) {
	id := uuid.NewString()
	expires := s.now().Add(ttl)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at_unixms) VALUES (?, ?, ?)`,
		id, userID, unixms(expires)); err != nil {
		return "", time.Time{}, fmt.Errorf("create session: %w", err)
	}
	return id, expires, nil
}

// SessionUser resolves a session id. Unknown and expired sessions are
// ErrNotFound, as are sessions of inactive users.
func (s *Store) SessionUser(ctx context.Context, sessionID string) (UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.phone, u.name, u.email, u.is_active
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.id = ? AND s.expires_at_unixms > ?`, sessionID, unixms(s.now()))
	u, err := scanUser(row)
	if err != nil {
		return UserRecord{}, err
	}
	if !u.Active {
		return UserRecord{}, ErrNotFound
	}
	return u, nil
}

// DeleteSession removes the session. Unknown ids are not an error.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PruneExpired drops expired sessions and login codes.
func (s *Store) PruneExpired(ctx context.Context) error {
	now := unixms(s.now())
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at_unixms <= ?`, now); err != nil {
		return fmt.Errorf("prune sessions: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM login_codes WHERE expires_at_unixms <= ?`, now); err != nil {
		return fmt.Errorf("prune codes: %w", err)
	}
	return nil
}
