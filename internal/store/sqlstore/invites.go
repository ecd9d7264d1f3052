package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Makepad-fr/todos/internal/model"
)

// InviteActive is the status reported for pending invites.
const InviteActive = "active"

// CreateInvite invites the user with phone to todoID on behalf of
// inviterID. It reports false without error when nothing was created: the
// inviter is not a member, the phone is unknown or inactive, the user is
// already a member or already has a pending invite.
func (s *Store) CreateInvite(ctx context.Context, inviterID, todoID string, phone int64) (bool, error) {
	created := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := loadTodo(ctx, tx, todoID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !t.HasMember(inviterID) {
			return nil
		}
		u, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = ?`, phone))
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !u.Active || t.HasMember(u.ID) {
			return nil
		}
		var pending int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM invites WHERE todo_id = ? AND user_id = ? AND is_active = 1`,
			todoID, u.ID).Scan(&pending); err != nil {
			return err
		}
		if pending > 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO invites (id, todo_id, user_id, created_at_unixms) VALUES (?, ?, ?, ?)`,
			uuid.NewString(), todoID, u.ID, unixms(s.now())); err != nil {
			return fmt.Errorf("insert invite: %w", err)
		}
		created = true
		return nil
	})
	return created, err
}

// ListInvites returns one page of userID's pending invites, oldest first.
func (s *Store) ListInvites(ctx context.Context, userID string, skip, limit int) (*model.InvitePage, error) {
	page := &model.InvitePage{Data: []model.Invite{}, Limit: limit, Skip: skip}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invites WHERE user_id = ? AND is_active = 1`, userID).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count invites: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, t.id, t.title, t.status
		FROM invites i JOIN todos t ON t.id = i.todo_id
		WHERE i.user_id = ? AND i.is_active = 1
		ORDER BY i.created_at_unixms, i.id
		LIMIT ? OFFSET ?`, userID, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			inv    model.Invite
			short  model.TodoShort
			status string
		)
		if err := rows.Scan(&inv.ID, &short.ID, &short.Title, &status); err != nil {
			return nil, err
		}
		short.Status = model.Status(status)
		inv.Todo = &short
		inv.Status = InviteActive
		page.Data = append(page.Data, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	page.Count = len(page.Data)
	return page, nil
}

// AcceptInvite adds userID to the invited todo, deactivates the invite and
// returns the todo with its new member set. Invites addressed to someone
// else are ErrNotFound.
func (s *Store) AcceptInvite(ctx context.Context, inviteID, userID string) (model.Todo, error) {
	var out model.Todo
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		todoID, active, err := inviteFor(ctx, tx, inviteID, userID)
		if err != nil {
			return err
		}
		if active {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO todo_users (todo_id, user_id) VALUES (?, ?)`, todoID, userID); err != nil {
				return fmt.Errorf("add member: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE invites SET is_active = 0 WHERE id = ?`, inviteID); err != nil {
				return fmt.Errorf("deactivate invite: %w", err)
			}
		}
		out, err = loadTodo(ctx, tx, todoID)
		return err
	})
	if err != nil {
		return model.Todo{}, err
	}
	return out, nil
}

// DeclineInvite deletes the invite.
func (s *Store) DeclineInvite(ctx context.Context, inviteID, userID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, _, err := inviteFor(ctx, tx, inviteID, userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM invites WHERE id = ?`, inviteID)
		return err
	})
}

func inviteFor(ctx context.Context, q queryer, inviteID, userID string) (todoID string, active bool, err error) {
	var (
		owner string
		flag  int
	)
	err = q.QueryRowContext(ctx,
		`SELECT todo_id, user_id, is_active FROM invites WHERE id = ?`, inviteID).Scan(&todoID, &owner, &flag)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != userID) {
		return "", false, ErrNotFound
	}
	if err != nil {
		return "", false, err
	}
	return todoID, flag != 0, nil
}
