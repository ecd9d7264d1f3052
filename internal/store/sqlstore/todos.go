package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Makepad-fr/todos/internal/model"
)

// ListTodos returns one page of the todos userID is a member of, oldest
// first.
func (s *Store) ListTodos(ctx context.Context, userID string, skip, limit int) (*model.TodoPage, error) {
	page := &model.TodoPage{Data: []model.Todo{}, Limit: limit, Skip: skip}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM todo_users WHERE user_id = ?`, userID).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count todos: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.title, t.description, t.status, t.modified_at_unixms
		FROM todos t JOIN todo_users m ON m.todo_id = t.id
		WHERE m.user_id = ?
		ORDER BY t.created_at_unixms, t.id
		LIMIT ? OFFSET ?`, userID, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		page.Data = append(page.Data, t)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range page.Data {
		users, err := members(ctx, s.db, page.Data[i].ID)
		if err != nil {
			return nil, err
		}
		page.Data[i].Users = users
	}
	page.Count = len(page.Data)
	return page, nil
}

// Todo returns the todo with its members.
func (s *Store) Todo(ctx context.Context, id string) (model.Todo, error) {
	return loadTodo(ctx, s.db, id)
}

// CreateTodo inserts d with userID as its only member.
func (s *Store) CreateTodo(ctx context.Context, userID string, d model.TodoDraft) (model.Todo, error) {
	var id string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertTodo(ctx, tx, userID, d, s.now())
		return err
	})
	if err != nil {
		return model.Todo{}, err
	}
	return s.Todo(ctx, id)
}

// UpdateTodo applies d to the todo. An empty title or status keeps the
// stored value. A nil UserIDs keeps the members; otherwise the new member
// set must be non-empty and a subset of the current one.
func (s *Store) UpdateTodo(ctx context.Context, id string, d model.TodoDraft) (model.Todo, error) {
	var out model.Todo
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := loadTodo(ctx, tx, id)
		if err != nil {
			return err
		}
		if d.Title != "" {
			cur.Title = d.Title
		}
		cur.Description = d.Description
		if d.Status != "" {
			cur.Status = d.Status
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE todos SET title = ?, description = ?, status = ?, modified_at_unixms = ? WHERE id = ?`,
			cur.Title, cur.Description, string(cur.Status), unixms(s.now()), id); err != nil {
			return fmt.Errorf("update todo: %w", err)
		}
		if d.UserIDs != nil {
			if err := replaceMembers(ctx, tx, cur, d.UserIDs); err != nil {
				return err
			}
		}
		out, err = loadTodo(ctx, tx, id)
		return err
	})
	if err != nil {
		return model.Todo{}, err
	}
	return out, nil
}

// DeleteTodo removes the todo and returns it as it was, members included.
func (s *Store) DeleteTodo(ctx context.Context, id string) (model.Todo, error) {
	var out model.Todo
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if out, err = loadTodo(ctx, tx, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return model.Todo{}, err
	}
	return out, nil
}

// IsMember reports whether userID belongs to todoID.
func (s *Store) IsMember(ctx context.Context, todoID, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM todo_users WHERE todo_id = ? AND user_id = ?`, todoID, userID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func insertTodo(ctx context.Context, q queryer, userID string, d model.TodoDraft, now time.Time) (string, error) {
	status := d.Status
	if status == "" {
		status = model.StatusNew
	}
	id := uuid.NewString()
	if _, err := q.ExecContext(ctx,
		`INSERT INTO todos (id, title, description, status, created_at_unixms, modified_at_unixms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, d.Title, d.Description, string(status), unixms(now), unixms(now)); err != nil {
		return "", fmt.Errorf("insert todo: %w", err)
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO todo_users (todo_id, user_id) VALUES (?, ?)`, id, userID); err != nil {
		return "", fmt.Errorf("insert member: %w", err)
	}
	return id, nil
}

func replaceMembers(ctx context.Context, q queryer, cur model.Todo, userIDs []string) error {
	if len(userIDs) == 0 {
		return ErrNoMembers
	}
	keep := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if !cur.HasMember(id) {
			return ErrInvalidMembers
		}
		keep[id] = true
	}
	for _, u := range cur.Users {
		if keep[u.ID] {
			continue
		}
		if _, err := q.ExecContext(ctx,
			`DELETE FROM todo_users WHERE todo_id = ? AND user_id = ?`, cur.ID, u.ID); err != nil {
			return fmt.Errorf("remove member: %w", err)
		}
	}
	return nil
}

func scanTodo(row interface{ Scan(...any) error }) (model.Todo, error) {
	var (
		t        model.Todo
		status   string
		modified int64
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &modified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Todo{}, ErrNotFound
		}
		return model.Todo{}, err
	}
	t.Status = model.Status(status)
	t.ModifiedAt = fromUnixms(modified)
	return t, nil
}

func loadTodo(ctx context.Context, q queryer, id string) (model.Todo, error) {
	t, err := scanTodo(q.QueryRowContext(ctx,
		`SELECT id, title, description, status, modified_at_unixms FROM todos WHERE id = ?`, id))
	if err != nil {
		return model.Todo{}, err
	}
	if t.Users, err = members(ctx, q, id); err != nil {
		return model.Todo{}, err
	}
	return t, nil
}

func members(ctx context.Context, q queryer, todoID string) ([]model.User, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT u.id, u.phone, u.name, u.email, u.is_active
		FROM todo_users m JOIN users u ON u.id = m.user_id
		WHERE m.todo_id = ?
		ORDER BY u.created_at_unixms, u.id`, todoID)
	if err != nil {
		return nil, fmt.Errorf("members: %w", err)
	}
	defer rows.Close()
	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u.User)
	}
	return users, rows.Err()
}
