package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Makepad-fr/todos/internal/model"
)

// JSON files of todo drafts. Used for the server's greeting todos and for
// `todos export`. Single file, human-readable, portable.

// Load reads the drafts at path. A missing file is an empty list.
func Load(path string) ([]model.TodoDraft, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.TodoDraft{}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	var drafts []model.TodoDraft
	if err := json.Unmarshal(b, &drafts); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	for i, d := range drafts {
		if d.Title == "" {
			return nil, fmt.Errorf("%s: entry %d has no title", path, i)
		}
		if d.Status != "" && !d.Status.Valid() {
			return nil, fmt.Errorf("%s: entry %d has unknown status %q", path, i, d.Status)
		}
	}
	return drafts, nil
}

func Save(path string, drafts []model.TodoDraft) error {
	if drafts == nil {
		drafts = []model.TodoDraft{}
	}
	b, err := json.MarshalIndent(drafts, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Drafts converts todos to drafts, dropping ids and members.
func Drafts(todos []model.Todo) []model.TodoDraft {
	out := make([]model.TodoDraft, len(todos))
	for i, t := range todos {
		out[i] = model.TodoDraft{Title: t.Title, Description: t.Description, Status: t.Status}
	}
	return out
}
