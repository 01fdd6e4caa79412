package store

import (
	"context"
)

// Turn is one message in the append-only conversation log, scoped to a
// (session, step) pair.
type Turn struct {
	ID        int64
	SessionID string
	Step      string
	Role      string // human, ai, system
	Content   string
}

func (s *Store) AppendTurn(ctx context.Context, sessionID, step, role, content string) error {
	query := `INSERT INTO turns (session_id, step, role, content) VALUES (?, ?, ?, ?)`
	_, err := s.DB.ExecContext(ctx, query, sessionID, step, role, content)
	return err
}

// GetTurns returns the most recent turns for a (session, step) pair in
// chronological order.
func (s *Store) GetTurns(ctx context.Context, sessionID, step string, limit int) ([]Turn, error) {
	query := `SELECT id, session_id, step, role, content FROM turns
		WHERE session_id = ? AND step = ? ORDER BY id DESC LIMIT ?`
	rows, err := s.DB.QueryContext(ctx, query, sessionID, step, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Step, &t.Role, &t.Content); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}
