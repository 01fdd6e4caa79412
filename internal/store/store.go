package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// ErrNotFound is returned when a session or recipe does not exist for the
// requesting owner. Owner scoping is enforced on every read and write.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	DB *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			current_step TEXT NOT NULL,
			furthest_step INTEGER NOT NULL DEFAULT 1,
			status TEXT NOT NULL DEFAULT 'active',
			event_info TEXT,
			guest_list TEXT,
			menu_plan TEXT,
			schedule_plan TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			step TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS recipes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			ingredients TEXT,
			instructions TEXT,
			source_url TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, q := range queries {
		_, err = db.Exec(q)
		if err != nil {
			return nil, err
		}
	}

	return &Store{DB: db}, nil
}

// SessionRow is the persisted shape of a wizard session. Step payloads are
// stored as JSON blobs; the wizard package owns their schema.
type SessionRow struct {
	ID           string
	OwnerID      string
	CurrentStep  string
	FurthestStep int
	Status       string
	EventInfo    []byte
	GuestList    []byte
	MenuPlan     []byte
	SchedulePlan []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Fields carries a partial session update. Nil pointers and nil blobs are
// left untouched; to clear a payload write an explicit JSON null.
type Fields struct {
	CurrentStep  *string
	FurthestStep *int
	Status       *string
	EventInfo    []byte
	GuestList    []byte
	MenuPlan     []byte
	SchedulePlan []byte
}

func (s *Store) CreateSession(ctx context.Context, id, ownerID, currentStep string) error {
	query := `INSERT INTO sessions (id, owner_id, current_step) VALUES (?, ?, ?)`
	_, err := s.DB.ExecContext(ctx, query, id, ownerID, currentStep)
	return err
}

func (s *Store) GetSession(ctx context.Context, id, ownerID string) (*SessionRow, error) {
	query := `SELECT id, owner_id, current_step, furthest_step, status,
		event_info, guest_list, menu_plan, schedule_plan, created_at, updated_at
		FROM sessions WHERE id = ? AND owner_id = ?`
	row := s.DB.QueryRowContext(ctx, query, id, ownerID)

	var sr SessionRow
	var eventInfo, guestList, menuPlan, schedulePlan sql.NullString
	err := row.Scan(&sr.ID, &sr.OwnerID, &sr.CurrentStep, &sr.FurthestStep, &sr.Status,
		&eventInfo, &guestList, &menuPlan, &schedulePlan, &sr.CreatedAt, &sr.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if eventInfo.Valid {
		sr.EventInfo = []byte(eventInfo.String)
	}
	if guestList.Valid {
		sr.GuestList = []byte(guestList.String)
	}
	if menuPlan.Valid {
		sr.MenuPlan = []byte(menuPlan.String)
	}
	if schedulePlan.Valid {
		sr.SchedulePlan = []byte(schedulePlan.String)
	}
	return &sr, nil
}

// UpdateSession applies a partial update scoped by owner. A mismatched owner
// behaves like a missing row.
func (s *Store) UpdateSession(ctx context.Context, id, ownerID string, f Fields) error {
	var sets []string
	var args []any

	if f.CurrentStep != nil {
		sets = append(sets, "current_step = ?")
		args = append(args, *f.CurrentStep)
	}
	if f.FurthestStep != nil {
		sets = append(sets, "furthest_step = ?")
		args = append(args, *f.FurthestStep)
	}
	if f.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *f.Status)
	}
	if f.EventInfo != nil {
		sets = append(sets, "event_info = ?")
		args = append(args, string(f.EventInfo))
	}
	if f.GuestList != nil {
		sets = append(sets, "guest_list = ?")
		args = append(args, string(f.GuestList))
	}
	if f.MenuPlan != nil {
		sets = append(sets, "menu_plan = ?")
		args = append(args, string(f.MenuPlan))
	}
	if f.SchedulePlan != nil {
		sets = append(sets, "schedule_plan = ?")
		args = append(args, string(f.SchedulePlan))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")

	query := fmt.Sprintf("UPDATE sessions SET %s WHERE id = ? AND owner_id = ?", strings.Join(sets, ", "))
	args = append(args, id, ownerID)

	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListSessionsByStatus(ctx context.Context, status string) ([]SessionRow, error) {
	query := `SELECT id, owner_id, current_step, furthest_step, status,
		event_info, guest_list, menu_plan, schedule_plan, created_at, updated_at
		FROM sessions WHERE status = ?`
	rows, err := s.DB.QueryContext(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var sr SessionRow
		var eventInfo, guestList, menuPlan, schedulePlan sql.NullString
		if err := rows.Scan(&sr.ID, &sr.OwnerID, &sr.CurrentStep, &sr.FurthestStep, &sr.Status,
			&eventInfo, &guestList, &menuPlan, &schedulePlan, &sr.CreatedAt, &sr.UpdatedAt); err != nil {
			return nil, err
		}
		if eventInfo.Valid {
			sr.EventInfo = []byte(eventInfo.String)
		}
		if guestList.Valid {
			sr.GuestList = []byte(guestList.String)
		}
		if menuPlan.Valid {
			sr.MenuPlan = []byte(menuPlan.String)
		}
		if schedulePlan.Valid {
			sr.SchedulePlan = []byte(schedulePlan.String)
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}
