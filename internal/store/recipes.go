package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// Recipe is a saved recipe in the owner's permanent library. Menu plans
// reference these by id; completed sessions materialize new menu items here.
type Recipe struct {
	ID           int64
	OwnerID      string
	Title        string
	Description  string
	Ingredients  []string
	Instructions []string
	SourceURL    string
}

func (s *Store) SaveRecipe(ctx context.Context, r Recipe) (int64, error) {
	ingredients, err := json.Marshal(r.Ingredients)
	if err != nil {
		return 0, err
	}
	instructions, err := json.Marshal(r.Instructions)
	if err != nil {
		return 0, err
	}

	query := `INSERT INTO recipes (owner_id, title, description, ingredients, instructions, source_url)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := s.DB.ExecContext(ctx, query, r.OwnerID, r.Title, r.Description,
		string(ingredients), string(instructions), r.SourceURL)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetRecipe(ctx context.Context, id int64, ownerID string) (*Recipe, error) {
	query := `SELECT id, owner_id, title, description, ingredients, instructions, source_url
		FROM recipes WHERE id = ? AND owner_id = ?`
	row := s.DB.QueryRowContext(ctx, query, id, ownerID)

	r, err := scanRecipe(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) ListRecipes(ctx context.Context, ownerID string) ([]Recipe, error) {
	query := `SELECT id, owner_id, title, description, ingredients, instructions, source_url
		FROM recipes WHERE owner_id = ? ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recipe
	for rows.Next() {
		r, err := scanRecipe(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRecipe(scan func(...any) error) (*Recipe, error) {
	var r Recipe
	var description, ingredients, instructions, sourceURL sql.NullString
	if err := scan(&r.ID, &r.OwnerID, &r.Title, &description, &ingredients, &instructions, &sourceURL); err != nil {
		return nil, err
	}
	r.Description = description.String
	r.SourceURL = sourceURL.String
	if ingredients.Valid && ingredients.String != "" {
		if err := json.Unmarshal([]byte(ingredients.String), &r.Ingredients); err != nil {
			return nil, err
		}
	}
	if instructions.Valid && instructions.String != "" {
		if err := json.Unmarshal([]byte(instructions.String), &r.Instructions); err != nil {
			return nil, err
		}
	}
	return &r, nil
}
