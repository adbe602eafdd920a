package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crusont/crusont/internal/model"
)

// providerRow is a flat struct that maps 1:1 to the providers table.
// The models_json column stores the JSON-encoded []model.ModelSpec.
type providerRow struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	BaseURL    string    `db:"base_url"`
	APIKey     string    `db:"api_key"`
	ModelsJSON string    `db:"models_json"`
	IsActive   bool      `db:"is_active"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func providerRowFromModel(p *model.Provider) (providerRow, error) {
	models := p.Models
	if models == nil {
		models = []model.ModelSpec{}
	}
	modelsJSON, err := json.Marshal(models)
	if err != nil {
		return providerRow{}, fmt.Errorf("marshal models: %w", err)
	}
	return providerRow{
		ID:         p.ID,
		Name:       p.Name,
		BaseURL:    p.BaseURL,
		APIKey:     p.APIKey,
		ModelsJSON: string(modelsJSON),
		IsActive:   p.IsActive,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}, nil
}

func (r providerRow) toModel() (model.Provider, error) {
	var models []model.ModelSpec
	if r.ModelsJSON != "" && r.ModelsJSON != "[]" {
		if err := json.Unmarshal([]byte(r.ModelsJSON), &models); err != nil {
			return model.Provider{}, fmt.Errorf("unmarshal models: %w", err)
		}
	}
	if models == nil {
		models = []model.ModelSpec{}
	}
	return model.Provider{
		ID:        r.ID,
		Name:      r.Name,
		BaseURL:   r.BaseURL,
		APIKey:    r.APIKey,
		Models:    models,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

// CreateProvider inserts a new upstream provider definition.
func (s *Store) CreateProvider(ctx context.Context, p *model.Provider) error {
	if p.ID == "" {
		p.ID = uuid.Must(uuid.NewV7()).String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	row, err := providerRowFromModel(p)
	if err != nil {
		return err
	}

	const q = `INSERT INTO providers (id, name, base_url, api_key, models_json, is_active, created_at, updated_at)
		VALUES (:id, :name, :base_url, :api_key, :models_json, :is_active, :created_at, :updated_at)`
	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert provider: %w", err)
	}
	return nil
}

// GetProviderByName returns a provider by its unique name.
func (s *Store) GetProviderByName(ctx context.Context, name string) (*model.Provider, error) {
	var row providerRow
	if err := s.db.GetContext(ctx, &row, s.rebind("SELECT * FROM providers WHERE name = ?"), name); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get provider by name: %w", err)
	}
	p, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProviders returns all provider definitions ordered by name.
func (s *Store) ListProviders(ctx context.Context) ([]model.Provider, error) {
	var rows []providerRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM providers ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	providers := make([]model.Provider, 0, len(rows))
	for _, r := range rows {
		p, err := r.toModel()
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// UpdateProvider updates an existing provider. The UpdatedAt field is
// refreshed automatically.
func (s *Store) UpdateProvider(ctx context.Context, p *model.Provider) error {
	p.UpdatedAt = time.Now().UTC()
	row, err := providerRowFromModel(p)
	if err != nil {
		return err
	}

	const q = `UPDATE providers SET
		name = :name, base_url = :base_url, api_key = :api_key,
		models_json = :models_json, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`
	result, err := s.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return fmt.Errorf("update provider: %w", err)
	}
	return requireRows(result, "update provider")
}

// DeleteProvider removes a provider definition by name.
func (s *Store) DeleteProvider(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM providers WHERE name = ?"), name)
	if err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}
	return requireRows(result, "delete provider")
}

// CountProviders returns the total number of configured providers.
func (s *Store) CountProviders(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM providers"); err != nil {
		return 0, fmt.Errorf("count providers: %w", err)
	}
	return n, nil
}
