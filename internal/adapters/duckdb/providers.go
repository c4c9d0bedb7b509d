package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heliogrid/heliogrid/internal/core/domain"
)

const providerColumns = `id, owner_id, status, gpu_specs, registered_at`

// RegisterProvider upserts a worker node. Re-registration with a known id
// refreshes the capability descriptor and flips the node back online, which
// makes agent restarts idempotent.
func (s *Store) RegisterProvider(ctx context.Context, id domain.ProviderID, ownerID *string, gpuSpecs json.RawMessage) (domain.Provider, bool, error) {
	if id == "" {
		id = domain.ProviderID(uuid.New().String())
	}
	specs := string(gpuSpecs)
	if specs == "" {
		specs = "{}"
	}

	existing, err := s.GetProvider(ctx, id)
	switch {
	case err == nil:
		_, err := s.db.ExecContext(ctx,
			`UPDATE providers SET gpu_specs = ?, status = ? WHERE id = ?`,
			specs, domain.ProviderStatusOnline, id,
		)
		if err != nil {
			return domain.Provider{}, false, fmt.Errorf("failed to update provider: %w", err)
		}
		existing.GPUSpecs = json.RawMessage(specs)
		existing.Status = domain.ProviderStatusOnline
		return existing, false, nil

	case errors.Is(err, domain.ErrProviderNotFound):
		p := domain.Provider{
			ID:           id,
			OwnerID:      ownerID,
			Status:       domain.ProviderStatusOnline,
			GPUSpecs:     json.RawMessage(specs),
			RegisteredAt: time.Now().UTC(),
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO providers (id, owner_id, status, gpu_specs, registered_at) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.OwnerID, p.Status, specs, p.RegisteredAt,
		)
		if err != nil {
			return domain.Provider{}, false, fmt.Errorf("failed to insert provider: %w", err)
		}
		return p, true, nil

	default:
		return domain.Provider{}, false, err
	}
}

func (s *Store) GetProvider(ctx context.Context, id domain.ProviderID) (domain.Provider, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE id = ?`, id)

	p, err := scanProvider(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Provider{}, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, id)
	}
	if err != nil {
		return domain.Provider{}, err
	}
	return p, nil
}

func (s *Store) SetProviderStatus(ctx context.Context, id domain.ProviderID, status domain.ProviderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown provider status %q", domain.ErrInvalidInput, status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE providers SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set provider status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProviderNotFound, id)
	}
	return nil
}

// ListAvailableProviders returns online providers oldest-first so assignment
// rotates through long-registered nodes before newcomers.
func (s *Store) ListAvailableProviders(ctx context.Context) ([]domain.Provider, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE status = ? ORDER BY registered_at, id`,
		domain.ProviderStatusOnline,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	defer rows.Close()

	var providers []domain.Provider
	for rows.Next() {
		p, err := scanProvider(rows.Scan)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func scanProvider(scan func(...any) error) (domain.Provider, error) {
	var (
		p         domain.Provider
		idStr     string
		statusStr string
		specsStr  string
	)
	if err := scan(&idStr, &p.OwnerID, &statusStr, &specsStr, &p.RegisteredAt); err != nil {
		return domain.Provider{}, err
	}
	p.ID = domain.ProviderID(idStr)
	p.Status = domain.ProviderStatus(statusStr)
	p.GPUSpecs = json.RawMessage(specsStr)
	return p, nil
}
