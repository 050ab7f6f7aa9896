// Package storage persists inscription records.
//
// Every backend is append-only: Save fails with common.ErrAlreadyExists for an
// inscription id that is already stored, and there is no update or delete.
package storage

import (
	"context"

	"github.com/dmitrijs2005/ordvault/internal/models"
)

type Repository interface {
	Save(ctx context.Context, rec *models.Inscription) error
	Get(ctx context.Context, inscriptionID string) (*models.Inscription, error)
	List(ctx context.Context, filter models.InscriptionFilter) ([]*models.Inscription, error)
}
