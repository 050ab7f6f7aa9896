package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/filex"
	"github.com/dmitrijs2005/ordvault/internal/models"
)

// FileRepository keeps every record in one JSON array on disk.
//
// Each Save is a read-modify-write of the whole file; mu serializes them so
// concurrent writers cannot lose each other's records, and the rewrite goes
// through a temp file so a crash leaves the previous collection intact.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) Save(ctx context.Context, rec *models.Inscription) error {
	if rec == nil || rec.InscriptionID == "" {
		return fmt.Errorf("%w: inscription id is required", common.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load()
	if err != nil {
		return err
	}

	for _, existing := range all {
		if existing.InscriptionID == rec.InscriptionID {
			return fmt.Errorf("%w: inscription %s", common.ErrAlreadyExists, rec.InscriptionID)
		}
	}

	all = append(all, rec)

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal inscriptions: %v", common.ErrStore, err)
	}
	if err := filex.WriteFileAtomic(r.path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStore, err)
	}
	return nil
}

func (r *FileRepository) Get(ctx context.Context, inscriptionID string) (*models.Inscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load()
	if err != nil {
		return nil, err
	}

	for _, rec := range all {
		if rec.InscriptionID == inscriptionID {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%w: inscription %s", common.ErrNotFound, inscriptionID)
}

// List returns matching records, newest first.
func (r *FileRepository) List(ctx context.Context, filter models.InscriptionFilter) ([]*models.Inscription, error) {
	r.mu.Lock()
	all, err := r.load()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	result := make([]*models.Inscription, 0, len(all))
	for _, rec := range all {
		if filter.Match(rec) {
			result = append(result, rec)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *FileRepository) load() ([]*models.Inscription, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", common.ErrStore, r.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var all []*models.Inscription
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", common.ErrStore, r.path, err)
	}
	return all, nil
}
