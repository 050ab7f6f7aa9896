// Package articles persists published content items in a flat JSON file.
package articles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/filex"
	"github.com/dmitrijs2005/ordvault/internal/models"
	"github.com/google/uuid"
)

// FileStore keeps all articles in one JSON array. Every mutation is a
// read-modify-write under mu.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Save inserts a new article, assigning an id when it has none.
func (s *FileStore) Save(ctx context.Context, a *models.Article) error {
	if a == nil {
		return fmt.Errorf("%w: article is nil", common.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	for _, existing := range all {
		if existing.ID == a.ID {
			return fmt.Errorf("%w: article %s", common.ErrAlreadyExists, a.ID)
		}
	}
	if a.PublishedAt.IsZero() {
		a.PublishedAt = s.now().UTC()
	}

	return s.write(append(all, a))
}

// Get finds an article by its id or by its inscription id.
func (s *FileStore) Get(ctx context.Context, id string) (*models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}

	if i := find(all, id); i >= 0 {
		return all[i], nil
	}
	return nil, fmt.Errorf("%w: article %s", common.ErrNotFound, id)
}

func (s *FileStore) Update(ctx context.Context, id string, patch models.ArticlePatch) (*models.Article, error) {
	return s.mutate(id, func(a *models.Article) {
		if patch.InscriptionID != nil {
			a.InscriptionID = *patch.InscriptionID
		}
		if patch.TxID != nil {
			txid := *patch.TxID
			a.TxID = &txid
		}
		if patch.Status != nil {
			a.Status = *patch.Status
		}
		if patch.LastError != nil {
			a.LastError = *patch.LastError
		}
		a.UpdatedAt = s.now().UTC()
	})
}

func (s *FileStore) IncrementViews(ctx context.Context, id string) (*models.Article, error) {
	return s.mutate(id, func(a *models.Article) { a.Views++ })
}

// List returns matching articles, newest first.
func (s *FileStore) List(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error) {
	s.mu.Lock()
	all, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	result := make([]*models.Article, 0, len(all))
	for _, a := range all {
		if filter.Match(a) {
			result = append(result, a)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PublishedAt.After(result[j].PublishedAt)
	})
	return result, nil
}

func (s *FileStore) mutate(id string, fn func(a *models.Article)) (*models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}

	i := find(all, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: article %s", common.ErrNotFound, id)
	}
	fn(all[i])

	if err := s.write(all); err != nil {
		return nil, err
	}
	return all[i], nil
}

func find(all []*models.Article, id string) int {
	if id == "" {
		return -1
	}
	for i, a := range all {
		if a.ID == id || a.InscriptionID == id {
			return i
		}
	}
	return -1
}

func (s *FileStore) load() ([]*models.Article, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", common.ErrStore, s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var all []*models.Article
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", common.ErrStore, s.path, err)
	}
	return all, nil
}

func (s *FileStore) write(all []*models.Article) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal articles: %v", common.ErrStore, err)
	}
	if err := filex.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStore, err)
	}
	return nil
}
