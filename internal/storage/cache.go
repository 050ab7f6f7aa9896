package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/filex"
	"github.com/dmitrijs2005/ordvault/internal/models"
)

// FileCache writes one <inscriptionId>.json per inscription. It is a durable
// copy independent of the Repository in use.
type FileCache struct {
	dir string
}

func NewFileCache(dir string) *FileCache {
	return &FileCache{dir: dir}
}

func (c *FileCache) Put(rec *models.Inscription) error {
	path, err := c.path(rec.InscriptionID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal inscription: %w", err)
	}
	return filex.WriteFileAtomic(path, data, 0o600)
}

func (c *FileCache) Get(inscriptionID string) (*models.Inscription, error) {
	path, err := c.path(inscriptionID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: inscription %s", common.ErrNotFound, inscriptionID)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var rec models.Inscription
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", common.ErrCorruptData, path, err)
	}
	return &rec, nil
}

func (c *FileCache) path(inscriptionID string) (string, error) {
	if inscriptionID == "" || strings.ContainsAny(inscriptionID, `/\`) || strings.HasPrefix(inscriptionID, ".") {
		return "", fmt.Errorf("%w: invalid inscription id %q", common.ErrValidation, inscriptionID)
	}
	return filepath.Join(c.dir, inscriptionID+".json"), nil
}
