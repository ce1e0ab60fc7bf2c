package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
)

// LocalRowSetStore keeps each job's rows as a JSON file under BaseDir.
type LocalRowSetStore struct {
	BaseDir string
}

func NewLocalRowSetStore(baseDir string) *LocalRowSetStore {
	if baseDir == "" {
		baseDir = "."
	}
	return &LocalRowSetStore{BaseDir: baseDir}
}

func (s *LocalRowSetStore) Save(ctx context.Context, set domain.RowSet) error {
	_ = ctx

	if err := os.MkdirAll(s.BaseDir, 0o755); err != nil {
		return fmt.Errorf("create row store dir %s: %w", s.BaseDir, err)
	}

	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode row set %s: %w", set.JobID, err)
	}

	path := s.path(set.JobID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write row set %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit row set %s: %w", path, err)
	}
	return nil
}

func (s *LocalRowSetStore) Load(ctx context.Context, jobID string) (domain.RowSet, error) {
	_ = ctx

	data, err := os.ReadFile(s.path(jobID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.RowSet{}, domain.ErrRowSetNotFound
		}
		return domain.RowSet{}, fmt.Errorf("read row set %s: %w", jobID, err)
	}

	var set domain.RowSet
	if err := json.Unmarshal(data, &set); err != nil {
		return domain.RowSet{}, fmt.Errorf("decode row set %s: %w", jobID, err)
	}
	return set, nil
}

func (s *LocalRowSetStore) path(jobID string) string {
	return filepath.Join(s.BaseDir, filepath.Base(jobID)+".json")
}
