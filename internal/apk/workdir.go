package apk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const metaFile = ".meta"

// WorkDir is a scratch directory with a lifetime recorded in its .meta file.
type WorkDir struct {
	ID     string    `json:"id"`
	Dir    string    `json:"dir"`
	Expire time.Time `json:"expire"`
}

type workMeta struct {
	Birth int64 `json:"birth"`
	Live  int64 `json:"live"` // seconds
}

// MkTempDir creates parent/<uuid> and records its birth and lifetime.
func MkTempDir(parent string, live time.Duration) (*WorkDir, error) {
	id := uuid.New().String()
	dir := filepath.Join(parent, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("apk: mkdir: %w", err)
	}
	now := time.Now()
	meta := workMeta{Birth: now.Unix(), Live: int64(live / time.Second)}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("apk: write meta: %w", err)
	}
	return &WorkDir{ID: id, Dir: dir, Expire: time.Unix(meta.Birth+meta.Live, 0)}, nil
}

// SweepExpired removes work directories under parent whose lifetime has
// passed at now. Directories without a readable .meta are left alone.
func SweepExpired(parent string, now time.Time) ([]string, error) {
	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(parent, e.Name())
		data, err := os.ReadFile(filepath.Join(dir, metaFile))
		if err != nil {
			continue
		}
		var m workMeta
		if json.Unmarshal(data, &m) != nil {
			continue
		}
		if now.Unix() < m.Birth+m.Live {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return removed, err
		}
		removed = append(removed, dir)
	}
	return removed, nil
}
