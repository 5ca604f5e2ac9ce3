package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg/util"
)

const maskSuffix = "_mask.png"

var resultExts = []string{".png", ".jpg", ".webp"}

var errResultNotFound = errors.New("result not found")

// ResultStore 把结果落盘到 output 目录，文件名是 ksuid
type ResultStore struct {
	dir string
}

func NewResultStore(dir string) (*ResultStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &ResultStore{dir: dir}, nil
}

// Save 写入结果图和 mask，ext 为 ".png"、".jpg" 或 ".webp"
func (s *ResultStore) Save(id, ext string, image, mask []byte) error {
	if err := os.WriteFile(filepath.Join(s.dir, id+ext), image, 0o644); err != nil {
		return err
	}
	if mask == nil {
		return nil
	}
	return os.WriteFile(filepath.Join(s.dir, id+maskSuffix), mask, 0o644)
}

// Path 返回结果图路径，id 非法或文件已被清理时返回 errResultNotFound
func (s *ResultStore) Path(id string) (string, error) {
	if _, err := ksuid.Parse(id); err != nil {
		return "", errResultNotFound
	}
	for _, ext := range resultExts {
		p := filepath.Join(s.dir, id+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errResultNotFound
}

func (s *ResultStore) MaskPath(id string) (string, error) {
	if _, err := ksuid.Parse(id); err != nil {
		return "", errResultNotFound
	}
	p := filepath.Join(s.dir, id+maskSuffix)
	if _, err := os.Stat(p); err != nil {
		return "", errResultNotFound
	}
	return p, nil
}

// Sweep 删除修改时间早于 now-retention 的文件，返回删除数量
func (s *ResultStore) Sweep(now time.Time, retention time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		util.Logger.Warn("failed to read output dir", zap.String("dir", s.dir), zap.Error(err))
		return 0
	}

	removed := 0
	deadline := now.Add(-retention)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(deadline) {
			continue
		}
		p := filepath.Join(s.dir, e.Name())
		if err := os.Remove(p); err != nil {
			util.Logger.Warn("failed to delete expired result", zap.String("file", p), zap.Error(err))
			continue
		}
		removed++
	}
	return removed
}
