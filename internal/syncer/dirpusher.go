package syncer

import (
	"context"
	"os"
	"path/filepath"
)

// DirPusher pushes compiled documents into a local directory tree, one
// subdirectory per target.
type DirPusher struct {
	base string
}

func NewDirPusher(base string) *DirPusher {
	return &DirPusher{base: base}
}

func (p *DirPusher) targetDir(target string) string {
	return filepath.Join(p.base, target)
}

func (p *DirPusher) ListDocs(ctx context.Context, target string) ([]string, error) {
	entries, err := os.ReadDir(p.targetDir(target))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (p *DirPusher) UpsertDoc(ctx context.Context, target, fileName, content string) error {
	dir := p.targetDir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fileName), []byte(content), 0o644)
}

func (p *DirPusher) DeleteDoc(ctx context.Context, target, fileName string) error {
	err := os.Remove(filepath.Join(p.targetDir(target), fileName))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
