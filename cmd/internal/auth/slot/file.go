package slot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type fileBackend struct {
	path string
}

// NewFile returns a Slot stored as dir/<key>.json. Writes replace the file
// atomically and are readable by the owner only.
func NewFile(log *slog.Logger, dir, key string) (Slot, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("slot: empty state dir")
	}
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	return newCodecSlot(log, key, &fileBackend{path: filepath.Join(dir, key+".json")}), nil
}

func (f *fileBackend) get(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (f *fileBackend) set(ctx context.Context, b []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".slot-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer func() { _ = os.Remove(name) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(name, f.path)
}

func (f *fileBackend) del(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *fileBackend) describe() string { return fmt.Sprintf("file:%s", f.path) }
