// Package stagecache persists intermediate pipeline results as JSON files
// keyed by a document fingerprint.
package stagecache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/cognicore/tradeprep/pkg/tradeprep/internalerr"
)

// Fingerprint identifies a document by name, modification time and size.
// Content is not hashed; touching a file invalidates its cache.
func Fingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", path, internalerr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	return FingerprintInfo(info), nil
}

// FingerprintInfo computes the fingerprint from file info.
func FingerprintInfo(info os.FileInfo) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%d:%d", info.Name(), info.ModTime().UnixNano(), info.Size())))
	return hex.EncodeToString(sum[:])
}

// Dir is a cache rooted at a directory. Entries are named
// <key>.<stage>.json.
type Dir struct {
	root string
}

// Open creates the cache directory if needed.
func Open(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) path(key, stage string) string {
	return filepath.Join(d.root, key+"."+stage+".json")
}

// Load decodes the entry for key and stage into v. It reports false when
// there is no entry.
func (d *Dir) Load(_ context.Context, key, stage string, v any) (bool, error) {
	data, err := os.ReadFile(d.path(key, stage))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cache %s/%s: %w", key, stage, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode cache %s/%s: %w", key, stage, err)
	}
	return true, nil
}

// Save writes v as the entry for key and stage. The file is replaced
// atomically.
func (d *Dir) Save(_ context.Context, key, stage string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache %s/%s: %w", key, stage, err)
	}
	tmp, err := os.CreateTemp(d.root, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path(key, stage)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// Invalidate removes every stage stored for key.
func (d *Dir) Invalidate(_ context.Context, key string) error {
	matches, err := filepath.Glob(filepath.Join(d.root, key+".*.json"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("invalidate %s: %w", key, err)
		}
	}
	return nil
}

// Lock takes an exclusive file lock for key so two processes do not work
// on the same document at once. The returned func releases it.
func (d *Dir) Lock(ctx context.Context, key string) (func(), error) {
	l := flock.New(filepath.Join(d.root, key+".lock"))
	locked, err := l.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return func() {}, fmt.Errorf("lock %s: %w", key, err)
	}
	if !locked {
		return func() {}, fmt.Errorf("lock %s: not acquired", key)
	}
	return func() { _ = l.Unlock() }, nil
}
