package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/logging"
)

const (
	// PointerFile names the file holding the name of the latest snapshot.
	PointerFile = "LATEST"

	filePrefix    = "intelligence_"
	jsonExt       = ".json"
	zstdExt       = ".json.zst"
	fileTimestamp = "20060102T150405.000000000Z"
)

// FileStore keeps snapshots as JSON files in one directory:
//
//	intelligence_<timestamp>_<id>.json[.zst]
//	LATEST
//
// Every file is written to a temporary name, synced and renamed into place.
// The snapshot file is renamed before LATEST is replaced, so a reader
// following LATEST never sees a partial document.
type FileStore struct {
	dir      string
	compress bool
	retain   int
	log      *logging.Logger
}

// NewFileStore creates a file store for the configured directory.
func NewFileStore(cfg config.SnapshotConfig, log *logging.Logger) *FileStore {
	return &FileStore{
		dir:      cfg.Dir,
		compress: cfg.Compress,
		retain:   cfg.Retain,
		log:      log.Sub("snapshot"),
	}
}

// Dir returns the snapshot directory.
func (s *FileStore) Dir() string { return s.dir }

// Save writes snap and points LATEST at it.
func (s *FileStore) Save(ctx context.Context, snap domain.Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSnapshotWrite, err)
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: encoding: %w", ErrSnapshotWrite, err)
	}
	if s.compress {
		if data, err = compress(data); err != nil {
			return "", fmt.Errorf("%w: %w", ErrSnapshotWrite, err)
		}
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("%w: creating directory: %w", ErrSnapshotWrite, err)
	}

	name := s.fileName(snap)
	if err := writeAtomic(filepath.Join(s.dir, name), data); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSnapshotWrite, err)
	}
	if err := writeAtomic(filepath.Join(s.dir, PointerFile), []byte(name+"\n")); err != nil {
		// The new file exists but LATEST still names the previous one.
		os.Remove(filepath.Join(s.dir, name))
		return "", fmt.Errorf("%w: updating %s: %w", ErrSnapshotWrite, PointerFile, err)
	}

	s.log.Info().Str("file", name).Int("agents", len(snap.Agents)).Msg("snapshot saved")
	if err := s.prune(name); err != nil {
		s.log.Warn().Err(err).Msg("pruning old snapshots")
	}
	return snap.ID, nil
}

// LoadLatest reads the snapshot named by LATEST.
func (s *FileStore) LoadLatest(ctx context.Context) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ptr, err := os.ReadFile(filepath.Join(s.dir, PointerFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", PointerFile, err)
	}
	name := strings.TrimSpace(string(ptr))
	if name == "" || filepath.Base(name) != name {
		return nil, fmt.Errorf("invalid %s pointer %q", PointerFile, name)
	}
	return s.Load(name)
}

// Load reads a snapshot file by name.
func (s *FileStore) Load(name string) (*domain.Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if strings.HasSuffix(name, zstdExt) {
		if data, err = decompress(data); err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", name, err)
		}
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return &snap, nil
}

// List returns the stored snapshot file names, oldest first.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.Type().IsRegular() && strings.HasPrefix(n, filePrefix) &&
			(strings.HasSuffix(n, jsonExt) || strings.HasSuffix(n, zstdExt)) {
			names = append(names, n)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (s *FileStore) fileName(snap domain.Snapshot) string {
	ext := jsonExt
	if s.compress {
		ext = zstdExt
	}
	id := snap.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return filePrefix + snap.GeneratedAt.UTC().Format(fileTimestamp) + "_" + id + ext
}

// prune removes the oldest snapshots beyond the retain limit. The current
// snapshot is never removed.
func (s *FileStore) prune(current string) error {
	if s.retain <= 0 {
		return nil
	}
	names, err := s.List()
	if err != nil {
		return err
	}
	excess := len(names) - s.retain
	var errs []error
	for _, n := range names {
		if excess <= 0 {
			break
		}
		if n == current {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, n)); err != nil {
			errs = append(errs, err)
			continue
		}
		excess--
	}
	return errors.Join(errs...)
}

// writeAtomic writes data to a temporary file in the target directory,
// syncs it and renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	syncDir(dir)
	return nil
}

// syncDir flushes a rename to disk where the filesystem supports it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zstd: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	zr, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
