package persist

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Backends accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open returns the blob store for the configured backend. For "json" path is
// a directory, for "sqlite" a database file.
func Open(backend, path string) (BlobStore, error) {
	switch backend {
	case BackendJSON, "":
		b, err := NewFileBlobs(path)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendSQLite:
		b, err := NewSQLiteBlobs(path)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// MemoryBlobs keeps blobs in a map. Used by tests and one-off CLI runs.
type MemoryBlobs struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{data: make(map[string]string)}
}

func (m *MemoryBlobs) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryBlobs) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FileBlobs stores each key as <dir>/<key>.json.
type FileBlobs struct {
	dir string
}

// NewFileBlobs creates dir (0700) if needed.
func NewFileBlobs(dir string) (*FileBlobs, error) {
	if dir == "" {
		return nil, errors.New("blob directory is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FileBlobs{dir: dir}, nil
}

func (f *FileBlobs) path(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

func (f *FileBlobs) Get(key string) (string, bool, error) {
	p, err := f.path(key)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

// Set writes atomically via a temp file in the same directory + rename.
func (f *FileBlobs) Set(key, value string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "."+key+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, p)
}

// SQLiteBlobs stores blobs in a single bucket/payload table.
type SQLiteBlobs struct {
	db   *sql.DB
	path string
}

// NewSQLiteBlobs opens (and creates) the database at path.
func NewSQLiteBlobs(path string) (*SQLiteBlobs, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS blobs (
		bucket TEXT PRIMARY KEY,
		payload TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create blobs table: %w", err)
	}
	return &SQLiteBlobs{db: db, path: path}, nil
}

func (s *SQLiteBlobs) Get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT payload FROM blobs WHERE bucket = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLiteBlobs) Set(key, value string) error {
	if _, err := s.db.Exec(`INSERT INTO blobs(bucket, payload) VALUES(?, ?) ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload`, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteBlobs) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *SQLiteBlobs) Path() string { return s.path }
