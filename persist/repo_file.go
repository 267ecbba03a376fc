package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
)

const defaultStateFile = "console_state.json"

// FileRepo keeps all keys in one JSON document inside the data folder. Writes go to a
// temp file that is renamed over the document, so a crash never leaves it half written.
type FileRepo struct {
	mu     sync.Mutex
	path   string
	sealer *Sealer
}

var _ Repo = (*FileRepo)(nil)

type FileRepoOption func(*FileRepo)

// WithSealer encrypts the document at rest
func WithSealer(sealer *Sealer) FileRepoOption {
	return func(r *FileRepo) {
		r.sealer = sealer
	}
}

func WithFileName(name string) FileRepoOption {
	return func(r *FileRepo) {
		r.path = filepath.Join(filepath.Dir(r.path), name)
	}
}

func NewFileRepo(folder string, options ...FileRepoOption) (*FileRepo, error) {
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, fmt.Errorf("[NewFileRepo] create folder: %w", err)
	}
	r := &FileRepo{path: filepath.Join(folder, defaultStateFile)}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

func (r *FileRepo) Path() string {
	return r.path
}

func (r *FileRepo) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("key cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.load()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("[FileRepo Get] %s: %w", key, apperrors.ErrNotFound)
	}
	return v, nil
}

func (r *FileRepo) Set(_ context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.load()
	if err != nil {
		return err
	}
	values[key] = value
	return r.save(values)
}

func (r *FileRepo) Delete(_ context.Context, key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return r.save(values)
}

func (r *FileRepo) Take(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("key cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.load()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("[FileRepo Take] %s: %w", key, apperrors.ErrNotFound)
	}
	delete(values, key)
	if err := r.save(values); err != nil {
		return "", err
	}
	return v, nil
}

func (r *FileRepo) load() (map[string]string, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("[FileRepo load] read: %w", err)
	}

	if r.sealer != nil {
		if data, err = r.sealer.Open(data); err != nil {
			return nil, fmt.Errorf("[FileRepo load] %w", err)
		}
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("[FileRepo load] decode: %w", err)
	}
	return values, nil
}

func (r *FileRepo) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("[FileRepo save] encode: %w", err)
	}

	if r.sealer != nil {
		if data, err = r.sealer.Seal(data); err != nil {
			return fmt.Errorf("[FileRepo save] %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".state-*")
	if err != nil {
		return fmt.Errorf("[FileRepo save] temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileRepo save] write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[FileRepo save] close: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("[FileRepo save] rename: %w", err)
	}
	return nil
}
