package media

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/angelmondragon/storefront-backend/pkg/storage"
)

// Staging holds uploaded bytes on local disk between request parsing and the
// remote transfer.
type Staging struct {
	fs  afero.Fs
	dir string
}

// NewStaging prepares dir on fs. Production passes afero.NewOsFs; tests pass a MemMapFs.
func NewStaging(fs afero.Fs, dir string) (*Staging, error) {
	if fs == nil {
		return nil, fmt.Errorf("staging filesystem required")
	}
	if dir == "" {
		return nil, fmt.Errorf("staging directory required")
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging dir %q: %w", dir, err)
	}
	return &Staging{fs: fs, dir: dir}, nil
}

// Stage writes data to a fresh file and returns its path.
func (s *Staging) Stage(data []byte, name string) (string, error) {
	f, err := afero.TempFile(s.fs, s.dir, "stage-*-"+storage.SanitizeName(name))
	if err != nil {
		return "", fmt.Errorf("creating staged file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(f.Name())
		return "", fmt.Errorf("writing staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(f.Name())
		return "", fmt.Errorf("closing staged file: %w", err)
	}
	return f.Name(), nil
}

func (s *Staging) Open(path string) (afero.File, error) {
	return s.fs.Open(path)
}

// Remove deletes a staged file. Missing files are not an error.
func (s *Staging) Remove(path string) error {
	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Pending lists files still present in the staging directory.
func (s *Staging) Pending() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, filepath.Join(s.dir, e.Name()))
		}
	}
	return out, nil
}
