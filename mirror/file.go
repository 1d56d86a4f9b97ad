package mirror

import (
	"context"
	"errors"
	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/sirupsen/logrus"
	"os"
	"path/filepath"
)

// FileSink mirrors config files into a local backup directory, for example a
// mounted volume.
type FileSink struct {
	Dir string // Backup directory
}

func (f *FileSink) path(key string) (string, error) {
	return securejoin.SecureJoin(f.Dir, filepath.FromSlash(Key("", key)))
}

// Put writes data under key, creating directories as needed.
func (f *FileSink) Put(_ context.Context, key string, data []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		logrus.WithError(err).WithField("path", p).Debug("error creating backup directory")
		return err
	}
	return os.WriteFile(p, data, 0o600)
}

// Get reads the copy stored under key.
func (f *FileSink) Get(_ context.Context, key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// GetType returns the type of the sink (in this case, "fs").
func (f *FileSink) GetType() string {
	return "fs"
}
