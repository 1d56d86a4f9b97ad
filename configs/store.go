package configs

import (
	"errors"
	"fmt"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sardine-ai/go-installer-config/model"
	"github.com/sirupsen/logrus"
	"io"
	"os"
	"path/filepath"
	"sort"
)

const dirPerm = 0o755

// Store reads and writes INI config documents on a filesystem rooted at the
// install directory. Every call goes to the filesystem; nothing is cached.
type Store struct {
	fs billy.Filesystem
}

// NewStore returns a Store on fs. Paths handed to the Store are relative to
// the root of fs.
func NewStore(fs billy.Filesystem) *Store {
	return &Store{fs: fs}
}

// Open returns a Store rooted at the directory root on the local disk.
func Open(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		logrus.WithError(err).Error("error getting absolute path")
		return nil, err
	}
	return NewStore(osfs.New(abs)), nil
}

// Filesystem returns the filesystem the Store operates on.
func (s *Store) Filesystem() billy.Filesystem {
	return s.fs
}

// Read parses the config file at path.
func (s *Store) Read(path string) (model.Document, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}
	defer func(f billy.File) {
		if err := f.Close(); err != nil {
			logrus.WithError(err).Error("error closing file")
		}
	}(f)

	data, err := io.ReadAll(f)
	if err != nil {
		logrus.WithField("path", path).Debug("error reading file")
		return nil, err
	}

	doc, err := Decode(data)
	if err != nil {
		logrus.WithField("path", path).Debug("error parsing file")
		return nil, &ParseError{Path: path, Err: err}
	}
	return doc, nil
}

// Write serializes doc and replaces the file at path with it. Missing parent
// directories are created; existing ones are left alone. The new content is
// written to a temporary file in the same directory and renamed into place,
// so readers see either the old or the new file.
func (s *Store) Write(path string, doc model.Document) error {
	file := filepath.Base(path)
	fail := func(err error) error {
		return &WriteError{Err: err, File: file, Path: path}
	}

	data, err := Encode(doc)
	if err != nil {
		return fail(err)
	}

	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
		return fail(err)
	}
	info, err := s.fs.Stat(dir)
	if err != nil {
		return fail(err)
	}
	if !info.IsDir() {
		return fail(fmt.Errorf("directory %s was not created", dir))
	}

	tmp, err := s.fs.TempFile(dir, "."+file+".")
	if err != nil {
		return fail(err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		s.discard(tmpName)
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		s.discard(tmpName)
		return fail(err)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		s.discard(tmpName)
		return fail(err)
	}

	logrus.WithFields(logrus.Fields{"path": path, "sections": len(doc)}).Debug("config written")
	return nil
}

// Delete removes the config file at path.
func (s *Store) Delete(path string) error {
	err := s.fs.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	return err
}

// Exists reports whether a config file is present at path.
func (s *Store) Exists(path string) bool {
	info, err := s.fs.Stat(path)
	return err == nil && !info.IsDir()
}

// ChainNames lists, in sorted order, the chains of family that have a config
// directory.
func (s *Store) ChainNames(family model.ChainFamily) ([]string, error) {
	dir, err := ChainsLocation(family)
	if err != nil {
		return nil, err
	}
	entries, err := s.fs.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) discard(name string) {
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).WithField("path", name).Warn("error removing temporary file")
	}
}
