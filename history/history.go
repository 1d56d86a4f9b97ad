package history

import (
	"errors"
	"fmt"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/sirupsen/logrus"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Author is the default signature used for history commits.
var Author = object.Signature{Name: "installer", Email: "installer@localhost"}

// Revision is one commit that touched a config file.
type Revision struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	When    time.Time `json:"when"`
}

// GitDirName is the repository directory inside the history worktree.
const GitDirName = ".history"

// Recorder commits config files into a git repository of its own. Paths given
// to a Recorder are relative to the install root; only files under its
// worktree directory can be recorded.
type Recorder struct {
	sync.Mutex
	repository *git.Repository
	dir        string
	author     object.Signature
}

// Open opens the history of the config tree in dir on fs, creating it when it
// does not exist yet. The repository lives in dir/.history and its worktree
// is dir, so a git checkout enclosing the install root is never touched.
func Open(fs billy.Filesystem, dir string) (*Recorder, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	work, err := fs.Chroot(dir)
	if err != nil {
		return nil, err
	}
	dot, err := work.Chroot(GitDirName)
	if err != nil {
		return nil, err
	}
	storage := filesystem.NewStorage(dot, cache.NewObjectLRUDefault())

	r, err := git.Open(storage, work)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		logrus.WithField("root", work.Root()).Info("initialising config history")
		r, err = git.Init(storage, work)
	}
	if err != nil {
		return nil, err
	}
	recorder := New(r)
	recorder.dir = dir
	return recorder, nil
}

// New returns a Recorder on an existing repository whose worktree is the
// install root.
func New(r *git.Repository) *Recorder {
	return &Recorder{repository: r, dir: ".", author: Author}
}

// worktreePath maps a path relative to the install root into the worktree.
func (h *Recorder) worktreePath(path string) (string, error) {
	rel, err := filepath.Rel(h.dir, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the history directory %s", path, h.dir)
	}
	return filepath.ToSlash(rel), nil
}

// SetAuthor changes the signature used for future commits.
func (h *Recorder) SetAuthor(name, email string) {
	h.Lock()
	defer h.Unlock()
	h.author = object.Signature{Name: name, Email: email}
}

// Record stages path and commits it with message. It returns false when the
// file did not change since the last commit.
func (h *Recorder) Record(path, message string) (bool, error) {
	h.Lock()
	defer h.Unlock()

	path, err := h.worktreePath(path)
	if err != nil {
		return false, err
	}
	w, err := h.repository.Worktree()
	if err != nil {
		return false, err
	}
	if _, err := w.Add(path); err != nil {
		return false, fmt.Errorf("staging %s: %w", path, err)
	}
	return h.commit(w, path, message)
}

// Remove records the deletion of path.
func (h *Recorder) Remove(path, message string) (bool, error) {
	h.Lock()
	defer h.Unlock()

	path, err := h.worktreePath(path)
	if err != nil {
		return false, err
	}
	w, err := h.repository.Worktree()
	if err != nil {
		return false, err
	}
	if _, err := w.Remove(path); err != nil {
		// Never committed: nothing to record.
		if errors.Is(err, index.ErrEntryNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("removing %s: %w", path, err)
	}
	return h.commit(w, path, message)
}

func (h *Recorder) commit(w *git.Worktree, path, message string) (bool, error) {
	status, err := w.Status()
	if err != nil {
		return false, err
	}
	if st, ok := status[path]; !ok || st.Staging == git.Unmodified {
		logrus.WithField("path", path).Debug("config unchanged, nothing to commit")
		return false, nil
	}

	author := h.author
	author.When = time.Now()
	hash, err := w.Commit(message, &git.CommitOptions{Author: &author})
	if err != nil {
		return false, fmt.Errorf("committing %s: %w", path, err)
	}
	logrus.WithFields(logrus.Fields{"path": path, "commit": hash.String()}).Debug("config committed")
	return true, nil
}

// Log lists up to limit revisions touching path, newest first. A limit of
// zero or less means no limit.
func (h *Recorder) Log(path string, limit int) ([]Revision, error) {
	h.Lock()
	defer h.Unlock()

	path, err := h.worktreePath(path)
	if err != nil {
		return nil, err
	}
	revisions := []Revision{}
	if _, err := h.repository.Head(); errors.Is(err, plumbing.ErrReferenceNotFound) {
		return revisions, nil
	}

	iter, err := h.repository.Log(&git.LogOptions{FileName: &path})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(revisions) >= limit {
			return storer.ErrStop
		}
		revisions = append(revisions, Revision{
			Hash:    c.Hash.String(),
			Message: c.Message,
			Author:  c.Author.Name,
			When:    c.Author.When,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return revisions, nil
}
