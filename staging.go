package getter

import (
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"

	geterrors "github.com/input-output-hk/catalyst-forge-libs/getter/errors"
)

// Staging is the partial-download target getters write into. It is a
// temporary file in the destination's directory, so publishing the
// finished content is a single same-filesystem rename. Getters write
// through Create or WriteFrom; the dispatcher owns reset, discard and
// commit.
type Staging struct {
	fs       billy.Filesystem
	path     string
	progress ProgressFunc
}

// newStaging allocates the staging file next to destination, creating
// parent directories as needed.
func newStaging(fsys billy.Filesystem, destination string, progress ProgressFunc) (*Staging, error) {
	dir := filepath.Dir(destination)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := fsys.TempFile(dir, "."+filepath.Base(destination)+".getter-")
	if err != nil {
		return nil, err
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = fsys.Remove(path)
		return nil, err
	}
	return &Staging{fs: fsys, path: path, progress: progress}, nil
}

// Path returns the staging file's path, for getters that hand a path to
// an external writer. Most getters should prefer WriteFrom.
func (s *Staging) Path() string {
	return s.path
}

// Create opens the staging file for writing, truncating any previous
// content.
func (s *Staging) Create() (billy.File, error) {
	return s.fs.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
}

// WriteFrom streams r into the staging file and reports the number of
// bytes written. The progress callback observes every chunk.
func (s *Staging) WriteFrom(r io.Reader) (int64, error) {
	f, err := s.Create()
	if err != nil {
		return 0, err
	}
	var w io.Writer = f
	if s.progress != nil {
		w = &countingWriter{w: f, fn: s.progress}
	}
	n, err := io.Copy(w, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Symlink replaces the staging file with a symbolic link to target, for
// getters that stage links instead of content.
func (s *Staging) Symlink(target string) error {
	if err := s.fs.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return s.fs.Symlink(target, s.path)
}

// reset clears staged state between attempts so a retry never mixes its
// bytes with a failed predecessor's. A staged symlink is replaced by an
// empty file.
func (s *Staging) reset() error {
	info, err := s.fs.Lstat(s.path)
	if err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := s.fs.Remove(s.path); err != nil {
			return err
		}
	}
	f, err := s.Create()
	if err != nil {
		return err
	}
	return f.Close()
}

// discard removes the staging file. It is idempotent and safe to call
// after commit has already renamed the file away.
func (s *Staging) discard() {
	_ = s.fs.Remove(s.path)
}

// commit publishes the staged content at dest via rename and returns
// the committed size. The existence check runs again here so nothing
// slips between the dispatcher's early check and the rename.
func (s *Staging) commit(dest string, overwrite bool) (int64, error) {
	info, err := s.fs.Lstat(s.path)
	if err != nil {
		return 0, geterrors.New("commit", geterrors.KindCommit, err)
	}
	var size int64
	if info.Mode()&os.ModeSymlink == 0 {
		size = info.Size()
	}

	if !overwrite {
		if _, err := s.fs.Lstat(dest); err == nil {
			return 0, geterrors.Newf("commit", geterrors.KindDestinationExists, "destination %s already exists", dest)
		} else if !os.IsNotExist(err) {
			return 0, geterrors.New("commit", geterrors.KindCommit, err)
		}
	}

	if err := s.fs.Rename(s.path, dest); err != nil {
		// Some filesystems refuse to rename onto an existing file.
		if overwrite {
			if _, statErr := s.fs.Lstat(dest); statErr == nil {
				if rmErr := s.fs.Remove(dest); rmErr == nil {
					if err := s.fs.Rename(s.path, dest); err == nil {
						return size, nil
					}
				}
			}
		}
		return 0, geterrors.New("commit", geterrors.KindCommit, err)
	}
	return size, nil
}

// countingWriter feeds a progress callback as bytes land in staging.
type countingWriter struct {
	w  io.Writer
	fn ProgressFunc
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if n > 0 {
		c.fn(int64(n))
	}
	return n, err
}
