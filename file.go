package getter

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	geterrors "github.com/input-output-hk/catalyst-forge-libs/getter/errors"
)

// FileGetter serves file:// sources and schemeless local paths. By
// default it copies the source file into staging; in symlink mode it
// stages a symbolic link instead, so the destination tracks the source.
type FileGetter struct {
	fs      billy.Filesystem
	symlink bool
}

// FileOption configures a FileGetter.
type FileOption func(*FileGetter)

// WithFileSymlink makes the getter stage symbolic links instead of
// copying content.
func WithFileSymlink(enabled bool) FileOption {
	return func(g *FileGetter) { g.symlink = enabled }
}

// WithFileFilesystem sets the filesystem sources are read from. The
// default is the host OS filesystem.
func WithFileFilesystem(fsys billy.Filesystem) FileOption {
	return func(g *FileGetter) { g.fs = fsys }
}

// NewFileGetter creates the local file getter.
func NewFileGetter(opts ...FileOption) *FileGetter {
	g := &FileGetter{fs: osfs.New("/")}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Matches reports true for file sources.
func (g *FileGetter) Matches(loc *Locator) bool {
	return loc.Scheme == SchemeFile
}

// Fetch stages the source file's content, or in symlink mode a link to
// its absolute path. Symlink mode is set on the getter or per source
// with the symlink=true option. Relative sources resolve against the
// working directory.
func (g *FileGetter) Fetch(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
	if err := ctx.Err(); err != nil {
		kind, _ := classifyContext(err)
		return geterrors.New("file", kind, err)
	}
	if loc.Path == "" {
		return geterrors.Newf("file", geterrors.KindInvalidLocator, "empty file path in %q", loc.Raw)
	}

	src, err := filepath.Abs(loc.Path)
	if err != nil {
		return geterrors.New("file", geterrors.KindInvalidLocator, err)
	}

	info, err := g.fs.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return geterrors.Newf("file", geterrors.KindNotFound, "%s does not exist", src)
		}
		return geterrors.New("file", geterrors.KindUnknown, err)
	}

	if g.symlink || loc.Option("symlink") == "true" {
		if err := st.Symlink(src); err != nil {
			return geterrors.New("file", geterrors.KindUnknown, err)
		}
		return nil
	}

	if info.IsDir() {
		return geterrors.Newf("file", geterrors.KindInvalidLocator, "%s is a directory, not a file", src)
	}

	f, err := g.fs.Open(src)
	if err != nil {
		return geterrors.New("file", geterrors.KindUnknown, err)
	}
	defer f.Close()

	if _, err := st.WriteFrom(f); err != nil {
		return geterrors.New("file", geterrors.KindUnknown, err)
	}
	return nil
}
