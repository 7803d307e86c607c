package getter

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"

	geterrors "github.com/input-output-hk/catalyst-forge-libs/getter/errors"
)

// AuthProvider supplies credentials for a git remote.
type AuthProvider interface {
	// Method returns the transport auth for remoteURL, or nil when the
	// remote is anonymous.
	Method(remoteURL string) (transport.AuthMethod, error)
}

// cloneFunc performs the clone into the given worktree. Tests swap it
// for an in-process builder.
type cloneFunc func(ctx context.Context, worktree billy.Filesystem, o *gogit.CloneOptions) (*gogit.Repository, error)

// GitGetter serves git sources by cloning the repository into memory
// and staging the one file the subpath names.
type GitGetter struct {
	auth  AuthProvider
	clone cloneFunc
}

// GitOption configures a GitGetter.
type GitOption func(*GitGetter)

// WithGitAuth supplies credentials for authenticated remotes.
func WithGitAuth(p AuthProvider) GitOption {
	return func(g *GitGetter) { g.auth = p }
}

// NewGitGetter creates the git getter.
func NewGitGetter(opts ...GitOption) *GitGetter {
	g := &GitGetter{
		clone: func(ctx context.Context, worktree billy.Filesystem, o *gogit.CloneOptions) (*gogit.Repository, error) {
			return gogit.CloneContext(ctx, memory.NewStorage(), worktree, o)
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Matches reports true for git sources.
func (g *GitGetter) Matches(loc *Locator) bool {
	return loc.Scheme == SchemeGit
}

// Fetch clones the repository and stages the file named after the //
// separator. The ref option selects a branch or tag, depth bounds the
// clone history.
func (g *GitGetter) Fetch(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
	if loc.Path == "" || loc.remote == "" {
		return geterrors.Newf("git", geterrors.KindInvalidLocator, "no repository in %q", loc.Raw)
	}
	if loc.Subpath == "" {
		return geterrors.Newf("git", geterrors.KindInvalidLocator, "%q does not name a file inside the repository (append //path)", loc.Raw)
	}

	var auth transport.AuthMethod
	if g.auth != nil {
		m, err := g.auth.Method(loc.remote)
		if err != nil {
			return geterrors.New("git", geterrors.KindAuthentication, err)
		}
		auth = m
	}

	depth := 0
	if d := loc.Option("depth"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			return geterrors.Newf("git", geterrors.KindInvalidLocator, "invalid depth %q", d)
		}
		depth = n
	}

	cloneOpts := &gogit.CloneOptions{
		URL:          loc.remote,
		Auth:         auth,
		Depth:        depth,
		SingleBranch: depth > 0,
	}
	ref := loc.Option("ref")
	if ref != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(ref)
		cloneOpts.SingleBranch = true
	}

	worktree := memfs.New()
	_, err := g.clone(ctx, worktree, cloneOpts)
	if err != nil && ref != "" && errors.Is(err, gogit.NoMatchingRefSpecError{}) {
		// The ref may name a tag rather than a branch.
		cloneOpts.ReferenceName = plumbing.NewTagReferenceName(ref)
		worktree = memfs.New()
		_, err = g.clone(ctx, worktree, cloneOpts)
	}
	if err != nil {
		return geterrors.New("git", classifyGitErr(err), err)
	}

	f, err := worktree.Open(loc.Subpath)
	if err != nil {
		if os.IsNotExist(err) {
			return geterrors.Newf("git", geterrors.KindNotFound, "%s not found in repository %s", loc.Subpath, loc.remote)
		}
		return geterrors.New("git", geterrors.KindUnknown, err)
	}
	defer f.Close()

	if _, err := st.WriteFrom(f); err != nil {
		return geterrors.New("git", geterrors.KindUnknown, err)
	}
	return nil
}

// classifyGitErr maps go-git clone failures.
func classifyGitErr(err error) geterrors.Kind {
	if kind, ok := classifyContext(err); ok {
		return kind
	}
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		return geterrors.KindAuthentication
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return geterrors.KindNotFound
	case errors.Is(err, gogit.NoMatchingRefSpecError{}):
		return geterrors.KindNotFound
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return geterrors.KindTimeout
		}
		return geterrors.KindTransientTransport
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return geterrors.KindTransientTransport
	}
	return geterrors.KindUnknown
}
