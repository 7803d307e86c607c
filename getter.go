package getter

import (
	"context"
	"errors"

	geterrors "github.com/input-output-hk/catalyst-forge-libs/getter/errors"
)

// Getter retrieves content for one source family.
//
// Implementations must be safe for concurrent use: a single getter value
// serves every request the registry routes to it.
type Getter interface {
	// Matches reports whether the getter can handle loc. It must be a
	// cheap, side-effect-free inspection of the locator; no I/O.
	Matches(loc *Locator) bool

	// Fetch retrieves the content loc names into the staging target. It
	// must write only through st, honor ctx cancellation and deadlines,
	// and classify failures with the errors package kinds. Fetch never
	// touches the final destination; the dispatcher owns it.
	Fetch(ctx context.Context, loc *Locator, st *Staging, opts Options) error
}

// classifyContext maps context termination to its failure kind.
func classifyContext(err error) (geterrors.Kind, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return geterrors.KindTimeout, true
	case errors.Is(err, context.Canceled):
		return geterrors.KindCanceled, true
	}
	return "", false
}
