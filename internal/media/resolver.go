package media

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Resolution is a variant chosen for a source link.
type Resolution struct {
	SourceURL string  `json:"sourceUrl"`
	Title     string  `json:"title"`
	Mode      Mode    `json:"mode"`
	Variant   Variant `json:"variant"`
}

// Kind returns the kind of media being delivered.
func (r Resolution) Kind() Kind {
	return r.Mode.Kind()
}

// Resolver looks up the variants of a source link and applies a selection
// policy. It holds no per-request state.
type Resolver struct {
	provider Provider
	timeout  time.Duration
}

// NewResolver returns a Resolver that bounds each provider lookup by timeout.
// A timeout <= 0 leaves the lookup bounded only by the caller's context.
func NewResolver(provider Provider, timeout time.Duration) *Resolver {
	return &Resolver{provider: provider, timeout: timeout}
}

// Resolve selects a variant of sourceURL under mode. It returns
// ErrNoSuitableFormat when nothing matches the mode's role, ErrUpstreamTimeout
// when the provider did not answer in time and ErrUpstream for any other
// provider failure.
func (r *Resolver) Resolve(ctx context.Context, sourceURL string, mode Mode) (Resolution, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	info, err := r.provider.Lookup(ctx, sourceURL)
	if err != nil {
		return Resolution{}, classifyLookupError(ctx, err)
	}

	v, err := mode.Select(info.Variants)
	if err != nil {
		return Resolution{}, err
	}

	return Resolution{SourceURL: sourceURL, Title: info.Title, Mode: mode, Variant: v}, nil
}

func classifyLookupError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrUpstreamTimeout):
		return err
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err):
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	case errors.Is(err, ErrNoSuitableFormat), errors.Is(err, ErrUpstream):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
}
