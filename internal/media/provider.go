package media

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
)

var (
	// ErrUpstream is returned when the media-info provider or the byte source
	// fails.
	ErrUpstream = errors.New("upstream failure")

	// ErrUpstreamTimeout is returned when an upstream call does not finish in
	// time. Callers may retry.
	ErrUpstreamTimeout = errors.New("upstream timeout")
)

// Provider lists the variants available for a source link.
type Provider interface {
	Lookup(ctx context.Context, sourceURL string) (Info, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, sourceURL string) (Info, error)

// Lookup implements Provider.
func (f ProviderFunc) Lookup(ctx context.Context, sourceURL string) (Info, error) {
	return f(ctx, sourceURL)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// heightFromLabel reads the resolution out of labels such as "720p" or
// "1080p60".
func heightFromLabel(label string) int {
	i := strings.IndexByte(label, 'p')
	if i <= 0 {
		return 0
	}
	n, err := strconv.Atoi(label[:i])
	if err != nil {
		return 0
	}
	return n
}
