package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"
)

// copyBufferSize bounds how much of a proxied stream is held in memory.
const copyBufferSize = 32 * 1024

// DeliveryOptions configures a Delivery.
type DeliveryOptions struct {
	// HeaderTimeout bounds the wait for the upstream response headers.
	HeaderTimeout time.Duration
	// IdleTimeout aborts a proxied transfer when the upstream sends nothing
	// for this long.
	IdleTimeout time.Duration
	// FilenameSuffix is appended to the sanitized title of attachments.
	FilenameSuffix string
}

// Delivery hands a resolved variant to the caller.
type Delivery struct {
	client      *http.Client
	idleTimeout time.Duration
	suffix      string
}

// NewDelivery returns a Delivery with its own upstream HTTP client.
func NewDelivery(opts DeliveryOptions) *Delivery {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = opts.HeaderTimeout

	return &Delivery{
		client:      &http.Client{Transport: transport},
		idleTimeout: opts.IdleTimeout,
		suffix:      opts.FilenameSuffix,
	}
}

// Redirect answers with a 302 pointing at the variant's direct URL.
func (d *Delivery) Redirect(w http.ResponseWriter, r *http.Request, res Resolution) {
	http.Redirect(w, r, res.Variant.URL, http.StatusFound)
}

// Filename returns the attachment filename for res.
func (d *Delivery) Filename(res Resolution) string {
	return Filename(res.Title, res.Kind(), d.suffix)
}

// Stream proxies the variant's bytes to w as an attachment. Errors returned
// before any byte is written wrap ErrUpstream or ErrUpstreamTimeout and
// leave w untouched. Once the headers are sent, a failing upstream simply
// truncates the response; the returned error then reports why.
func (d *Delivery) Stream(w http.ResponseWriter, r *http.Request, res Resolution) (int64, error) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, res.Variant.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return 0, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: source returned %d", ErrUpstream, resp.StatusCode)
	}

	h := w.Header()
	h.Set("Content-Type", ContentType(res.Kind()))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename(res)}))
	if n := contentLength(res.Variant.ContentLength, resp.ContentLength); n > 0 {
		h.Set("Content-Length", strconv.FormatInt(n, 10))
	}
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	idle := newIdleWatch(d.idleTimeout, cancel)
	defer idle.pause()

	return copyStream(w, resp.Body, idle)
}

// contentLength picks the length to advertise. The provider's figure can be
// stale, so a length reported by the upstream response takes precedence.
// Zero means the length is unknown and no header is sent.
func contentLength(advertised, upstream int64) int64 {
	if advertised <= 0 {
		return 0
	}
	if upstream >= 0 && upstream != advertised {
		return upstream
	}
	return advertised
}

// idleWatch cancels a transfer when the upstream stays silent for longer
// than timeout. Only time spent waiting on the upstream counts: the watch is
// paused while bytes are handed to the caller. A nil idleWatch does nothing.
type idleWatch struct {
	timer   *time.Timer
	timeout time.Duration
}

func newIdleWatch(timeout time.Duration, cancel func()) *idleWatch {
	if timeout <= 0 {
		return nil
	}
	return &idleWatch{timer: time.AfterFunc(timeout, cancel), timeout: timeout}
}

func (iw *idleWatch) pause() {
	if iw != nil {
		iw.timer.Stop()
	}
}

func (iw *idleWatch) resume() {
	if iw != nil {
		iw.timer.Reset(iw.timeout)
	}
}

// copyStream forwards src to w through a fixed buffer, flushing after every
// write so the caller receives bytes as they arrive. idle is paused for the
// duration of each write.
func copyStream(w http.ResponseWriter, src io.Reader, idle *idleWatch) (int64, error) {
	rc := http.NewResponseController(w)
	buf := make([]byte, copyBufferSize)
	var written int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			idle.pause()
			if _, err := w.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return written, err
			}
			idle.resume()
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return written, nil
			}
			return written, readErr
		}
	}
}
