package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const maxInfoBody = 4 << 20

// HTTPProvider asks a remote media-info API for the formats of a source link.
// The API is called as GET {endpoint}?url=<source>[&id=<videoId>] and answers
// with a title and a list of formats.
type HTTPProvider struct {
	endpoint string
	client   *http.Client
}

// NewHTTPProvider returns a provider for the given endpoint. client may be
// nil, in which case http.DefaultClient is used; deadlines come from the
// context passed to Lookup.
func NewHTTPProvider(endpoint string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{endpoint: endpoint, client: client}
}

type infoResponse struct {
	Title   string       `json:"title"`
	Formats []infoFormat `json:"formats"`
}

type infoFormat struct {
	URL           string    `json:"url"`
	MimeType      string    `json:"mimeType"`
	Container     string    `json:"container"`
	HasAudio      bool      `json:"hasAudio"`
	HasVideo      bool      `json:"hasVideo"`
	AudioBitrate  int       `json:"audioBitrate"`
	Bitrate       int       `json:"bitrate"`
	QualityLabel  string    `json:"qualityLabel"`
	Height        int       `json:"height"`
	ContentLength flexInt64 `json:"contentLength"`
}

// flexInt64 accepts both JSON numbers and numeric strings.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("contentLength: %w", err)
	}
	*f = flexInt64(n)
	return nil
}

// Lookup implements Provider.
func (p *HTTPProvider) Lookup(ctx context.Context, sourceURL string) (Info, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return Info{}, fmt.Errorf("%w: bad info endpoint: %v", ErrUpstream, err)
	}
	q := u.Query()
	q.Set("url", sourceURL)
	if id := ExtractVideoID(sourceURL); id != "" {
		q.Set("id", id)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return Info{}, fmt.Errorf("%w: info request: %v", ErrUpstreamTimeout, err)
		}
		return Info{}, fmt.Errorf("%w: info request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return Info{}, fmt.Errorf("%w: info endpoint returned %d", ErrUpstream, resp.StatusCode)
	case resp.StatusCode >= 400:
		return Info{}, fmt.Errorf("%w: info endpoint rejected source (%d)", ErrNoSuitableFormat, resp.StatusCode)
	}

	var body infoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxInfoBody)).Decode(&body); err != nil {
		if isTimeout(err) {
			return Info{}, fmt.Errorf("%w: decode info: %v", ErrUpstreamTimeout, err)
		}
		return Info{}, fmt.Errorf("%w: decode info: %v", ErrUpstream, err)
	}

	info := Info{Title: body.Title, Variants: make([]Variant, 0, len(body.Formats))}
	for _, f := range body.Formats {
		if v, ok := f.variant(); ok {
			info.Variants = append(info.Variants, v)
		}
	}
	return info, nil
}

func (f infoFormat) variant() (Variant, bool) {
	if f.URL == "" {
		return Variant{}, false
	}

	v := Variant{
		URL:           f.URL,
		MimeType:      f.MimeType,
		Container:     f.Container,
		ContentLength: int64(f.ContentLength),
	}
	if v.Container == "" {
		v.Container = containerFromMime(f.MimeType)
	}

	switch {
	case f.HasAudio && !f.HasVideo:
		v.Role = RoleAudioOnly
		v.Quality = f.AudioBitrate
		if v.Quality == 0 {
			v.Quality = f.Bitrate / 1000
		}
		v.Label = strconv.Itoa(v.Quality) + "kbps"
	case f.HasVideo:
		v.Role = RoleCombined
		if !f.HasAudio {
			v.Role = RoleVideoOnly
		}
		v.Quality = f.Height
		if v.Quality == 0 {
			v.Quality = heightFromLabel(f.QualityLabel)
		}
		if v.Quality == 0 {
			v.Quality = f.Bitrate / 1000
		}
		v.Label = f.QualityLabel
	default:
		return Variant{}, false
	}
	return v, true
}

// containerFromMime turns "audio/webm; codecs=opus" into "webm".
func containerFromMime(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	_, sub, ok := strings.Cut(strings.TrimSpace(base), "/")
	if !ok {
		return ""
	}
	return sub
}
