package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// YTDLPProvider reads format lists from the yt-dlp command line tool.
type YTDLPProvider struct {
	path string
	run  func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewYTDLPProvider returns a provider that runs the yt-dlp binary at path.
func NewYTDLPProvider(path string) *YTDLPProvider {
	if path == "" {
		path = "yt-dlp"
	}
	return &YTDLPProvider{path: path, run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

type ytdlpInfo struct {
	Title   string        `json:"title"`
	Formats []ytdlpFormat `json:"formats"`
}

type ytdlpFormat struct {
	FormatID   string   `json:"format_id"`
	URL        string   `json:"url"`
	Ext        string   `json:"ext"`
	Protocol   string   `json:"protocol"`
	ACodec     string   `json:"acodec"`
	VCodec     string   `json:"vcodec"`
	ABR        *float64 `json:"abr"`
	TBR        *float64 `json:"tbr"`
	Height     *int     `json:"height"`
	FormatNote string   `json:"format_note"`
	Filesize   *int64   `json:"filesize"`
}

// Lookup implements Provider.
func (p *YTDLPProvider) Lookup(ctx context.Context, sourceURL string) (Info, error) {
	out, err := p.run(ctx, p.path, "-J", "--no-playlist", "--no-warnings", "--", sourceURL)
	if err != nil {
		if ctx.Err() != nil {
			return Info{}, fmt.Errorf("%w: yt-dlp: %v", ErrUpstreamTimeout, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			if strings.Contains(stderr, "Unsupported URL") {
				return Info{}, fmt.Errorf("%w: %s", ErrNoSuitableFormat, stderr)
			}
			return Info{}, fmt.Errorf("%w: yt-dlp exited %d: %s", ErrUpstream, exitErr.ExitCode(), stderr)
		}
		return Info{}, fmt.Errorf("%w: yt-dlp: %v", ErrUpstream, err)
	}

	var raw ytdlpInfo
	if err := json.Unmarshal(out, &raw); err != nil {
		return Info{}, fmt.Errorf("%w: decode yt-dlp output: %v", ErrUpstream, err)
	}

	info := Info{Title: raw.Title, Variants: make([]Variant, 0, len(raw.Formats))}
	for _, f := range raw.Formats {
		if v, ok := f.variant(); ok {
			info.Variants = append(info.Variants, v)
		}
	}
	return info, nil
}

func (f ytdlpFormat) variant() (Variant, bool) {
	// Manifest-based formats cannot be fetched with a single GET.
	if f.URL == "" || strings.Contains(f.Protocol, "m3u8") || strings.Contains(f.Protocol, "dash") {
		return Variant{}, false
	}

	hasAudio := f.ACodec != "" && f.ACodec != "none"
	hasVideo := f.VCodec != "" && f.VCodec != "none"

	v := Variant{URL: f.URL, Container: f.Ext, Label: f.FormatNote}
	// filesize_approx is ignored; it must not be sent as Content-Length.
	if f.Filesize != nil {
		v.ContentLength = *f.Filesize
	}

	switch {
	case hasAudio && !hasVideo:
		v.Role = RoleAudioOnly
		v.MimeType = "audio/" + f.Ext
		v.Quality = roundKbps(f.ABR)
		if v.Quality == 0 {
			v.Quality = roundKbps(f.TBR)
		}
	case hasVideo:
		v.Role = RoleCombined
		if !hasAudio {
			v.Role = RoleVideoOnly
		}
		v.MimeType = "video/" + f.Ext
		if f.Height != nil {
			v.Quality = *f.Height
		} else {
			v.Quality = roundKbps(f.TBR)
		}
	default:
		return Variant{}, false
	}
	return v, true
}

func roundKbps(v *float64) int {
	if v == nil {
		return 0
	}
	return int(*v + 0.5)
}
