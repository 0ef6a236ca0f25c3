// Package media resolves source links to encoded variants and delivers the
// selected variant to the caller, either by redirecting to it or by proxying
// its bytes.
package media

// Role describes which streams a variant carries.
type Role string

const (
	RoleAudioOnly Role = "audio-only"
	RoleCombined  Role = "audio+video"
	RoleVideoOnly Role = "video-only"
)

// Kind is the kind of media delivered to the caller.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Variant is one encoded rendition of a source media item.
type Variant struct {
	Role Role `json:"role"`

	// Quality orders variants of the same role: bitrate in kbps for
	// audio-only variants, vertical resolution for variants with video
	// (bitrate when the provider reports no resolution).
	Quality int    `json:"quality"`
	Label   string `json:"label,omitempty"`

	URL           string `json:"url"`
	ContentLength int64  `json:"contentLength,omitempty"`
	MimeType      string `json:"mimeType,omitempty"`
	Container     string `json:"container,omitempty"`
}

// Info is what a provider knows about a source link.
type Info struct {
	Title    string    `json:"title"`
	Variants []Variant `json:"variants"`
}
