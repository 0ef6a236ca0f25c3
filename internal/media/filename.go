package media

import (
	"strings"
	"unicode"
)

// SanitizeTitle keeps only letters, digits and whitespace from title and
// collapses whitespace runs. A title with nothing left falls back to the
// kind's name ("audio" or "video").
func SanitizeTitle(title string, kind Kind) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	clean := strings.Join(strings.Fields(b.String()), " ")
	if clean == "" {
		return string(kind)
	}
	return clean
}

// Filename builds the attachment filename for a delivered item.
func Filename(title string, kind Kind, suffix string) string {
	return SanitizeTitle(title, kind) + suffix + Extension(kind)
}

// Extension returns the file extension used for kind.
func Extension(kind Kind) string {
	if kind == KindVideo {
		return ".mp4"
	}
	return ".mp3"
}

// ContentType returns the content type sent for kind.
func ContentType(kind Kind) string {
	if kind == KindVideo {
		return "video/mp4"
	}
	return "audio/mpeg"
}
