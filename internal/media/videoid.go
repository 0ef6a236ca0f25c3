package media

import "regexp"

var videoIDPattern = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)

// ExtractVideoID returns the 11-character video id embedded in a YouTube
// link, or "" when link does not carry one.
func ExtractVideoID(link string) string {
	m := videoIDPattern.FindStringSubmatch(link)
	if m == nil || len(m[2]) != 11 {
		return ""
	}
	return m[2]
}
