package media

import (
	"errors"
	"fmt"
)

// ErrNoSuitableFormat is returned when no variant has the role a policy needs.
var ErrNoSuitableFormat = errors.New("no suitable format")

// Mode names a selection policy.
type Mode string

const (
	// ModeVideo picks the highest-quality variant carrying audio and video.
	ModeVideo Mode = "video"
	// ModeAudio picks the highest-bitrate audio-only variant.
	ModeAudio Mode = "audio"
	// ModeAudioLow picks the lowest-bitrate audio-only variant.
	ModeAudioLow Mode = "audio-low"
	// ModeAudioFirst picks the first audio-only variant in source order.
	ModeAudioFirst Mode = "audio-first"
)

// DefaultMode is used when a request names no mode.
const DefaultMode = ModeAudio

// ParseMode maps a mode name to a Mode. The empty string yields DefaultMode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return DefaultMode, nil
	case ModeVideo, ModeAudio, ModeAudioLow, ModeAudioFirst:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Kind returns the kind of media the mode delivers.
func (m Mode) Kind() Kind {
	if m == ModeVideo {
		return KindVideo
	}
	return KindAudio
}

// Select applies the mode's policy to variants.
func (m Mode) Select(variants []Variant) (Variant, error) {
	switch m {
	case ModeVideo:
		return SelectBestCombined(variants)
	case ModeAudio:
		return SelectBestAudio(variants)
	case ModeAudioLow:
		return SelectLowestAudio(variants)
	case ModeAudioFirst:
		return SelectFirstAudio(variants)
	default:
		return Variant{}, fmt.Errorf("unknown mode %q", m)
	}
}

// SelectBestCombined returns the audio+video variant with the highest quality.
func SelectBestCombined(variants []Variant) (Variant, error) {
	return selectHighest(variants, RoleCombined)
}

// SelectBestAudio returns the audio-only variant with the highest bitrate.
func SelectBestAudio(variants []Variant) (Variant, error) {
	return selectHighest(variants, RoleAudioOnly)
}

// SelectLowestAudio returns the audio-only variant with the lowest bitrate.
// Ties go to the variant seen first.
func SelectLowestAudio(variants []Variant) (Variant, error) {
	var (
		best  Variant
		found bool
	)
	for _, v := range variants {
		if v.Role != RoleAudioOnly {
			continue
		}
		if !found || v.Quality < best.Quality {
			best, found = v, true
		}
	}
	if !found {
		return Variant{}, fmt.Errorf("%w: no %s variant", ErrNoSuitableFormat, RoleAudioOnly)
	}
	return best, nil
}

// SelectFirstAudio returns the first audio-only variant in source order.
func SelectFirstAudio(variants []Variant) (Variant, error) {
	for _, v := range variants {
		if v.Role == RoleAudioOnly {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("%w: no %s variant", ErrNoSuitableFormat, RoleAudioOnly)
}

func selectHighest(variants []Variant, role Role) (Variant, error) {
	var (
		best  Variant
		found bool
	)
	for _, v := range variants {
		if v.Role != role {
			continue
		}
		if !found || v.Quality > best.Quality {
			best, found = v, true
		}
	}
	if !found {
		return Variant{}, fmt.Errorf("%w: no %s variant", ErrNoSuitableFormat, role)
	}
	return best, nil
}
