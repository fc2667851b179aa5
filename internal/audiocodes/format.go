package audiocodes

import (
	"fmt"
	"strings"
)

type MediaFormat string

const (
	FormatRawLPCM16 MediaFormat = "raw/lpcm16"
	FormatWavLPCM16 MediaFormat = "wav/lpcm16"
	FormatRawMulaw  MediaFormat = "raw/mulaw"
	FormatWavMulaw  MediaFormat = "wav/mulaw"
)

func (f MediaFormat) Valid() bool {
	switch f {
	case FormatRawLPCM16, FormatWavLPCM16, FormatRawMulaw, FormatWavMulaw:
		return true
	}
	return false
}

func (f MediaFormat) String() string {
	return string(f)
}

func ParseMediaFormat(s string) (MediaFormat, error) {
	f := MediaFormat(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown media format %q", s)
	}
	return f, nil
}

// ParseMediaFormats parses a comma separated list, skipping blanks.
func ParseMediaFormats(list string) ([]MediaFormat, error) {
	var formats []MediaFormat
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := ParseMediaFormat(part)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// NegotiateFormat returns the first accepted format the caller offered.
// Accepted order is the preference order.
func NegotiateFormat(offered []string, accepted []MediaFormat) (MediaFormat, bool) {
	set := make(map[MediaFormat]struct{}, len(offered))
	for _, o := range offered {
		set[MediaFormat(strings.ToLower(strings.TrimSpace(o)))] = struct{}{}
	}
	for _, a := range accepted {
		if _, ok := set[a]; ok {
			return a, true
		}
	}
	return "", false
}
