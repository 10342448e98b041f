// Package sms splits outbound text into carrier-ready SMS segments.
package sms

import (
	"fmt"
	"strings"
	"unicode"
)

// Mode selects how text longer than one segment is handled.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

// ParseMode accepts "auto", "single" or "multi" (case-insensitive). Empty means auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeSingle:
		return ModeSingle, nil
	case ModeMulti:
		return ModeMulti, nil
	default:
		return "", fmt.Errorf("sms: unknown chunk mode %q", s)
	}
}

const (
	// DefaultMaxLength caps total characters before any segmentation.
	DefaultMaxLength = 1600

	// Ellipsis marks truncated text. It counts as one character.
	Ellipsis = "…"

	// minNumberedSegment is the smallest usable payload per numbered segment.
	minNumberedSegment = 20

	// breakThreshold keeps word breaks from producing very short segments.
	breakThreshold = 0.3
)

// ChunkOptions controls segmentation. A non-positive MaxLength means DefaultMaxLength.
type ChunkOptions struct {
	Mode             Mode `json:"mode" yaml:"mode"`
	MaxLength        int  `json:"max_length" yaml:"max_length"`
	SegmentNumbering bool `json:"segment_numbering" yaml:"segment_numbering"`
}

// DefaultChunkOptions returns auto mode, DefaultMaxLength and numbering on.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{Mode: ModeAuto, MaxLength: DefaultMaxLength, SegmentNumbering: true}
}

// Chunk splits text into ordered segments ready to hand to a provider.
//
// Text that fits one segment is returned unchanged and never numbered. Empty text yields
// an empty slice.
func Chunk(text string, opts ChunkOptions) []string {
	segments, _ := ChunkEncoded(text, opts)
	return segments
}

// ChunkEncoded is Chunk that also reports the encoding the segments travel in. The
// encoding is detected after truncation, so an appended Ellipsis reports UCS-2.
func ChunkEncoded(text string, opts ChunkOptions) ([]string, Encoding) {
	if text == "" {
		return []string{}, EncodingGSM7
	}

	maxLength := opts.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	runes := []rune(text)
	if len(runes) > maxLength {
		runes = append(runes[:maxLength:maxLength], []rune(Ellipsis)...)
	}

	enc := detectRunes(runes)
	if effectiveLength(runes, enc) <= enc.SingleLimit() {
		return []string{string(runes)}, enc
	}

	if opts.Mode == ModeSingle {
		n := fit(runes, enc, enc.SingleLimit()-1)
		seg := string(runes[:n]) + Ellipsis
		return []string{seg}, DetectEncoding(seg)
	}

	segments := split(runes, enc, enc.MultiLimit())
	if len(segments) <= 1 || !opts.SegmentNumbering {
		return segments, enc
	}

	// The prefix width depends on the count, so start from the unnumbered count and
	// re-split until the count stops growing. Brackets are extended GSM-7 characters
	// and cost two septets each.
	total := len(segments)
	var numbered []string
	for {
		limit := enc.MultiLimit() - prefixCost(total, enc)
		if limit < minNumberedSegment {
			return segments, enc
		}
		numbered = split(runes, enc, limit)
		if len(numbered) <= total {
			break
		}
		total = len(numbered)
	}

	total = len(numbered)
	for i, seg := range numbered {
		numbered[i] = fmt.Sprintf("[%d/%d] %s", i+1, total, seg)
	}
	return numbered, enc
}

// prefixCost is the widest "[i/n] " prefix for n segments, in enc units.
func prefixCost(n int, enc Encoding) int {
	return effectiveLength([]rune(fmt.Sprintf("[%d/%d] ", n, n)), enc)
}

func split(runes []rune, enc Encoding, limit int) []string {
	out := []string{}
	rest := trimRunes(runes)
	for len(rest) > 0 {
		if effectiveLength(rest, enc) <= limit {
			out = append(out, string(rest))
			break
		}

		n := fit(rest, enc, limit)
		if n == 0 {
			n = 1
		}
		cut := n
		if b := lastBreak(rest[:n]); b > 0 && float64(b) >= breakThreshold*float64(n) {
			cut = b
		}

		if seg := trimRunes(rest[:cut]); len(seg) > 0 {
			out = append(out, string(seg))
		}
		rest = trimRunes(rest[cut:])
	}
	return out
}

func lastBreak(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' || runes[i] == '\n' {
			return i
		}
	}
	return -1
}

func trimRunes(runes []rune) []rune {
	start, end := 0, len(runes)
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return runes[start:end]
}
