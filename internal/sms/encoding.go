package sms

// Encoding is the carrier-level character set a message travels in.
type Encoding string

const (
	EncodingGSM7 Encoding = "gsm7"
	EncodingUCS2 Encoding = "ucs2"
)

// Segment capacities. Multi-part limits account for the concatenation header.
const (
	gsm7SingleLimit = 160
	gsm7MultiLimit  = 153
	ucs2SingleLimit = 70
	ucs2MultiLimit  = 67
)

// GSM 03.38 default alphabet. ESC (0x1B) is not listed; it only prefixes extended characters.
const gsm7Basic = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"

// Extended table characters cost two septets (ESC + code).
const gsm7Extended = "\f^{}\\[~]|€"

var (
	gsm7BasicSet    = runeSet(gsm7Basic)
	gsm7ExtendedSet = runeSet(gsm7Extended)
)

func runeSet(s string) map[rune]struct{} {
	out := make(map[rune]struct{}, len(s))
	for _, r := range s {
		out[r] = struct{}{}
	}
	return out
}

// IsGSM7 reports whether r is representable in the GSM 7-bit default or extended alphabet.
func IsGSM7(r rune) bool {
	if _, ok := gsm7BasicSet[r]; ok {
		return true
	}
	_, ok := gsm7ExtendedSet[r]
	return ok
}

// DetectEncoding classifies the whole text. One character outside the GSM-7 sets forces UCS-2.
func DetectEncoding(text string) Encoding {
	return detectRunes([]rune(text))
}

func detectRunes(runes []rune) Encoding {
	for _, r := range runes {
		if !IsGSM7(r) {
			return EncodingUCS2
		}
	}
	return EncodingGSM7
}

// SingleLimit is the capacity of a message sent as one segment.
func (e Encoding) SingleLimit() int {
	if e == EncodingGSM7 {
		return gsm7SingleLimit
	}
	return ucs2SingleLimit
}

// MultiLimit is the capacity of each part of a concatenated message.
func (e Encoding) MultiLimit() int {
	if e == EncodingGSM7 {
		return gsm7MultiLimit
	}
	return ucs2MultiLimit
}

// weight is the number of slots r occupies.
// GSM-7: extended characters take 2 septets. UCS-2: runes outside the BMP take a
// surrogate pair, i.e. 2 UTF-16 code units, as carriers bill them.
func (e Encoding) weight(r rune) int {
	if e == EncodingGSM7 {
		if _, ok := gsm7ExtendedSet[r]; ok {
			return 2
		}
		return 1
	}
	if r > 0xFFFF {
		return 2
	}
	return 1
}

// EffectiveLength returns the slot count of text in its detected encoding.
func EffectiveLength(text string) int {
	runes := []rune(text)
	return effectiveLength(runes, detectRunes(runes))
}

func effectiveLength(runes []rune, enc Encoding) int {
	n := 0
	for _, r := range runes {
		n += enc.weight(r)
	}
	return n
}

// fit returns how many leading runes fit into limit slots.
func fit(runes []rune, enc Encoding, limit int) int {
	used := 0
	for i, r := range runes {
		w := enc.weight(r)
		if used+w > limit {
			return i
		}
		used += w
	}
	return len(runes)
}
