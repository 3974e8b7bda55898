package sms

import "strings"

// Carrier limits for a single message and for each part of a
// concatenated message.
const (
	gsm7SingleLimit = 160
	gsm7PartLimit   = 153
	ucs2SingleLimit = 70
	ucs2PartLimit   = 67
)

// gsm7Basic is the GSM 03.38 default alphabet without the escape code.
const gsm7Basic = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"

// gsm7Extension characters are sent as an escape plus one septet.
const gsm7Extension = "\f^{}\\[~]|€"

// Encoding is the alphabet a body is transmitted in.
type Encoding int

const (
	EncodingGSM7 Encoding = iota
	EncodingUCS2
)

func (e Encoding) String() string {
	if e == EncodingGSM7 {
		return "GSM-7"
	}
	return "UCS-2"
}

// DetectEncoding returns GSM-7 when every rune of text is representable
// in the GSM default alphabet or its extension table, UCS-2 otherwise.
func DetectEncoding(text string) Encoding {
	for _, r := range text {
		if gsm7Cost(r) == 0 {
			return EncodingUCS2
		}
	}
	return EncodingGSM7
}

// Segment splits text into the parts a carrier would transmit it as.
// Short or empty text yields one part. Parts are never split inside an
// escape sequence or a surrogate pair, and joining them gives back text.
func Segment(text string) []string {
	if DetectEncoding(text) == EncodingGSM7 {
		return split(text, gsm7SingleLimit, gsm7PartLimit, gsm7Cost)
	}
	return split(text, ucs2SingleLimit, ucs2PartLimit, ucs2Cost)
}

// gsm7Cost returns the septets r occupies, or 0 if r is not GSM-7.
func gsm7Cost(r rune) int {
	switch {
	case strings.ContainsRune(gsm7Basic, r):
		return 1
	case strings.ContainsRune(gsm7Extension, r):
		return 2
	default:
		return 0
	}
}

// ucs2Cost returns the UTF-16 code units r occupies.
func ucs2Cost(r rune) int {
	if r > 0xFFFF {
		return 2
	}
	return 1
}

func split(text string, single, part int, cost func(rune) int) []string {
	total := 0
	for _, r := range text {
		total += cost(r)
	}
	if total <= single {
		return []string{text}
	}

	var parts []string
	start, used := 0, 0
	for i, r := range text {
		c := cost(r)
		if used+c > part {
			parts = append(parts, text[start:i])
			start, used = i, 0
		}
		used += c
	}
	return append(parts, text[start:])
}
