package medication

import "unicode/utf16"

var palette = []string{
	"#FFB6B9", "#FFDAC1", "#E2F0CB", "#B5EAD7", "#C7CEEA",
	"#D5AAFF", "#FFABAB", "#FFD6A5", "#FDFFB6", "#CAFFBF",
	"#A0E7E5", "#B4F8C8", "#FBE7C6", "#FFAEBC", "#A9DEF9",
}

// ColorFor returns the stable card color for a medication name.
// The hash runs over UTF-16 code units so existing clients render the same colors.
func ColorFor(name string) string {
	if name == "" {
		name = "default"
	}

	var h int64
	for _, c := range utf16.Encode([]rune(name)) {
		h = int64(c) + int64(int32(h)<<5) - h
	}
	if h < 0 {
		h = -h
	}
	return palette[h%int64(len(palette))]
}
