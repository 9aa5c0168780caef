package parser

import "github.com/rivo/uniseg"

// CountEmoji counts emoji per grapheme cluster, so a flag, a skin-toned hand
// or a family ZWJ sequence each count once.
func CountEmoji(s string) int {
	n := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		if isEmojiCluster(g.Runes()) {
			n++
		}
	}
	return n
}

func isEmojiCluster(rs []rune) bool {
	if len(rs) == 0 {
		return false
	}
	for _, r := range rs[1:] {
		// keycap (1️⃣) and emoji presentation selector on a text symbol (©️)
		if r == 0x20E3 || (r == 0xFE0F && rs[0] > 0x7F) {
			return true
		}
	}
	r := rs[0]
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x2300 && r <= 0x23FF:
		return true
	case r == 0x2B50, r == 0x2B55, r == 0x2B1B, r == 0x2B1C, r == 0x3030, r == 0x303D, r == 0x3297, r == 0x3299:
		return true
	}
	return false
}
