// bytes.go - GPT-2 style byte-to-unicode alphabet shared by the BPE merge
// tables. Printable bytes map to themselves; the rest map to a private
// range starting at U+0100 so every byte has a visible rune.
package tokenizer

var byteToRune [256]rune

func init() {
	var printable = func(b int) bool {
		return (b >= '!' && b <= '~') || (b >= 0xa1 && b <= 0xac) || (b >= 0xae && b <= 0xff)
	}

	n := 0
	for b := 0; b < 256; b++ {
		if printable(b) {
			byteToRune[b] = rune(b)
		} else {
			byteToRune[b] = rune(256 + n)
			n++
		}
	}
}
