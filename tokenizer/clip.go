// Package tokenizer implements the CLIP byte-pair-encoding tokenizer used
// to turn prompts into the fixed-length token sequences the text encoder
// expects. The encoding matches the reference CLIP tokenizer: lowercased
// input, whitespace collapsed, byte-level alphabet, and merges applied to
// words carrying a trailing end-of-word marker.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// ContextLength is the fixed token sequence length of the CLIP text
// encoder. Longer prompts are truncated, shorter ones padded.
const ContextLength = 77

// pretokenPattern is the CLIP splitting pattern. Contractions and special
// tokens stay intact; letters, digits and punctuation split apart.
const pretokenPattern = `<\|startoftext\|>|<\|endoftext\|>|'s|'t|'re|'ve|'m|'ll|'d|[\p{L}]+|[\p{N}]|[^\s\p{L}\p{N}]+`

const wordEnd = "</w>"

// Tokenizer encodes prompt text to CLIP token ids. It is immutable after
// construction and safe for concurrent use.
type Tokenizer struct {
	vocab   map[string]int32
	merges  map[string]int
	pattern *regexp2.Regexp

	bos int32
	eos int32
	pad int32
}

// New builds a tokenizer from a vocabulary and an ordered merge list. The
// merge list entries are space-separated pairs, rank given by position.
// BOS/EOS ids are resolved from the vocabulary; the pad token is the EOS
// token, as in the Stable Diffusion text encoders.
func New(vocab map[string]int32, merges []string) (*Tokenizer, error) {
	bos, ok := vocab["<|startoftext|>"]
	if !ok {
		return nil, fmt.Errorf("tokenizer: vocabulary is missing <|startoftext|>")
	}
	eos, ok := vocab["<|endoftext|>"]
	if !ok {
		return nil, fmt.Errorf("tokenizer: vocabulary is missing <|endoftext|>")
	}

	ranks := make(map[string]int, len(merges))
	for i, m := range merges {
		ranks[m] = i
	}

	return &Tokenizer{
		vocab:   vocab,
		merges:  ranks,
		pattern: regexp2.MustCompile(pretokenPattern, regexp2.IgnoreCase),
		bos:     bos,
		eos:     eos,
		pad:     eos,
	}, nil
}

// BOS returns the begin-of-sequence token id.
func (t *Tokenizer) BOS() int32 { return t.bos }

// EOS returns the end-of-sequence token id.
func (t *Tokenizer) EOS() int32 { return t.eos }

// Encode tokenizes text without padding or special tokens.
func (t *Tokenizer) Encode(text string) []int32 {
	text = strings.ToLower(strings.Join(strings.Fields(text), " "))

	var ids []int32
	for _, word := range t.split(text) {
		ids = t.encodeWord(word, ids)
	}
	return ids
}

// EncodeContext tokenizes text to exactly ContextLength ids: BOS, up to
// ContextLength-2 prompt tokens, EOS, then pad. This is the sequence shape
// the text encoder adapter feeds to the network.
func (t *Tokenizer) EncodeContext(text string) []int32 {
	ids := t.Encode(text)
	if len(ids) > ContextLength-2 {
		ids = ids[:ContextLength-2]
	}

	out := make([]int32, 0, ContextLength)
	out = append(out, t.bos)
	out = append(out, ids...)
	out = append(out, t.eos)
	for len(out) < ContextLength {
		out = append(out, t.pad)
	}
	return out
}

// split applies the pretokenizer pattern, yielding words in order.
func (t *Tokenizer) split(text string) []string {
	var words []string
	r := []rune(text)
	for m, _ := t.pattern.FindRunesMatch(r); m != nil; m, _ = t.pattern.FindNextMatch(m) {
		words = append(words, m.String())
	}
	return words
}

// encodeWord appends the BPE encoding of a single pretoken to ids.
func (t *Tokenizer) encodeWord(word string, ids []int32) []int32 {
	if id, ok := t.vocab[word]; ok && strings.HasPrefix(word, "<|") {
		return append(ids, id)
	}

	// Byte-level alphabet with the end-of-word marker on the last symbol.
	var parts []string
	for i := 0; i < len(word); i++ {
		parts = append(parts, string(byteToRune[word[i]]))
	}
	if len(parts) == 0 {
		return ids
	}
	parts[len(parts)-1] += wordEnd

	// Repeatedly merge the lowest-ranked adjacent pair.
	for len(parts) > 1 {
		minRank := int(^uint(0) >> 1)
		minIdx := -1
		for i := 0; i < len(parts)-1; i++ {
			if rank, ok := t.merges[parts[i]+" "+parts[i+1]]; ok && rank < minRank {
				minRank = rank
				minIdx = i
			}
		}
		if minIdx < 0 {
			break
		}
		parts[minIdx] += parts[minIdx+1]
		parts = append(parts[:minIdx+1], parts[minIdx+2:]...)
	}

	for _, part := range parts {
		if id, ok := t.vocab[part]; ok {
			ids = append(ids, id)
		}
		// Symbols outside the vocabulary are dropped, matching the
		// reference tokenizer's behavior for unmergeable fragments.
	}
	return ids
}
