// loader.go - load a tokenizer from the vocab.json + merges.txt pair
// shipped with Stable Diffusion text encoders.
package tokenizer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads vocab.json and merges.txt from dir and builds a Tokenizer.
func Load(dir string) (*Tokenizer, error) {
	data, err := os.ReadFile(filepath.Join(dir, "vocab.json"))
	if err != nil {
		return nil, fmt.Errorf("tokenizer: read vocab: %w", err)
	}

	var vocab map[string]int32
	if err := json.Unmarshal(data, &vocab); err != nil {
		return nil, fmt.Errorf("tokenizer: parse vocab: %w", err)
	}

	f, err := os.Open(filepath.Join(dir, "merges.txt"))
	if err != nil {
		return nil, fmt.Errorf("tokenizer: read merges: %w", err)
	}
	defer f.Close()

	var merges []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// First line is a version header, e.g. "#version: 0.2".
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		merges = append(merges, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("tokenizer: scan merges: %w", err)
	}

	return New(vocab, merges)
}
