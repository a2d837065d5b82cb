// Package shard expands the selected fonts and words into work items and
// splits them across workers.
package shard

import (
	"fmt"

	"tools.zach/dev/wordsynth/internal/fontsrc"
)

// Item is one unit of generation work. Index is the word's 1-based rank
// within its font's assignment and is used only for output naming.
type Item struct {
	Word  string
	Font  fontsrc.Font
	Index int
}

// Build returns the font-major Cartesian product of fonts and words.
func Build(fonts []fontsrc.Font, words []string) []Item {
	items := make([]Item, 0, len(fonts)*len(words))
	for _, f := range fonts {
		for i, w := range words {
			items = append(items, Item{Word: w, Font: f, Index: i + 1})
		}
	}
	return items
}

// Split cuts items into n contiguous shards whose sizes differ by at most
// one; the first len(items)%n shards hold the extra item. Shards may be
// empty when n exceeds len(items).
func Split(items []Item, n int) ([][]Item, error) {
	if n <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", n)
	}
	shards := make([][]Item, n)
	size, extra := len(items)/n, len(items)%n
	start := 0
	for i := range shards {
		end := start + size
		if i < extra {
			end++
		}
		shards[i] = items[start:end:end]
		start = end
	}
	return shards, nil
}
