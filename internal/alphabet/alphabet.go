// Package alphabet defines the target scripts a corpus can be generated for:
// the base-letter set fonts must cover, the word admissibility rule, and the
// canned words drawn on placeholder images.
package alphabet

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Script describes one target writing system.
type Script struct {
	// Name is the configuration name ("arabic", "latin").
	Name string
	// Letters is the full base-letter set in code point order.
	Letters []rune
	// RTL reports whether the script is written right to left.
	RTL bool
	// Language is the BCP 47 tag handed to the shaper.
	Language string
	// PlaceholderWords are drawn on placeholder images.
	PlaceholderWords []string

	set map[rune]struct{}
}

// Arabic covers the block U+0621 HAMZA through U+064A YEH. Harakat and
// Arabic-Indic digits fall outside the range.
var Arabic = newScript("arabic", runeRange(0x0621, 0x064A), true, "ar",
	[]string{"كلمة", "مثال", "اختبار"})

// Latin covers the ASCII letters.
var Latin = newScript("latin", append(runeRange('A', 'Z'), runeRange('a', 'z')...), false, "en",
	[]string{"word", "sample", "test"})

// Lookup returns the script registered under name.
func Lookup(name string) (Script, error) {
	switch strings.ToLower(name) {
	case "arabic":
		return Arabic, nil
	case "latin":
		return Latin, nil
	default:
		return Script{}, fmt.Errorf("unknown script %q", name)
	}
}

func newScript(name string, letters []rune, rtl bool, lang string, placeholders []string) Script {
	set := make(map[rune]struct{}, len(letters))
	for _, r := range letters {
		set[r] = struct{}{}
	}
	return Script{Name: name, Letters: letters, RTL: rtl, Language: lang, PlaceholderWords: placeholders, set: set}
}

func runeRange(lo, hi rune) []rune {
	out := make([]rune, 0, hi-lo+1)
	for r := lo; r <= hi; r++ {
		out = append(out, r)
	}
	return out
}

// WithPlaceholders returns a copy of s using words for placeholder images.
// An empty list keeps the built-in words.
func (s Script) WithPlaceholders(words []string) Script {
	if len(words) > 0 {
		s.PlaceholderWords = append([]string(nil), words...)
	}
	return s
}

// IsLetter reports whether r belongs to the script's base-letter set.
func (s Script) IsLetter(r rune) bool {
	_, ok := s.set[r]
	return ok
}

// Normalize trims surrounding space and composes w to NFC.
func (s Script) Normalize(w string) string {
	return norm.NFC.String(strings.TrimFunc(w, unicode.IsSpace))
}

// IsWord reports whether w is longer than one rune and made only of base letters.
func (s Script) IsWord(w string) bool {
	n := 0
	for _, r := range w {
		if !s.IsLetter(r) {
			return false
		}
		n++
	}
	return n > 1
}

// Filter normalizes candidates and returns the admissible words, without
// duplicates, in first-seen order.
func (s Script) Filter(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		w := s.Normalize(c)
		if !s.IsWord(w) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
