// Package timing estimates how long a word takes to say.
package timing

import (
	"strings"
	"unicode"
)

// DefaultWPM is used whenever a caller passes a non-positive speech rate
const DefaultWPM = 150.0

// slack padding applied on top of the raw syllable rate
const slack = 1.2

const vowels = "aeiouyàáâãäåèéêëìíîïòóôõöùúûüAEIOUYÀÁÂÃÄÅÈÉÊËÌÍÎÏÒÓÔÕÖÙÚÛÜ"

// Estimate returns the spoken duration of word in seconds at wpm.
// Every word counts as at least one syllable, so the result is always positive.
func Estimate(word string, wpm float64) float64 {
	if wpm <= 0 {
		wpm = DefaultWPM
	}
	return float64(Syllables(word)) / (wpm / 60) * slack
}

// Syllables counts vowel groups after stripping punctuation, minimum 1
func Syllables(word string) int {
	count := 0
	prevVowel := false
	for _, r := range word {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			continue
		}
		isVowel := strings.ContainsRune(vowels, r)
		if isVowel && !prevVowel {
			count++
		}
		prevVowel = isVowel
	}
	if count < 1 {
		count = 1
	}
	return count
}

// Sentence sums Estimate over the whitespace-separated words of s
func Sentence(s string, wpm float64) float64 {
	var total float64
	for _, w := range strings.Fields(s) {
		total += Estimate(w, wpm)
	}
	return total
}
