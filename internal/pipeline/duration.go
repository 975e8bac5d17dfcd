package pipeline

import (
	"math"
	"unicode"
)

// Speaking rates for narration. Japanese is paced per character, other
// languages per word.
const (
	charsPerMinuteCJK = 300
	wordsPerMinute    = 150
)

// EstimateSpokenMinutes estimates how long text takes to read aloud,
// rounded up to whole minutes. Returns 0 for empty text and at least 1
// otherwise.
func EstimateSpokenMinutes(text string) int {
	cjk, words := countSpeechUnits(text)
	if cjk == 0 && words == 0 {
		return 0
	}

	minutes := float64(cjk)/charsPerMinuteCJK + float64(words)/wordsPerMinute
	return max(1, int(math.Ceil(minutes)))
}

// countSpeechUnits counts CJK characters individually and runs of other
// letters or digits as words.
func countSpeechUnits(text string) (cjk, words int) {
	inWord := false
	for _, r := range text {
		switch {
		case isCJK(r):
			cjk++
			if inWord {
				words++
				inWord = false
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			inWord = true
		default:
			if inWord {
				words++
				inWord = false
			}
		}
	}
	if inWord {
		words++
	}
	return cjk, words
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}
