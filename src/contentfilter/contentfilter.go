// Package contentfilter drops generated candidates that contain disallowed
// vocabulary and normalizes their difficulty scores.
package contentfilter

import (
	"os"
	"strings"
	"sync"
	"unicode"

	goaway "github.com/TwiN/go-away"

	"wordbridge/src/log"
	"wordbridge/src/recommendation"
)

// Filter checks candidate fields against the profanity lexicon and an
// optionally configured supplementary terms list.
type Filter struct {
	enabled        bool
	extraWordsPath string

	once     sync.Once
	detector *goaway.ProfanityDetector
}

// New builds a filter. The supplementary terms file is loaded lazily on first
// use; a missing or unreadable file is tolerated.
func New(enabled bool, extraWordsPath string) *Filter {
	return &Filter{
		enabled:        enabled,
		extraWordsPath: extraWordsPath,
	}
}

// Filter returns the candidates that pass the lexicon check, each with a
// clamped difficulty score and status set to pending. A candidate is dropped
// whole if any of word, definition or example sentence matches.
func (f *Filter) Filter(candidates []recommendation.Candidate) []recommendation.Candidate {
	kept := make([]recommendation.Candidate, 0, len(candidates))
	for _, c := range candidates {
		c.Word = strings.TrimSpace(c.Word)
		c.Definition = strings.TrimSpace(c.Definition)
		c.Rationale = strings.TrimSpace(c.Rationale)
		c.ExampleSentence = strings.TrimSpace(c.ExampleSentence)
		c.DifficultyScore = recommendation.ClampDifficulty(c.DifficultyScore)
		if c.Status == "" {
			c.Status = recommendation.StatusPending
		}

		if !hasContent(c.Word) || !hasContent(c.Definition) {
			continue
		}
		if f.enabled && f.containsBlockedLanguage(c.Word, c.Definition, c.ExampleSentence) {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func (f *Filter) containsBlockedLanguage(fields ...string) bool {
	f.once.Do(f.loadDetector)
	for _, field := range fields {
		if field != "" && f.detector.IsProfane(field) {
			return true
		}
	}
	return false
}

func (f *Filter) loadDetector() {
	profanities := goaway.DefaultProfanities
	if extra := f.loadExtraWords(); len(extra) > 0 {
		combined := make([]string, 0, len(profanities)+len(extra))
		combined = append(combined, profanities...)
		combined = append(combined, extra...)
		profanities = combined
	}
	f.detector = goaway.NewProfanityDetector().WithCustomDictionary(
		profanities,
		goaway.DefaultFalsePositives,
		goaway.DefaultFalseNegatives,
	)
}

func (f *Filter) loadExtraWords() []string {
	if f.extraWordsPath == "" {
		return nil
	}
	raw, err := os.ReadFile(f.extraWordsPath)
	if err != nil {
		log.Info("supplementary terms list not readable, continuing without it",
			"path", f.extraWordsPath, "reason", err.Error())
		return nil
	}
	var words []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			words = append(words, line)
		}
	}
	return words
}

func hasContent(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
