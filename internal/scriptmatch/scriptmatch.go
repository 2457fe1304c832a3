// Package scriptmatch scores how accurately a transcribed take matches a
// reference script.
//
// Matching is tolerant of transcription noise: a script word and a spoken
// word count as matched when they are equal after normalisation, when their
// Double Metaphone codes overlap and the Jaro-Winkler similarity clears the
// phonetic threshold, or when the Jaro-Winkler similarity alone clears the
// stricter fuzzy threshold. Alignment is greedy with one word of lookahead
// on each side to absorb single insertions and omissions.
//
// The resulting [Report] backs the script-accuracy figure shown alongside
// segment candidates; it never changes the segments themselves.
package scriptmatch

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// WordMatch pairs one script word with the spoken word aligned to it.
type WordMatch struct {
	// Script is the normalised expected word.
	Script string

	// Spoken is the normalised transcribed word, or empty when the script
	// word was not spoken at all.
	Spoken string

	// Similarity is the Jaro-Winkler score of the pair (1.0 for exact).
	Similarity float64

	// Matched reports whether the pair cleared a matching threshold.
	Matched bool
}

// Report summarises the comparison of a transcript against a script.
type Report struct {
	// Accuracy is the fraction of script words matched, in [0,1]. A script
	// with no words yields 1.
	Accuracy float64

	// Matches lists one entry per script word in script order.
	Matches []WordMatch

	// ExtraWords counts spoken words not aligned to any script word.
	ExtraWords int
}

// Option configures a [Scorer].
type Option func(*Scorer)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-overlapping pair to count as matched. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(s *Scorer) {
		s.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required for a pair
// without phonetic overlap. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(s *Scorer) {
		s.fuzzyThreshold = threshold
	}
}

// Scorer compares transcripts against reference scripts. Read-only after
// construction, so safe for concurrent use.
type Scorer struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Scorer] with default thresholds.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Score aligns the transcript against the script word by word and reports
// per-word matches plus an overall accuracy figure.
func (s *Scorer) Score(transcript, script string) *Report {
	scriptWords := normalise(script)
	spokenWords := normalise(transcript)

	report := &Report{Matches: make([]WordMatch, 0, len(scriptWords))}
	if len(scriptWords) == 0 {
		report.Accuracy = 1
		report.ExtraWords = len(spokenWords)
		return report
	}

	matched := 0
	si, wi := 0, 0
	for si < len(scriptWords) {
		if wi >= len(spokenWords) {
			report.Matches = append(report.Matches, WordMatch{Script: scriptWords[si]})
			si++
			continue
		}

		sim, ok := s.similar(scriptWords[si], spokenWords[wi])
		if !ok {
			// One word of lookahead on each side: maybe the actor inserted a
			// word, or skipped one.
			if wi+1 < len(spokenWords) {
				if _, aheadOK := s.similar(scriptWords[si], spokenWords[wi+1]); aheadOK {
					report.ExtraWords++
					wi++
					continue
				}
			}
			if si+1 < len(scriptWords) {
				if _, aheadOK := s.similar(scriptWords[si+1], spokenWords[wi]); aheadOK {
					report.Matches = append(report.Matches, WordMatch{Script: scriptWords[si]})
					si++
					continue
				}
			}
		}

		report.Matches = append(report.Matches, WordMatch{
			Script:     scriptWords[si],
			Spoken:     spokenWords[wi],
			Similarity: sim,
			Matched:    ok,
		})
		if ok {
			matched++
		}
		si++
		wi++
	}
	report.ExtraWords += len(spokenWords) - wi
	report.Accuracy = float64(matched) / float64(len(scriptWords))
	return report
}

// similar reports the Jaro-Winkler similarity of a word pair and whether it
// clears a matching threshold.
func (s *Scorer) similar(a, b string) (float64, bool) {
	if a == b {
		return 1, true
	}
	jw := matchr.JaroWinkler(a, b, false)
	if phoneticOverlap(a, b) {
		return jw, jw >= s.phoneticThreshold
	}
	return jw, jw >= s.fuzzyThreshold
}

// phoneticOverlap reports whether the two words share a Double Metaphone
// code.
func phoneticOverlap(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || x == bs {
			return true
		}
	}
	return false
}

// normalise lowercases the text, strips punctuation, and splits into words.
func normalise(text string) []string {
	var sb strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '\'', r == ' ', r == '\n', r == '\t':
			sb.WriteRune(r)
		default:
			sb.WriteByte(' ')
		}
	}
	return strings.Fields(sb.String())
}
