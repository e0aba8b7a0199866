// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

// Package matching resolves the free text name a provider gives to a
// centre against the names another page of the same provider uses for it,
// e.g. "Tadworth Leisure and Community Centre" against "tadworth centre".
package matching

import (
	"fmt"
	"strings"

	"github.com/jcodagnone/leisureslots/utils/textutils"
)

// DefaultThreshold is the lowest Ratio accepted as a match.
const DefaultThreshold = 0.6

// DefaultNoiseTokens are removed from names before comparing them, in order.
var DefaultNoiseTokens = []string{"leisure centre", "the", "l c", "lc"}

// Options configures a Matcher.
type Options struct {
	// Substrings removed from both sides before comparing, in order.
	// nil means DefaultNoiseTokens; an empty non nil slice removes nothing.
	NoiseTokens []string

	// Zero means DefaultThreshold.
	Threshold float64
}

// Match is the best candidate for a target.
type Match struct {
	// Index of the candidate in the slice given to FindBestMatch.
	Index int
	// Candidate as given, not normalized.
	Candidate string
	Score     float64
}

// Matcher finds the candidate most similar to a target.
type Matcher struct {
	noise     []string
	threshold float64
}

// New creates a Matcher.
func New(options *Options) (*Matcher, error) {
	if options == nil {
		options = &Options{}
	}

	m := &Matcher{
		noise:     options.NoiseTokens,
		threshold: options.Threshold,
	}

	if m.noise == nil {
		m.noise = DefaultNoiseTokens
	}

	if m.threshold == 0 {
		m.threshold = DefaultThreshold
	}

	if m.threshold < 0 || m.threshold > 1 {
		return nil, fmt.Errorf("match threshold %v out of [0, 1]", m.threshold)
	}

	for i, token := range m.noise {
		if strings.TrimSpace(token) == "" {
			return nil, fmt.Errorf("noise token %d is blank", i)
		}
	}

	return m, nil
}

// Threshold returns the lowest score accepted.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Normalize lower cases s, folds it to ASCII and then removes every noise
// token in turn, trimming the spaces left at both ends after each one.
func (m *Matcher) Normalize(s string) string {
	s = textutils.LowerASCIIFolding(s)
	for _, token := range m.noise {
		s = strings.TrimSpace(strings.ReplaceAll(s, token, ""))
	}

	return s
}

// Score is the Ratio of the normalized target and candidate.
func (m *Matcher) Score(target, candidate string) float64 {
	return Ratio(m.Normalize(target), m.Normalize(candidate))
}

// FindBestMatch returns the candidate with the highest score not below
// the threshold. The first candidate wins ties. It returns false when no
// candidate is good enough.
func (m *Matcher) FindBestMatch(target string, candidates []string) (Match, bool) {
	best := Match{Index: -1}
	normalized := m.Normalize(target)

	for i, candidate := range candidates {
		score := Ratio(normalized, m.Normalize(candidate))
		if score < m.threshold {
			continue
		}

		if best.Index == -1 || score > best.Score {
			best = Match{Index: i, Candidate: candidate, Score: score}
		}
	}

	return best, best.Index != -1
}

// Normalize is Matcher.Normalize with DefaultNoiseTokens.
func Normalize(s string) string {
	return defaultMatcher.Normalize(s)
}

// FindBestMatch is Matcher.FindBestMatch with the given threshold and
// DefaultNoiseTokens.
func FindBestMatch(target string, candidates []string, threshold float64) (Match, bool) {
	m := &Matcher{noise: DefaultNoiseTokens, threshold: threshold}

	return m.FindBestMatch(target, candidates)
}

var defaultMatcher = &Matcher{noise: DefaultNoiseTokens, threshold: DefaultThreshold}
