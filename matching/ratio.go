// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package matching

import (
	"github.com/pmezard/go-difflib/difflib"
)

func runes(s string) []string {
	ret := make([]string, 0, len(s))
	for _, r := range s {
		ret = append(ret, string(r))
	}

	return ret
}

// Ratio measures the similarity of a and b in [0, 1] as 2*M/T, where T is
// the total number of runes and M the runes in the matching blocks found
// by recursively taking the longest common block (Ratcliff/Obershelp).
// Two empty strings are identical.
//
// Sequences of 200 runes or more ignore their popular runes, as
// difflib.SequenceMatcher does with autojunk.
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}
