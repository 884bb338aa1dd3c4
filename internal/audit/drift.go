package audit

import (
	"math"
	"strings"
)

// Drift scores how different b is from a on a 0..100 scale using distinct,
// case-folded, whitespace-separated words. It is a bag-of-words measure and
// knows nothing about meaning: "buy milk" and "purchase dairy" score 100.
func Drift(a, b string) int {
	wa := wordSet(a)
	wb := wordSet(b)

	denom := len(wa)
	if len(wb) > denom {
		denom = len(wb)
	}
	if denom == 0 {
		return 0
	}

	overlap := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			overlap++
		}
	}

	return int(math.Round(100 - 100*float64(overlap)/float64(denom)))
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
