package llm

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ScorePolicy decides what happens to a score outside the contract range.
type ScorePolicy string

const (
	// ScoreClamp pulls out-of-range scores to the nearest bound.
	ScoreClamp ScorePolicy = "clamp"
	// ScoreReject fails validation on any out-of-range score.
	ScoreReject ScorePolicy = "reject"
)

// ParseScorePolicy maps a config value to a policy; unknown values clamp.
func ParseScorePolicy(s string) ScorePolicy {
	if strings.EqualFold(strings.TrimSpace(s), string(ScoreReject)) {
		return ScoreReject
	}
	return ScoreClamp
}

// reLeadingInt accepts "7", " 7 ", "7/10", "7 out of 10", "7.5".
var reLeadingInt = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)`)

// CoerceScores turns score values given as strings or fractional numbers into
// whole numbers, then applies policy. Under ScoreClamp an out-of-range value is
// pulled to the nearest bound before rounding. Under ScoreReject it is written
// back unrounded so the schema range check still sees it. Values that cannot
// be read as numbers are left untouched for the schema check to report.
func CoerceScores(c Candidate, contract SchemaContract, policy ScorePolicy) []string {
	list, ok := c[contract.Fields.Hypotheses].([]any)
	if !ok {
		return nil
	}
	var changed []string
	for i, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		for _, k := range contract.ScoreFields() {
			v, present := obj[k]
			if !present {
				continue
			}
			n, ok := scoreValue(v)
			if !ok {
				continue
			}
			lo, hi := float64(contract.ScoreMin), float64(contract.ScoreMax)
			switch {
			case policy == ScoreClamp:
				n = math.Round(math.Max(lo, math.Min(hi, n)))
			case n >= lo && n <= hi:
				n = math.Round(n)
			}
			if f, isFloat := v.(float64); !isFloat || f != n {
				changed = append(changed, fmt.Sprintf("%s[%d].%s", contract.Fields.Hypotheses, i, k))
			}
			obj[k] = n
		}
	}
	return changed
}

func scoreValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		m := reLeadingInt.FindStringSubmatch(t)
		if m == nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func itoa(i int) string { return strconv.Itoa(i) }
