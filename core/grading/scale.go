package grading

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MaxMark is the top of the mark range. The top band is closed at MaxMark and also catches totals above it.
const MaxMark = 100.0

// Band is one letter of a GradeScale. It covers [Min, next higher band's Min).
type Band struct {
	Letter string  `json:"letter"`
	Min    float64 `json:"min"`
}

// GradeScale maps total marks to letters. Bands are ordered by strictly decreasing Min and the last Min is 0.
type GradeScale []Band

// ParseScale parses "A=80,B=70,C=60,D=50,E=40,F=0".
func ParseScale(s string) (GradeScale, error) {
	var scale GradeScale
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("grade scale: invalid band %q", part)
		}
		min, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "grade scale: band %q", part)
		}
		scale = append(scale, Band{Letter: strings.TrimSpace(kv[0]), Min: min})
	}
	if err := scale.Validate(); err != nil {
		return nil, err
	}
	return scale, nil
}

// Validate checks that the scale is monotonic and covers [0, MaxMark].
func (s GradeScale) Validate() error {
	if len(s) == 0 {
		return errors.New("grade scale: no bands")
	}
	seen := make(map[string]bool, len(s))
	for i, b := range s {
		if b.Letter == "" {
			return fmt.Errorf("grade scale: band %d has no letter", i)
		}
		if seen[b.Letter] {
			return fmt.Errorf("grade scale: duplicate letter %q", b.Letter)
		}
		seen[b.Letter] = true
		if b.Min < 0 || b.Min > MaxMark {
			return fmt.Errorf("grade scale: %s lower bound %v out of [0, %v]", b.Letter, b.Min, MaxMark)
		}
		if i > 0 && b.Min >= s[i-1].Min {
			return fmt.Errorf("grade scale: %s (%v) must be lower than %s (%v)", b.Letter, b.Min, s[i-1].Letter, s[i-1].Min)
		}
	}
	if last := s[len(s)-1]; last.Min != 0 {
		return fmt.Errorf("grade scale: lowest band %s must start at 0", last.Letter)
	}
	return nil
}

// Letter returns the letter for total.
func (s GradeScale) Letter(total float64) string {
	for _, b := range s {
		if total >= b.Min {
			return b.Letter
		}
	}
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1].Letter // negative totals
}

// Range returns the [min, max) interval of letter; the top band's max is MaxMark inclusive.
func (s GradeScale) Range(letter string) (min, max float64, ok bool) {
	for i, b := range s {
		if b.Letter == letter {
			max = MaxMark
			if i > 0 {
				max = s[i-1].Min
			}
			return b.Min, max, true
		}
	}
	return 0, 0, false
}
