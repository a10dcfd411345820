package grading

import (
	"fmt"
	"math"
	"sort"

	"github.com/trezcool/kadi/core/assessment"
)

// Reducer reduces the assessments of one bucket to a percentage.
// It is never called with an empty slice.
type Reducer interface {
	Reduce(as []assessment.Assessment) float64
}

type ReducerFunc func(as []assessment.Assessment) float64

func (f ReducerFunc) Reduce(as []assessment.Assessment) float64 { return f(as) }

var (
	// Mean is the mean of the assessment percentages.
	Mean = ReducerFunc(func(as []assessment.Assessment) float64 {
		var sum float64
		for _, a := range as {
			sum += a.Percentage()
		}
		return sum / float64(len(as))
	})

	// Latest is the percentage of the most recent assessment.
	Latest = ReducerFunc(func(as []assessment.Assessment) float64 {
		sorted := make([]assessment.Assessment, len(as))
		copy(sorted, as)
		sort.SliceStable(sorted, func(i, j int) bool {
			if !sorted[i].Date.Equal(sorted[j].Date) {
				return sorted[i].Date.Before(sorted[j].Date)
			}
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		})
		return sorted[len(sorted)-1].Percentage()
	})

	// Best is the highest percentage.
	Best = ReducerFunc(func(as []assessment.Assessment) float64 {
		best := as[0].Percentage()
		for _, a := range as[1:] {
			if p := a.Percentage(); p > best {
				best = p
			}
		}
		return best
	})

	// Pooled is sum(score)/sum(max_score)*100, weighting each assessment by its max_score.
	Pooled = ReducerFunc(func(as []assessment.Assessment) float64 {
		var score, max float64
		for _, a := range as {
			if a.MaxScore <= 0 {
				continue
			}
			score += a.Score
			max += a.MaxScore
		}
		if max == 0 {
			return 0
		}
		return score / max * 100
	})

	// Sum adds the raw scores, capped at 100, for buckets split into parts whose max scores add up to 100.
	Sum = ReducerFunc(func(as []assessment.Assessment) float64 {
		var sum float64
		for _, a := range as {
			sum += a.Score
		}
		return math.Min(sum, 100)
	})

	reducers = map[string]Reducer{
		"mean":   Mean,
		"latest": Latest,
		"best":   Best,
		"pooled": Pooled,
		"sum":    Sum,
	}
)

// ReducerByName returns one of "mean", "latest", "best", "pooled" or "sum".
func ReducerByName(name string) (Reducer, error) {
	if r, ok := reducers[name]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("grading: unknown reducer %q", name)
}
