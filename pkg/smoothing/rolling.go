// Package smoothing implements the grouped rolling-average used for derived
// smoothed columns. Sequences distinguish an explicit recorded gap (a "null"
// observation) from a structurally absent reading: gaps occupy a window
// position but contribute nothing to the mean, while absent readings pass
// straight through to the output.
package smoothing

import "fmt"

type sampleKind int

const (
	kindValue sampleKind = iota
	kindGap
	kindAbsent
)

// Sample is one element of a smoothable sequence.
type Sample struct {
	val  float64
	kind sampleKind
}

// V wraps a valid observation.
func V(v float64) Sample { return Sample{val: v} }

// Gap is an explicit missing observation. It holds a window position but is
// excluded from any mean computed over that window.
func Gap() Sample { return Sample{kind: kindGap} }

// None is a structurally absent reading, not a data point.
func None() Sample { return Sample{kind: kindAbsent} }

func (s Sample) Value() (float64, bool) { return s.val, s.kind == kindValue }
func (s Sample) IsGap() bool            { return s.kind == kindGap }
func (s Sample) IsAbsent() bool         { return s.kind == kindAbsent }

func (s Sample) String() string {
	switch s.kind {
	case kindGap:
		return "null"
	case kindAbsent:
		return "none"
	default:
		return fmt.Sprintf("%v", s.val)
	}
}

// Alignment selects where the averaging window sits relative to the current
// position.
type Alignment int

const (
	// Right puts the window end at the current position.
	Right Alignment = iota
	// Center centers the window on the current position, biased one element
	// toward the past when the window size is even.
	Center
)

// Rolling computes a fixed-window mean over the sequence. Window size 1 is
// the identity transform. Absent samples propagate unchanged and a window
// holding no valid observation yields a gap, never NaN.
func Rolling(series []Sample, window int, align Alignment) []Sample {
	result := make([]Sample, len(series))

	for i, cur := range series {
		if cur.IsAbsent() {
			result[i] = None()
			continue
		}

		// window=1 means no smoothing and no expansion
		expand := window - 1
		expandLeft, expandRight := expand, 0
		if align == Center {
			expandLeft = (expand + 1) / 2
			expandRight = expand / 2
		}

		start := max(i-expandLeft, 0)
		end := min(i+expandRight, len(series)-1)

		sum, count := 0.0, 0
		for j := start; j <= end; j++ {
			if v, ok := series[j].Value(); ok {
				sum += v
				count++
			}
		}

		if count == 0 {
			result[i] = Gap()
			continue
		}
		result[i] = V(sum / float64(count))
	}

	return result
}

// RollingByGroup computes independent rolling averages over contiguous runs
// of equal group keys and concatenates the results in group order. The input
// must already be sorted by the group key: a group boundary resets the
// window, the mean never blends across groups.
func RollingByGroup(series []Sample, groups []string, window int, align Alignment) []Sample {
	result := make([]Sample, 0, len(series))

	start := 0
	for start < len(series) {
		end := start + 1
		for end < len(series) && groups[end] == groups[start] {
			end++
		}
		result = append(result, Rolling(series[start:end], window, align)...)
		start = end
	}

	return result
}

// InsertMissingValuePlaceholders densifies a sparse (values, times) pair by
// inserting one explicit gap per skipped integer time step between
// consecutive observations. The output is what Rolling expects: positionally
// faithful, gap-aware.
func InsertMissingValuePlaceholders(values []Sample, times []int) []Sample {
	if len(values) == 0 {
		return []Sample{}
	}

	result := make([]Sample, 0, len(values))
	result = append(result, values[0])
	for i := 1; i < len(values); i++ {
		for t := times[i-1] + 1; t < times[i]; t++ {
			result = append(result, Gap())
		}
		result = append(result, values[i])
	}

	return result
}
