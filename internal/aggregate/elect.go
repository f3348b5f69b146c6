package aggregate

import (
	"math"
	"sort"
)

const scoreEpsilon = 1e-9

// elect picks the winning group from a non-empty buffer.
func elect(buffer []Candidate) Decision {
	tally := Tally(buffer)
	if len(tally) == 0 {
		return Decision{}
	}
	best := tally[0]
	return Decision{
		VIN:            best.VIN,
		EvidenceCount:  best.Count,
		MeanConfidence: best.MeanConfidence,
		Tally:          tally,
	}
}

// Tally groups candidates by VIN and orders the groups best first: highest
// count x mean confidence, then earliest observation, then earliest arrival.
func Tally(buffer []Candidate) []Group {
	index := make(map[string]int, len(buffer))
	groups := make([]Group, 0, len(buffer))
	sums := make([]float64, 0, len(buffer))

	for seq, c := range buffer {
		i, ok := index[c.VIN]
		if !ok {
			i = len(groups)
			index[c.VIN] = i
			groups = append(groups, Group{VIN: c.VIN, firstSeen: c.ObservedAt, firstSeq: seq})
			sums = append(sums, 0)
		}
		groups[i].Count++
		sums[i] += c.Confidence
		if c.ObservedAt.Before(groups[i].firstSeen) {
			groups[i].firstSeen = c.ObservedAt
		}
	}

	for i := range groups {
		groups[i].MeanConfidence = sums[i] / float64(groups[i].Count)
		groups[i].Score = float64(groups[i].Count) * groups[i].MeanConfidence
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if math.Abs(a.Score-b.Score) > scoreEpsilon {
			return a.Score > b.Score
		}
		if !a.firstSeen.Equal(b.firstSeen) {
			return a.firstSeen.Before(b.firstSeen)
		}
		return a.firstSeq < b.firstSeq
	})
	return groups
}
