package predictor

import (
	"sort"

	"loto-bot/internal/database"
)

const (
	pairCandidatePool = 10
	pairPicks         = 2
	pairNumberLimit   = 4
	sequenceWindow    = 50
)

// PredictPairsAnalysis 号码对分析：取出现最多的前2组号码对（最多4个号码），随机补足到5个
func PredictPairsAnalysis(draws []database.Draw, rng RandomSource) database.Prediction {
	pairs := rankPairs(CalculateStats(draws).CombinationPairs)
	if len(pairs) > pairCandidatePool {
		pairs = pairs[:pairCandidatePool]
	}
	if len(pairs) > pairPicks {
		pairs = pairs[:pairPicks]
	}

	selected := make([]int, 0, database.NumbersPerDraw)
	for _, pair := range pairs {
		for _, n := range []int{pair.a, pair.b} {
			if len(selected) < pairNumberLimit && !database.ContainsNumber(selected, n) {
				selected = append(selected, n)
			}
		}
	}

	selected = fillRandomUnique(rng, selected, database.NumbersPerDraw)
	sort.Ints(selected)

	return database.Prediction{
		Numbers:       selected,
		SpecialNumber: randNumber(rng, database.MaxSpecialNumber),
		Confidence:    confidenceFor(MethodPatterns),
		Method:        MethodName(MethodPatterns),
	}
}

// PredictSequenceAnalysis 连号分析：按最近50期的连号频率决定是否包含2-4个连号
// 否则生成不含相邻号码的组合
func PredictSequenceAnalysis(draws []database.Draw, rng RandomSource) database.Prediction {
	consecutive := 0
	for _, draw := range head(draws, sequenceWindow) {
		sorted := append([]int(nil), draw.Numbers...)
		sort.Ints(sorted)
		for i := 0; i+1 < len(sorted); i++ {
			if sorted[i+1] == sorted[i]+1 {
				consecutive++
			}
		}
	}
	probability := float64(consecutive) / sequenceWindow

	selected := make([]int, 0, database.NumbersPerDraw)
	if rng.Float64() < probability {
		start := randIndex(rng, 45) + 1
		size := randIndex(rng, 3) + 2
		for i := 0; i < size; i++ {
			selected = append(selected, start+i)
		}
		selected = fillRandomUnique(rng, selected, database.NumbersPerDraw)
	} else {
		for len(selected) < database.NumbersPerDraw {
			n := randNumber(rng, database.MaxNumber)
			if database.ContainsNumber(selected, n) || hasNeighbor(selected, n) {
				continue
			}
			selected = append(selected, n)
		}
	}
	sort.Ints(selected)

	return database.Prediction{
		Numbers:       selected,
		SpecialNumber: randNumber(rng, database.MaxSpecialNumber),
		Confidence:    confidenceFor(MethodSequence),
		Method:        MethodName(MethodSequence),
	}
}

func hasNeighbor(nums []int, n int) bool {
	return database.ContainsNumber(nums, n-1) || database.ContainsNumber(nums, n+1)
}
