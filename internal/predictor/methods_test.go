package predictor

import (
	"testing"

	"loto-bot/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodsProduceValidPredictions(t *testing.T) {
	draws := makeDraws(120, 42)
	stats := CalculateStats(draws)

	methods := map[string]func(rng RandomSource) database.Prediction{
		MethodFrequency:       func(rng RandomSource) database.Prediction { return PredictBasedOnStats(stats, rng) },
		MethodHotCold:         func(rng RandomSource) database.Prediction { return PredictHotColdAnalysis(draws, rng) },
		MethodPatterns:        func(rng RandomSource) database.Prediction { return PredictPairsAnalysis(draws, rng) },
		MethodSequence:        func(rng RandomSource) database.Prediction { return PredictSequenceAnalysis(draws, rng) },
		MethodMachineLearning: func(rng RandomSource) database.Prediction { return PredictMachineLearning(draws, rng) },
		MethodAI:              func(rng RandomSource) database.Prediction { return PredictAI(draws, rng) },
		MethodTrend:           func(rng RandomSource) database.Prediction { return PredictTrendAnalysis(draws, rng) },
	}

	for id, predict := range methods {
		t.Run(id, func(t *testing.T) {
			for seed := int64(1); seed <= 50; seed++ {
				p := predict(seeded(seed))
				assertValidPrediction(t, p)
				assert.Equal(t, MethodName(id), p.Method)
				assert.Equal(t, confidenceFor(id), p.Confidence)
			}
		})
	}
}

func TestMethodsWithFewDraws(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		draws := makeDraws(n, 3)
		rng := seeded(int64(n) + 1)
		assertValidPrediction(t, PredictBasedOnStats(CalculateStats(draws), rng))
		assertValidPrediction(t, PredictHotColdAnalysis(draws, rng))
		assertValidPrediction(t, PredictPairsAnalysis(draws, rng))
		assertValidPrediction(t, PredictSequenceAnalysis(draws, rng))
		assertValidPrediction(t, PredictMachineLearning(draws, rng))
		assertValidPrediction(t, PredictAI(draws, rng))
		assertValidPrediction(t, PredictTrendAnalysis(draws, rng))
	}
}

func TestPredictBasedOnStatsUsesTopPool(t *testing.T) {
	stats := CalculateStats(nil)
	for n := 1; n <= 20; n++ {
		stats.NumberFrequency[n] = 10
	}
	stats.SpecialNumberFrequency[4] = 9
	stats.SpecialNumberFrequency[5] = 8
	stats.SpecialNumberFrequency[6] = 7

	for seed := int64(1); seed <= 30; seed++ {
		p := PredictBasedOnStats(stats, seeded(seed))
		for _, n := range p.Numbers {
			assert.LessOrEqual(t, n, 20)
		}
		assert.Contains(t, []int{4, 5, 6}, p.SpecialNumber)
	}
}

func TestPredictBasedOnStatsNil(t *testing.T) {
	assertValidPrediction(t, PredictBasedOnStats(nil, seeded(1)))
}

func TestPredictAIKeepsTopThree(t *testing.T) {
	draws := fixedDraws(15, []int{7, 8, 9, 10, 11}, 1)
	for seed := int64(1); seed <= 20; seed++ {
		p := PredictAI(draws, seeded(seed))
		assert.Subset(t, p.Numbers, []int{7, 8, 9})
	}
}

func TestPredictTrendAnalysisPool(t *testing.T) {
	draws := append(fixedDraws(10, []int{45, 46, 47, 48, 49}, 1), fixedDraws(10, []int{1, 2, 3, 4, 5}, 2)...)
	pool := []int{45, 46, 47, 48, 49, 6, 7, 8, 9, 10}

	for seed := int64(1); seed <= 20; seed++ {
		p := PredictTrendAnalysis(draws, seeded(seed))
		assert.Subset(t, pool, p.Numbers)
	}
}

func TestPredictPairsAnalysisUsesTopPairs(t *testing.T) {
	draws := fixedDraws(12, []int{2, 4, 6, 8, 10}, 3)
	for seed := int64(1); seed <= 20; seed++ {
		p := PredictPairsAnalysis(draws, seeded(seed))
		assert.Subset(t, p.Numbers, []int{2, 4, 6})
	}
}

func TestPredictSequenceAnalysis(t *testing.T) {
	hasRun := func(nums []int) bool {
		for i := 0; i+1 < len(nums); i++ {
			if nums[i+1] == nums[i]+1 {
				return true
			}
		}
		return false
	}

	runs := fixedDraws(50, []int{1, 2, 3, 4, 5}, 1)
	spaced := fixedDraws(50, []int{1, 3, 5, 7, 9}, 1)

	for seed := int64(1); seed <= 30; seed++ {
		assert.True(t, hasRun(PredictSequenceAnalysis(runs, seeded(seed)).Numbers))
		assert.False(t, hasRun(PredictSequenceAnalysis(spaced, seeded(seed)).Numbers))
	}
}

func TestPredictHotColdSpecialFromRecent(t *testing.T) {
	draws := append(fixedDraws(15, []int{1, 2, 3, 4, 5}, 9), makeDraws(40, 5)...)
	for seed := int64(1); seed <= 20; seed++ {
		p := PredictHotColdAnalysis(draws, seeded(seed))
		assertValidPrediction(t, p)
		// 最近15期只出现过9，其余按号码升序
		assert.Contains(t, []int{9, 1, 2, 3, 4}, p.SpecialNumber)
	}
}

func TestPredictMachineLearningDelegatesBelowTwenty(t *testing.T) {
	draws := makeDraws(19, 8)
	assert.Equal(t, PredictAI(draws, seeded(7)), PredictMachineLearning(draws, seeded(7)))
}

func TestPredictMachineLearningSpecialArgmax(t *testing.T) {
	draws := fixedDraws(30, []int{10, 20, 30, 40, 49}, 3)
	for seed := int64(1); seed <= 20; seed++ {
		p := PredictMachineLearning(draws, seeded(seed))
		assert.Equal(t, 3, p.SpecialNumber)
		assertValidPrediction(t, p)
	}
}

func TestPredictHotColdWithoutHotNumbers(t *testing.T) {
	// 1-5 最近15期出现15次，全部30期出现30次，归为冷号；其余号码为温号
	draws := fixedDraws(30, []int{1, 2, 3, 4, 5}, 2)
	for seed := int64(1); seed <= 20; seed++ {
		p := PredictHotColdAnalysis(draws, seeded(seed))
		assertValidPrediction(t, p)

		cold := 0
		for _, n := range p.Numbers {
			if n <= 5 {
				cold++
			}
		}
		assert.Equal(t, 1, cold, "numbers: %v", p.Numbers)
	}
}

func TestPredictHotColdAllWarm(t *testing.T) {
	// 不足15期时最近与全局一致，所有号码都是温号
	draws := fixedDraws(10, []int{1, 2, 3, 4, 5}, 2)
	for seed := int64(1); seed <= 20; seed++ {
		rng := &countingRandom{RandomSource: seeded(seed)}
		p := PredictHotColdAnalysis(draws, rng)
		assertValidPrediction(t, p)
		// 5次分组抽取加1次幸运号，不需要随机补足
		assert.Equal(t, 6, rng.calls)
	}
}

func TestPredictHotColdFillsWhenPoolsRunDry(t *testing.T) {
	draws := fixedDraws(19, []int{1, 2, 3, 4, 5}, 2)
	for start := 1; start <= 41; start += 5 {
		draws = append(draws, database.Draw{
			Date:          "2023-01-01",
			Numbers:       []int{start, start + 1, start + 2, start + 3, start + 4},
			SpecialNumber: 1,
		})
	}
	draws = append(draws, database.Draw{Date: "2023-01-01", Numbers: []int{45, 46, 47, 48, 49}, SpecialNumber: 1})

	// 全部49个号码都是冷号，只能抽出2个，其余随机补足
	for seed := int64(1); seed <= 20; seed++ {
		rng := &countingRandom{RandomSource: seeded(seed)}
		p := PredictHotColdAnalysis(draws, rng)
		assertValidPrediction(t, p)
		assert.GreaterOrEqual(t, rng.calls, 6)
	}
}

func TestRouletteSelectOrder(t *testing.T) {
	candidates := []scoredNumber{{num: 4, score: 1}, {num: 9, score: 1}}

	assert.Equal(t, []int{4, 9}, rouletteSelect(constRandom(0.3), candidates, 2))
	assert.Equal(t, []int{9, 4}, rouletteSelect(constRandom(0.99), candidates, 2))
}

func TestRouletteSelectZeroScores(t *testing.T) {
	candidates := []scoredNumber{{num: 4, score: 1}, {num: 9, score: 0}}
	assert.Equal(t, []int{4, 9}, rouletteSelect(constRandom(0.3), candidates, 2))
}

func TestRouletteSelectFallsBackToUniform(t *testing.T) {
	candidates := []scoredNumber{{num: 7, score: 0.5}, {num: 21, score: 0.25}}

	for seed := int64(1); seed <= 20; seed++ {
		selected := rouletteSelect(seeded(seed), candidates, database.NumbersPerDraw)
		require.Len(t, selected, database.NumbersPerDraw)
		assert.Subset(t, selected, []int{7, 21})

		seen := make(map[int]bool)
		for _, n := range selected {
			assert.GreaterOrEqual(t, n, 1)
			assert.LessOrEqual(t, n, database.MaxNumber)
			assert.False(t, seen[n])
			seen[n] = true
		}
	}
}
