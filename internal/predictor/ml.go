package predictor

import (
	"sort"

	"loto-bot/internal/database"
)

const (
	mlMinDraws      = 20
	mlRecentWindow  = 15
	mlCandidatePool = 15
	mlGlobalWeight  = 0.3
	mlRecentWeight  = 0.4
	mlTrendWeight   = 0.2
	mlNoiseWeight   = 0.1
)

// PredictMachineLearning 特征评分加权抽样
// 分数 = 0.3*全局占比 + 0.4*最近15期占比 + 0.2*(两者之差) + 0.1*随机扰动
// 不足20期时退化为 PredictAI
func PredictMachineLearning(draws []database.Draw, rng RandomSource) database.Prediction {
	if len(draws) < mlMinDraws {
		return PredictAI(draws, rng)
	}

	global := CalculateStats(draws)
	recent := CalculateStats(head(draws, mlRecentWindow))
	total := float64(len(draws))

	score := func(globalCount, recentCount int) float64 {
		g := float64(globalCount) / total
		r := float64(recentCount) / mlRecentWindow
		return g*mlGlobalWeight + r*mlRecentWeight + (r-g)*mlTrendWeight + rng.Float64()*mlNoiseWeight
	}

	ranked := rankNumbers(database.MaxNumber, func(n int) float64 {
		return score(global.NumberFrequency[n], recent.NumberFrequency[n])
	})

	selected := rouletteSelect(rng, ranked[:mlCandidatePool], database.NumbersPerDraw)
	sort.Ints(selected)

	specials := rankNumbers(database.MaxSpecialNumber, func(n int) float64 {
		return score(global.SpecialNumberFrequency[n], recent.SpecialNumberFrequency[n])
	})

	return database.Prediction{
		Numbers:       selected,
		SpecialNumber: specials[0].num,
		Confidence:    confidenceFor(MethodMachineLearning),
		Method:        MethodName(MethodMachineLearning),
	}
}

// rouletteSelect 按分数加权无放回抽取size个号码
// 未抽中或候选耗尽时改为均匀随机抽取1-49之间的号码
func rouletteSelect(rng RandomSource, candidates []scoredNumber, size int) []int {
	selected := make([]int, 0, size)
	for len(selected) < size {
		remaining := make([]scoredNumber, 0, len(candidates))
		sum := 0.0
		for _, c := range candidates {
			if !database.ContainsNumber(selected, c.num) {
				remaining = append(remaining, c)
				sum += c.score
			}
		}

		point := rng.Float64() * sum
		picked := false
		for _, c := range remaining {
			point -= c.score
			if point <= 0 {
				selected = append(selected, c.num)
				picked = true
				break
			}
		}

		if !picked {
			n := randNumber(rng, database.MaxNumber)
			if !database.ContainsNumber(selected, n) {
				selected = append(selected, n)
			}
		}
	}
	return selected
}
