package predictor

import (
	"sort"

	"loto-bot/internal/database"
)

const (
	frequencyPoolSize    = 20
	frequencySpecialPool = 3
	hotColdRecentWindow  = 15
	hotColdSpecialPool   = 5
	hotThreshold         = 1.5
	warmThreshold        = 0.8
)

// PredictBasedOnStats 频率分析：从出现最多的20个号码中随机抽取5个
// 幸运号从出现最多的3个中随机选择
func PredictBasedOnStats(stats *Stats, rng RandomSource) database.Prediction {
	if stats == nil {
		stats = CalculateStats(nil)
	}

	ranked := rankNumbers(database.MaxNumber, func(n int) float64 {
		return float64(stats.NumberFrequency[n])
	})
	selected := sampleUnique(rng, topNumbers(ranked, frequencyPoolSize), database.NumbersPerDraw)
	sort.Ints(selected)

	specials := topNumbers(rankNumbers(database.MaxSpecialNumber, func(n int) float64 {
		return float64(stats.SpecialNumberFrequency[n])
	}), frequencySpecialPool)

	return database.Prediction{
		Numbers:       selected,
		SpecialNumber: specials[randIndex(rng, len(specials))],
		Confidence:    confidenceFor(MethodFrequency),
		Method:        MethodName(MethodFrequency),
	}
}

// PredictHotColdAnalysis 冷热号分析：比较最近15期与全部历史的出现次数
// 最近次数超过全局1.5倍为热号，不低于0.8倍为温号，其余为冷号
// 依次抽取3个热号、1个温号、1个冷号，分组耗尽时由相邻分组补充
func PredictHotColdAnalysis(draws []database.Draw, rng RandomSource) database.Prediction {
	global := CalculateStats(draws)
	recent := CalculateStats(head(draws, hotColdRecentWindow))

	var hot, warm, cold []int
	for n := 1; n <= database.MaxNumber; n++ {
		overall := float64(global.NumberFrequency[n])
		recentFreq := float64(recent.NumberFrequency[n])
		switch {
		case recentFreq > overall*hotThreshold:
			hot = append(hot, n)
		case recentFreq >= overall*warmThreshold:
			warm = append(warm, n)
		default:
			cold = append(cold, n)
		}
	}

	selected := make([]int, 0, database.NumbersPerDraw)
	pick := func(primary, fallback *[]int) {
		switch {
		case len(*primary) > 0:
			selected = append(selected, takeRandom(rng, primary))
		case len(*fallback) > 0:
			selected = append(selected, takeRandom(rng, fallback))
		}
	}

	for i := 0; i < 3; i++ {
		pick(&hot, &warm)
	}
	pick(&warm, &cold)
	pick(&cold, &warm)

	selected = fillRandomUnique(rng, selected, database.NumbersPerDraw)
	sort.Ints(selected)

	specials := topNumbers(rankNumbers(database.MaxSpecialNumber, func(n int) float64 {
		return float64(recent.SpecialNumberFrequency[n])
	}), hotColdSpecialPool)
	var special int
	if len(specials) > 0 {
		special = specials[randIndex(rng, len(specials))]
	} else {
		special = randNumber(rng, database.MaxSpecialNumber)
	}

	return database.Prediction{
		Numbers:       selected,
		SpecialNumber: special,
		Confidence:    confidenceFor(MethodHotCold),
		Method:        MethodName(MethodHotCold),
	}
}
