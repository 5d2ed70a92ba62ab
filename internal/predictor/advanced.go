package predictor

import (
	"sort"

	"loto-bot/internal/database"
)

const (
	aiRecentWindow     = 10
	aiGlobalWeight     = 0.4
	aiRecentWeight     = 0.6
	aiTopPicks         = 3
	trendWindow        = 20
	trendHalf          = 10
	trendPasses        = 10
	trendCandidatePool = 10
)

// PredictAI 加权评分：0.4*全局频率 + 0.6*最近10期频率，取前3名后随机补足
// 幸运号完全随机
func PredictAI(draws []database.Draw, rng RandomSource) database.Prediction {
	global := CalculateStats(draws)
	recent := CalculateStats(head(draws, aiRecentWindow))

	ranked := rankNumbers(database.MaxNumber, func(n int) float64 {
		return aiGlobalWeight*float64(global.NumberFrequency[n]) + aiRecentWeight*float64(recent.NumberFrequency[n])
	})

	selected := fillRandomUnique(rng, topNumbers(ranked, aiTopPicks), database.NumbersPerDraw)
	sort.Ints(selected)

	return database.Prediction{
		Numbers:       selected,
		SpecialNumber: randNumber(rng, database.MaxSpecialNumber),
		Confidence:    confidenceFor(MethodAI),
		Method:        MethodName(MethodAI),
	}
}

// PredictTrendAnalysis 趋势分析：最近20期中，前10期与后10期出现次数之差
// 累计10轮后取趋势值最高的10个号码，从中随机抽取5个
func PredictTrendAnalysis(draws []database.Draw, rng RandomSource) database.Prediction {
	window := head(draws, trendWindow)
	newer := head(window, trendHalf)
	var older []database.Draw
	if len(window) > trendHalf {
		older = window[trendHalf:]
	}

	newerFreq := CalculateStats(newer).NumberFrequency
	olderFreq := CalculateStats(older).NumberFrequency

	ranked := rankNumbers(database.MaxNumber, func(n int) float64 {
		return float64(trendPasses * (newerFreq[n] - olderFreq[n]))
	})

	selected := sampleUnique(rng, topNumbers(ranked, trendCandidatePool), database.NumbersPerDraw)
	sort.Ints(selected)

	return database.Prediction{
		Numbers:       selected,
		SpecialNumber: randNumber(rng, database.MaxSpecialNumber),
		Confidence:    confidenceFor(MethodTrend),
		Method:        MethodName(MethodTrend),
	}
}
