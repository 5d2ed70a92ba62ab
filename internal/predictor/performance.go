package predictor

import (
	"sort"

	"loto-bot/internal/database"
	"loto-bot/internal/logger"
)

// maxAnalyzedDraws 回测使用的最多最新期数
const maxAnalyzedDraws = 500

// PredictionMatch 单个预测与开奖的比对结果
type PredictionMatch struct {
	Prediction           database.Prediction `json:"prediction"`
	MatchingDraw         database.Draw       `json:"matching_draw"`
	MatchedNumbers       []int               `json:"matched_numbers"`
	MatchedSpecialNumber bool                `json:"matched_special_number"`
}

// WinCategory 该次比对的奖级
func (m PredictionMatch) WinCategory() string {
	return WinCategory(len(m.MatchedNumbers), m.MatchedSpecialNumber)
}

// MethodPerformance 单个预测方法的回测表现
type MethodPerformance struct {
	Method                string            `json:"method"`
	TotalPredictions      int               `json:"total_predictions"`
	NumbersFound          int               `json:"numbers_found"`
	SpecialNumbersFound   int               `json:"special_numbers_found"`
	AverageNumbers        float64           `json:"average_numbers"`
	AverageSpecialNumbers float64           `json:"average_special_numbers"`
	Predictions           []PredictionMatch `json:"predictions"`
}

// Score 排序分数：平均命中号码数加平均幸运号命中率
func (mp *MethodPerformance) Score() float64 {
	return mp.AverageNumbers + mp.AverageSpecialNumbers
}

// AnalyzePerformance 按方法回测历史预测
// 开奖按日期升序排列并取最新500期，每组第i个预测与第 i%len 期比对
// 结果按 Score 从高到低排序，任一输入为空时返回空结果
func AnalyzePerformance(draws []database.Draw, predictions []database.Prediction) []MethodPerformance {
	if len(draws) == 0 || len(predictions) == 0 {
		return []MethodPerformance{}
	}

	sorted := append([]database.Draw(nil), draws...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})
	if len(sorted) > maxAnalyzedDraws {
		sorted = sorted[len(sorted)-maxAnalyzedDraws:]
	}

	// 按方法名分组，保持首次出现顺序
	var order []string
	groups := make(map[string][]database.Prediction)
	for _, p := range predictions {
		if _, ok := groups[p.Method]; !ok {
			order = append(order, p.Method)
		}
		groups[p.Method] = append(groups[p.Method], p)
	}

	results := make([]MethodPerformance, 0, len(order))
	for _, method := range order {
		results = append(results, analyzeMethod(method, groups[method], sorted))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score() > results[j].Score()
	})

	logger.Debugf("Analyzed %d methods over %d draws", len(results), len(sorted))
	return results
}

func analyzeMethod(method string, predictions []database.Prediction, draws []database.Draw) MethodPerformance {
	perf := MethodPerformance{
		Method:           method,
		TotalPredictions: len(predictions),
		Predictions:      make([]PredictionMatch, 0, len(predictions)),
	}

	for i, prediction := range predictions {
		draw := draws[i%len(draws)]
		matched := MatchNumbers(prediction.Numbers, draw.Numbers)
		special := prediction.SpecialNumber == draw.SpecialNumber

		perf.NumbersFound += len(matched)
		if special {
			perf.SpecialNumbersFound++
		}

		perf.Predictions = append(perf.Predictions, PredictionMatch{
			Prediction:           prediction,
			MatchingDraw:         draw,
			MatchedNumbers:       matched,
			MatchedSpecialNumber: special,
		})
	}

	if analyzed := len(perf.Predictions); analyzed > 0 {
		perf.AverageNumbers = float64(perf.NumbersFound) / float64(analyzed)
		perf.AverageSpecialNumbers = float64(perf.SpecialNumbersFound) / float64(analyzed)
	}
	return perf
}

// MatchNumbers 返回同时出现在预测与开奖中的号码，保持预测中的顺序
func MatchNumbers(predicted, actual []int) []int {
	matched := []int{}
	for _, n := range predicted {
		if database.ContainsNumber(actual, n) {
			matched = append(matched, n)
		}
	}
	return matched
}

// NoWin 未中奖
const NoWin = "Aucun gain"

// WinCategory 根据命中号码数与幸运号是否命中返回奖级
func WinCategory(matched int, specialMatched bool) string {
	switch {
	case matched == 5 && specialMatched:
		return "Jackpot"
	case matched == 5:
		return "Rang 2"
	case matched == 4 && specialMatched:
		return "Rang 3"
	case matched == 4:
		return "Rang 4"
	case matched == 3 && specialMatched:
		return "Rang 5"
	case matched == 3:
		return "Rang 6"
	case matched == 2 && specialMatched:
		return "Rang 7"
	case matched == 1 && specialMatched:
		return "Rang 8"
	case matched == 0 && specialMatched:
		return "Rang 9"
	default:
		return NoWin
	}
}
