package predictor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"loto-bot/internal/database"
)

// Stats 开奖频率统计，每次从开奖数据完整重算
type Stats struct {
	NumberFrequency        map[int]int    `json:"number_frequency"`
	SpecialNumberFrequency map[int]int    `json:"special_number_frequency"`
	CombinationPairs       map[string]int `json:"combination_pairs"`
	DayFrequency           map[string]int `json:"day_frequency"`
}

// CalculateStats 计算号码、幸运号、号码对及星期的出现频率
// 1-49 与 1-10 的键始终存在，空输入得到全零统计
func CalculateStats(draws []database.Draw) *Stats {
	stats := &Stats{
		NumberFrequency:        make(map[int]int, database.MaxNumber),
		SpecialNumberFrequency: make(map[int]int, database.MaxSpecialNumber),
		CombinationPairs:       make(map[string]int),
		DayFrequency:           make(map[string]int),
	}

	for i := 1; i <= database.MaxNumber; i++ {
		stats.NumberFrequency[i] = 0
	}
	for i := 1; i <= database.MaxSpecialNumber; i++ {
		stats.SpecialNumberFrequency[i] = 0
	}

	for _, draw := range draws {
		for _, n := range draw.Numbers {
			stats.NumberFrequency[n]++
		}

		stats.SpecialNumberFrequency[draw.SpecialNumber]++

		for i := 0; i < len(draw.Numbers); i++ {
			for j := i + 1; j < len(draw.Numbers); j++ {
				stats.CombinationPairs[PairKey(draw.Numbers[i], draw.Numbers[j])]++
			}
		}

		if draw.Day != "" {
			stats.DayFrequency[draw.Day]++
		}
	}

	return stats
}

// PairKey 号码对的键，小号在前，如 "3-14"
func PairKey(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d-%d", a, b)
}

// ParsePairKey 解析号码对的键
func ParsePairKey(key string) (int, int, error) {
	left, right, ok := strings.Cut(key, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid pair key: %q", key)
	}
	a, err := strconv.Atoi(left)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid pair key: %q", key)
	}
	b, err := strconv.Atoi(right)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid pair key: %q", key)
	}
	return a, b, nil
}

// scoredNumber 带分数的号码
type scoredNumber struct {
	num   int
	score float64
}

// rankNumbers 按分数从高到低排列1..max，同分时小号在前
// score按号码升序逐个调用，每个号码只调用一次
func rankNumbers(max int, score func(n int) float64) []scoredNumber {
	ranked := make([]scoredNumber, 0, max)
	for n := 1; n <= max; n++ {
		ranked = append(ranked, scoredNumber{num: n, score: score(n)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	return ranked
}

// topNumbers 取排名前k的号码
func topNumbers(ranked []scoredNumber, k int) []int {
	if k > len(ranked) {
		k = len(ranked)
	}
	nums := make([]int, k)
	for i := 0; i < k; i++ {
		nums[i] = ranked[i].num
	}
	return nums
}

// numberPair 号码对及其出现次数
type numberPair struct {
	a, b  int
	count int
}

// rankPairs 按出现次数从高到低排列号码对，同次数时按(a,b)升序
func rankPairs(pairs map[string]int) []numberPair {
	ranked := make([]numberPair, 0, len(pairs))
	for key, count := range pairs {
		a, b, err := ParsePairKey(key)
		if err != nil {
			continue
		}
		ranked = append(ranked, numberPair{a: a, b: b, count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		if ranked[i].a != ranked[j].a {
			return ranked[i].a < ranked[j].a
		}
		return ranked[i].b < ranked[j].b
	})
	return ranked
}

// head 取最新的n期（切片头部为最新）
func head(draws []database.Draw, n int) []database.Draw {
	if len(draws) < n {
		return draws
	}
	return draws[:n]
}

// NumberCount 号码及其出现次数
type NumberCount struct {
	Number int `json:"number"`
	Count  int `json:"count"`
}

// PairCount 号码对及其出现次数
type PairCount struct {
	A     int `json:"a"`
	B     int `json:"b"`
	Count int `json:"count"`
}

// TopNumbers 出现次数最多的k个号码，同次数时小号在前
func (s *Stats) TopNumbers(k int) []NumberCount {
	return topCounts(s.NumberFrequency, database.MaxNumber, k)
}

// TopSpecialNumbers 出现次数最多的k个幸运号
func (s *Stats) TopSpecialNumbers(k int) []NumberCount {
	return topCounts(s.SpecialNumberFrequency, database.MaxSpecialNumber, k)
}

// TopPairs 出现次数最多的k组号码对
func (s *Stats) TopPairs(k int) []PairCount {
	ranked := rankPairs(s.CombinationPairs)
	if k > len(ranked) {
		k = len(ranked)
	}
	pairs := make([]PairCount, 0, k)
	for _, p := range ranked[:k] {
		pairs = append(pairs, PairCount{A: p.a, B: p.b, Count: p.count})
	}
	return pairs
}

func topCounts(freq map[int]int, max, k int) []NumberCount {
	ranked := rankNumbers(max, func(n int) float64 { return float64(freq[n]) })
	if k > len(ranked) {
		k = len(ranked)
	}
	counts := make([]NumberCount, 0, k)
	for _, r := range ranked[:k] {
		counts = append(counts, NumberCount{Number: r.num, Count: freq[r.num]})
	}
	return counts
}
