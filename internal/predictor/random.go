package predictor

import (
	"math/rand"

	"loto-bot/internal/database"
)

// RandomSource 随机数来源，Float64返回[0,1)区间的值
// *rand.Rand 满足该接口，测试中可注入固定种子
type RandomSource interface {
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

// DefaultRandom 返回使用全局随机源的RandomSource，可并发使用
func DefaultRandom() RandomSource {
	return globalRandom{}
}

// randIndex 返回[0,n)之间的随机下标
func randIndex(rng RandomSource, n int) int {
	i := int(rng.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// randNumber 返回[1,max]之间的随机号码
func randNumber(rng RandomSource, max int) int {
	return randIndex(rng, max) + 1
}

// fillRandomUnique 用1-49之间不重复的随机号码补足到size个
func fillRandomUnique(rng RandomSource, selected []int, size int) []int {
	for len(selected) < size {
		n := randNumber(rng, database.MaxNumber)
		if !database.ContainsNumber(selected, n) {
			selected = append(selected, n)
		}
	}
	return selected
}

// sampleUnique 从候选池中随机抽取k个不重复号码
func sampleUnique(rng RandomSource, pool []int, k int) []int {
	if k > len(pool) {
		k = len(pool)
	}
	selected := make([]int, 0, k)
	for len(selected) < k {
		n := pool[randIndex(rng, len(pool))]
		if !database.ContainsNumber(selected, n) {
			selected = append(selected, n)
		}
	}
	return selected
}

// takeRandom 从池中随机取出一个号码并移除
func takeRandom(rng RandomSource, pool *[]int) int {
	i := randIndex(rng, len(*pool))
	n := (*pool)[i]
	*pool = append((*pool)[:i], (*pool)[i+1:]...)
	return n
}
