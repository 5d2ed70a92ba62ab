package predictor

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"loto-bot/internal/database"

	"github.com/stretchr/testify/assert"
)

// makeDraws 生成n期合法开奖，最新在前
func makeDraws(n int, seed int64) []database.Draw {
	r := rand.New(rand.NewSource(seed))
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	draws := make([]database.Draw, 0, n)
	for i := 0; i < n; i++ {
		nums := r.Perm(database.MaxNumber)[:database.NumbersPerDraw]
		for j := range nums {
			nums[j]++
		}
		sort.Ints(nums)
		draws = append(draws, database.Draw{
			Date:          base.AddDate(0, 0, -i).Format("2006-01-02"),
			Numbers:       nums,
			SpecialNumber: r.Intn(database.MaxSpecialNumber) + 1,
		})
	}
	return draws
}

// fixedDraws 生成n期号码相同的开奖
func fixedDraws(n int, numbers []int, special int) []database.Draw {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	draws := make([]database.Draw, 0, n)
	for i := 0; i < n; i++ {
		draws = append(draws, database.Draw{
			Date:          base.AddDate(0, 0, -i).Format("2006-01-02"),
			Numbers:       append([]int(nil), numbers...),
			SpecialNumber: special,
		})
	}
	return draws
}

func seeded(seed int64) RandomSource {
	return rand.New(rand.NewSource(seed))
}

// assertValidPrediction 5个升序不重复的1-49号码，幸运号1-10
func assertValidPrediction(t *testing.T, p database.Prediction) {
	t.Helper()
	if !assert.Len(t, p.Numbers, database.NumbersPerDraw) {
		return
	}
	assert.True(t, sort.IntsAreSorted(p.Numbers), "numbers not sorted: %v", p.Numbers)
	seen := make(map[int]bool)
	for _, n := range p.Numbers {
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, database.MaxNumber)
		assert.False(t, seen[n], "duplicate %d in %v", n, p.Numbers)
		seen[n] = true
	}
	assert.GreaterOrEqual(t, p.SpecialNumber, 1)
	assert.LessOrEqual(t, p.SpecialNumber, database.MaxSpecialNumber)
}

// constRandom 始终返回同一个值
type constRandom float64

func (c constRandom) Float64() float64 { return float64(c) }

// countingRandom 记录随机数调用次数
type countingRandom struct {
	RandomSource
	calls int
}

func (c *countingRandom) Float64() float64 {
	c.calls++
	return c.RandomSource.Float64()
}
