package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// 号码规则
const (
	NumbersPerDraw   = 5
	MaxNumber        = 49
	MaxSpecialNumber = 10
)

// Draw 开奖数据模型
type Draw struct {
	ID            string `json:"id" db:"id"`
	Date          string `json:"date" db:"draw_date"` // ISO yyyy-mm-dd
	Numbers       []int  `json:"numbers" db:"numbers"`
	SpecialNumber int    `json:"special_number" db:"special_number"`
	Day           string `json:"day,omitempty" db:"day"`
}

// PredictionStatus 预测状态
type PredictionStatus string

const (
	StatusPending  PredictionStatus = "pending"
	StatusVerified PredictionStatus = "verified"
	StatusMatched  PredictionStatus = "matched"
)

// Prediction 预测记录模型
type Prediction struct {
	ID            int64            `json:"id,omitempty" db:"id"`
	Numbers       []int            `json:"numbers" db:"numbers"`
	SpecialNumber int              `json:"special_number" db:"special_number"`
	Confidence    float64          `json:"confidence" db:"confidence"`
	Method        string           `json:"method" db:"method"`
	Status        PredictionStatus `json:"status,omitempty" db:"status"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}

// Subscriber 订阅推送的私聊用户
type Subscriber struct {
	ChatID    int64     `json:"chat_id" db:"chat_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FormatNumbers 格式化号码，如 "3,14,25,38,47"
func FormatNumbers(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// ParseNumbers 解析号码字符串
func ParseNumbers(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty numbers string")
	}

	parts := strings.Split(s, ",")
	nums := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("failed to parse number %q: %w", part, err)
		}
		nums = append(nums, n)
	}
	return nums, nil
}

// ContainsNumber 判断号码是否在列表中
func ContainsNumber(nums []int, n int) bool {
	for _, v := range nums {
		if v == n {
			return true
		}
	}
	return false
}
