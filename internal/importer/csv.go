package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"loto-bot/internal/database"
	"loto-bot/internal/logger"

	"github.com/google/uuid"
)

// ErrNoValidDraws 文件中没有可导入的开奖数据
var ErrNoValidDraws = errors.New("no valid draws in csv")

// frenchWeekdays 法语星期名称，下标对应 time.Weekday
var frenchWeekdays = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}

// ParseCSV 解析CSV开奖数据
// 格式: date;numero1;numero2;numero3;numero4;numero5;numeroChance，首行为表头
// 日期支持 dd/mm/yyyy 与 yyyy-mm-dd，无效行记录警告后跳过
func ParseCSV(r io.Reader) ([]database.Draw, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var draws []database.Draw
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		if line == 1 || isBlank(record) {
			continue
		}

		draw, err := ParseRecord(record)
		if err != nil {
			logger.Warnf("Skipping csv line %d: %v", line, err)
			continue
		}
		draws = append(draws, *draw)
	}

	if len(draws) == 0 {
		return nil, ErrNoValidDraws
	}

	logger.Infof("Parsed %d draws from csv", len(draws))
	return draws, nil
}

// ParseRecord 解析一条记录: 日期、5个号码、幸运号，并生成ID与星期
func ParseRecord(record []string) (*database.Draw, error) {
	if len(record) < 7 {
		return nil, fmt.Errorf("expected 7 fields, got %d", len(record))
	}

	date, err := ToISODate(record[0])
	if err != nil {
		return nil, err
	}

	numbers := make([]int, 0, database.NumbersPerDraw)
	for i := 1; i <= database.NumbersPerDraw; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(record[i]))
		if err != nil {
			return nil, fmt.Errorf("invalid number in field %d: %q", i+1, record[i])
		}
		numbers = append(numbers, n)
	}

	special, err := strconv.Atoi(strings.TrimSpace(record[6]))
	if err != nil {
		return nil, fmt.Errorf("invalid chance number: %q", record[6])
	}

	draw := &database.Draw{
		ID:            uuid.NewString(),
		Date:          date,
		Numbers:       numbers,
		SpecialNumber: special,
		Day:           WeekdayName(date),
	}

	if err := ValidateDraw(draw); err != nil {
		return nil, err
	}
	return draw, nil
}

// ToISODate 将 dd/mm/yyyy 转换为 yyyy-mm-dd
func ToISODate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"02/01/2006", "2/1/2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unable to parse date: %q", s)
}

// WeekdayName 返回ISO日期对应的法语星期名称，解析失败返回空字符串
func WeekdayName(isoDate string) string {
	t, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return ""
	}
	return frenchWeekdays[t.Weekday()]
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
