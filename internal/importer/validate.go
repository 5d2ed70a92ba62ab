package importer

import (
	"fmt"

	"loto-bot/internal/database"
)

// ValidateDraw 校验开奖数据：日期必填，5个1-49之间不重复的号码，幸运号1-10
func ValidateDraw(draw *database.Draw) error {
	if draw.Date == "" {
		return fmt.Errorf("date is required")
	}

	if len(draw.Numbers) != database.NumbersPerDraw {
		return fmt.Errorf("exactly %d numbers are required, got %d", database.NumbersPerDraw, len(draw.Numbers))
	}

	seen := make(map[int]bool, len(draw.Numbers))
	for _, n := range draw.Numbers {
		if n < 1 || n > database.MaxNumber {
			return fmt.Errorf("number out of range (1-%d): %d", database.MaxNumber, n)
		}
		if seen[n] {
			return fmt.Errorf("duplicate number: %d", n)
		}
		seen[n] = true
	}

	if draw.SpecialNumber < 1 || draw.SpecialNumber > database.MaxSpecialNumber {
		return fmt.Errorf("chance number out of range (1-%d): %d", database.MaxSpecialNumber, draw.SpecialNumber)
	}

	return nil
}
