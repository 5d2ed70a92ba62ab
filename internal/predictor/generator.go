package predictor

import (
	"errors"
	"time"

	"loto-bot/internal/database"
	"loto-bot/internal/logger"
)

const (
	// MinTrainingDraws 生成预测所需的最少开奖期数
	MinTrainingDraws = 10
	// MaxTrainingDraws 训练使用的最多最新期数
	MaxTrainingDraws = 1000
)

// ErrInsufficientData 开奖数据不足
var ErrInsufficientData = errors.New("insufficient data: at least 10 draws are required")

// GeneratePredictionData 批量生成预测
// 指定 methods 时每个方法生成一组，否则按注册表顺序循环生成 count 组
// 训练集取最新1000期并在其上重新计算统计
func (pm *PredictorManager) GeneratePredictionData(draws []database.Draw, stats *Stats, count int, methods []string) ([]database.Prediction, error) {
	if stats == nil || len(draws) < MinTrainingDraws {
		return nil, ErrInsufficientData
	}

	start := time.Now()
	training := head(draws, MaxTrainingDraws)
	trainingStats := CalculateStats(training)

	keys := methods
	if len(keys) == 0 && count > 0 {
		keys = make([]string, 0, count)
		for i := 0; i < count; i++ {
			keys = append(keys, methodRegistry[i%len(methodRegistry)].ID)
		}
	}

	predictions := make([]database.Prediction, 0, len(keys))
	for _, key := range keys {
		prediction := pm.GenerateOptimalNumbers(training, trainingStats, key)
		if id, ok := ResolveMethod(key); ok && id != MethodAdvanced {
			prediction.Method = MethodName(id)
		}
		prediction.Status = database.StatusPending
		predictions = append(predictions, prediction)
	}

	logger.Debugf("Generated %d predictions from %d draws in %v", len(predictions), len(training), time.Since(start))
	return predictions, nil
}
