package cache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"loto-bot/internal/database"
	"loto-bot/internal/logger"
	"loto-bot/internal/predictor"

	"github.com/cespare/xxhash/v2"
)

const (
	drawsPrefix       = "draws:"
	predictionsPrefix = "predictions:"
	statsPrefix       = "stats:"
	performancePrefix = "performance:"

	keyAllDraws       = drawsPrefix + "all"
	keyAllPredictions = predictionsPrefix + "all"
	keyStats          = statsPrefix + "all"

	maxCacheItems   = 1000
	cleanupInterval = 5 * time.Minute
)

// Store 缓存管理器依赖的数据源
type Store interface {
	GetAllDraws(ctx context.Context) ([]database.Draw, error)
	GetLatestDraws(ctx context.Context, limit int) ([]database.Draw, error)
	GetPredictions(ctx context.Context, limit int) ([]database.Prediction, error)
}

// CacheManager 内存缓存管理器，统计与回测结果均从缓存的开奖数据派生
type CacheManager struct {
	memory     *MemoryCache
	store      Store
	defaultTTL time.Duration
}

// NewCacheManager 创建新的缓存管理器
func NewCacheManager(store Store, defaultTTL time.Duration) *CacheManager {
	manager := &CacheManager{
		memory:     NewMemoryCache(maxCacheItems, cleanupInterval),
		store:      store,
		defaultTTL: defaultTTL,
	}

	logger.Infof("Cache manager initialized (ttl %v)", defaultTTL)
	return manager
}

// Close 关闭缓存管理器
func (cm *CacheManager) Close() error {
	cm.memory.Close()
	logger.Info("Cache manager closed")
	return nil
}

// GetDraws 获取全部开奖数据（最新在前）
func (cm *CacheManager) GetDraws(ctx context.Context) ([]database.Draw, error) {
	if v, ok := cm.memory.Get(keyAllDraws); ok {
		return v.([]database.Draw), nil
	}

	draws, err := cm.store.GetAllDraws(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get draws from database: %w", err)
	}

	cm.memory.Set(keyAllDraws, draws, cm.defaultTTL)
	return draws, nil
}

// GetLatestDraws 获取最近 limit 期开奖数据
func (cm *CacheManager) GetLatestDraws(ctx context.Context, limit int) ([]database.Draw, error) {
	cacheKey := fmt.Sprintf("%slatest:%d", drawsPrefix, limit)
	if v, ok := cm.memory.Get(cacheKey); ok {
		return v.([]database.Draw), nil
	}

	draws, err := cm.store.GetLatestDraws(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest draws from database: %w", err)
	}

	cm.memory.Set(cacheKey, draws, cm.defaultTTL)
	return draws, nil
}

// GetPredictions 获取全部历史预测
func (cm *CacheManager) GetPredictions(ctx context.Context) ([]database.Prediction, error) {
	if v, ok := cm.memory.Get(keyAllPredictions); ok {
		return v.([]database.Prediction), nil
	}

	predictions, err := cm.store.GetPredictions(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get predictions from database: %w", err)
	}

	cm.memory.Set(keyAllPredictions, predictions, cm.defaultTTL)
	return predictions, nil
}

// GetStats 获取基于全部开奖数据的统计
func (cm *CacheManager) GetStats(ctx context.Context) (*predictor.Stats, error) {
	if v, ok := cm.memory.Get(keyStats); ok {
		return v.(*predictor.Stats), nil
	}

	draws, err := cm.GetDraws(ctx)
	if err != nil {
		return nil, err
	}

	stats := predictor.CalculateStats(draws)
	cm.memory.Set(keyStats, stats, cm.defaultTTL)
	return stats, nil
}

// GetPerformance 获取各方法回测结果
// 开奖期数与预测集合不变时直接返回缓存结果
func (cm *CacheManager) GetPerformance(ctx context.Context) ([]predictor.MethodPerformance, error) {
	draws, err := cm.GetDraws(ctx)
	if err != nil {
		return nil, err
	}

	predictions, err := cm.GetPredictions(ctx)
	if err != nil {
		return nil, err
	}

	cacheKey := PerformanceKey(len(draws), predictions)
	if v, ok := cm.memory.Get(cacheKey); ok {
		return v.([]predictor.MethodPerformance), nil
	}

	report := predictor.AnalyzePerformance(draws, predictions)
	cm.memory.Set(cacheKey, report, cm.defaultTTL)
	return report, nil
}

// PerformanceKey 由开奖期数与预测ID集合生成回测缓存键
func PerformanceKey(drawCount int, predictions []database.Prediction) string {
	ids := make([]int64, len(predictions))
	for i, p := range predictions {
		ids[i] = p.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	h := xxhash.New()
	buf := make([]byte, 0, 20)
	for _, id := range ids {
		buf = strconv.AppendInt(buf[:0], id, 10)
		buf = append(buf, ',')
		h.Write(buf)
	}

	return fmt.Sprintf("%s%d:%016x", performancePrefix, drawCount, h.Sum64())
}

// OnDrawsImported 新开奖数据入库事件处理
func (cm *CacheManager) OnDrawsImported(count int) {
	if count == 0 {
		return
	}

	cm.memory.DeletePrefix(drawsPrefix)
	cm.memory.DeletePrefix(statsPrefix)
	cm.memory.DeletePrefix(performancePrefix)
	logger.Infof("Cache invalidated for %d new draws", count)
}

// OnPredictionsGenerated 预测生成事件处理
func (cm *CacheManager) OnPredictionsGenerated(count int) {
	if count == 0 {
		return
	}

	cm.memory.DeletePrefix(predictionsPrefix)
	cm.memory.DeletePrefix(performancePrefix)
	logger.Infof("Cache invalidated for %d new predictions", count)
}

// GetCacheStats 获取缓存统计信息
func (cm *CacheManager) GetCacheStats() map[string]interface{} {
	return map[string]interface{}{
		"memory_cache": cm.memory.Stats(),
		"default_ttl":  cm.defaultTTL.String(),
	}
}
