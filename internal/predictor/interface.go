package predictor

import (
	"fmt"
	"strings"

	"loto-bot/internal/database"
)

// 预测方法标识
const (
	MethodFrequency       = "frequency"
	MethodHotCold         = "hot-cold"
	MethodPatterns        = "patterns"
	MethodSequence        = "sequence"
	MethodMachineLearning = "machine-learning"
	MethodAI              = "ai"
	MethodTrend           = "trend"

	// MethodAdvanced 随机选择 ai 或 trend
	MethodAdvanced = "advanced"
)

// MethodInfo 预测方法描述
type MethodInfo struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// methodRegistry 预测方法注册表，顺序即循环生成顺序
var methodRegistry = []MethodInfo{
	{ID: MethodFrequency, Name: "Analyse statistique de fréquence", Confidence: 0.65},
	{ID: MethodHotCold, Name: "Analyse numéros chauds/froids", Confidence: 0.68},
	{ID: MethodPatterns, Name: "Analyse des paires fréquentes", Confidence: 0.71},
	{ID: MethodSequence, Name: "Analyse des séquences", Confidence: 0.69},
	{ID: MethodMachineLearning, Name: "Machine Learning Prédictif", Confidence: 0.82},
	{ID: MethodAI, Name: "Intelligence artificielle prédictive", Confidence: 0.78},
	{ID: MethodTrend, Name: "Analyse des tendances et cycles", Confidence: 0.72},
}

var methodAliases = map[string]string{
	"hotcold": MethodHotCold,
	"ml":      MethodMachineLearning,
}

// Methods 返回注册表副本
func Methods() []MethodInfo {
	methods := make([]MethodInfo, len(methodRegistry))
	copy(methods, methodRegistry)
	return methods
}

// ResolveMethod 将用户输入的方法名解析为标准标识，支持别名
func ResolveMethod(key string) (string, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	if alias, ok := methodAliases[key]; ok {
		key = alias
	}
	if key == MethodAdvanced {
		return key, true
	}
	for _, m := range methodRegistry {
		if m.ID == key {
			return key, true
		}
	}
	return "", false
}

// MethodName 返回方法的显示名称，未知方法返回空字符串
func MethodName(id string) string {
	for _, m := range methodRegistry {
		if m.ID == id {
			return m.Name
		}
	}
	return ""
}

func confidenceFor(id string) float64 {
	for _, m := range methodRegistry {
		if m.ID == id {
			return m.Confidence
		}
	}
	return 0
}

// Predictor 预测算法接口
type Predictor interface {
	// Predict 根据历史开奖（最新在前）及其统计生成一组号码
	Predict(draws []database.Draw, stats *Stats) database.Prediction

	// GetID 获取算法标识
	GetID() string

	// GetName 获取算法名称
	GetName() string
}

// methodPredictor 将预测函数包装为 Predictor
type methodPredictor struct {
	info    MethodInfo
	rng     RandomSource
	predict func(draws []database.Draw, stats *Stats, rng RandomSource) database.Prediction
}

func (p *methodPredictor) Predict(draws []database.Draw, stats *Stats) database.Prediction {
	return p.predict(draws, stats, p.rng)
}

func (p *methodPredictor) GetID() string   { return p.info.ID }
func (p *methodPredictor) GetName() string { return p.info.Name }

// PredictorManager 预测器管理器
type PredictorManager struct {
	predictors map[string]Predictor
	rng        RandomSource
}

// NewPredictorManager 创建新的预测器管理器并注册全部内置方法
// rng 为 nil 时使用全局随机源
func NewPredictorManager(rng RandomSource) *PredictorManager {
	if rng == nil {
		rng = DefaultRandom()
	}

	manager := &PredictorManager{
		predictors: make(map[string]Predictor),
		rng:        rng,
	}

	builtins := map[string]func([]database.Draw, *Stats, RandomSource) database.Prediction{
		MethodFrequency: func(draws []database.Draw, stats *Stats, rng RandomSource) database.Prediction {
			if stats == nil {
				stats = CalculateStats(draws)
			}
			return PredictBasedOnStats(stats, rng)
		},
		MethodHotCold: func(draws []database.Draw, _ *Stats, rng RandomSource) database.Prediction {
			return PredictHotColdAnalysis(draws, rng)
		},
		MethodPatterns: func(draws []database.Draw, _ *Stats, rng RandomSource) database.Prediction {
			return PredictPairsAnalysis(draws, rng)
		},
		MethodSequence: func(draws []database.Draw, _ *Stats, rng RandomSource) database.Prediction {
			return PredictSequenceAnalysis(draws, rng)
		},
		MethodMachineLearning: func(draws []database.Draw, _ *Stats, rng RandomSource) database.Prediction {
			return PredictMachineLearning(draws, rng)
		},
		MethodAI: func(draws []database.Draw, _ *Stats, rng RandomSource) database.Prediction {
			return PredictAI(draws, rng)
		},
		MethodTrend: func(draws []database.Draw, _ *Stats, rng RandomSource) database.Prediction {
			return PredictTrendAnalysis(draws, rng)
		},
	}

	for _, info := range methodRegistry {
		manager.RegisterPredictor(&methodPredictor{info: info, rng: rng, predict: builtins[info.ID]})
	}

	return manager
}

// RegisterPredictor 注册预测器，同标识覆盖
func (pm *PredictorManager) RegisterPredictor(predictor Predictor) {
	pm.predictors[predictor.GetID()] = predictor
}

// GetPredictor 按标识或别名获取预测器
func (pm *PredictorManager) GetPredictor(key string) (Predictor, error) {
	id, ok := ResolveMethod(key)
	if !ok {
		return nil, fmt.Errorf("predictor not found: %s", key)
	}
	predictor, exists := pm.predictors[id]
	if !exists {
		return nil, fmt.Errorf("predictor not found: %s", key)
	}
	return predictor, nil
}

// GetAvailablePredictors 按注册表顺序返回可用的预测方法
func (pm *PredictorManager) GetAvailablePredictors() []MethodInfo {
	var methods []MethodInfo
	for _, m := range methodRegistry {
		if _, ok := pm.predictors[m.ID]; ok {
			methods = append(methods, m)
		}
	}
	return methods
}

// GenerateOptimalNumbers 使用指定方法生成一组号码
// "advanced" 在 ai 与 trend 之间随机选择，未知方法按频率分析处理
func (pm *PredictorManager) GenerateOptimalNumbers(draws []database.Draw, stats *Stats, method string) database.Prediction {
	id, ok := ResolveMethod(method)
	if !ok {
		id = MethodFrequency
	}

	if id == MethodAdvanced {
		if pm.rng.Float64() > 0.5 {
			id = MethodAI
		} else {
			id = MethodTrend
		}
	}

	predictor, exists := pm.predictors[id]
	if !exists {
		predictor = pm.predictors[MethodFrequency]
	}
	return predictor.Predict(draws, stats)
}
