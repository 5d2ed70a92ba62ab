package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"loto-bot/internal/api"
	"loto-bot/internal/cache"
	"loto-bot/internal/config"
	"loto-bot/internal/database"
	"loto-bot/internal/importer"
	"loto-bot/internal/logger"
	"loto-bot/internal/metrics"
	"loto-bot/internal/predictor"
	"loto-bot/internal/telegram"
)

// App 应用程序主结构
type App struct {
	config        *config.Config
	mysql         *database.MySQLDB
	cacheManager  *cache.CacheManager
	apiClient     *api.Client
	predictorMgr  *predictor.PredictorManager
	telegramBot   *telegram.Bot
	metricsServer *http.Server

	// 控制
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// 错误状态跟踪（避免重复日志）
	lastFeedError string
}

// NewApp 创建应用程序实例
func NewApp(configPath string) (*App, error) {
	// 加载配置
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 初始化日志
	logger.InitLogger(cfg.App.LogLevel)
	fmt.Println("🚀 启动Loto预测机器人...")

	for _, method := range cfg.App.Methods {
		if _, ok := predictor.ResolveMethod(method); !ok {
			logger.Warnf("Unknown prediction method in config: %s, frequency will be used", method)
		}
	}

	// 初始化数据库
	mysql, err := database.NewMySQLDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	fmt.Println("✅ 数据库连接成功")

	// 初始化缓存管理器
	cacheManager := cache.NewCacheManager(mysql, cfg.App.CacheTTL)
	fmt.Println("✅ 缓存系统初始化完成")

	// 初始化预测器管理器
	predictorMgr := predictor.NewPredictorManager(nil)

	// 初始化Telegram机器人
	telegramBot, err := telegram.NewBot(&cfg.Telegram, cacheManager, mysql, mysql, predictorMgr, cfg.App.PredictionCount)
	if err != nil {
		mysql.Close()
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	fmt.Println("✅ Telegram机器人连接成功")

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		config:       cfg,
		mysql:        mysql,
		cacheManager: cacheManager,
		predictorMgr: predictorMgr,
		telegramBot:  telegramBot,
		ctx:          ctx,
		cancel:       cancel,
	}

	// 数据源可选，未配置时仅依赖CSV导入
	if cfg.API.URL != "" {
		app.apiClient = api.NewClient(&cfg.API)
	}

	if cfg.App.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", app.handleHealth)
		app.metricsServer = &http.Server{
			Addr:              cfg.App.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	fmt.Println("🎯 应用程序初始化完成")
	return app, nil
}

// Start 启动应用程序
func (a *App) Start() error {
	fmt.Println("🔄 启动所有服务...")

	// 导入初始CSV数据
	if a.config.App.ImportPath != "" {
		if err := a.importFile(a.config.App.ImportPath); err != nil {
			logger.Warnf("Failed to import %s: %v", a.config.App.ImportPath, err)
		}
	}

	// 启动Telegram机器人
	a.telegramBot.Start()

	// 启动数据监控协程
	if a.apiClient != nil {
		a.wg.Add(1)
		go a.dataMonitorLoop()
	}

	// 启动指标服务
	if a.metricsServer != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			logger.Infof("Metrics server listening on %s", a.metricsServer.Addr)
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("Metrics server failed: %v", err)
			}
		}()
	}

	fmt.Println("✅ 所有服务启动完成")
	if a.apiClient != nil {
		fmt.Printf("⏰ 轮询间隔: %v\n", a.config.App.PollingInterval)
	}
	fmt.Println("🔔 机器人仅在私聊中提供服务")
	fmt.Println("💡 按 Ctrl+C 停止程序")
	fmt.Println("")
	return nil
}

// Stop 停止应用程序
func (a *App) Stop() error {
	fmt.Println("🛑 正在停止应用程序...")

	// 发送停止信号
	a.cancel()

	// 停止Telegram机器人
	a.telegramBot.Stop()

	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Failed to stop metrics server: %v", err)
		}
	}

	// 等待所有协程结束
	a.wg.Wait()

	// 关闭缓存管理器
	if err := a.cacheManager.Close(); err != nil {
		logger.Errorf("Failed to close cache manager: %v", err)
	}

	// 关闭数据库连接
	if err := a.mysql.Close(); err != nil {
		logger.Errorf("Failed to close database: %v", err)
	}

	fmt.Println("✅ 应用程序已安全停止")
	return nil
}

// importFile 导入CSV开奖文件
func (a *App) importFile(path string) error {
	fmt.Printf("📚 导入开奖数据: %s\n", path)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	draws, err := importer.ParseCSV(f)
	if err != nil {
		return err
	}

	inserted, err := a.mysql.SaveDraws(a.ctx, draws)
	if err != nil {
		return fmt.Errorf("failed to save imported draws: %w", err)
	}

	metrics.RecordDrawsImported(inserted)
	a.cacheManager.OnDrawsImported(inserted)
	fmt.Printf("✅ 导入了 %d 条开奖数据（文件共 %d 条）\n", inserted, len(draws))
	return nil
}

// dataMonitorLoop 数据监控循环，启动时先执行一次
func (a *App) dataMonitorLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.App.PollingInterval)
	defer ticker.Stop()

	consecutiveErrors := 0
	poll := func() {
		if err := a.processDataUpdate(a.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			consecutiveErrors++
			metrics.RecordFeedError()
			// 只在第一次错误和每10次错误时显示
			if consecutiveErrors == 1 {
				fmt.Printf("⚠️  数据获取失败: %v\n", err)
			} else if consecutiveErrors%10 == 0 {
				fmt.Printf("❌ 连续失败 %d 次，仍在重试...\n", consecutiveErrors)
			}
			return
		}
		if consecutiveErrors > 0 {
			fmt.Printf("✅ 数据连接已恢复（失败了 %d 次）\n", consecutiveErrors)
			consecutiveErrors = 0
		}
	}

	poll()
	for {
		select {
		case <-ticker.C:
			poll()
		case <-a.ctx.Done():
			return
		}
	}
}

// processDataUpdate 拉取数据源，有新开奖时生成并推送新一轮预测
func (a *App) processDataUpdate(ctx context.Context) error {
	draws, err := a.apiClient.FetchDraws(ctx)
	if err != nil {
		// 只在首次出错或错误类型变化时记录
		if a.lastFeedError != err.Error() {
			logger.Errorf("Feed fetch failed: %v", err)
			a.lastFeedError = err.Error()
		}
		return err
	}
	a.lastFeedError = ""

	inserted, err := a.mysql.SaveDraws(ctx, draws)
	if err != nil {
		return fmt.Errorf("failed to save draws: %w", err)
	}
	if inserted == 0 {
		// 没有新数据
		return nil
	}

	metrics.RecordDrawsImported(inserted)
	a.cacheManager.OnDrawsImported(inserted)
	fmt.Printf("🎯 发现 %d 期新开奖\n", inserted)

	return a.generateNewPredictions(ctx)
}

// generateNewPredictions 生成、保存并推送新一轮预测
func (a *App) generateNewPredictions(ctx context.Context) error {
	draws, err := a.cacheManager.GetDraws(ctx)
	if err != nil {
		return err
	}

	stats, err := a.cacheManager.GetStats(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	predictions, err := a.predictorMgr.GeneratePredictionData(draws, stats, a.config.App.PredictionCount, a.config.App.Methods)
	metrics.ObserveAnalysis("generate", time.Since(start))
	if errors.Is(err, predictor.ErrInsufficientData) {
		logger.Warnf("Skipping predictions: %d draws stored, %d required", len(draws), predictor.MinTrainingDraws)
		return nil
	}
	if err != nil {
		return fmt.Errorf("prediction generation failed: %w", err)
	}

	if err := a.mysql.SavePredictions(ctx, predictions); err != nil {
		return fmt.Errorf("failed to save predictions: %w", err)
	}
	a.cacheManager.OnPredictionsGenerated(len(predictions))

	for _, p := range predictions {
		metrics.RecordPrediction(p.Method)
	}

	var latest *database.Draw
	if len(draws) > 0 {
		latest = &draws[0]
	}
	if err := a.telegramBot.BroadcastPredictions(ctx, latest, predictions); err != nil {
		logger.Warnf("Failed to broadcast predictions: %v", err)
	}

	fmt.Printf("🔮 生成了 %d 组预测\n", len(predictions))
	return nil
}

// HealthCheck 健康检查
func (a *App) HealthCheck(ctx context.Context) map[string]interface{} {
	health := map[string]interface{}{
		"timestamp": time.Now(),
		"status":    "ok",
	}
	services := map[string]interface{}{}
	health["services"] = services

	if err := a.mysql.Ping(ctx); err != nil {
		services["database"] = map[string]interface{}{"status": "error", "error": err.Error()}
		health["status"] = "degraded"
	} else {
		status := map[string]interface{}{"status": "ok"}
		if count, err := a.mysql.CountDraws(ctx); err == nil {
			status["draws"] = count
		}
		services["database"] = status
	}

	if a.apiClient != nil {
		if err := a.apiClient.HealthCheck(ctx); err != nil {
			services["api"] = map[string]interface{}{"status": "error", "error": err.Error()}
			health["status"] = "degraded"
		} else {
			services["api"] = map[string]interface{}{"status": "ok", "config": a.apiClient.GetAPIStats()}
		}
	}

	services["cache"] = map[string]interface{}{
		"status": "ok",
		"stats":  a.cacheManager.GetCacheStats(),
	}

	services["telegram"] = map[string]interface{}{
		"status": "ok",
		"info":   a.telegramBot.GetBotInfo(),
	}

	return health
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	health := a.HealthCheck(ctx)
	w.Header().Set("Content-Type", "application/json")
	if health["status"] != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		logger.Warnf("Failed to write health response: %v", err)
	}
}

func main() {
	// 配置文件路径
	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	// 创建应用程序实例
	app, err := NewApp(configPath)
	if err != nil {
		fmt.Printf("❌ 应用初始化失败: %v\n", err)
		os.Exit(1)
	}

	// 启动应用程序
	if err := app.Start(); err != nil {
		fmt.Printf("❌ 应用启动失败: %v\n", err)
		os.Exit(1)
	}

	// 设置信号处理
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// 等待停止信号
	<-sigChan

	// 优雅关闭
	if err := app.Stop(); err != nil {
		fmt.Printf("❌ 关闭时出错: %v\n", err)
		os.Exit(1)
	}
}
