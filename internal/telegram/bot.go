package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"loto-bot/internal/config"
	"loto-bot/internal/database"
	"loto-bot/internal/importer"
	"loto-bot/internal/logger"
	"loto-bot/internal/metrics"
	"loto-bot/internal/predictor"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

const (
	historyLimit   = 10
	detailLimit    = 5
	maxGenerate    = 10
	commandTimeout = 30 * time.Second
)

// DataSource 机器人读取的开奖、统计与回测数据
type DataSource interface {
	GetDraws(ctx context.Context) ([]database.Draw, error)
	GetLatestDraws(ctx context.Context, limit int) ([]database.Draw, error)
	GetPredictions(ctx context.Context) ([]database.Prediction, error)
	GetStats(ctx context.Context) (*predictor.Stats, error)
	GetPerformance(ctx context.Context) ([]predictor.MethodPerformance, error)
	OnDrawsImported(count int)
}

// DrawStore 开奖数据的手动录入、修改与删除
type DrawStore interface {
	AddDraw(ctx context.Context, draw *database.Draw) error
	UpdateDraw(ctx context.Context, draw *database.Draw) error
	DeleteDraw(ctx context.Context, id string) error
	GetDrawByID(ctx context.Context, id string) (*database.Draw, error)
}

// SubscriberStore 推送订阅存储
type SubscriberStore interface {
	AddSubscriber(ctx context.Context, chatID int64) error
	RemoveSubscriber(ctx context.Context, chatID int64) error
	GetSubscribers(ctx context.Context) ([]database.Subscriber, error)
}

// botAPI Telegram接口中用到的部分
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot Telegram机器人
type Bot struct {
	api             botAPI
	data            DataSource
	subscribers     SubscriberStore
	draws           DrawStore
	config          *config.Telegram
	manager         *predictor.PredictorManager
	limiter         *rate.Limiter
	updateTimeout   int
	predictionCount int
	username        string

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewBot 创建新的Telegram机器人
func NewBot(cfg *config.Telegram, data DataSource, subscribers SubscriberStore, draws DrawStore, manager *predictor.PredictorManager, predictionCount int) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	api.Debug = false
	logger.Infof("Telegram bot authorized on account: %s", api.Self.UserName)

	b := newBot(api, cfg, data, subscribers, draws, manager, predictionCount)
	b.username = api.Self.UserName
	return b, nil
}

func newBot(api botAPI, cfg *config.Telegram, data DataSource, subscribers SubscriberStore, draws DrawStore, manager *predictor.PredictorManager, predictionCount int) *Bot {
	ctx, cancel := context.WithCancel(context.Background())

	perSecond := cfg.BroadcastRate
	if perSecond <= 0 {
		perSecond = 20
	}

	return &Bot{
		api:             api,
		data:            data,
		subscribers:     subscribers,
		draws:           draws,
		config:          cfg,
		manager:         manager,
		limiter:         rate.NewLimiter(rate.Limit(perSecond), perSecond),
		updateTimeout:   int(cfg.Timeout.Seconds()),
		predictionCount: predictionCount,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Start 启动机器人
func (b *Bot) Start() {
	logger.Info("Starting Telegram bot...")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.updateTimeout
	updates := b.api.GetUpdatesChan(u)

	go b.handleUpdates(updates)
	logger.Info("Telegram bot started successfully")
}

// Stop 停止机器人
func (b *Bot) Stop() {
	b.stopOnce.Do(func() {
		logger.Info("Stopping Telegram bot...")
		b.cancel()
		b.api.StopReceivingUpdates()
		logger.Info("Telegram bot stopped")
	})
}

// handleUpdates 处理更新
func (b *Bot) handleUpdates(updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil && update.Message.Chat.IsPrivate() {
				go b.handleMessage(update.Message)
			} else if update.CallbackQuery != nil && update.CallbackQuery.Message != nil &&
				update.CallbackQuery.Message.Chat.IsPrivate() {
				go b.handleCallbackQuery(update.CallbackQuery)
			}
		case <-b.ctx.Done():
			return
		}
	}
}

// handleMessage 处理消息
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	chatID := message.Chat.ID

	if message.IsCommand() {
		b.handleCommand(chatID, message.Command(), message.CommandArguments())
		return
	}

	b.handleTextMessage(chatID, message.Text)
}

// handleCommand 处理命令
func (b *Bot) handleCommand(chatID int64, command, args string) {
	logger.WithField("chat_id", chatID).Debugf("Received private command: %s %q", command, args)
	metrics.RecordCommand(command)

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	args = strings.TrimSpace(args)

	switch command {
	case "start":
		b.sendMessage(chatID, welcomeText)
	case "help":
		b.sendMessage(chatID, helpText)
	case "latest":
		b.handleLatestCommand(ctx, chatID)
	case "history":
		b.handleHistoryCommand(ctx, chatID)
	case "stats":
		b.handleStatsCommand(ctx, chatID)
	case "methods":
		b.sendMessage(chatID, b.formatMethodsMessage(b.manager.GetAvailablePredictors()))
	case "predict":
		b.handlePredictCommand(ctx, chatID, args)
	case "generate":
		b.handleGenerateCommand(ctx, chatID, args)
	case "performance":
		b.handlePerformanceCommand(ctx, chatID, args)
	case "subscribe":
		b.handleSubscribeCommand(ctx, chatID)
	case "unsubscribe":
		b.handleUnsubscribeCommand(ctx, chatID)
	case "add", "update", "delete":
		if !b.config.IsAdmin(chatID) {
			b.sendMessage(chatID, "⛔ This command is reserved for administrators.")
			return
		}
		switch command {
		case "add":
			b.handleAddCommand(ctx, chatID, args)
		case "update":
			b.handleUpdateCommand(ctx, chatID, args)
		case "delete":
			b.handleDeleteCommand(ctx, chatID, args)
		}
	default:
		b.sendMessage(chatID, "Unknown command. Type /help to view available commands.")
	}
}

// handleLatestCommand 最近一轮生成的预测
func (b *Bot) handleLatestCommand(ctx context.Context, chatID int64) {
	predictions, err := b.data.GetPredictions(ctx)
	if err != nil {
		b.sendMessage(chatID, "❌ Failed to get prediction records, please try again later.")
		logger.Errorf("Failed to get predictions: %v", err)
		return
	}

	if len(predictions) > b.predictionCount {
		predictions = predictions[:b.predictionCount]
	}
	b.sendMessage(chatID, b.formatPredictionsMessage("Latest Predictions", predictions))
}

// handleHistoryCommand 处理历史命令
func (b *Bot) handleHistoryCommand(ctx context.Context, chatID int64) {
	draws, err := b.data.GetLatestDraws(ctx, historyLimit)
	if err != nil {
		b.sendMessage(chatID, "❌ Failed to get history records, please try again later.")
		logger.Errorf("Failed to get draw history: %v", err)
		return
	}

	b.sendMessage(chatID, b.formatDrawHistoryMessage(draws, b.config.IsAdmin(chatID)))
}

// handleStatsCommand 处理统计命令
func (b *Bot) handleStatsCommand(ctx context.Context, chatID int64) {
	draws, err := b.data.GetDraws(ctx)
	if err != nil {
		b.sendMessage(chatID, "❌ Failed to get statistics, please try again later.")
		logger.Errorf("Failed to get draws: %v", err)
		return
	}

	stats, err := b.data.GetStats(ctx)
	if err != nil {
		b.sendMessage(chatID, "❌ Failed to get statistics, please try again later.")
		logger.Errorf("Failed to get stats: %v", err)
		return
	}

	b.sendMessage(chatID, b.formatStatsMessage(stats, len(draws)))
}

// handlePredictCommand 使用指定方法生成一组预测，不入库
func (b *Bot) handlePredictCommand(ctx context.Context, chatID int64, args string) {
	method := predictor.MethodFrequency
	if args != "" {
		id, ok := predictor.ResolveMethod(args)
		if !ok {
			b.sendMessage(chatID, fmt.Sprintf("❌ Unknown method `%s`.\n\n%s", args, b.formatMethodsMessage(b.manager.GetAvailablePredictors())))
			return
		}
		method = id
	}

	b.generateAndReply(ctx, chatID, 1, []string{method})
}

// handleGenerateCommand 按注册顺序生成n组预测，不入库
func (b *Bot) handleGenerateCommand(ctx context.Context, chatID int64, args string) {
	count := b.predictionCount
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 {
			b.sendMessage(chatID, "❌ Usage: /generate [n], n between 1 and 10")
			return
		}
		count = n
	}
	if count > maxGenerate {
		count = maxGenerate
	}

	b.generateAndReply(ctx, chatID, count, nil)
}

func (b *Bot) generateAndReply(ctx context.Context, chatID int64, count int, methods []string) {
	draws, err := b.data.GetDraws(ctx)
	if err != nil {
		b.sendMessage(chatID, "❌ Failed to load draws, please try again later.")
		logger.Errorf("Failed to get draws: %v", err)
		return
	}

	stats, err := b.data.GetStats(ctx)
	if err != nil {
		b.sendMessage(chatID, "❌ Failed to load statistics, please try again later.")
		logger.Errorf("Failed to get stats: %v", err)
		return
	}

	start := time.Now()
	predictions, err := b.manager.GeneratePredictionData(draws, stats, count, methods)
	metrics.ObserveAnalysis("generate", time.Since(start))
	if errors.Is(err, predictor.ErrInsufficientData) {
		b.sendMessage(chatID, fmt.Sprintf("⚠️ At least %d draws are required, only %d available.", predictor.MinTrainingDraws, len(draws)))
		return
	}
	if err != nil {
		b.sendMessage(chatID, "❌ Failed to generate predictions, please try again later.")
		logger.Errorf("Failed to generate predictions: %v", err)
		return
	}

	b.sendMessage(chatID, b.formatPredictionsMessage("Fresh Predictions", predictions))
}

// handlePerformanceCommand 回测排名，带方法参数时显示明细
func (b *Bot) handlePerformanceCommand(ctx context.Context, chatID int64, args string) {
	start := time.Now()
	report, err := b.data.GetPerformance(ctx)
	metrics.ObserveAnalysis("performance", time.Since(start))
	if err != nil {
		b.sendMessage(chatID, "❌ Failed to analyse performance, please try again later.")
		logger.Errorf("Failed to get performance: %v", err)
		return
	}

	if args == "" {
		b.sendMessage(chatID, b.formatPerformanceMessage(report))
		return
	}

	name := args
	if id, ok := predictor.ResolveMethod(args); ok && id != predictor.MethodAdvanced {
		name = predictor.MethodName(id)
	}
	for _, perf := range report {
		if perf.Method == name {
			b.sendMessage(chatID, b.formatMethodDetailMessage(perf, detailLimit))
			return
		}
	}
	b.sendMessage(chatID, fmt.Sprintf("No predictions recorded for `%s` yet.", args))
}

// handleSubscribeCommand 订阅推送
func (b *Bot) handleSubscribeCommand(ctx context.Context, chatID int64) {
	if err := b.subscribers.AddSubscriber(ctx, chatID); err != nil {
		b.sendMessage(chatID, "❌ Failed to subscribe, please try again later.")
		logger.Errorf("Failed to add subscriber %d: %v", chatID, err)
		return
	}
	b.sendMessage(chatID, "🔔 Subscribed! You will receive new predictions after each draw.")
}

// handleUnsubscribeCommand 取消订阅
func (b *Bot) handleUnsubscribeCommand(ctx context.Context, chatID int64) {
	if err := b.subscribers.RemoveSubscriber(ctx, chatID); err != nil {
		b.sendMessage(chatID, "❌ Failed to unsubscribe, please try again later.")
		logger.Errorf("Failed to remove subscriber %d: %v", chatID, err)
		return
	}
	b.sendMessage(chatID, "🔕 Unsubscribed. Use /subscribe to receive predictions again.")
}

// handleAddCommand 手动录入开奖: /add dd/mm/yyyy n1 n2 n3 n4 n5 chance
func (b *Bot) handleAddCommand(ctx context.Context, chatID int64, args string) {
	fields := splitDrawArgs(args)
	if len(fields) != 7 {
		b.sendMessage(chatID, "❌ Usage: /add dd/mm/yyyy n1 n2 n3 n4 n5 chance")
		return
	}

	draw, err := importer.ParseRecord(fields)
	if err != nil {
		b.sendMessage(chatID, fmt.Sprintf("❌ Invalid draw: %v", err))
		return
	}

	if err := b.draws.AddDraw(ctx, draw); err != nil {
		if errors.Is(err, database.ErrDuplicateDraw) {
			b.sendMessage(chatID, fmt.Sprintf("⚠️ A draw already exists for `%s`.", draw.Date))
			return
		}
		b.sendMessage(chatID, "❌ Failed to save draw, please try again later.")
		logger.Errorf("Failed to add draw: %v", err)
		return
	}

	b.data.OnDrawsImported(1)
	metrics.RecordDrawsImported(1)
	logger.WithField("chat_id", chatID).Infof("Draw %s added for %s", draw.ID, draw.Date)
	b.sendMessage(chatID, b.formatDrawSavedMessage("Draw added", draw))
}

// handleUpdateCommand 修改开奖: /update <id> dd/mm/yyyy n1 n2 n3 n4 n5 chance
func (b *Bot) handleUpdateCommand(ctx context.Context, chatID int64, args string) {
	fields := splitDrawArgs(args)
	if len(fields) != 8 {
		b.sendMessage(chatID, "❌ Usage: /update <id> dd/mm/yyyy n1 n2 n3 n4 n5 chance")
		return
	}

	id := fields[0]
	if _, err := b.draws.GetDrawByID(ctx, id); err != nil {
		b.replyDrawLookupError(chatID, id, err)
		return
	}

	draw, err := importer.ParseRecord(fields[1:])
	if err != nil {
		b.sendMessage(chatID, fmt.Sprintf("❌ Invalid draw: %v", err))
		return
	}
	draw.ID = id

	if err := b.draws.UpdateDraw(ctx, draw); err != nil {
		if errors.Is(err, database.ErrDuplicateDraw) {
			b.sendMessage(chatID, fmt.Sprintf("⚠️ Another draw already exists for `%s`.", draw.Date))
			return
		}
		b.replyDrawLookupError(chatID, id, err)
		return
	}

	b.data.OnDrawsImported(1)
	logger.WithField("chat_id", chatID).Infof("Draw %s updated", id)
	b.sendMessage(chatID, b.formatDrawSavedMessage("Draw updated", draw))
}

// handleDeleteCommand 删除开奖: /delete <id>
func (b *Bot) handleDeleteCommand(ctx context.Context, chatID int64, args string) {
	fields := splitDrawArgs(args)
	if len(fields) != 1 {
		b.sendMessage(chatID, "❌ Usage: /delete <id>")
		return
	}

	id := fields[0]
	draw, err := b.draws.GetDrawByID(ctx, id)
	if err != nil {
		b.replyDrawLookupError(chatID, id, err)
		return
	}

	if err := b.draws.DeleteDraw(ctx, id); err != nil {
		b.replyDrawLookupError(chatID, id, err)
		return
	}

	b.data.OnDrawsImported(1)
	logger.WithField("chat_id", chatID).Infof("Draw %s deleted", id)
	b.sendMessage(chatID, b.formatDrawSavedMessage("Draw deleted", draw))
}

func (b *Bot) replyDrawLookupError(chatID int64, id string, err error) {
	if errors.Is(err, database.ErrDrawNotFound) {
		b.sendMessage(chatID, fmt.Sprintf("❌ No draw with id `%s`.", id))
		return
	}
	b.sendMessage(chatID, "❌ Failed to access draw, please try again later.")
	logger.Errorf("Draw %s operation failed: %v", id, err)
}

// splitDrawArgs 按空格、逗号或分号拆分参数
func splitDrawArgs(args string) []string {
	return strings.FieldsFunc(args, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';' || r == '\t'
	})
}

// handleTextMessage 处理文本消息
func (b *Bot) handleTextMessage(chatID int64, text string) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "latest", "dernier":
		b.handleCommand(chatID, "latest", "")
	case "history", "historique":
		b.handleCommand(chatID, "history", "")
	case "stats", "statistiques":
		b.handleCommand(chatID, "stats", "")
	default:
		b.sendMessage(chatID, "Please use commands or keywords, type /help for help.")
	}
}

// handleCallbackQuery 处理回调查询
func (b *Bot) handleCallbackQuery(callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID
	logger.Debugf("Received private callback: %s from user: %d", callback.Data, chatID)

	switch callback.Data {
	case "refresh_latest":
		b.handleCommand(chatID, "latest", "")
	case "view_history":
		b.handleCommand(chatID, "history", "")
	case "view_stats":
		b.handleCommand(chatID, "stats", "")
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		logger.Warnf("Failed to answer callback %s: %v", callback.ID, err)
	}
}

// sendMessage 发送消息（仅发送给私聊）
func (b *Bot) sendMessage(chatID int64, text string) bool {
	// 正数ID表示用户，负数ID表示群组
	if chatID < 0 {
		logger.Debugf("Skipping message to group chat %d", chatID)
		return false
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := b.api.Send(msg); err != nil {
		logger.Errorf("Failed to send message to user %d: %v", chatID, err)
		return false
	}
	return true
}

// BroadcastPredictions 向所有订阅用户推送新开奖与新预测，按速率限制发送
func (b *Bot) BroadcastPredictions(ctx context.Context, latest *database.Draw, predictions []database.Prediction) error {
	if len(predictions) == 0 {
		return nil
	}

	subscribers, err := b.subscribers.GetSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("failed to get subscribers: %w", err)
	}

	message := b.formatBroadcastMessage(latest, predictions)

	sent := 0
	for _, sub := range subscribers {
		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("broadcast interrupted after %d messages: %w", sent, err)
		}

		ok := b.sendMessage(sub.ChatID, message)
		metrics.RecordBroadcast(ok)
		if ok {
			sent++
		}
	}

	logger.Infof("Broadcasted %d predictions to %d/%d subscribers", len(predictions), sent, len(subscribers))
	return nil
}

// GetBotInfo 获取机器人信息
func (b *Bot) GetBotInfo() map[string]interface{} {
	return map[string]interface{}{
		"username":         b.username,
		"prediction_count": b.predictionCount,
		"broadcast_rate":   float64(b.limiter.Limit()),
	}
}
