package telegram

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"loto-bot/internal/config"
	"loto-bot/internal/database"
	"loto-bot/internal/predictor"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeAPI struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, sentMessage{chatID: msg.ChatID, text: msg.Text})
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) last(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type fakeData struct {
	draws       []database.Draw
	predictions []database.Prediction
	report      []predictor.MethodPerformance
	err         error
	imported    int
}

func (f *fakeData) OnDrawsImported(count int) {
	f.imported += count
}

func (f *fakeData) GetDraws(ctx context.Context) ([]database.Draw, error) {
	return f.draws, f.err
}

func (f *fakeData) GetLatestDraws(ctx context.Context, limit int) ([]database.Draw, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.draws) {
		return f.draws[:limit], nil
	}
	return f.draws, nil
}

func (f *fakeData) GetPredictions(ctx context.Context) ([]database.Prediction, error) {
	return f.predictions, f.err
}

func (f *fakeData) GetStats(ctx context.Context) (*predictor.Stats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return predictor.CalculateStats(f.draws), nil
}

func (f *fakeData) GetPerformance(ctx context.Context) ([]predictor.MethodPerformance, error) {
	return f.report, f.err
}

type fakeSubscribers struct {
	ids []int64
	err error
}

func (f *fakeSubscribers) AddSubscriber(ctx context.Context, chatID int64) error {
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, chatID)
	return nil
}

func (f *fakeSubscribers) RemoveSubscriber(ctx context.Context, chatID int64) error {
	if f.err != nil {
		return f.err
	}
	for i, id := range f.ids {
		if id == chatID {
			f.ids = append(f.ids[:i], f.ids[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeSubscribers) GetSubscribers(ctx context.Context) ([]database.Subscriber, error) {
	if f.err != nil {
		return nil, f.err
	}
	subs := make([]database.Subscriber, 0, len(f.ids))
	for _, id := range f.ids {
		subs = append(subs, database.Subscriber{ChatID: id})
	}
	return subs, nil
}

type fakeDraws struct {
	byID   map[string]database.Draw
	addErr error
}

func newFakeDraws(draws ...database.Draw) *fakeDraws {
	f := &fakeDraws{byID: make(map[string]database.Draw)}
	for _, d := range draws {
		f.byID[d.ID] = d
	}
	return f
}

func (f *fakeDraws) AddDraw(ctx context.Context, draw *database.Draw) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.byID[draw.ID] = *draw
	return nil
}

func (f *fakeDraws) UpdateDraw(ctx context.Context, draw *database.Draw) error {
	if _, ok := f.byID[draw.ID]; !ok {
		return database.ErrDrawNotFound
	}
	f.byID[draw.ID] = *draw
	return nil
}

func (f *fakeDraws) DeleteDraw(ctx context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return database.ErrDrawNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeDraws) GetDrawByID(ctx context.Context, id string) (*database.Draw, error) {
	d, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrDrawNotFound, id)
	}
	return &d, nil
}

const adminID = 99

func testDraws(n int) []database.Draw {
	r := rand.New(rand.NewSource(int64(n)))
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	draws := make([]database.Draw, 0, n)
	for i := 0; i < n; i++ {
		nums := r.Perm(database.MaxNumber)[:database.NumbersPerDraw]
		for j := range nums {
			nums[j]++
		}
		draws = append(draws, database.Draw{
			ID:            fmt.Sprintf("d%d", i),
			Date:          base.AddDate(0, 0, -i).Format("2006-01-02"),
			Numbers:       nums,
			SpecialNumber: r.Intn(database.MaxSpecialNumber) + 1,
			Day:           "samedi",
		})
	}
	return draws
}

func newTestBot(data DataSource, subs SubscriberStore) (*Bot, *fakeAPI) {
	return newTestBotWithDraws(data, subs, newFakeDraws())
}

func newTestBotWithDraws(data DataSource, subs SubscriberStore, draws DrawStore) (*Bot, *fakeAPI) {
	api := &fakeAPI{}
	cfg := &config.Telegram{Timeout: time.Second, BroadcastRate: 1000, AdminIDs: []int64{adminID}}
	manager := predictor.NewPredictorManager(rand.New(rand.NewSource(1)))
	return newBot(api, cfg, data, subs, draws, manager, 4), api
}

func TestStartAndHelp(t *testing.T) {
	b, api := newTestBot(&fakeData{}, &fakeSubscribers{})

	b.handleCommand(1, "start", "")
	assert.Equal(t, welcomeText, api.last(t).text)

	b.handleCommand(1, "help", "")
	assert.Contains(t, api.last(t).text, "/performance")

	b.handleCommand(1, "bogus", "")
	assert.Contains(t, api.last(t).text, "Unknown command")
}

func TestHistoryCommand(t *testing.T) {
	data := &fakeData{draws: testDraws(15)}
	b, api := newTestBot(data, &fakeSubscribers{})

	b.handleCommand(7, "history", "")
	msg := api.last(t)
	assert.Equal(t, int64(7), msg.chatID)
	assert.Contains(t, msg.text, "Recent 10 Draws")
	assert.Contains(t, msg.text, "2024-06-01")
	assert.NotContains(t, msg.text, "2024-05-20")
}

func TestHistoryCommandError(t *testing.T) {
	b, api := newTestBot(&fakeData{err: errors.New("db down")}, &fakeSubscribers{})

	b.handleCommand(7, "history", "")
	assert.Contains(t, api.last(t).text, "Failed to get history")
}

func TestStatsCommand(t *testing.T) {
	b, api := newTestBot(&fakeData{draws: testDraws(20)}, &fakeSubscribers{})

	b.handleCommand(1, "stats", "")
	text := api.last(t).text
	assert.Contains(t, text, "Draws analysed: `20`")
	assert.Contains(t, text, "samedi: 20")
}

func TestPredictCommand(t *testing.T) {
	b, api := newTestBot(&fakeData{draws: testDraws(40)}, &fakeSubscribers{})

	b.handleCommand(1, "predict", "ml")
	assert.Contains(t, api.last(t).text, "Machine Learning Prédictif")

	b.handleCommand(1, "predict", "")
	assert.Contains(t, api.last(t).text, "Analyse statistique de fréquence")

	b.handleCommand(1, "predict", "astrology")
	assert.Contains(t, api.last(t).text, "Unknown method")
}

func TestPredictCommandInsufficientData(t *testing.T) {
	b, api := newTestBot(&fakeData{draws: testDraws(9)}, &fakeSubscribers{})

	b.handleCommand(1, "predict", "ai")
	assert.Contains(t, api.last(t).text, "At least 10 draws")
}

func TestGenerateCommand(t *testing.T) {
	b, api := newTestBot(&fakeData{draws: testDraws(40)}, &fakeSubscribers{})

	b.handleCommand(1, "generate", "3")
	assert.Equal(t, 3, strings.Count(api.last(t).text, "🔮"))

	b.handleCommand(1, "generate", "")
	assert.Equal(t, 4, strings.Count(api.last(t).text, "🔮"))

	b.handleCommand(1, "generate", "50")
	assert.Equal(t, maxGenerate, strings.Count(api.last(t).text, "🔮"))

	b.handleCommand(1, "generate", "zero")
	assert.Contains(t, api.last(t).text, "Usage")
}

func TestPerformanceCommand(t *testing.T) {
	draws := testDraws(3)
	predictions := []database.Prediction{
		{Numbers: draws[0].Numbers, SpecialNumber: draws[0].SpecialNumber, Method: predictor.MethodName(predictor.MethodFrequency)},
	}
	data := &fakeData{draws: draws, report: predictor.AnalyzePerformance(draws, predictions)}
	b, api := newTestBot(data, &fakeSubscribers{})

	b.handleCommand(1, "performance", "")
	assert.Contains(t, api.last(t).text, "*1.* Analyse statistique de fréquence")

	b.handleCommand(1, "performance", "frequency")
	assert.Contains(t, api.last(t).text, "Numbers found")

	b.handleCommand(1, "performance", "trend")
	assert.Contains(t, api.last(t).text, "No predictions recorded")
}

func TestPerformanceCommandAdvancedKey(t *testing.T) {
	draws := testDraws(3)
	predictions := []database.Prediction{
		{Numbers: draws[0].Numbers, SpecialNumber: draws[0].SpecialNumber, Method: "advanced"},
	}
	data := &fakeData{draws: draws, report: predictor.AnalyzePerformance(draws, predictions)}
	b, api := newTestBot(data, &fakeSubscribers{})

	// advanced 没有对应的方法名称，按原样匹配
	b.handleCommand(1, "performance", "advanced")
	assert.Contains(t, api.last(t).text, "Numbers found")
}

func TestLatestCommandShowsNewestBatch(t *testing.T) {
	predictions := make([]database.Prediction, 0, 7)
	for i := 0; i < 7; i++ {
		predictions = append(predictions, database.Prediction{Numbers: []int{1, 2, 3, 4, 5}, SpecialNumber: 1, Confidence: 0.65, Method: fmt.Sprintf("m%d", i)})
	}
	b, api := newTestBot(&fakeData{predictions: predictions}, &fakeSubscribers{})

	b.handleCommand(1, "latest", "")
	text := api.last(t).text
	assert.Equal(t, 4, strings.Count(text, "🔮"))
	assert.Contains(t, text, "m3")
	assert.NotContains(t, text, "m4")
}

func TestAddDrawCommand(t *testing.T) {
	data := &fakeData{}
	store := newFakeDraws()
	b, api := newTestBotWithDraws(data, &fakeSubscribers{}, store)

	b.handleCommand(adminID, "add", "15/03/2024 7 12 23 34 45 3")
	text := api.last(t).text
	assert.Contains(t, text, "Draw added")
	assert.Contains(t, text, "`07 12 23 34 45` + `3`")
	assert.Contains(t, text, "vendredi")
	require.Len(t, store.byID, 1)
	assert.Equal(t, 1, data.imported)

	for _, d := range store.byID {
		assert.Equal(t, "2024-03-15", d.Date)
		assert.Equal(t, []int{7, 12, 23, 34, 45}, d.Numbers)
	}
}

func TestAddDrawCommandRejectsInvalidInput(t *testing.T) {
	data := &fakeData{}
	store := newFakeDraws()
	b, api := newTestBotWithDraws(data, &fakeSubscribers{}, store)

	tests := map[string]string{
		"15/03/2024 7 12 23 34":       "Usage",
		"15/03/2024 7 7 23 34 45 3":   "Invalid draw",
		"15/03/2024 7 12 23 34 50 3":  "Invalid draw",
		"15/03/2024 7 12 23 34 45 11": "Invalid draw",
		"31/02/2024 7 12 23 34 45 3":  "Invalid draw",
	}
	for args, want := range tests {
		b.handleCommand(adminID, "add", args)
		assert.Contains(t, api.last(t).text, want, args)
	}
	assert.Empty(t, store.byID)
	assert.Equal(t, 0, data.imported)
}

func TestAddDrawCommandDuplicateDate(t *testing.T) {
	data := &fakeData{}
	store := newFakeDraws()
	store.addErr = fmt.Errorf("%w: 2024-03-15", database.ErrDuplicateDraw)
	b, api := newTestBotWithDraws(data, &fakeSubscribers{}, store)

	b.handleCommand(adminID, "add", "15/03/2024,7,12,23,34,45,3")
	assert.Contains(t, api.last(t).text, "already exists")
	assert.Equal(t, 0, data.imported)
}

func TestDrawCommandsRequireAdmin(t *testing.T) {
	existing := testDraws(1)[0]
	store := newFakeDraws(existing)
	b, api := newTestBotWithDraws(&fakeData{}, &fakeSubscribers{}, store)

	for _, cmd := range []string{"add", "update", "delete"} {
		b.handleCommand(1, cmd, existing.ID)
		assert.Contains(t, api.last(t).text, "reserved for administrators")
	}
	assert.Len(t, store.byID, 1)
}

func TestUpdateDrawCommand(t *testing.T) {
	existing := testDraws(1)[0]
	data := &fakeData{}
	store := newFakeDraws(existing)
	b, api := newTestBotWithDraws(data, &fakeSubscribers{}, store)

	b.handleCommand(adminID, "update", existing.ID+" 02/01/2024 3 14 25 38 47 7")
	assert.Contains(t, api.last(t).text, "Draw updated")
	updated := store.byID[existing.ID]
	assert.Equal(t, "2024-01-02", updated.Date)
	assert.Equal(t, []int{3, 14, 25, 38, 47}, updated.Numbers)
	assert.Equal(t, 1, data.imported)

	b.handleCommand(adminID, "update", "missing 02/01/2024 3 14 25 38 47 7")
	assert.Contains(t, api.last(t).text, "No draw with id")
	assert.Equal(t, 1, data.imported)
}

func TestDeleteDrawCommand(t *testing.T) {
	existing := testDraws(1)[0]
	data := &fakeData{}
	store := newFakeDraws(existing)
	b, api := newTestBotWithDraws(data, &fakeSubscribers{}, store)

	b.handleCommand(adminID, "delete", existing.ID)
	assert.Contains(t, api.last(t).text, "Draw deleted")
	assert.Empty(t, store.byID)
	assert.Equal(t, 1, data.imported)

	b.handleCommand(adminID, "delete", existing.ID)
	assert.Contains(t, api.last(t).text, "No draw with id")

	b.handleCommand(adminID, "delete", "")
	assert.Contains(t, api.last(t).text, "Usage")
}

func TestHistoryShowsIDsToAdmins(t *testing.T) {
	data := &fakeData{draws: testDraws(3)}
	b, api := newTestBot(data, &fakeSubscribers{})

	b.handleCommand(adminID, "history", "")
	assert.Contains(t, api.last(t).text, "🆔 `d0`")

	b.handleCommand(1, "history", "")
	assert.NotContains(t, api.last(t).text, "🆔")
}

func TestSubscribeCommands(t *testing.T) {
	subs := &fakeSubscribers{}
	b, api := newTestBot(&fakeData{}, subs)

	b.handleCommand(5, "subscribe", "")
	assert.Equal(t, []int64{5}, subs.ids)
	assert.Contains(t, api.last(t).text, "Subscribed")

	b.handleCommand(5, "unsubscribe", "")
	assert.Empty(t, subs.ids)
	assert.Contains(t, api.last(t).text, "Unsubscribed")
}

func TestSendMessageSkipsGroups(t *testing.T) {
	b, api := newTestBot(&fakeData{}, &fakeSubscribers{})

	assert.False(t, b.sendMessage(-100, "hello"))
	assert.Empty(t, api.sent)
	assert.True(t, b.sendMessage(100, "hello"))
}

func TestBroadcastPredictions(t *testing.T) {
	subs := &fakeSubscribers{ids: []int64{1, 2, -3}}
	b, api := newTestBot(&fakeData{}, subs)

	draw := testDraws(1)[0]
	predictions := []database.Prediction{{Numbers: []int{1, 2, 3, 4, 5}, SpecialNumber: 2, Confidence: 0.65, Method: "Analyse statistique de fréquence"}}

	require.NoError(t, b.BroadcastPredictions(context.Background(), &draw, predictions))
	require.Len(t, api.sent, 2)
	assert.Contains(t, api.sent[0].text, "New Draw")
	assert.Contains(t, api.sent[0].text, "`01 02 03 04 05`")

	assert.NoError(t, b.BroadcastPredictions(context.Background(), &draw, nil))
	assert.Len(t, api.sent, 2)
}

func TestBroadcastPredictionsErrors(t *testing.T) {
	b, _ := newTestBot(&fakeData{}, &fakeSubscribers{err: errors.New("db down")})
	predictions := []database.Prediction{{Numbers: []int{1, 2, 3, 4, 5}, SpecialNumber: 2}}
	assert.Error(t, b.BroadcastPredictions(context.Background(), nil, predictions))

	b, _ = newTestBot(&fakeData{}, &fakeSubscribers{ids: []int64{1}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, b.BroadcastPredictions(ctx, nil, predictions))
}

func TestStop(t *testing.T) {
	b, _ := newTestBot(&fakeData{}, &fakeSubscribers{})
	b.Start()
	b.Stop()
	b.Stop()
}
