package telegram

import (
	"fmt"
	"strings"

	"loto-bot/internal/database"
	"loto-bot/internal/predictor"
)

const disclaimer = "\n💡 *Tips*: Predictions are heuristic and for entertainment only, please play responsibly"

// formatNumbers 格式化号码，如 `03 14 25 38 47`
func formatNumbers(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("%02d", n)
	}
	return strings.Join(parts, " ")
}

// formatPrediction 格式化单个预测
func (b *Bot) formatPrediction(builder *strings.Builder, p database.Prediction) {
	builder.WriteString(fmt.Sprintf("🔮 *%s*\n", p.Method))
	builder.WriteString(fmt.Sprintf("Numbers: `%s`  Chance: `%d`\n", formatNumbers(p.Numbers), p.SpecialNumber))
	builder.WriteString(fmt.Sprintf("Confidence: `%.0f%%`\n", p.Confidence*100))
}

// formatPredictionsMessage 格式化预测列表消息
func (b *Bot) formatPredictionsMessage(title string, predictions []database.Prediction) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("📊 *%s*\n\n", title))

	if len(predictions) == 0 {
		builder.WriteString("No prediction records")
		return builder.String()
	}

	for _, p := range predictions {
		b.formatPrediction(&builder, p)
		builder.WriteString("\n")
	}

	builder.WriteString(disclaimer)
	return builder.String()
}

// formatDrawHistoryMessage 格式化开奖历史消息
// showIDs 为true时附带开奖ID，供管理员修改或删除
func (b *Bot) formatDrawHistoryMessage(draws []database.Draw, showIDs bool) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("📈 *Recent %d Draws*\n\n", len(draws)))

	if len(draws) == 0 {
		builder.WriteString("No draw records")
		return builder.String()
	}

	for _, d := range draws {
		day := ""
		if d.Day != "" {
			day = " (" + d.Day + ")"
		}
		builder.WriteString(fmt.Sprintf("`%s`%s  `%s` + `%d`\n", d.Date, day, formatNumbers(d.Numbers), d.SpecialNumber))
		if showIDs && d.ID != "" {
			builder.WriteString(fmt.Sprintf("    🆔 `%s`\n", d.ID))
		}
	}

	return builder.String()
}

// formatDrawSavedMessage 格式化开奖录入结果
func (b *Bot) formatDrawSavedMessage(title string, d *database.Draw) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("✅ *%s*\n\n", title))
	builder.WriteString(fmt.Sprintf("📅 Date: `%s`", d.Date))
	if d.Day != "" {
		builder.WriteString(fmt.Sprintf(" (%s)", d.Day))
	}
	builder.WriteString("\n")
	builder.WriteString(fmt.Sprintf("🎱 Numbers: `%s` + `%d`\n", formatNumbers(d.Numbers), d.SpecialNumber))
	builder.WriteString(fmt.Sprintf("🆔 `%s`", d.ID))
	return builder.String()
}

// formatStatsMessage 格式化频率统计消息
func (b *Bot) formatStatsMessage(stats *predictor.Stats, totalDraws int) string {
	var builder strings.Builder

	builder.WriteString("📊 *Draw Statistics*\n\n")
	builder.WriteString(fmt.Sprintf("Draws analysed: `%d`\n\n", totalDraws))

	builder.WriteString("🔥 *Most frequent numbers*\n")
	for _, nc := range stats.TopNumbers(10) {
		builder.WriteString(fmt.Sprintf("`%02d` × %d\n", nc.Number, nc.Count))
	}

	builder.WriteString("\n🍀 *Most frequent chance numbers*\n")
	for _, nc := range stats.TopSpecialNumbers(3) {
		builder.WriteString(fmt.Sprintf("`%d` × %d\n", nc.Number, nc.Count))
	}

	if pairs := stats.TopPairs(5); len(pairs) > 0 {
		builder.WriteString("\n🔗 *Most frequent pairs*\n")
		for _, p := range pairs {
			builder.WriteString(fmt.Sprintf("`%02d-%02d` × %d\n", p.A, p.B, p.Count))
		}
	}

	if len(stats.DayFrequency) > 0 {
		builder.WriteString("\n📅 *Draws by day*\n")
		for _, day := range []string{"lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi", "dimanche"} {
			if count, ok := stats.DayFrequency[day]; ok {
				builder.WriteString(fmt.Sprintf("%s: %d\n", day, count))
			}
		}
	}

	return builder.String()
}

// formatMethodsMessage 格式化预测方法列表
func (b *Bot) formatMethodsMessage(methods []predictor.MethodInfo) string {
	var builder strings.Builder

	builder.WriteString("🧠 *Prediction Methods*\n\n")
	for _, m := range methods {
		builder.WriteString(fmt.Sprintf("`%s` %s (%.0f%%)\n", m.ID, m.Name, m.Confidence*100))
	}
	builder.WriteString("\nUsage: /predict <method>")

	return builder.String()
}

// formatPerformanceMessage 格式化各方法回测排名
func (b *Bot) formatPerformanceMessage(report []predictor.MethodPerformance) string {
	var builder strings.Builder

	builder.WriteString("🏆 *Method Performance*\n\n")

	if len(report) == 0 {
		builder.WriteString("Not enough draws or predictions to analyse yet")
		return builder.String()
	}

	for i, perf := range report {
		builder.WriteString(fmt.Sprintf("*%d.* %s\n", i+1, perf.Method))
		builder.WriteString(fmt.Sprintf("   Predictions: `%d`  Avg numbers: `%.2f`  Avg chance: `%.2f`\n",
			perf.TotalPredictions, perf.AverageNumbers, perf.AverageSpecialNumbers))
	}

	return builder.String()
}

// formatMethodDetailMessage 格式化单个方法的比对明细，仅显示最近 limit 条
func (b *Bot) formatMethodDetailMessage(perf predictor.MethodPerformance, limit int) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("🔍 *%s*\n", perf.Method))
	builder.WriteString(fmt.Sprintf("Numbers found: `%d`  Chance found: `%d`\n\n", perf.NumbersFound, perf.SpecialNumbersFound))

	matches := perf.Predictions
	if len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}

	for _, m := range matches {
		builder.WriteString(fmt.Sprintf("`%s` vs `%s` (%s)\n",
			formatNumbers(m.Prediction.Numbers), formatNumbers(m.MatchingDraw.Numbers), m.MatchingDraw.Date))

		special := "❌"
		if m.MatchedSpecialNumber {
			special = "✅"
		}
		builder.WriteString(fmt.Sprintf("   Matched: %d  Chance: %s  %s\n", len(m.MatchedNumbers), special, m.WinCategory()))
	}

	return builder.String()
}

// formatBroadcastMessage 格式化新开奖推送
func (b *Bot) formatBroadcastMessage(latest *database.Draw, predictions []database.Prediction) string {
	var builder strings.Builder

	builder.WriteString("🎯 *New Draw*\n")
	if latest != nil {
		builder.WriteString(fmt.Sprintf("`%s`  `%s` + `%d`\n\n", latest.Date, formatNumbers(latest.Numbers), latest.SpecialNumber))
	}

	builder.WriteString("🔮 *Next Predictions*\n\n")
	for _, p := range predictions {
		b.formatPrediction(&builder, p)
		builder.WriteString("\n")
	}

	builder.WriteString(disclaimer)
	return builder.String()
}

const welcomeText = `🎰 Welcome to the Loto Prediction Bot!

🤖 I track French Loto draws and generate heuristic predictions:
• 📈 Latest draw results
• 📊 Frequency statistics
• 🔮 Predictions from seven methods
• 🏆 Backtested method performance

Type /help to see all commands.
🔔 Use /subscribe to receive new predictions after each draw!`

const helpText = `📖 Command Help:

/start - Start using the bot
/latest - Latest stored predictions
/history - Recent 10 draws
/stats - Number frequency statistics
/methods - Available prediction methods
/predict [method] - Generate one prediction
/generate [n] - Generate n predictions
/performance [method] - Backtest methods
/subscribe - Receive new predictions
/unsubscribe - Stop receiving predictions
/help - Show this help information

Administrators:
/add dd/mm/yyyy n1 n2 n3 n4 n5 chance - Enter a draw
/update <id> dd/mm/yyyy n1 n2 n3 n4 n5 chance - Correct a draw
/delete <id> - Remove a draw`
