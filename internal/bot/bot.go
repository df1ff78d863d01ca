// Package bot routes incoming chat messages: free text becomes spend
// records, bot commands become reports and limit settings.
package bot

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendir/internal/core"
	"spendir/internal/log"
	"spendir/internal/telegram"
)

// Reply strings, kept in the language of the original bot.
const (
	replyBadFormat    = "Неправильный формат\nФормат: <сумма> (сообщение)"
	replyUpdated      = "Обновлено"
	replyDeleted      = "Запись удалена"
	replyLimitSet     = "Новый лимит установлен"
	replyLimitFailed  = "Неудалось установить лимит"
	replyLimitInvalid = "Указан неверный лимит"
	replyLimitMissing = "Нужно указать лимит"
	replyOnlySet      = "Установленны теги для лимита"
	replyOnlyCleared  = "Убраные теги для лимита"
	replyExceptSet    = "Установленны исключающие теги для лимита"
	replyExceptClear  = "Убраные исключающие теги для лимита"
	replyTagsMissing  = "Нужно указать теги"
)

// Bot wires the parser and aggregator to storage and a transport.
type Bot struct {
	storage      Storage
	transport    Transport
	publisher    Publisher
	table        *core.Table
	agg          *core.Aggregator
	username     string
	messageLimit int
	logger       *log.Logger
}

type Options struct {
	Storage      Storage
	Transport    Transport
	Publisher    Publisher
	Table        *core.Table
	Aggregator   *core.Aggregator
	Username     string
	MessageLimit int
	Logger       *log.Logger
}

func New(opts Options) *Bot {
	return &Bot{
		storage:      opts.Storage,
		transport:    opts.Transport,
		publisher:    opts.Publisher,
		table:        opts.Table,
		agg:          opts.Aggregator,
		username:     opts.Username,
		messageLimit: opts.MessageLimit,
		logger:       opts.Logger,
	}
}

func toSpans(entities []telegram.Entity) []core.Span {
	if len(entities) == 0 {
		return nil
	}
	spans := make([]core.Span, len(entities))
	for i, e := range entities {
		spans[i] = core.Span{Type: e.Type, Offset: e.Offset, Length: e.Length}
	}
	return spans
}

// HandleMessage processes one incoming message or edit.
func (b *Bot) HandleMessage(ctx context.Context, msg telegram.Message) {
	if msg.From == nil || msg.From.IsBot || msg.Text == "" {
		return
	}

	if msg.Edited {
		b.handleEdit(ctx, msg)
		return
	}

	if name, arg, ok := b.command(msg); ok {
		b.dispatch(ctx, msg, name, arg)
		return
	}

	intent, ok := core.ParseMessage(msg.Text, toSpans(msg.Entities), b.table)
	if !ok || intent.Amount.IsZero() || len(intent.Commands) > 0 {
		b.reply(ctx, msg.Chat.ID, replyBadFormat)
		return
	}

	b.addSpend(ctx, msg, intent)
}

// command recognizes a known bot command at the start of the message
// and returns its name plus the remaining argument text.
func (b *Bot) command(msg telegram.Message) (name, arg string, ok bool) {
	var span *telegram.Entity
	for i := range msg.Entities {
		if msg.Entities[i].Type == core.SpanBotCommand && msg.Entities[i].Offset == 0 {
			span = &msg.Entities[i]
			break
		}
	}
	if span == nil || !strings.HasPrefix(msg.Text, "/") {
		return "", "", false
	}

	token := msg.Text
	rest := ""
	if idx := strings.IndexAny(token, " \n"); idx >= 0 {
		rest = token[idx+1:]
		token = token[:idx]
	}

	name = strings.TrimPrefix(token, "/")
	if at := strings.Index(name, "@"); at >= 0 {
		if b.username != "" && !strings.EqualFold(name[at+1:], b.username) {
			return "", "", false
		}
		name = name[:at]
	}

	switch name {
	case "day", "week", "month", "currency", "limit", "limit_only", "limit_except":
		return name, strings.TrimSpace(rest), true
	}
	return "", "", false
}

func (b *Bot) dispatch(ctx context.Context, msg telegram.Message, name, arg string) {
	cell := msg.Chat.ID

	switch name {
	case "day":
		b.sendReport(ctx, cell, PeriodDay, time.Now(), false)
	case "week":
		b.sendReport(ctx, cell, PeriodWeek, time.Now(), false)
	case "month":
		b.sendReport(ctx, cell, PeriodMonth, time.Now(), false)
	case "currency":
		b.sendCurrencies(ctx, cell)
	case "limit":
		b.setLimit(ctx, cell, arg)
	case "limit_only":
		b.setLimitTags(ctx, msg, true)
	case "limit_except":
		b.setLimitTags(ctx, msg, false)
	}
}

func (b *Bot) handleEdit(ctx context.Context, msg telegram.Message) {
	cell := msg.Chat.ID
	intent, ok := core.ParseMessage(msg.Text, toSpans(msg.Entities), b.table)

	record, err := b.storage.FindSpendByMessageID(ctx, cell, msg.MessageID)
	if err != nil {
		b.logger.Error("find spend for edit failed", log.FieldError, err, log.FieldCell, cell)
		return
	}

	if ok && !intent.Amount.IsZero() && len(intent.Commands) == 0 {
		if record == nil {
			b.addSpend(ctx, msg, intent)
			return
		}
		b.updateSpend(ctx, record, intent)
		return
	}

	// Edited down to something that is no longer a spend.
	if record != nil {
		b.removeSpend(ctx, record)
	}
}

func (b *Bot) addSpend(ctx context.Context, msg telegram.Message, intent core.Intent) {
	cell := msg.Chat.ID
	spend := &core.Spend{
		Cell:       cell,
		MessageID:  msg.MessageID,
		Author:     msg.From.FirstName,
		Amount:     intent.Amount,
		Currency:   intent.Currency,
		AmountBase: b.table.ToBase(intent.Currency, intent.Amount),
		Note:       intent.Note,
		Tags:       intent.Tags,
	}

	if err := b.storage.InsertSpend(ctx, spend); err != nil {
		b.logger.Error("insert spend failed", log.FieldError, err, log.FieldCell, cell)
		return
	}
	b.publishRecorded(ctx, *spend)

	reply := "Принято: " + core.DisplayNumber(intent.Amount) + " " + b.table.ForDisplay(intent.Currency)
	if total := b.dayTotal(ctx, cell); total != "" {
		reply += " (" + total + ")"
	}
	b.reply(ctx, cell, reply)
}

// dayTotal returns the running total for today, "" when there is
// nothing to show.
func (b *Bot) dayTotal(ctx context.Context, cell int64) string {
	since := PeriodDay.Start(time.Now(), b.agg.Zone)
	entries, err := b.storage.FindSpends(ctx, cell, since)
	if err != nil || len(entries) == 0 {
		return ""
	}
	return b.agg.DisplayAmounts(b.agg.Aggregate(entries).Total)
}

func (b *Bot) updateSpend(ctx context.Context, record *core.Spend, intent core.Intent) {
	record.Amount = intent.Amount
	record.Currency = intent.Currency
	record.AmountBase = b.table.ToBase(intent.Currency, intent.Amount)
	record.Note = intent.Note
	record.Tags = intent.Tags

	if err := b.storage.UpdateSpend(ctx, record); err != nil {
		b.logger.Error("update spend failed", log.FieldError, err, log.FieldCell, record.Cell)
		return
	}
	b.publishRecorded(ctx, *record)
	b.reply(ctx, record.Cell, replyUpdated)
}

func (b *Bot) removeSpend(ctx context.Context, record *core.Spend) {
	if err := b.storage.DeleteSpend(ctx, record.ID); err != nil {
		b.logger.Error("delete spend failed", log.FieldError, err, log.FieldCell, record.Cell)
		return
	}
	if b.publisher != nil {
		if err := b.publisher.SpendDeleted(ctx, *record); err != nil {
			b.logger.Error("publish spend deleted failed", log.FieldError, err)
		}
	}
	b.reply(ctx, record.Cell, replyDeleted)
}

func (b *Bot) publishRecorded(ctx context.Context, spend core.Spend) {
	if b.publisher == nil {
		return
	}
	if err := b.publisher.SpendRecorded(ctx, spend); err != nil {
		b.logger.Error("publish spend recorded failed", log.FieldError, err)
	}
}

// sendReport builds and delivers the report for the period containing
// now. With skipEmpty set, an empty report is silently dropped, which
// is the behavior of the scheduled job.
func (b *Bot) sendReport(ctx context.Context, cell int64, period Period, now time.Time, skipEmpty bool) {
	entries, err := b.storage.FindSpends(ctx, cell, period.Start(now, b.agg.Zone))
	if err != nil {
		b.logger.Error("load spends failed", log.FieldError, err, log.FieldCell, cell, log.FieldPeriod, string(period))
		return
	}

	report := b.agg.Aggregate(entries)
	if report.Empty && skipEmpty {
		return
	}

	if !report.Empty {
		b.attachRemaining(ctx, cell, period, entries, now, report)
	}

	for _, part := range core.SplitMessage(b.agg.Format(report), b.messageLimit) {
		if err := b.reply(ctx, cell, part); err != nil {
			return
		}
	}
}

// attachRemaining computes the budget line. The budget always spans
// the current month, whatever period the report covers.
func (b *Bot) attachRemaining(ctx context.Context, cell int64, period Period, entries []core.Spend, now time.Time, report *core.Report) {
	limit, err := b.storage.GetLimit(ctx, cell)
	if err != nil {
		b.logger.Error("load limit failed", log.FieldError, err, log.FieldCell, cell)
		return
	}
	if !limit.Enabled() {
		return
	}

	monthEntries := entries
	if period != PeriodMonth {
		monthEntries, err = b.storage.FindSpends(ctx, cell, PeriodMonth.Start(now, b.agg.Zone))
		if err != nil {
			b.logger.Error("load month spends failed", log.FieldError, err, log.FieldCell, cell)
			return
		}
	}

	if rem, ok := b.agg.Remaining(monthEntries, limit); ok {
		report.Remaining = &rem
	}
}

// sendCurrencies lists the known non-base rates, EUR and USD first.
func (b *Bot) sendCurrencies(ctx context.Context, cell int64) {
	rates := b.table.Rates()
	base := b.table.Base()

	codes := make([]string, 0, len(rates))
	for code := range rates {
		if code != base {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return
	}
	sort.Slice(codes, func(i, j int) bool {
		pi, pj := currencyRank(codes[i]), currencyRank(codes[j])
		if pi != pj {
			return pi < pj
		}
		return codes[i] < codes[j]
	})

	var sb strings.Builder
	for _, code := range codes {
		sb.WriteString(b.table.ForDisplay(code) + ": " + core.DisplayNumber(rates[code]) + " " + b.table.ForDisplay(base) + "\n")
	}
	b.reply(ctx, cell, sb.String())
}

func currencyRank(code string) int {
	switch code {
	case "EUR":
		return 0
	case "USD":
		return 1
	}
	return 2
}

func (b *Bot) setLimit(ctx context.Context, cell int64, arg string) {
	if arg == "" {
		b.reply(ctx, cell, replyLimitMissing)
		return
	}

	amount, err := decimal.NewFromString(arg)
	if err != nil || amount.Sign() < 0 {
		b.reply(ctx, cell, replyLimitInvalid)
		return
	}

	if err := b.storage.SetLimitAmount(ctx, cell, amount); err != nil {
		b.logger.Error("set limit failed", log.FieldError, err, log.FieldCell, cell)
		b.reply(ctx, cell, replyLimitFailed)
		return
	}
	b.reply(ctx, cell, replyLimitSet)
}

// setLimitTags handles /limit_only and /limit_except. Hashtags set the
// filter, a lone "-" clears it.
func (b *Bot) setLimitTags(ctx context.Context, msg telegram.Message, only bool) {
	cell := msg.Chat.ID
	extracted := core.ExtractEntities(msg.Text, toSpans(msg.Entities), 0)

	set := func(tags []string) error {
		if only {
			return b.storage.SetLimitOnly(ctx, cell, tags)
		}
		return b.storage.SetLimitExcept(ctx, cell, tags)
	}

	switch {
	case len(extracted.Tags) > 0:
		if err := set(extracted.Tags); err != nil {
			b.logger.Error("set limit tags failed", log.FieldError, err, log.FieldCell, cell)
			return
		}
		if only {
			b.reply(ctx, cell, replyOnlySet)
		} else {
			b.reply(ctx, cell, replyExceptSet)
		}
	case strings.TrimSpace(extracted.Text) == "-":
		if err := set(nil); err != nil {
			b.logger.Error("clear limit tags failed", log.FieldError, err, log.FieldCell, cell)
			return
		}
		if only {
			b.reply(ctx, cell, replyOnlyCleared)
		} else {
			b.reply(ctx, cell, replyExceptClear)
		}
	default:
		b.reply(ctx, cell, replyTagsMissing)
	}
}

// DailyJob sends the day report to every known cell at end of day,
// plus the week report when the ended day closes a week and the month
// report when it closes a month. endedDay must be a moment inside the
// day that just finished.
func (b *Bot) DailyJob(ctx context.Context, endedDay time.Time) {
	cells, err := b.storage.DistinctCells(ctx)
	if err != nil {
		b.logger.Error("list cells failed", log.FieldError, err)
		return
	}

	local := endedDay.In(b.agg.Zone)
	weekEnded := local.Weekday() == time.Sunday
	monthEnded := local.AddDate(0, 0, 1).Day() == 1

	for _, cell := range cells {
		b.sendReport(ctx, cell, PeriodDay, endedDay, true)
		if weekEnded {
			b.sendReport(ctx, cell, PeriodWeek, endedDay, true)
		}
		if monthEnded {
			b.sendReport(ctx, cell, PeriodMonth, endedDay, true)
		}
	}
}

func (b *Bot) reply(ctx context.Context, cell int64, text string) error {
	if err := b.transport.SendText(ctx, cell, text); err != nil {
		b.logger.Error("send message failed", log.FieldError, err, log.FieldCell, cell)
		return err
	}
	return nil
}
