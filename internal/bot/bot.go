package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todozen/internal/model"
	"todozen/internal/service"
)

const (
	cbDonePrefix   = "done:"
	cbSnoozePrefix = "snz:"
	cbDeletePrefix = "del:"
)

// API is the part of the Telegram client the bot sends through.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// UpdateSource is the long-polling side of the Telegram client.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Services bundles what the bot drives.
type Services struct {
	Tasks      *service.TaskService
	Completion *service.CompletionService
	Categories *service.CategoryService
	Reminders  *service.ReminderService
}

type Options struct {
	// ChatID is the only chat the bot talks to; messages from others are ignored.
	ChatID   int64
	Owner    string
	Location *time.Location
}

// Bot is the Telegram front end over the task services.
type Bot struct {
	api     API
	updates UpdateSource
	svc     Services
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	stopped bool
}

// New authorizes token against Telegram.
func New(token string, svc Services, opts Options, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	b := NewWithAPI(api, svc, opts, logger)
	b.logger.Info("bot authorized", "account", api.Self.UserName)
	return b, nil
}

// NewWithAPI builds a bot over an existing client. Unless api is also an
// UpdateSource the bot can send but Start has nothing to poll.
func NewWithAPI(api API, svc Services, opts Options, logger *slog.Logger) *Bot {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Owner == "" {
		opts.Owner = model.GuestOwner
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{
		api:    api,
		svc:    svc,
		opts:   opts,
		logger: logger.With("component", "bot"),
		now:    time.Now,
	}
	if src, ok := api.(UpdateSource); ok {
		b.updates = src
	}
	return b
}

// Start begins polling updates until ctx is cancelled. Updates already
// received are still handled, so Start returns only once none is in flight.
func (b *Bot) Start(ctx context.Context) error {
	if b.updates == nil {
		return errors.New("bot: no update source")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.updates.GetUpdatesChan(updateConfig)

	b.logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		b.stopped = true
		b.mu.Unlock()
		b.updates.StopReceivingUpdates()
	}()

	handleCtx := context.WithoutCancel(ctx)
	for update := range updates {
		b.HandleUpdate(handleCtx, update)
	}
	b.logger.Info("stopped polling updates")
	return nil
}

// HandleUpdate dispatches one update. Errors are logged, never returned.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.logger.Warn("handle callback", "err", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || update.Message.Chat.ID != b.opts.ChatID {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.logger.Warn("handle message", "err", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if !msg.IsCommand() {
		return b.sendText(msg.Chat.ID, "Send /help to see what I can do.")
	}
	b.logger.Debug("command", "command", msg.Command(), "args", msg.CommandArguments())
	return b.handleCommand(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start", "help":
		return b.handleHelp(msg)
	case "add":
		return b.handleAdd(ctx, msg)
	case "tasks":
		return b.sendTaskList(ctx, msg.Chat.ID)
	case "done":
		return b.handleDone(ctx, msg)
	case "snooze":
		return b.handleSnooze(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "categories":
		return b.handleCategories(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /add &lt;title&gt; | &lt;due&gt; [| &lt;repeat&gt;] — add a task, e.g. /add Gym | 2025-10-14 09:00 | days:tue,fri\n" +
		"• /tasks — open tasks with buttons\n" +
		"• /done &lt;id&gt; — toggle a task done\n" +
		"• /snooze &lt;id&gt; [minutes] — push a task back (default 10)\n" +
		"• /delete &lt;id&gt; — delete a task\n" +
		"• /categories — categories overview\n" +
		"• /report — today's summary"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message) error {
	parts := strings.Split(msg.CommandArguments(), "|")
	if len(parts) < 2 {
		return b.sendText(msg.Chat.ID, "Usage: /add &lt;title&gt; | &lt;due&gt; [| &lt;repeat&gt;]")
	}
	input := service.TaskInput{Owner: b.opts.Owner, Title: parts[0]}

	due, err := service.ParseDue(parts[1], b.now().In(b.opts.Location))
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	input.Due = due
	if len(parts) > 2 {
		input.Recurrence, input.Extra, err = service.ParseRecurrence(parts[2])
		if err != nil {
			return b.sendText(msg.Chat.ID, escape(err.Error()))
		}
	}

	task, err := b.svc.Tasks.CreateTask(ctx, input)
	if err != nil {
		return b.sendText(msg.Chat.ID, userError("Could not save the task", err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🆕 Added <code>%s</code> %s\n%s",
		service.ShortID(task.ID), escape(task.Title), b.formatDue(task)))
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	id, err := b.resolve(ctx, msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, userError("Which task?", err))
	}
	return b.toggle(ctx, msg.Chat.ID, id)
}

func (b *Bot) handleSnooze(ctx context.Context, msg *tgbotapi.Message) error {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) == 0 {
		return b.sendText(msg.Chat.ID, "Usage: /snooze &lt;id&gt; [minutes]")
	}
	minutes := 10
	if len(fields) > 1 {
		n, err := strconv.Atoi(fields[1])
		if err != nil || n <= 0 {
			return b.sendText(msg.Chat.ID, "Minutes must be a positive number.")
		}
		minutes = n
	}
	id, err := b.resolve(ctx, fields[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, userError("Which task?", err))
	}
	return b.snooze(ctx, msg.Chat.ID, id, minutes)
}

// handleDelete removes a task completely (recurring ones included).
func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	id, err := b.resolve(ctx, msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, userError("Which task?", err))
	}
	task, err := b.svc.Tasks.GetTask(ctx, id)
	if err != nil {
		return b.sendText(msg.Chat.ID, userError("Task not found", err))
	}
	if err := b.svc.Tasks.DeleteTask(ctx, id); err != nil {
		return b.sendText(msg.Chat.ID, userError("Could not delete the task", err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Task \"%s\" deleted.", escape(task.Title)))
}

func (b *Bot) handleCategories(ctx context.Context, msg *tgbotapi.Message) error {
	stats, err := b.svc.Categories.List(ctx, b.opts.Owner)
	if err != nil {
		return b.sendText(msg.Chat.ID, userError("Could not load categories", err))
	}
	if len(stats) == 0 {
		return b.sendText(msg.Chat.ID, "No categories yet.")
	}
	var sb strings.Builder
	sb.WriteString("🗂 <b>Categories</b>\n")
	for _, c := range stats {
		sb.WriteString(fmt.Sprintf("• %s — %d open, %d done\n", escape(c.Name), c.Open, c.Done))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(sb.String()))
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	sum, err := b.svc.Reminders.DailySummary(ctx, b.opts.Owner, b.now().In(b.opts.Location))
	if err != nil {
		return b.sendText(msg.Chat.ID, userError("Could not build the report", err))
	}
	return b.sendText(msg.Chat.ID, sum.Text(true))
}

// SendDailySummary pushes the daily report to the configured chat.
func (b *Bot) SendDailySummary(ctx context.Context) error {
	sum, err := b.svc.Reminders.DailySummary(ctx, b.opts.Owner, b.now().In(b.opts.Location))
	if err != nil {
		return err
	}
	return b.sendText(b.opts.ChatID, sum.Text(true))
}

// Notify delivers a due event to the configured chat with done and snooze
// buttons. It makes the bot a service.Sink.
func (b *Bot) Notify(_ context.Context, ev service.DueEvent) error {
	b.mu.Lock()
	stopped := b.stopped
	b.mu.Unlock()
	if stopped {
		return errors.New("bot stopped")
	}

	task := ev.Task
	text := fmt.Sprintf("⏰ <b>%s</b>\n%s", escape(task.Title), b.formatDue(task))
	if task.Category != "" {
		text += fmt.Sprintf(" · <i>%s</i>", escape(task.Category))
	}
	return b.sendWithReplyMarkup(b.opts.ChatID, text, dueKeyboard(task.ID))
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64) error {
	tasks, err := b.svc.Tasks.ListTasks(ctx, b.opts.Owner, false)
	if err != nil {
		return b.sendText(chatID, userError("Could not load tasks", err))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "No open tasks. Add one with /add.")
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Open tasks</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		builder.WriteString(b.formatTask(task))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ "+shortTitle(task.Title, 24), cbDonePrefix+task.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+task.ID),
		))
	}
	return b.sendWithReplyMarkup(chatID, strings.TrimSpace(builder.String()), tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.Message == nil || cb.Message.Chat == nil || cb.Message.Chat.ID != b.opts.ChatID {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Debug("callback ack", "err", err)
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data

	switch {
	case strings.HasPrefix(data, cbDonePrefix):
		return b.toggle(ctx, chatID, strings.TrimPrefix(data, cbDonePrefix))
	case strings.HasPrefix(data, cbSnoozePrefix):
		id, minutes, err := parseSnoozeData(data)
		if err != nil {
			return nil
		}
		return b.snooze(ctx, chatID, id, minutes)
	case strings.HasPrefix(data, cbDeletePrefix):
		id, err := b.resolve(ctx, strings.TrimPrefix(data, cbDeletePrefix))
		if err == nil {
			err = b.svc.Tasks.DeleteTask(ctx, id)
		}
		if err != nil {
			return b.sendText(chatID, userError("Could not delete the task", err))
		}
		return b.sendTaskList(ctx, chatID)
	}
	return nil
}

func (b *Bot) toggle(ctx context.Context, chatID int64, ref string) error {
	id, err := b.resolve(ctx, ref)
	if err != nil {
		return b.sendText(chatID, userError("Could not update the task", err))
	}
	res, err := b.svc.Completion.Toggle(ctx, id)
	if err != nil {
		return b.sendText(chatID, userError("Could not update the task", err))
	}
	if !res.Task.Done {
		return b.sendText(chatID, fmt.Sprintf("↩️ \"%s\" is open again.", escape(res.Task.Title)))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ \"%s\" done! +%d XP", escape(res.Task.Title), res.XP))
	if res.Profile != nil {
		sb.WriteString(fmt.Sprintf("\n🪙 %d coins · 🔥 %d day streak", res.Profile.Coins, res.Profile.Streak))
	}
	if res.Next != nil {
		sb.WriteString("\n♻️ Next: " + b.formatDue(*res.Next))
	}
	return b.sendText(chatID, sb.String())
}

func (b *Bot) snooze(ctx context.Context, chatID int64, ref string, minutes int) error {
	id, err := b.resolve(ctx, ref)
	if err != nil {
		return b.sendText(chatID, userError("Could not snooze the task", err))
	}
	task, err := b.svc.Tasks.Snooze(ctx, id, minutes)
	if err != nil {
		return b.sendText(chatID, userError("Could not snooze the task", err))
	}
	return b.sendText(chatID, fmt.Sprintf("😴 \"%s\" snoozed %d min.\n%s", escape(task.Title), minutes, b.formatDue(task)))
}

func (b *Bot) resolve(ctx context.Context, ref string) (string, error) {
	return b.svc.Tasks.ResolveID(ctx, b.opts.Owner, strings.TrimSpace(ref))
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func dueKeyboard(taskID string) tgbotapi.InlineKeyboardMarkup {
	snoozes := make([]tgbotapi.InlineKeyboardButton, 0, len(service.SnoozePresets))
	for _, m := range service.SnoozePresets {
		snoozes = append(snoozes, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%dm", m), fmt.Sprintf("%s%d:%s", cbSnoozePrefix, m, taskID)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Done", cbDonePrefix+taskID)),
		snoozes,
	)
}

// parseSnoozeData reads "snz:<minutes>:<id>".
func parseSnoozeData(data string) (string, int, error) {
	raw := strings.TrimPrefix(data, cbSnoozePrefix)
	minRaw, id, ok := strings.Cut(raw, ":")
	if !ok || id == "" {
		return "", 0, fmt.Errorf("malformed snooze data %q", data)
	}
	minutes, err := strconv.Atoi(minRaw)
	if err != nil || minutes <= 0 {
		return "", 0, fmt.Errorf("malformed snooze minutes %q", data)
	}
	return id, minutes, nil
}

func (b *Bot) formatTask(task model.Task) string {
	line := fmt.Sprintf("<code>%s</code> %s", service.ShortID(task.ID), escape(task.Title))
	if task.Category != "" {
		line += fmt.Sprintf(" <i>(%s)</i>", escape(task.Category))
	}
	line += "\n   " + b.formatDue(task)
	if task.Repeats() {
		line += " · ♻️ " + escape(model.DescribeRecurrence(task.Recurrence, task.Extra))
	}
	return line + "\n"
}

func (b *Bot) formatDue(task model.Task) string {
	if !task.HasDue() {
		return "🕒 no due date"
	}
	now := b.now().In(b.opts.Location)
	d := task.Due.In(b.opts.Location)
	if now.After(d) {
		return fmt.Sprintf("🕒 %s — <b>overdue</b>", d.Format("2006-01-02 15:04"))
	}
	return fmt.Sprintf("🕒 %s", d.Format("2006-01-02 15:04"))
}

func userError(prefix string, err error) string {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return prefix + ": task not found."
	case errors.Is(err, service.ErrInvalidInput):
		return fmt.Sprintf("%s: %s", prefix, escape(err.Error()))
	default:
		return prefix + ": storage is unavailable, try again."
	}
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}
