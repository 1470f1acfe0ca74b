package transport

import "context"

// Message is an incoming chat message reduced to what command handlers use.
type Message struct {
	ID        int
	ChatID    int64
	FromID    int64
	Username  string
	FirstName string
	// LanguageCode is the client's IETF tag as reported by Telegram ("en", "ru-RU").
	LanguageCode string
	Text         string
	IsPrivate    bool
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Message) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	// SendPlain sends text with default options and classified errors.
	SendPlain(ctx context.Context, chatID int64, text string) error
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram /menu list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
