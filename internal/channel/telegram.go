package channel

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/famulus-ai/famulus/internal/models"
)

const incomingBuffer = 100

// fileResolver turns a Telegram file id into a fetchable URL. Split out
// so message normalization is testable without a live bot.
type fileResolver func(fileID string) (string, error)

// Telegram is the Telegram chat transport
type Telegram struct {
	token    string
	bot      *tgbotapi.BotAPI
	incoming chan *models.InboundMessage
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// NewTelegram creates a Telegram channel for the given bot token
func NewTelegram(token string, logger *zap.Logger) *Telegram {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Telegram{
		token:    token,
		incoming: make(chan *models.InboundMessage, incomingBuffer),
		logger:   logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to the Bot API and begins polling for updates
func (t *Telegram) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram channel connected", zap.String("bot", bot.Self.UserName))

	ctx, t.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	go func() {
		defer close(t.incoming)
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil {
					continue
				}
				msg := normalizeTelegramMessage(update.Message, t.bot.GetFileDirectURL)
				select {
				case t.incoming <- msg:
				default:
					t.logger.Warn("inbound queue full, dropping message",
						zap.String("conversation_id", msg.ConversationID))
				}
			}
		}
	}()
	return nil
}

// Stop halts update polling
func (t *Telegram) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	return nil
}

// Incoming returns the normalized inbound message stream
func (t *Telegram) Incoming() <-chan *models.InboundMessage {
	return t.incoming
}

// Send delivers a reply to the conversation's chat
func (t *Telegram) Send(ctx context.Context, msg *models.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ConversationID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad telegram conversation id %q: %w", msg.ConversationID, err)
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, msg.Text)); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// normalizeTelegramMessage maps a raw Telegram message onto the
// transport-neutral inbound shape, resolving media to a MediaReference.
func normalizeTelegramMessage(m *tgbotapi.Message, resolve fileResolver) *models.InboundMessage {
	msg := &models.InboundMessage{
		ID:             strconv.Itoa(m.MessageID),
		ConversationID: strconv.FormatInt(m.Chat.ID, 10),
		Text:           m.Text,
		ReceivedAt:     m.Time(),
	}
	if m.From != nil {
		msg.UserID = strconv.FormatInt(m.From.ID, 10)
	}

	switch {
	case m.Location != nil:
		msg.Media = &models.MediaReference{
			Type:      models.MediaLocation,
			Latitude:  m.Location.Latitude,
			Longitude: m.Location.Longitude,
		}
	case m.Voice != nil:
		msg.Media = &models.MediaReference{
			Type: models.MediaVoice,
			Path: resolveFile(m.Voice.FileID, resolve),
		}
	case len(m.Photo) > 0:
		// Telegram sends several sizes; the last is the largest.
		msg.Media = &models.MediaReference{
			Type: models.MediaPhoto,
			Path: resolveFile(m.Photo[len(m.Photo)-1].FileID, resolve),
		}
	case m.Document != nil:
		msg.Media = &models.MediaReference{
			Type: models.MediaDocument,
			Path: resolveFile(m.Document.FileID, resolve),
		}
	}

	// Captions ride along as the message text.
	if msg.Text == "" && m.Caption != "" {
		msg.Text = m.Caption
	}
	return msg
}

func resolveFile(fileID string, resolve fileResolver) string {
	if resolve == nil {
		return fileID
	}
	url, err := resolve(fileID)
	if err != nil {
		return fileID
	}
	return url
}
