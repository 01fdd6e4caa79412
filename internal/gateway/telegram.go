package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/lucas-homer/chefdeparty-sub001/internal/store"
	"github.com/lucas-homer/chefdeparty-sub001/internal/wizard"
)

// Conversationalist is the orchestrator surface the gateway drives.
type Conversationalist interface {
	ProcessTurn(ctx context.Context, sessionID, ownerID, step string, msg wizard.IncomingMessage, decision *wizard.Decision, out wizard.Responder) error
}

// TelegramGateway maps each chat to a planning session and relays turns to
// the orchestrator. Confirmation requests become inline keyboards; button
// taps come back as decisions.
type TelegramGateway struct {
	Bot   *tgbotapi.BotAPI
	Wiz   Conversationalist
	Store *store.Store

	mu            sync.Mutex
	sessions      map[int64]string // chat -> active session
	pendingRevise map[int64]string // chat -> request awaiting revision feedback
}

func NewTelegramGateway(token string, wiz Conversationalist, st *store.Store) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{
		Bot:           bot,
		Wiz:           wiz,
		Store:         st,
		sessions:      make(map[int64]string),
		pendingRevise: make(map[int64]string),
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			tg.handleCallback(update.CallbackQuery)
		case update.Message != nil:
			tg.handleMessage(update.Message)
		}
	}
	return nil
}

func (tg *TelegramGateway) handleMessage(m *tgbotapi.Message) {
	chatID := m.Chat.ID
	log.Printf("[%s] %s", m.From.UserName, m.Text)

	ctx := context.Background()

	if m.IsCommand() {
		tg.handleCommand(ctx, m)
		return
	}

	sessionID, err := tg.sessionFor(ctx, chatID)
	if err != nil {
		log.Printf("Error opening session for chat %d: %v", chatID, err)
		tg.reply(chatID, "I couldn't open your planning session. Try /start.")
		return
	}

	msg := wizard.IncomingMessage{Text: m.Text}
	if len(m.Photo) > 0 {
		data, mime, err := tg.downloadPhoto(m.Photo)
		if err != nil {
			log.Printf("Error downloading photo: %v", err)
			tg.reply(chatID, "I couldn't download that photo — mind sending it again?")
			return
		}
		msg.ImageData = data
		msg.ImageMIME = mime
		if msg.Text == "" {
			msg.Text = m.Caption
		}
	}

	// A revise button tap turns the NEXT message into revision feedback.
	var decision *wizard.Decision
	tg.mu.Lock()
	if reqID, ok := tg.pendingRevise[chatID]; ok {
		decision = &wizard.Decision{RequestID: reqID, Approve: false, Feedback: m.Text}
		delete(tg.pendingRevise, chatID)
	}
	tg.mu.Unlock()

	tg.runTurn(ctx, chatID, sessionID, msg, decision)
}

func (tg *TelegramGateway) handleCallback(cb *tgbotapi.CallbackQuery) {
	// Inline-mode and aged callbacks arrive without an originating message;
	// there is no chat to answer into.
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	// Acknowledge so the client stops spinning; errors here are cosmetic.
	if _, err := tg.Bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("Error acking callback: %v", err)
	}

	verb, reqID, ok := strings.Cut(cb.Data, ":")
	if !ok {
		return
	}

	switch verb {
	case "confirm":
		ctx := context.Background()
		sessionID, err := tg.sessionFor(ctx, chatID)
		if err != nil {
			log.Printf("Error opening session for chat %d: %v", chatID, err)
			return
		}
		decision := &wizard.Decision{RequestID: reqID, Approve: true}
		tg.runTurn(ctx, chatID, sessionID, wizard.IncomingMessage{}, decision)
	case "revise":
		tg.mu.Lock()
		tg.pendingRevise[chatID] = reqID
		tg.mu.Unlock()
		tg.reply(chatID, "Sure — what should I change?")
	}
}

func (tg *TelegramGateway) handleCommand(ctx context.Context, m *tgbotapi.Message) {
	chatID := m.Chat.ID
	switch m.Command() {
	case "start", "new":
		sessionID := uuid.NewString()
		owner := fmt.Sprintf("%d", chatID)
		if err := tg.Store.CreateSession(ctx, sessionID, owner, wizard.StepEventInfo.String()); err != nil {
			log.Printf("Error creating session: %v", err)
			tg.reply(chatID, "Something went wrong starting a new plan.")
			return
		}
		tg.mu.Lock()
		tg.sessions[chatID] = sessionID
		delete(tg.pendingRevise, chatID)
		tg.mu.Unlock()
		tg.reply(chatID, "Let's plan your party! 🎉 What's the occasion, and when is it?")
	default:
		tg.reply(chatID, "I know /start (begin a new party plan) and /new (same thing).")
	}
}

func (tg *TelegramGateway) runTurn(ctx context.Context, chatID int64, sessionID string, msg wizard.IncomingMessage, decision *wizard.Decision) {
	owner := fmt.Sprintf("%d", chatID)
	out := &telegramResponder{gw: tg, chatID: chatID}
	if err := tg.Wiz.ProcessTurn(ctx, sessionID, owner, "", msg, decision, out); err != nil {
		log.Printf("Error processing turn: %v", err)
		tg.reply(chatID, "I hit a snag handling that — give me a moment and try again.")
	}
}

// sessionFor returns the chat's active session, creating one on first contact.
func (tg *TelegramGateway) sessionFor(ctx context.Context, chatID int64) (string, error) {
	tg.mu.Lock()
	id, ok := tg.sessions[chatID]
	tg.mu.Unlock()
	if ok {
		return id, nil
	}

	id = uuid.NewString()
	owner := fmt.Sprintf("%d", chatID)
	if err := tg.Store.CreateSession(ctx, id, owner, wizard.StepEventInfo.String()); err != nil {
		return "", err
	}
	tg.mu.Lock()
	tg.sessions[chatID] = id
	tg.mu.Unlock()
	return id, nil
}

// downloadPhoto fetches the largest rendition Telegram offers.
func (tg *TelegramGateway) downloadPhoto(sizes []tgbotapi.PhotoSize) ([]byte, string, error) {
	best := sizes[len(sizes)-1]
	url, err := tg.Bot.GetFileDirectURL(best.FileID)
	if err != nil {
		return nil, "", err
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("photo download returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, "image/jpeg", nil
}

func (tg *TelegramGateway) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := tg.Bot.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id := 0
	fmt.Sscanf(chatID, "%d", &id)
	if id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(int64(id), text)
	msg.ParseMode = "Markdown"
	_, err := tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}

// telegramResponder streams turn output back into the chat. Confirmation
// requests render as a summary with Confirm/Revise buttons.
type telegramResponder struct {
	gw     *TelegramGateway
	chatID int64
}

func (r *telegramResponder) Text(s string) {
	r.gw.reply(r.chatID, s)
}

func (r *telegramResponder) Data(ev wizard.TurnEvent) {
	if ev.Type != wizard.EventConfirmationRequest {
		return
	}
	req, ok := ev.Payload.(*wizard.ConfirmationRequest)
	if !ok {
		return
	}

	msg := tgbotapi.NewMessage(r.chatID, req.Summary)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", "confirm:"+req.ID),
			tgbotapi.NewInlineKeyboardButtonData("✏️ Revise", "revise:"+req.ID),
		),
	)
	if _, err := r.gw.Bot.Send(msg); err != nil {
		log.Printf("Error sending confirmation prompt: %v", err)
	}
}
