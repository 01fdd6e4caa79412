package gateway

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestHandleCallbackIgnoresMessagelessQueries(t *testing.T) {
	// Inline-mode and aged callbacks carry no message; the update loop must
	// survive them without touching the bot.
	tg := &TelegramGateway{
		sessions:      make(map[int64]string),
		pendingRevise: make(map[int64]string),
	}

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("handleCallback panicked: %v", r)
		}
	}()
	tg.handleCallback(&tgbotapi.CallbackQuery{ID: "cb-1", Data: "confirm:req-1"})

	if len(tg.pendingRevise) != 0 {
		t.Errorf("Expected no revise state recorded, got %v", tg.pendingRevise)
	}
}
