package gateway

// Messenger is implemented by chat transports (Telegram, Discord). The
// reminder poller and any other outbound producer send through it without
// knowing which transport is wired.
type Messenger interface {
	// Start runs the update loop until Stop is called.
	Start() error
	// Send delivers text to a chat out of band, outside any turn.
	Send(chatID string, text string) error
	// Stop shuts the update loop down.
	Stop() error
}
