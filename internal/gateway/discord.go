package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/lucas-homer/chefdeparty-sub001/internal/store"
	"github.com/lucas-homer/chefdeparty-sub001/internal/wizard"
)

// DiscordGateway maps each channel to a planning session, mirroring the
// Telegram surface: confirmation requests render as component buttons, button
// presses come back as decisions.
type DiscordGateway struct {
	Session *discordgo.Session
	Wiz     Conversationalist
	Store   *store.Store

	mu            sync.Mutex
	sessions      map[string]string // channel -> active session
	pendingRevise map[string]string // channel -> request awaiting revision feedback
	done          chan struct{}
}

func NewDiscordGateway(token string, wiz Conversationalist, st *store.Store) (*DiscordGateway, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	return &DiscordGateway{
		Session:       dg,
		Wiz:           wiz,
		Store:         st,
		sessions:      make(map[string]string),
		pendingRevise: make(map[string]string),
		done:          make(chan struct{}),
	}, nil
}

func (dg *DiscordGateway) Start() error {
	dg.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		dg.handleMessage(m)
	})
	dg.Session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		dg.handleInteraction(i)
	})

	if err := dg.Session.Open(); err != nil {
		return err
	}
	log.Printf("Authorized on account %s", dg.Session.State.User.Username)

	<-dg.done
	return nil
}

func (dg *DiscordGateway) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	channelID := m.ChannelID
	log.Printf("[%s] %s", m.Author.Username, m.Content)

	ctx := context.Background()

	if cmd, ok := strings.CutPrefix(strings.TrimSpace(m.Content), "!"); ok {
		dg.handleCommand(ctx, channelID, cmd)
		return
	}

	sessionID, err := dg.sessionFor(ctx, channelID)
	if err != nil {
		log.Printf("Error opening session for channel %s: %v", channelID, err)
		dg.reply(channelID, "I couldn't open your planning session. Try !start.")
		return
	}

	msg := wizard.IncomingMessage{Text: m.Content}
	if len(m.Attachments) > 0 {
		data, mime, err := downloadAttachment(m.Attachments[0])
		if err != nil {
			log.Printf("Error downloading attachment: %v", err)
			dg.reply(channelID, "I couldn't download that image — mind sending it again?")
			return
		}
		msg.ImageData = data
		msg.ImageMIME = mime
	}

	// A revise button press turns the NEXT message into revision feedback.
	var decision *wizard.Decision
	dg.mu.Lock()
	if reqID, ok := dg.pendingRevise[channelID]; ok {
		decision = &wizard.Decision{RequestID: reqID, Approve: false, Feedback: m.Content}
		delete(dg.pendingRevise, channelID)
	}
	dg.mu.Unlock()

	dg.runTurn(ctx, channelID, sessionID, msg, decision)
}

func (dg *DiscordGateway) handleInteraction(i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	channelID := i.ChannelID

	// Acknowledge so the client stops spinning; errors here are cosmetic.
	err := dg.Session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		log.Printf("Error acking interaction: %v", err)
	}

	verb, reqID, ok := strings.Cut(i.MessageComponentData().CustomID, ":")
	if !ok {
		return
	}

	switch verb {
	case "confirm":
		ctx := context.Background()
		sessionID, err := dg.sessionFor(ctx, channelID)
		if err != nil {
			log.Printf("Error opening session for channel %s: %v", channelID, err)
			return
		}
		decision := &wizard.Decision{RequestID: reqID, Approve: true}
		dg.runTurn(ctx, channelID, sessionID, wizard.IncomingMessage{}, decision)
	case "revise":
		dg.mu.Lock()
		dg.pendingRevise[channelID] = reqID
		dg.mu.Unlock()
		dg.reply(channelID, "Sure — what should I change?")
	}
}

func (dg *DiscordGateway) handleCommand(ctx context.Context, channelID, cmd string) {
	switch cmd {
	case "start", "new":
		sessionID := uuid.NewString()
		if err := dg.Store.CreateSession(ctx, sessionID, channelID, wizard.StepEventInfo.String()); err != nil {
			log.Printf("Error creating session: %v", err)
			dg.reply(channelID, "Something went wrong starting a new plan.")
			return
		}
		dg.mu.Lock()
		dg.sessions[channelID] = sessionID
		delete(dg.pendingRevise, channelID)
		dg.mu.Unlock()
		dg.reply(channelID, "Let's plan your party! 🎉 What's the occasion, and when is it?")
	default:
		dg.reply(channelID, "I know !start (begin a new party plan) and !new (same thing).")
	}
}

func (dg *DiscordGateway) runTurn(ctx context.Context, channelID, sessionID string, msg wizard.IncomingMessage, decision *wizard.Decision) {
	out := &discordResponder{gw: dg, channelID: channelID}
	if err := dg.Wiz.ProcessTurn(ctx, sessionID, channelID, "", msg, decision, out); err != nil {
		log.Printf("Error processing turn: %v", err)
		dg.reply(channelID, "I hit a snag handling that — give me a moment and try again.")
	}
}

// sessionFor returns the channel's active session, creating one on first
// contact.
func (dg *DiscordGateway) sessionFor(ctx context.Context, channelID string) (string, error) {
	dg.mu.Lock()
	id, ok := dg.sessions[channelID]
	dg.mu.Unlock()
	if ok {
		return id, nil
	}

	id = uuid.NewString()
	if err := dg.Store.CreateSession(ctx, id, channelID, wizard.StepEventInfo.String()); err != nil {
		return "", err
	}
	dg.mu.Lock()
	dg.sessions[channelID] = id
	dg.mu.Unlock()
	return id, nil
}

func downloadAttachment(att *discordgo.MessageAttachment) ([]byte, string, error) {
	if !strings.HasPrefix(att.ContentType, "image/") {
		return nil, "", fmt.Errorf("attachment %s is not an image", att.Filename)
	}
	resp, err := http.Get(att.URL)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("attachment download returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, att.ContentType, nil
}

func (dg *DiscordGateway) reply(channelID, text string) {
	if _, err := dg.Session.ChannelMessageSend(channelID, text); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	_, err := dg.Session.ChannelMessageSend(chatID, text)
	return err
}

func (dg *DiscordGateway) Stop() error {
	close(dg.done)
	return dg.Session.Close()
}

// discordResponder streams turn output back into the channel. Confirmation
// requests render as a summary with Confirm/Revise buttons.
type discordResponder struct {
	gw        *DiscordGateway
	channelID string
}

func (r *discordResponder) Text(s string) {
	r.gw.reply(r.channelID, s)
}

func (r *discordResponder) Data(ev wizard.TurnEvent) {
	if ev.Type != wizard.EventConfirmationRequest {
		return
	}
	req, ok := ev.Payload.(*wizard.ConfirmationRequest)
	if !ok {
		return
	}

	_, err := r.gw.Session.ChannelMessageSendComplex(r.channelID, &discordgo.MessageSend{
		Content: req.Summary,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{Label: "✅ Confirm", Style: discordgo.SuccessButton, CustomID: "confirm:" + req.ID},
					discordgo.Button{Label: "✏️ Revise", Style: discordgo.SecondaryButton, CustomID: "revise:" + req.ID},
				},
			},
		},
	})
	if err != nil {
		log.Printf("Error sending confirmation prompt: %v", err)
	}
}
