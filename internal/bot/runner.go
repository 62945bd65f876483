package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mew/plugins/brightwheel-agent/internal/format"
)

// Options wires a Runner. Feed and BotToken are required.
type Options struct {
	BotToken string
	MewURL   string
	APIBase  string

	// HTTPClient talks to the Mew REST API (bot login, DM channel listing).
	HTTPClient *http.Client

	Feed      Feed
	Mode      format.OutputMode
	LogPrefix string
}

// Runner connects the bot to the chat gateway and answers brightwheel
// commands. Commands need a leading bot mention in guild channels; in DM
// channels they work bare.
type Runner struct {
	botToken  string // bot access token (not a JWT)
	userToken string // JWT issued by /api/auth/bot

	apiBase string
	mewURL  string
	wsURL   string

	httpClient *http.Client

	feed      Feed
	mode      format.OutputMode
	logPrefix string

	botUserID string

	dmMu        sync.RWMutex
	dmChannelID map[string]struct{}
}

func NewRunner(opts Options) (*Runner, error) {
	if strings.TrimSpace(opts.BotToken) == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if opts.Feed == nil {
		return nil, fmt.Errorf("feed is required")
	}

	mewURL := strings.TrimRight(strings.TrimSpace(opts.MewURL), "/")
	if mewURL == "" {
		mewURL = "http://localhost:3000"
	}
	wsURL, err := socketIOWebsocketURL(mewURL)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	logPrefix := strings.TrimSpace(opts.LogPrefix)
	if logPrefix == "" {
		logPrefix = "[brightwheel-agent]"
	}

	return &Runner{
		botToken:    opts.BotToken,
		apiBase:     strings.TrimRight(strings.TrimSpace(opts.APIBase), "/"),
		mewURL:      mewURL,
		wsURL:       wsURL,
		httpClient:  httpClient,
		feed:        opts.Feed,
		mode:        opts.Mode,
		logPrefix:   logPrefix,
		dmChannelID: map[string]struct{}{},
	}, nil
}

func (r *Runner) Run(ctx context.Context) error {
	me, token, err := r.loginBot(ctx)
	if err != nil {
		return fmt.Errorf("%s bot auth failed: %w", r.logPrefix, err)
	}
	r.botUserID = me.ID
	r.userToken = token

	if err := r.refreshDMChannels(ctx); err != nil {
		log.Printf("%s refresh DM channels failed (will retry later): %v", r.logPrefix, err)
	}

	backoff := 500 * time.Millisecond
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := r.runSocketOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Printf("%s gateway disconnected: %v (reconnecting in %s)", r.logPrefix, err, backoff)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}

func (r *Runner) runSocketOnce(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(r.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	var writeMu sync.Mutex
	sendText := func(payload string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteMessage(websocket.TextMessage, []byte(payload))
	}

	emit := func(event string, payload any) error {
		frame, err := json.Marshal([]any{event, payload})
		if err != nil {
			return err
		}
		return sendText("42" + string(frame))
	}

	// If ctx is canceled, proactively close the connection to unblock reads.
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"), time.Now().Add(2*time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()
	defer close(stop)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		for _, frame := range splitSocketIOFrames(msg) {
			s := string(frame)
			if s == "" {
				continue
			}

			switch s[0] {
			case '0': // Engine.IO open
				authPayload, _ := json.Marshal(map[string]string{"token": r.userToken})
				if err := sendText("40" + string(authPayload)); err != nil {
					return err
				}
			case '1': // Engine.IO close
				return errors.New("engine.io close")
			case '2': // ping
				if err := sendText("3"); err != nil {
					return err
				}
			case '4': // message (Socket.IO)
				if len(s) >= 2 && s[1] == '0' {
					// CONNECT OK: "40"
					log.Printf("%s connected to gateway (mewURL=%s)", r.logPrefix, r.mewURL)
					continue
				}
				if len(s) >= 2 && s[1] == '4' {
					// ERROR: "44{...}"
					return fmt.Errorf("socket.io error: %s", strings.TrimSpace(s))
				}
				if strings.HasPrefix(s, "42") {
					if err := r.handleEvent(ctx, s[2:], emit); err != nil {
						log.Printf("%s event handler error: %v", r.logPrefix, err)
					}
				}
			default:
			}
		}
	}
}

func (r *Runner) handleEvent(ctx context.Context, raw string, emit emitFunc) error {
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		return err
	}
	if len(arr) < 2 {
		return nil
	}

	var eventName string
	if err := json.Unmarshal(arr[0], &eventName); err != nil {
		return err
	}
	if eventName != "MESSAGE_CREATE" {
		return nil
	}

	var msg socketMessage
	if err := json.Unmarshal(arr[1], &msg); err != nil {
		return err
	}

	if authorID(msg.AuthorID) == r.botUserID {
		return nil
	}

	cmd, ok, err := r.resolveCommand(ctx, msg.ChannelID, msg.Content)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	log.Printf("%s command accepted: channel=%s filter=%q", r.logPrefix, msg.ChannelID, cmd.Filter)
	d := NewDispatcher(r.feed, gatewayPublisher{emit: emit}, r.mode, r.logPrefix)
	d.Serve(ctx, msg.ChannelID, cmd)
	return nil
}

// resolveCommand decides whether a message is addressed to this bot and
// parses it. Guild channels require a leading mention; DM channels don't.
func (r *Runner) resolveCommand(ctx context.Context, channelID, content string) (Command, bool, error) {
	trimmed := strings.TrimSpace(content)

	if rest, mentioned := stripLeadingBotMention(trimmed, r.botUserID); mentioned {
		cmd, ok := ParseCommand(rest)
		return cmd, ok, nil
	}

	cmd, ok := ParseCommand(trimmed)
	if !ok {
		return Command{}, false, nil
	}

	if r.isDMChannel(channelID) {
		return cmd, true, nil
	}

	// DM channels can be created after the bot connects; refresh once on demand.
	if err := r.refreshDMChannels(ctx); err != nil {
		return Command{}, false, err
	}
	if r.isDMChannel(channelID) {
		return cmd, true, nil
	}
	return Command{}, false, nil
}

func (r *Runner) isDMChannel(channelID string) bool {
	r.dmMu.RLock()
	defer r.dmMu.RUnlock()
	_, ok := r.dmChannelID[channelID]
	return ok
}

func (r *Runner) refreshDMChannels(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.apiBase+"/users/@me/channels", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.userToken)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var channels []struct {
		ID   string `json:"_id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &channels); err != nil {
		return err
	}

	next := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		if strings.TrimSpace(ch.ID) == "" {
			continue
		}
		if ch.Type != "DM" {
			continue
		}
		next[ch.ID] = struct{}{}
	}

	r.dmMu.Lock()
	r.dmChannelID = next
	r.dmMu.Unlock()
	return nil
}

type meUser struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	IsBot    bool   `json:"isBot"`
}

func (r *Runner) loginBot(ctx context.Context) (me meUser, token string, err error) {
	reqBody, err := json.Marshal(map[string]any{"accessToken": r.botToken})
	if err != nil {
		return meUser{}, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiBase+"/auth/bot", bytes.NewReader(reqBody))
	if err != nil {
		return meUser{}, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return meUser{}, "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return meUser{}, "", fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		User  meUser `json:"user"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return meUser{}, "", err
	}
	if strings.TrimSpace(parsed.User.ID) == "" || strings.TrimSpace(parsed.Token) == "" {
		return meUser{}, "", fmt.Errorf("invalid /auth/bot response: missing user/token")
	}

	return parsed.User, parsed.Token, nil
}
