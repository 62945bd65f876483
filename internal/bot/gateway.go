package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"mew/plugins/brightwheel-agent/internal/format"
)

// cardMessageType marks structured replies so the frontend renders them as
// Brightwheel cards.
const cardMessageType = "app/x-brightwheel-card"

type emitFunc func(event string, payload any) error

// gatewayPublisher sends replies over the gateway's upstream write, so guild
// channels work without resolving a serverId.
type gatewayPublisher struct {
	emit emitFunc
}

func (p gatewayPublisher) Publish(_ context.Context, channelID string, msg format.Message) error {
	body := map[string]any{
		"channelId": channelID,
		"content":   msg.Text,
	}
	if msg.Card != nil {
		body["type"] = cardMessageType
		body["payload"] = msg.Card.Payload()
	}
	if err := p.emit("message/create", body); err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	return nil
}

type socketMessage struct {
	ChannelID string          `json:"channelId"`
	Content   string          `json:"content"`
	AuthorID  json.RawMessage `json:"authorId"`
}

// authorID extracts the author user ID from a MESSAGE_CREATE payload.
// Depending on backend populate behavior the field may be a plain string or a
// populated user object.
func authorID(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return ""
		}
		return s
	}
	return gjson.GetBytes(trimmed, "_id").String()
}

func socketIOWebsocketURL(mewURL string) (string, error) {
	u, err := url.Parse(mewURL)
	if err != nil {
		return "", err
	}

	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid MEW_URL scheme: %q", u.Scheme)
	}

	u.Path = "/socket.io/"
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func splitSocketIOFrames(msg []byte) [][]byte {
	// Socket.IO may return multiple frames separated by RS (0x1e).
	if bytes.IndexByte(msg, 0x1e) < 0 {
		return [][]byte{msg}
	}
	parts := bytes.Split(msg, []byte{0x1e})
	out := make([][]byte, 0, len(parts))
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}
