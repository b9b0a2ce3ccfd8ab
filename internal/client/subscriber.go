package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"procurement/internal/workflow"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Subscribe streams document events from /ws until ctx is done. Each decoded
// event is passed to handle on the reading goroutine.
func (c *Client) Subscribe(ctx context.Context, handle func(workflow.Event)) error {
	tok := c.tokens.Token()
	if tok == "" {
		return errors.New("cannot subscribe without a session token")
	}

	wsURL, err := websocketURL(c.baseURL)
	if err != nil {
		return err
	}
	wsURL += "/ws?token=" + url.QueryEscape(tok)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to event stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("event stream closed: %w", err)
		}

		// The hub may batch several events into one frame, one per line.
		for _, line := range bytes.Split(msg, []byte{'\n'}) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var ev workflow.Event
			if err := json.Unmarshal(line, &ev); err != nil {
				c.log.Warn("dropping malformed event", zap.Error(err))
				continue
			}
			handle(ev)
		}
	}
}

func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	return strings.TrimRight(u.String(), "/"), nil
}
