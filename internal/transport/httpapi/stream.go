package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sdkbridge/internal/linkqueue"
	logx "sdkbridge/pkg/logx"
)

// Frame is one notification on the stream.
type Frame struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

const (
	frameDeepLink = "deeplink"

	// maxInboundBytes bounds client frames; the stream is server to client.
	maxInboundBytes = 512
)

// wsConsumer writes each link synchronously. A write error is returned to
// the queue, which keeps the link buffered for the next consumer.
type wsConsumer struct {
	conn    *websocket.Conn
	timeout time.Duration
	mu      sync.Mutex
}

func (c *wsConsumer) Deliver(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.conn.WriteJSON(Frame{Type: frameDeepLink, URL: url})
}

func (c *wsConsumer) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.timeout))
}

func (c *wsConsumer) close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(c.timeout))
}

// handleWebSocket attaches the connection as the stream consumer. Links
// buffered so far are sent before anything else. A newer subscriber
// replaces this one, which is then closed normally.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logx.Err(err))
		return
	}
	defer conn.Close()

	c := &wsConsumer{conn: conn, timeout: s.cfg.StreamWriteTimeout}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	pongWait := s.pingInterval() * 2
	conn.SetReadLimit(maxInboundBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// the read pump only services control frames; its exit means the peer is gone
	gone := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				gone <- err
				return
			}
		}
	}()

	sub := s.deps.Bridge.Listen(c)
	log := s.log.With(logx.String("request_id", RequestID(r.Context())), logx.String("stream", "websocket"))
	log.Info("stream subscriber connected", logx.String("remote", r.RemoteAddr))

	ticker := time.NewTicker(s.pingInterval())
	defer ticker.Stop()
	for {
		select {
		case <-sub.Done():
			c.close(websocket.CloseNormalClosure, "subscription ended")
			log.Info("stream subscriber ended")
			return
		case <-s.closing:
			sub.Release()
			c.close(websocket.CloseGoingAway, "server shutting down")
			return
		case err := <-gone:
			sub.Release()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Warn("stream subscriber lost", logx.Err(err))
			} else {
				log.Info("stream subscriber disconnected")
			}
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				sub.Release()
				log.Warn("stream ping failed", logx.Err(err))
				return
			}
		}
	}
}

func (s *Server) pingInterval() time.Duration {
	if s.cfg.PingInterval > 0 {
		return s.cfg.PingInterval
	}
	return 30 * time.Second
}

// sseConsumer writes each link as an SSE "deeplink" event.
type sseConsumer struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	timeout time.Duration
	mu      sync.Mutex
}

var _ linkqueue.Consumer = (*sseConsumer)(nil)

func (c *sseConsumer) Deliver(url string) error {
	b, err := json.Marshal(Frame{Type: frameDeepLink, URL: url})
	if err != nil {
		return err
	}
	return c.write(fmt.Sprintf("event: %s\ndata: %s\n\n", frameDeepLink, b))
}

func (c *sseConsumer) write(chunk string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.rc.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if _, err := fmt.Fprint(c.w, chunk); err != nil {
		return err
	}
	return c.rc.Flush()
}

// handleSSE is the Server-Sent Events variant of handleWebSocket.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, canFlush := w.(http.Flusher); !canFlush {
		fail(w, http.StatusInternalServerError, codeInternalError, "streaming not supported", "")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	c := &sseConsumer{w: w, rc: http.NewResponseController(w), timeout: s.cfg.StreamWriteTimeout}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	if err := c.write(": connected\n\n"); err != nil {
		return
	}

	sub := s.deps.Bridge.Listen(c)
	log := s.log.With(logx.String("request_id", RequestID(r.Context())), logx.String("stream", "sse"))
	log.Info("stream subscriber connected", logx.String("remote", r.RemoteAddr))

	ticker := time.NewTicker(s.pingInterval())
	defer ticker.Stop()
	for {
		select {
		case <-sub.Done():
			_ = c.write("event: end\ndata: {}\n\n")
			log.Info("stream subscriber ended")
			return
		case <-s.closing:
			sub.Release()
			return
		case <-r.Context().Done():
			sub.Release()
			log.Info("stream subscriber disconnected")
			return
		case <-ticker.C:
			if err := c.write(": ping\n\n"); err != nil {
				sub.Release()
				return
			}
		}
	}
}
