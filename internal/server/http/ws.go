package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/whosfree/internal/api"
	"github.com/and161185/whosfree/internal/chat"
	"github.com/and161185/whosfree/internal/convert"
	"github.com/and161185/whosfree/internal/errs"
	"github.com/and161185/whosfree/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 8 << 10
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Auth travels in a bearer token, never a cookie.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsClient pumps frames from the hub to one connection.
type wsClient struct {
	conn *websocket.Conn
	send chan api.Frame
	done chan struct{}
	once sync.Once
	log  *zap.Logger
}

func newWSClient(conn *websocket.Conn, log *zap.Logger) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan api.Frame, sendBufferSize),
		done: make(chan struct{}),
		log:  log,
	}
}

// Deliver queues env without blocking. A full buffer closes the client.
func (c *wsClient) Deliver(env chat.Envelope) bool {
	return c.push(convert.ToFrame(env))
}

func (c *wsClient) push(f api.Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- f:
		return true
	default:
		c.log.Warn("ws send buffer full, closing")
		c.close()
		return false
	}
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			// drain what is already queued, then say goodbye
			for {
				select {
				case f := <-c.send:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteJSON(f); err != nil {
						return
					}
				default:
					_ = c.conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(writeWait))
					return
				}
			}
		}
	}
}

// isDecodeError reports whether a ReadJSON failure left the connection usable.
func isDecodeError(err error) bool {
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	return errors.As(err, &syn) || errors.As(err, &typ)
}

func errorFrame(err error) api.Frame {
	msg := "internal error"
	if statusFor(err) != 0 {
		msg = err.Error()
	}
	return api.Frame{Type: chat.TypeError, Error: msg, At: time.Now().UTC()}
}

// Chat handles GET /ws?peer=<uuid>: a live subscription to the direct room with peer.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	peer, err := convert.ParseID("peer", r.URL.Query().Get("peer"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if peer == me {
		writeError(w, r, s.log, fmt.Errorf("%w: cannot chat with yourself", errs.ErrValidation))
		return
	}
	if _, err := s.auth.GetUser(r.Context(), peer); err != nil {
		writeError(w, r, s.log, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		s.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	log := s.log.With(zap.String("user", me.String()), zap.String("room", model.DirectRoom(me, peer)))
	c := newWSClient(conn, log)
	go c.writePump()
	defer c.close()

	ctx := r.Context()
	sess, err := s.messages.Join(ctx, me, peer, c)
	if err != nil {
		if statusFor(err) == 0 {
			log.Error("ws join failed", zap.Error(err))
		}
		c.push(errorFrame(err))
		return
	}
	defer sess.Leave()
	log.Debug("ws joined")

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f api.Frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("ws read", zap.Error(err))
			}
			if !isDecodeError(err) {
				return
			}
			c.push(errorFrame(fmt.Errorf("%w: malformed frame", errs.ErrValidation)))
			continue
		}
		switch f.Type {
		case api.FrameSend:
			_, err := s.messages.Send(ctx, model.SendMessage{
				SenderID:    me,
				RecipientID: peer,
				Content:     f.Content,
				Room:        sess.Room(),
			})
			if err != nil {
				if statusFor(err) == 0 {
					log.Error("ws send failed", zap.Error(err))
				}
				c.push(errorFrame(err))
			}
		default:
			c.push(errorFrame(fmt.Errorf("%w: unknown frame type %q", errs.ErrValidation, f.Type)))
		}
		select {
		case <-c.done:
			return
		default:
		}
	}
}
