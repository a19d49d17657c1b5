package channel

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dungeonsync/logging"
	"dungeonsync/protocol"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendQueue  = 64
)

// WSChannel 通过 WebSocket 连接中继进程的频道实现
type WSChannel struct {
	ws   *websocket.Conn
	self string
	send    chan []byte
	quit    chan struct{} // 请求关闭，写协程开始冲刷
	flushed chan struct{} // 写协程已退出
	done    chan struct{} // 连接已关闭
	once    sync.Once
	err     error

	mu       sync.Mutex
	handlers map[string]Handler
	acks     map[string]chan error
}

// Dial 连接中继：base 形如 ws://host:8080/ws，self 为本端玩家 ID
func Dial(ctx context.Context, base, self string) (*WSChannel, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("channel: parse %q: %w", base, err)
	}
	q := u.Query()
	q.Set("player", self)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrSubscribeFailed, u.Redacted(), err)
	}
	c := &WSChannel{
		ws:       ws,
		self:     self,
		send:     make(chan []byte, sendQueue),
		quit:     make(chan struct{}),
		flushed:  make(chan struct{}),
		done:     make(chan struct{}),
		handlers: make(map[string]Handler),
		acks:     make(map[string]chan error),
	}
	go c.writePump()
	go c.readPump()
	return c, nil
}

// Subscribe 发送订阅帧并等待中继确认；超时即失败
func (c *WSChannel) Subscribe(ctx context.Context, topic string, h Handler) error {
	if topic == "" {
		return fmt.Errorf("%w: %v", ErrSubscribeFailed, protocol.ErrEmptyTopic)
	}
	ack := make(chan error, 1)
	c.mu.Lock()
	c.handlers[topic] = h
	c.acks[topic] = ack
	c.mu.Unlock()

	b, _ := protocol.Envelope{Op: protocol.OpSubscribe, Topic: topic, From: c.self}.Encode()
	if !c.enqueue(b) {
		return fmt.Errorf("%w: send queue full", ErrSubscribeFailed)
	}
	select {
	case err := <-ack:
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSubscribeFailed, err)
		}
		return nil
	case <-c.done:
		return fmt.Errorf("%w: %v", ErrSubscribeFailed, ErrClosed)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrSubscribeFailed, ctx.Err())
	}
}

// Publish 非阻塞发布
func (c *WSChannel) Publish(topic string, event protocol.Event, payload any) error {
	env, err := protocol.NewEnvelope(topic, event, c.self, payload)
	if err != nil {
		return err
	}
	b, err := env.Encode()
	if err != nil {
		return err
	}
	select {
	case <-c.quit:
		return ErrClosed
	default:
	}
	if !c.enqueue(b) {
		return ErrDropped
	}
	return nil
}

// Close 先把已排队的帧写出（最多等 writeWait），再关闭连接
func (c *WSChannel) Close() error {
	c.once.Do(func() {
		close(c.quit)
		select {
		case <-c.flushed:
		case <-time.After(writeWait):
		}
		close(c.done)
		c.err = c.ws.Close()
	})
	return c.err
}

// enqueue 压入发送队列（非阻塞，满则丢弃）
func (c *WSChannel) enqueue(b []byte) bool {
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期 ping
func (c *WSChannel) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.flushed)
		_ = c.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			if !c.write(msg) {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.quit:
			c.flush()
			return
		}
	}
}

func (c *WSChannel) write(msg []byte) bool {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		logging.Log.Debugf("channel: write: %v", err)
		return false
	}
	return true
}

// flush 写完队列中剩余的帧，然后发送关闭帧
func (c *WSChannel) flush() {
	for {
		select {
		case msg := <-c.send:
			if !c.write(msg) {
				return
			}
		default:
			deadline := time.Now().Add(writeWait)
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}

// readPump 读取中继推送的帧并分发
func (c *WSChannel) readPump() {
	defer func() { _ = c.Close() }()
	c.ws.SetReadLimit(1 << 20) // 1MB
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.DecodeEnvelope(payload)
		if err != nil {
			logging.Log.Warnf("channel: %v", err)
			continue
		}
		c.dispatch(env)
	}
}

func (c *WSChannel) dispatch(env protocol.Envelope) {
	switch env.Op {
	case protocol.OpSubscribed, protocol.OpError:
		c.mu.Lock()
		ack, ok := c.acks[env.Topic]
		delete(c.acks, env.Topic)
		c.mu.Unlock()
		if ok {
			if env.Op == protocol.OpError {
				ack <- fmt.Errorf("relay: %s", env.Error)
			} else {
				ack <- nil
			}
		}
		return
	}
	if env.From == c.self {
		return
	}
	c.mu.Lock()
	h := c.handlers[env.Topic]
	c.mu.Unlock()
	if h != nil {
		h(env)
	}
}
