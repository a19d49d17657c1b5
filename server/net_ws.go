package server

import (
	"net/http"
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
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws     *websocket.Conn
	player PlayerID
	send   chan []byte
	done   chan struct{}
	once   sync.Once

	// 只在读协程中访问
	topics map[string]*roomSub
}

type roomSub struct {
	room *Room
	sub  *Subscriber
}

func NewClientConn(ws *websocket.Conn, player PlayerID) *ClientConn {
	return &ClientConn{
		ws:     ws,
		player: player,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		topics: make(map[string]*roomSub),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性，丢弃新消息（防止阻塞 Tick）
		return false
	}
}

// Close 关闭底层连接，写协程随之退出
func (c *ClientConn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump 读取客户端帧：订阅请求交给管理器，发布帧注入房间
func (c *ClientConn) readPump(m *RoomManager) {
	defer c.Close()
	// 读泵退出时，通知各房间在 Tick 线程中移除该订阅者
	defer func() {
		for _, rs := range c.topics {
			rs.room.RequestLeave(rs.sub)
		}
	}()
	c.ws.SetReadLimit(1 << 20) // 1MB
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		env, err := protocol.DecodeEnvelope(payload)
		if err != nil {
			c.reject("", err.Error())
			continue
		}
		switch env.Op {
		case protocol.OpSubscribe:
			c.subscribe(m, env.Topic)
		case protocol.OpPublish, "":
			c.publish(env)
		default:
			c.reject(env.Topic, "unsupported op "+string(env.Op))
		}
	}
}

func (c *ClientConn) subscribe(m *RoomManager, topic string) {
	if _, ok := c.topics[topic]; ok {
		ack, _ := protocol.Envelope{Op: protocol.OpSubscribed, Topic: topic}.Encode()
		c.Enqueue(ack)
		return
	}
	sub := &Subscriber{ID: c.player, Conn: c}
	room, err := m.Subscribe(topic, sub)
	if err != nil {
		c.reject(topic, err.Error())
		return
	}
	c.topics[topic] = &roomSub{room: room, sub: sub}
}

func (c *ClientConn) publish(env protocol.Envelope) {
	rs, ok := c.topics[env.Topic]
	if !ok {
		c.reject(env.Topic, "not subscribed")
		return
	}
	if !env.Event.Known() {
		c.reject(env.Topic, protocol.ErrUnknownEvent.Error()+": "+string(env.Event))
		return
	}
	// 发送者以连接身份为准
	env.Op = protocol.OpPublish
	env.From = string(c.player)
	raw, err := env.Encode()
	if err != nil {
		c.reject(env.Topic, err.Error())
		return
	}
	rs.room.OnPublish(Frame{From: c.player, Raw: raw})
}

func (c *ClientConn) reject(topic, msg string) {
	b, _ := protocol.Envelope{Op: protocol.OpError, Topic: topic, Error: msg}.Encode()
	c.Enqueue(b)
	logging.Log.Debugf("relay: reject %s on %q: %s", c.player, topic, msg)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：?player=alice，之后以订阅/发布帧通信
func (m *RoomManager) HandleWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		http.Error(w, "missing player query", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Log.Warnf("upgrade error: %v", err)
		return
	}

	client := NewClientConn(ws, PlayerID(playerID))
	go client.writePump()
	go client.readPump(m)
}
