package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Op 中继连接上的帧类型
type Op string

const (
	OpSubscribe  Op = "subscribe"
	OpSubscribed Op = "subscribed"
	OpPublish    Op = "publish"
	OpError      Op = "error"
)

var (
	ErrEmptyTopic   = errors.New("protocol: empty topic")
	ErrUnknownEvent = errors.New("protocol: unknown event")
)

// Envelope 频道上的一帧。事件帧 Op 为空或 publish
type Envelope struct {
	Op      Op              `json:"op,omitempty"`
	Topic   string          `json:"topic"`
	Event   Event           `json:"event,omitempty"`
	From    string          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// NewEnvelope 编码载荷
func NewEnvelope(topic string, event Event, from string, payload any) (Envelope, error) {
	if topic == "" {
		return Envelope{}, ErrEmptyTopic
	}
	if !event.Known() {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("protocol: marshal %s: %w", event, err)
	}
	return Envelope{Op: OpPublish, Topic: topic, Event: event, From: from, Payload: raw}, nil
}

// Encode 整帧序列化
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode 解码载荷到 v
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("protocol: %s has no payload", e.Event)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("protocol: decode %s: %w", e.Event, err)
	}
	return nil
}

// DecodeEnvelope 从线上字节解出一帧
func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	if e.Topic == "" && e.Op != OpError {
		return Envelope{}, ErrEmptyTopic
	}
	return e, nil
}
