// Package channel 广播频道：按主题订阅、发布，至多一次投递
package channel

import (
	"context"
	"errors"

	"dungeonsync/protocol"
)

var (
	// ErrSubscribeFailed 订阅失败或超时，会话无法建立
	ErrSubscribeFailed = errors.New("channel: subscribe failed")
	// ErrDropped 发送队列已满，本帧消息被丢弃；调用方忽略即可
	ErrDropped = errors.New("channel: message dropped")
	// ErrClosed 频道已关闭
	ErrClosed = errors.New("channel: closed")
)

// Handler 入站事件回调。在频道的接收协程上调用，不得阻塞
type Handler func(protocol.Envelope)

// Channel 外部低延迟发布订阅传输
//
// 投递至多一次；同一发送者内尽力保序，跨发送者不保序；发送者不会收到自己的消息。
type Channel interface {
	Subscribe(ctx context.Context, topic string, h Handler) error
	Publish(topic string, event protocol.Event, payload any) error
	Close() error
}
