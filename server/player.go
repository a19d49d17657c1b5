package server

// PlayerID 玩家唯一标识（连接时由 ?player= 指定）
type PlayerID string

// Sender 订阅者的发送端，Enqueue 非阻塞，返回 false 表示队列已满被丢弃
type Sender interface {
	Enqueue(b []byte) bool
}

// Subscriber 房间内的一个订阅者
type Subscriber struct {
	ID   PlayerID
	Conn Sender
}

// Frame 一条待转发的发布帧，Raw 已写入真实发送者
type Frame struct {
	From PlayerID
	Raw  []byte
	Due  int64 // 模拟延迟后的投递时间（unix ms），0 表示立即
}
