// Package game 一个客户端的联机会话：拓扑、复制与本地玩家在同一个 tick 协程上推进
package game

import (
	"time"

	"dungeonsync/replication"
)

const (
	// TicksPerSecond 会话推进频率
	TicksPerSecond = 20
	// FrameRate dt 的单位：60Hz 帧
	FrameRate = 60.0

	// BossFloorEvery 每隔几层是 Boss 层
	BossFloorEvery = 5
)

// Config 会话参数
type Config struct {
	TickRate int
	// InboundQueue 入站事件缓冲，满了丢弃最新的
	InboundQueue int
	// ChatHistory 聊天记录上限
	ChatHistory int
	// SubscribeTimeout 订阅等待上限，超时即会话建立失败
	SubscribeTimeout time.Duration
	// SyncRequestDelay 跟随端进房后延迟多久请求快照
	SyncRequestDelay time.Duration
	// SpawnDelay 权威端提示出现到怪物落地的间隔
	SpawnDelay time.Duration
	// FireCooldown 本地开火间隔
	FireCooldown time.Duration
	PlayerSpeed  float64
	PlayerRadius float64
	Intervals    map[replication.Kind]int64
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		TickRate:         TicksPerSecond,
		InboundQueue:     512,
		ChatHistory:      50,
		SubscribeTimeout: 5 * time.Second,
		SyncRequestDelay: 200 * time.Millisecond,
		SpawnDelay:       time.Second,
		FireCooldown:     250 * time.Millisecond,
		PlayerSpeed:      4,
		PlayerRadius:     15,
		Intervals:        replication.DefaultIntervals,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TickRate <= 0 {
		c.TickRate = d.TickRate
	}
	if c.InboundQueue <= 0 {
		c.InboundQueue = d.InboundQueue
	}
	if c.ChatHistory <= 0 {
		c.ChatHistory = d.ChatHistory
	}
	if c.SubscribeTimeout <= 0 {
		c.SubscribeTimeout = d.SubscribeTimeout
	}
	if c.SyncRequestDelay <= 0 {
		c.SyncRequestDelay = d.SyncRequestDelay
	}
	if c.SpawnDelay <= 0 {
		c.SpawnDelay = d.SpawnDelay
	}
	if c.FireCooldown <= 0 {
		c.FireCooldown = d.FireCooldown
	}
	if c.PlayerSpeed <= 0 {
		c.PlayerSpeed = d.PlayerSpeed
	}
	if c.PlayerRadius <= 0 {
		c.PlayerRadius = d.PlayerRadius
	}
	if c.Intervals == nil {
		c.Intervals = d.Intervals
	}
	return c
}

// Difficulty 难度修正
type Difficulty struct {
	Name            string
	EnemyHealthMult float64
	EnemyCountBonus int
	// OneHit 玩家只有 1 点生命
	OneHit bool
}

var difficulties = map[string]Difficulty{
	"easy":      {Name: "easy", EnemyHealthMult: 0.7},
	"normal":    {Name: "normal", EnemyHealthMult: 1},
	"hard":      {Name: "hard", EnemyHealthMult: 1.5, EnemyCountBonus: 1},
	"nightmare": {Name: "nightmare", EnemyHealthMult: 2, EnemyCountBonus: 2, OneHit: true},
}

// LookupDifficulty 未知名字按 normal 处理
func LookupDifficulty(name string) Difficulty {
	if d, ok := difficulties[name]; ok {
		return d
	}
	return difficulties["normal"]
}

// IsBossFloor 第 5、10、15… 层
func IsBossFloor(floor int) bool {
	return floor > 0 && floor%BossFloorEvery == 0
}
