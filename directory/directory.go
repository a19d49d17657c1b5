// Package directory 会话目录：按房间码登记房间与玩家行
package directory

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
)

var (
	ErrRoomNotFound  = errors.New("directory: room not found")
	ErrDuplicateCode = errors.New("directory: room code already in use")
	ErrPlayerExists  = errors.New("directory: player already in room")
	ErrInvalid       = errors.New("directory: invalid request")
)

// Status 房间状态
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
)

// Room 房间行
type Room struct {
	ID         string    `json:"id"`
	Code       string    `json:"roomCode"`
	Difficulty string    `json:"difficulty"`
	HostID     string    `json:"hostId"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PlayerRow 玩家行
type PlayerRow struct {
	ID       string    `json:"playerId"`
	Name     string    `json:"playerName"`
	IsHost   bool      `json:"isHost,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Directory 外部房间/玩家登记服务。错误直接返回，不自动重试
type Directory interface {
	CreateRoom(ctx context.Context, code, difficulty, hostID string) (string, error)
	FindRoom(ctx context.Context, code string) (Room, bool, error)
	AddPlayer(ctx context.Context, roomID string, p PlayerRow) error
	ListPlayers(ctx context.Context, roomID string) ([]PlayerRow, error)
	RemovePlayer(ctx context.Context, roomID, playerID string) error
	DeleteRoom(ctx context.Context, roomID string) error
	SetStatus(ctx context.Context, roomID string, status Status) error
}

// CodeAlphabet 房间码字符集，去掉了易混淆的 I O 0 1
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength 房间码长度
const CodeLength = 6

// NewRoomCode 随机房间码
func NewRoomCode(rng *rand.Rand) string {
	var b strings.Builder
	b.Grow(CodeLength)
	for range CodeLength {
		b.WriteByte(CodeAlphabet[rng.Intn(len(CodeAlphabet))])
	}
	return b.String()
}

// NormalizeCode 用户输入的房间码统一大写、去空白
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
