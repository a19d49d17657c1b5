package directory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
)

// Store 内存实现，房间与玩家行随进程消失
type Store struct {
	mu      deadlock.RWMutex
	rooms   map[string]*Room
	byCode  map[string]string
	players map[string][]PlayerRow

	now func() time.Time
}

// NewStore 空目录
func NewStore() *Store {
	return &Store{
		rooms:   make(map[string]*Room),
		byCode:  make(map[string]string),
		players: make(map[string][]PlayerRow),
		now:     time.Now,
	}
}

var _ Directory = (*Store)(nil)

// CreateRoom 登记房间，房间码冲突时失败
func (s *Store) CreateRoom(_ context.Context, code, difficulty, hostID string) (string, error) {
	code = NormalizeCode(code)
	if code == "" || hostID == "" {
		return "", fmt.Errorf("%w: code and host are required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byCode[code]; ok {
		return "", fmt.Errorf("%w: %s", ErrDuplicateCode, code)
	}
	id := uuid.NewString()
	s.rooms[id] = &Room{
		ID:         id,
		Code:       code,
		Difficulty: difficulty,
		HostID:     hostID,
		Status:     StatusWaiting,
		CreatedAt:  s.now(),
	}
	s.byCode[code] = id
	return id, nil
}

// FindRoom 按房间码查找，找不到时 ok=false 且无错误
func (s *Store) FindRoom(_ context.Context, code string) (Room, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[NormalizeCode(code)]
	if !ok {
		return Room{}, false, nil
	}
	return *s.rooms[id], true, nil
}

// Rooms 全部房间，按创建时间排序
func (s *Store) Rooms() []Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b Room) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// AddPlayer 追加玩家行
func (s *Store) AddPlayer(_ context.Context, roomID string, p PlayerRow) error {
	if p.ID == "" {
		return fmt.Errorf("%w: player id is required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	for _, row := range s.players[roomID] {
		if row.ID == p.ID {
			return fmt.Errorf("%w: %s", ErrPlayerExists, p.ID)
		}
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = s.now()
	}
	s.players[roomID] = append(s.players[roomID], p)
	return nil
}

// ListPlayers 按加入顺序
func (s *Store) ListPlayers(_ context.Context, roomID string) ([]PlayerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.rooms[roomID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return slices.Clone(s.players[roomID]), nil
}

// RemovePlayer 删除玩家行；不存在的玩家不算错误
func (s *Store) RemovePlayer(_ context.Context, roomID, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	s.players[roomID] = slices.DeleteFunc(s.players[roomID], func(p PlayerRow) bool { return p.ID == playerID })
	return nil
}

// DeleteRoom 删除房间及其玩家行
func (s *Store) DeleteRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	delete(s.byCode, r.Code)
	delete(s.rooms, roomID)
	delete(s.players, roomID)
	return nil
}

// SetStatus 更新房间状态
func (s *Store) SetStatus(_ context.Context, roomID string, status Status) error {
	if status != StatusWaiting && status != StatusPlaying {
		return fmt.Errorf("%w: status %q", ErrInvalid, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	r.Status = status
	return nil
}
