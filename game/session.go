package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"dungeonsync/channel"
	"dungeonsync/directory"
	"dungeonsync/dungeon"
	"dungeonsync/logging"
	"dungeonsync/protocol"
	"dungeonsync/replication"
	"dungeonsync/sim"
	"dungeonsync/telemetry"
)

var (
	// ErrNotAuthority 只有房主能执行的操作
	ErrNotAuthority = errors.New("game: only the host may do this")
	// ErrNotStarted 尚未开局
	ErrNotStarted = errors.New("game: session not started")
	// ErrClosed 会话已离开
	ErrClosed = errors.New("game: session closed")
)

// Clock 会话时间源，测试中可替换
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Deps 会话的外部依赖
type Deps struct {
	Directory directory.Directory
	Channel   channel.Channel
	Config    Config
	Clock     Clock
	Tracer    trace.Tracer
	// Rand 房间码、种子与 AI 的随机源；nil 时按时间播种
	Rand *rand.Rand
	// PlayerID 为空时生成 uuid
	PlayerID string
}

// ChatLine 一条聊天或系统消息
type ChatLine struct {
	PlayerID string
	Name     string
	Text     string
	At       int64
}

// Session 一个客户端在一局联机中的全部状态
//
// 入站事件先进入缓冲通道，在 tick 开头统一处理；
// 拓扑、复制存储与实时列表只在持有 mu 时被改动。
type Session struct {
	cfg    Config
	dir    directory.Directory
	ch     channel.Channel
	clock  Clock
	tracer trace.Tracer
	log    *zap.SugaredLogger
	rng    *rand.Rand
	epoch  time.Time

	roomID string
	code   string
	topic  string
	role   replication.Role

	mu       sync.Mutex
	self     Player
	intent   Intent
	diff     Difficulty
	floor    int
	seed     dungeon.Seed
	started  bool
	closed   bool
	hostGone bool

	topo         *dungeon.Topology
	current      dungeon.ChamberKey
	live         *sim.ChamberState
	doorsBlocked bool
	indicators   []sim.SpawnIndicator
	// spawnAt 权威端提示转为怪物的时刻；0 表示没有待生成
	spawnAt int64
	// syncAt 跟随端发送同步请求的时刻；0 表示没有待发送
	syncAt  int64
	spawned map[dungeon.ChamberKey]bool
	remotes map[string]*sim.RemotePlayer
	chat    []ChatLine

	limiter *replication.RateLimiter
	auth    *replication.Authority
	cache   *replication.RemoteCache

	inbound chan protocol.Envelope
	dropped atomic.Int64
	done    chan struct{}
}

func newSession(deps Deps, name string) *Session {
	cfg := deps.Config.withDefaults()
	clock := deps.Clock
	if clock == nil {
		clock = systemClock{}
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer("game")
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(clock.Now().UnixNano()))
	}
	id := deps.PlayerID
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		cfg:     cfg,
		dir:     deps.Directory,
		ch:      deps.Channel,
		clock:   clock,
		tracer:  tracer,
		log:     logging.Named("game").With("player", id),
		rng:     rng,
		epoch:   clock.Now(),
		self:    Player{ID: id, Name: name},
		diff:    LookupDifficulty(""),
		live:    sim.NewChamberState(),
		spawned: make(map[dungeon.ChamberKey]bool),
		remotes: make(map[string]*sim.RemotePlayer),
		limiter: replication.NewRateLimiter(cfg.Intervals),
		cache:   replication.NewRemoteCache(),
		inbound: make(chan protocol.Envelope, cfg.InboundQueue),
		done:    make(chan struct{}),
	}
	s.resetPlayer()
	return s
}

// Topic 会话主题名
func Topic(roomID string) string {
	return "room:" + roomID
}

func (s *Session) bind(roomID, code, hostID string) {
	s.roomID, s.code = roomID, code
	s.topic = Topic(roomID)
	s.role = replication.Role{HostID: hostID, SelfID: s.self.ID}
	s.auth = replication.NewAuthority(s.topic, s.ch, s.limiter, s.rng, s.spawnMonster)
}

func (s *Session) subscribe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SubscribeTimeout)
	defer cancel()
	if err := s.ch.Subscribe(ctx, s.topic, s.OnEvent); err != nil {
		return fmt.Errorf("game: subscribe %s: %w", s.topic, err)
	}
	return nil
}

// Create 以房主身份建房：登记房间与玩家行，再订阅会话主题
func Create(ctx context.Context, deps Deps, name, difficulty string) (*Session, error) {
	s := newSession(deps, name)
	ctx, span := s.tracer.Start(ctx, "game.create")
	defer span.End()

	code := directory.NewRoomCode(s.rng)
	roomID, err := s.dir.CreateRoom(ctx, code, difficulty, s.self.ID)
	if err != nil {
		return nil, err
	}
	s.bind(roomID, code, s.self.ID)
	s.diff = LookupDifficulty(difficulty)
	if err := s.dir.AddPlayer(ctx, roomID, directory.PlayerRow{ID: s.self.ID, Name: name, IsHost: true}); err != nil {
		_ = s.dir.DeleteRoom(ctx, roomID)
		return nil, err
	}
	if err := s.subscribe(ctx); err != nil {
		_ = s.dir.DeleteRoom(ctx, roomID)
		return nil, err
	}
	span.SetAttributes(attribute.String("room.code", code))
	s.log.Infow("room created", "room", roomID, "code", code, "difficulty", s.diff.Name)
	return s, nil
}

// Join 按房间码加入
func Join(ctx context.Context, deps Deps, code, name string) (*Session, error) {
	s := newSession(deps, name)
	ctx, span := s.tracer.Start(ctx, "game.join")
	defer span.End()

	code = directory.NormalizeCode(code)
	room, ok, err := s.dir.FindRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, directory.ErrRoomNotFound
	}
	s.bind(room.ID, room.Code, room.HostID)
	s.diff = LookupDifficulty(room.Difficulty)
	if err := s.dir.AddPlayer(ctx, room.ID, directory.PlayerRow{ID: s.self.ID, Name: name}); err != nil {
		return nil, err
	}
	if err := s.subscribe(ctx); err != nil {
		_ = s.dir.RemovePlayer(ctx, room.ID, s.self.ID)
		return nil, err
	}
	s.publish(protocol.PlayerJoined, protocol.PlayerJoinedPayload{PlayerID: s.self.ID, Name: name})
	s.log.Infow("room joined", "room", room.ID, "code", room.Code, "host", room.HostID)
	return s, nil
}

// StartGame 房主开局：标记房间、广播种子并在本地生成第一层
func (s *Session) StartGame(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.role.IsAuthority() {
		return ErrNotAuthority
	}
	if err := s.dir.SetStatus(ctx, s.roomID, directory.StatusPlaying); err != nil {
		return err
	}
	seed := dungeon.Seed(s.rng.Int31())
	s.announceFloor(seed, 1)
	s.startFloor(ctx, seed, 1)
	return nil
}

// Leave 离开会话；房主离开会删除房间。错误合并返回，本地状态无论如何都会清空
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	s.publish(protocol.PlayerLeft, protocol.PlayerLeftPayload{PlayerID: s.self.ID})
	var errs []error
	if err := s.ch.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.dir.RemovePlayer(ctx, s.roomID, s.self.ID); err != nil {
		errs = append(errs, err)
	}
	if s.role.IsAuthority() {
		if err := s.dir.DeleteRoom(ctx, s.roomID); err != nil {
			errs = append(errs, err)
		}
	}
	s.auth.Reset()
	s.cache.Reset()
	s.live = sim.NewChamberState()
	s.indicators = nil
	clear(s.remotes)
	clear(s.spawned)
	s.started = false
	s.log.Infow("left room", "room", s.roomID)
	return errors.Join(errs...)
}

// OnEvent 频道回调：只入队，不阻塞接收协程；队列满时丢弃
func (s *Session) OnEvent(env protocol.Envelope) {
	select {
	case s.inbound <- env:
	default:
		s.dropped.Add(1)
		s.log.Debugw("inbound queue full, event dropped", "event", env.Event, "from", env.From)
	}
}

// SetIntent 更新输入意图，下一次 tick 生效
func (s *Session) SetIntent(in Intent) {
	s.mu.Lock()
	s.intent = in
	s.mu.Unlock()
}

// Say 发送聊天
func (s *Session) Say(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(protocol.ChatMessage, protocol.ChatMessagePayload{PlayerID: s.self.ID, Name: s.self.Name, Text: text})
	s.appendChat(ChatLine{PlayerID: s.self.ID, Name: s.self.Name, Text: text, At: s.now()})
}

// Run 按 TickRate 推进会话，直到 ctx 结束或离开
func (s *Session) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(s.cfg.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := s.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-ticker.C:
			now := s.clock.Now()
			dt := now.Sub(last).Seconds() * FrameRate
			last = now
			s.mu.Lock()
			in := s.intent
			s.mu.Unlock()
			start := time.Now()
			s.Tick(ctx, dt, in)
			if elapsed := time.Since(start); elapsed > interval {
				s.log.Warnw("slow tick", "elapsed", elapsed)
			}
		}
	}
}

// RoomCode 房间码
func (s *Session) RoomCode() string { return s.code }

// RoomID 目录中的房间 ID
func (s *Session) RoomID() string { return s.roomID }

// PlayerID 本端玩家 ID
func (s *Session) PlayerID() string { return s.self.ID }

// IsAuthority 本端是否为权威端
func (s *Session) IsAuthority() bool { return s.role.IsAuthority() }

// Dropped 因入站队列满而丢弃的事件数
func (s *Session) Dropped() int64 { return s.dropped.Load() }

// now 会话单调毫秒
func (s *Session) now() int64 {
	return s.clock.Now().Sub(s.epoch).Milliseconds()
}

// publish 至多一次投递，失败只记日志
func (s *Session) publish(event protocol.Event, payload any) {
	if err := s.ch.Publish(s.topic, event, payload); err != nil {
		s.log.Debugw("publish failed", "event", event, "error", err)
	}
}

func (s *Session) appendChat(line ChatLine) {
	s.chat = append(s.chat, line)
	if over := len(s.chat) - s.cfg.ChatHistory; over > 0 {
		s.chat = append(s.chat[:0], s.chat[over:]...)
	}
}

func (s *Session) resetPlayer() {
	s.self.MaxHealth = 100
	if s.diff.OneHit {
		s.self.MaxHealth = 1
	}
	s.self.Health = s.self.MaxHealth
	s.self.Weapon = "pistol"
	s.self.Coins = 0
	s.self.HasKey = false
}

// Snapshot 渲染端读取的只读副本
type Snapshot struct {
	RoomID, RoomCode string
	Authority        bool
	Started          bool
	HostGone         bool
	Difficulty       string
	Floor            int
	Seed             dungeon.Seed
	Layout           *dungeon.Layout
	Current          dungeon.ChamberKey
	DoorsBlocked     bool
	Player           Player
	Players          []sim.RemotePlayer
	Monsters         []sim.Monster
	Projectiles      []sim.Projectile
	Items            []sim.Item
	Indicators       []sim.SpawnIndicator
	Chat             []ChatLine
	Dropped          int64
}

// Snapshot 复制当前状态，调用方可以随意修改返回值
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		RoomID:       s.roomID,
		RoomCode:     s.code,
		Authority:    s.role.IsAuthority(),
		Started:      s.started,
		HostGone:     s.hostGone,
		Difficulty:   s.diff.Name,
		Floor:        s.floor,
		Seed:         s.seed,
		Current:      s.current,
		DoorsBlocked: s.doorsBlocked,
		Player:       s.self,
		Projectiles:  append([]sim.Projectile(nil), s.live.Projectiles...),
		Items:        append([]sim.Item(nil), s.live.Items...),
		Indicators:   append([]sim.SpawnIndicator(nil), s.indicators...),
		Chat:         append([]ChatLine(nil), s.chat...),
		Dropped:      s.dropped.Load(),
	}
	if s.topo != nil {
		snap.Layout = s.topo.Layout.Clone()
	}
	for _, m := range s.live.Monsters {
		cp := *m
		cp.Master = nil
		snap.Monsters = append(snap.Monsters, cp)
	}
	for _, p := range s.remotes {
		snap.Players = append(snap.Players, *p)
	}
	sort.Slice(snap.Players, func(i, j int) bool { return snap.Players[i].ID < snap.Players[j].ID })
	return snap
}
