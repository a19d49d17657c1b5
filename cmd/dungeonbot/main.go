// dungeonbot 无界面客户端：创建或加入房间，以随机游走的输入参与一局
package main

import (
	"context"
	"flag"
	"math"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"dungeonsync/channel"
	"dungeonsync/directory"
	"dungeonsync/game"
	"dungeonsync/logging"
	"dungeonsync/telemetry"
)

func main() {
	_ = godotenv.Load()

	var (
		relay      string
		code       string
		name       string
		difficulty string
		startAfter time.Duration
		logFile    string
	)
	flag.StringVar(&relay, "relay", envOr("DUNGEONSYNC_RELAY", "http://localhost:8080"), "relay base URL")
	flag.StringVar(&code, "code", "", "room code to join; empty creates a new room")
	flag.StringVar(&name, "name", "bot", "display name")
	flag.StringVar(&difficulty, "difficulty", "normal", "difficulty when creating: easy|normal|hard|nightmare")
	flag.DurationVar(&startAfter, "start-after", 5*time.Second, "host starts the game after this delay")
	flag.StringVar(&logFile, "log", "", "log file; empty logs to stderr only")
	flag.Parse()

	if err := logging.InitLogger(logging.Options{File: logFile, Level: zapcore.InfoLevel, Console: true}); err != nil {
		panic(err)
	}
	defer logging.SyncLogger()
	log := logging.Named("bot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "dungeonsync-bot")
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	playerID := uuid.NewString()
	ch, err := channel.Dial(ctx, wsURL(relay), playerID)
	if err != nil {
		log.Fatalf("relay: %v", err)
	}
	deps := game.Deps{
		Directory: directory.NewClient(relay, nil),
		Channel:   ch,
		Config:    game.DefaultConfig(),
		PlayerID:  playerID,
	}

	var sess *game.Session
	if code == "" {
		sess, err = game.Create(ctx, deps, name, difficulty)
	} else {
		sess, err = game.Join(ctx, deps, code, name)
	}
	if err != nil {
		_ = ch.Close()
		log.Fatalf("session: %v", err)
	}
	log.Infow("session ready", "code", sess.RoomCode(), "player", playerID, "host", sess.IsAuthority())

	if sess.IsAuthority() {
		time.AfterFunc(startAfter, func() {
			if err := sess.StartGame(ctx); err != nil {
				log.Warnf("start: %v", err)
			}
		})
	}
	go wander(ctx, sess)
	go report(ctx, sess)

	if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
		log.Errorf("run: %v", err)
	}
	leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sess.Leave(leaveCtx); err != nil {
		log.Warnf("leave: %v", err)
	}
}

// wander 每秒换一个方向，一直开火
func wander(ctx context.Context, sess *game.Session) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a := rng.Float64() * 2 * math.Pi
			sess.SetIntent(game.Intent{MoveX: math.Cos(a), MoveY: math.Sin(a), Aim: a, Fire: true})
		}
	}
}

func report(ctx context.Context, sess *game.Session) {
	log := logging.Named("bot")
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := sess.Snapshot()
			log.Infow("status",
				"floor", snap.Floor,
				"chamber", snap.Current,
				"health", snap.Player.Health,
				"monsters", len(snap.Monsters),
				"players", len(snap.Players),
				"hostGone", snap.HostGone,
				"dropped", snap.Dropped,
			)
		}
	}
}

// wsURL http://host:8080 → ws://host:8080/ws
func wsURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
