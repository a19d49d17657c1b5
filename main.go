package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"dungeonsync/directory"
	"dungeonsync/logging"
	"dungeonsync/server"
	"dungeonsync/telemetry"
)

// 中继入口：WebSocket 广播频道 + /rooms 会话目录 + 管理与监控接口
func main() {
	// .env 不存在时忽略
	_ = godotenv.Load()

	var (
		addr    string
		logFile string
		tps     int
		debug   bool
	)
	flag.StringVar(&addr, "addr", envOr("DUNGEONSYNC_ADDR", ":8080"), "relay listen address, e.g. :8080")
	flag.StringVar(&logFile, "log", envOr("DUNGEONSYNC_LOG", "relay.log"), "log file (rotated)")
	flag.IntVar(&tps, "tps", server.TicksPerSecond, "relay fan-out ticks per second")
	flag.BoolVar(&debug, "debug", false, "debug logging")
	flag.Parse()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	if err := logging.InitLogger(logging.Options{File: logFile, Level: level, Console: true}); err != nil {
		panic(err)
	}
	defer logging.SyncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "dungeonsync-relay")
	if err != nil {
		logging.Log.Fatalf("telemetry: %v", err)
	}

	rm := server.GetRoomManager()
	rm.SetTickRate(tps)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", rm.HandleWS)
	server.NewDirectoryAPI(directory.NewStore()).Register(mux)
	// 管理与监控接口
	mux.HandleFunc("/admin/config", rm.HandleAdminConfig)
	mux.HandleFunc("/metrics", rm.HandleMetrics)
	mux.HandleFunc("GET /protocol/schema", server.HandleSchema)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logging.Log.Infof("dungeonsync relay listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	<-ctx.Done()
	logging.Log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	rm.Shutdown()
	_ = shutdownTracing(shutdownCtx)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
