package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"LiveBarrageRecorder/internal/config"
	"LiveBarrageRecorder/internal/httpserver"
	"LiveBarrageRecorder/internal/logger"
	"LiveBarrageRecorder/internal/registry"
	"LiveBarrageRecorder/internal/storage"
)

func main() {
	var (
		mode       = flag.String("mode", "serve", "运行模式: serve, record")
		configPath = flag.String("config", "", "配置文件路径")
		watch      = flag.Bool("watch", false, "监控配置文件变更并热加载")
		addr       = flag.String("addr", "", "HTTP监听地址（覆盖配置）")
		roomURL    = flag.String("url", "", "直播间URL（record模式）")
		platform   = flag.String("platform", registry.PlatformDouyin, "直播平台（record模式）")
		outputDir  = flag.String("output", "", "输出目录（覆盖配置）")
	)
	flag.Parse()

	// 先加载.env，再由viper读取环境变量
	godotenv.Load()
	logger.InitLogger()

	manager := config.NewManager(
		config.WithConfigPath(*configPath),
		config.WithWatchEnabled(*watch),
	)
	cfg, err := manager.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *outputDir != "" {
		cfg.Recorder.OutputDir = *outputDir
	}

	switch *mode {
	case "serve":
		runServe(cfg)
	case "record":
		runRecord(cfg, *roomURL, *platform)
	default:
		fmt.Printf("未知模式: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
}

// newStore 按配置创建可选的会话归档，未配置DSN时返回nil
func newStore(cfg *config.Config) *storage.SessionStore {
	if cfg.Storage.PostgresDSN == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := storage.Connect(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		log.Printf("会话归档不可用: %v", err)
		return nil
	}
	return store
}

// runServe 运行HTTP控制接口守护进程
func runServe(cfg *config.Config) {
	store := newStore(cfg)
	if store != nil {
		defer store.Close()
	}

	reg := registry.New(&cfg.Recorder, store)
	api := httpserver.NewAPIServer(cfg.Server.Addr, reg, store, cfg.Recorder.OutputDir)

	if err := api.Start(); err != nil {
		log.Fatalf("启动HTTP服务失败: %v", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Printf("正在关闭...")
	reg.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := api.Shutdown(ctx); err != nil {
		log.Printf("HTTP服务关闭错误: %v", err)
	}
}

// runRecord 一次性录制单个直播间，收到信号后停止
func runRecord(cfg *config.Config, roomURL, platform string) {
	if roomURL == "" {
		log.Fatalf("record模式需要 -url 参数")
	}

	store := newStore(cfg)
	if store != nil {
		defer store.Close()
	}

	reg := registry.New(&cfg.Recorder, store)
	sessionID := uuid.NewString()

	if !reg.StartSession(sessionID, roomURL, platform, cfg.Recorder.OutputDir) {
		log.Fatalf("启动录制失败: %s", roomURL)
	}

	path, _ := reg.TranscriptPath(sessionID)
	fmt.Printf("录制中: %s\n文件: %s\n按Ctrl+C停止\n", roomURL, path)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	reg.StopSession(sessionID)
	fmt.Println("录制已停止")
}
