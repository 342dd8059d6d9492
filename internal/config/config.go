package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 录制器全量配置
type Config struct {
	Recorder RecorderConfig `mapstructure:"recorder"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// RecorderConfig 弹幕录制配置
type RecorderConfig struct {
	OutputDir         string        `mapstructure:"output_dir"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	DedupTTL          time.Duration `mapstructure:"dedup_ttl"`
	// WebSocketURL 弹幕推送地址模板，%s处填入房间ID
	WebSocketURL string `mapstructure:"websocket_url"`
	UserAgent    string `mapstructure:"user_agent"`
	Cookie       string `mapstructure:"cookie"`
}

// ServerConfig HTTP控制接口配置
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig 会话元数据归档配置，DSN为空时禁用
type StorageConfig struct {
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Recorder: RecorderConfig{
			OutputDir:         "downloads",
			HeartbeatInterval: 10 * time.Second,
			HandshakeTimeout:  10 * time.Second,
			WriteTimeout:      5 * time.Second,
			DedupTTL:          2 * time.Second,
			WebSocketURL:      "wss://webcast5-ws-web-lq.douyin.com/webcast/im/push/v2/?room_id=%s&compress=gzip",
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
		},
		Server: ServerConfig{
			Addr: ":6006",
		},
	}
}

// setDefaults 向viper注册默认值
func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("recorder.output_dir", def.Recorder.OutputDir)
	v.SetDefault("recorder.heartbeat_interval", def.Recorder.HeartbeatInterval)
	v.SetDefault("recorder.handshake_timeout", def.Recorder.HandshakeTimeout)
	v.SetDefault("recorder.write_timeout", def.Recorder.WriteTimeout)
	v.SetDefault("recorder.dedup_ttl", def.Recorder.DedupTTL)
	v.SetDefault("recorder.websocket_url", def.Recorder.WebSocketURL)
	v.SetDefault("recorder.user_agent", def.Recorder.UserAgent)
	v.SetDefault("recorder.cookie", "")
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("storage.postgres_dsn", "")
}

// Load 加载配置文件，path为空时仅使用默认值和环境变量
// 环境变量以BARRAGE_为前缀，如BARRAGE_RECORDER_OUTPUT_DIR
func Load(path string) (*Config, error) {
	cfg, _, err := loadWithViper(path)
	return cfg, err
}

func loadWithViper(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BARRAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, v, nil
}

// Validate 校验配置的基本约束
func (c *Config) Validate() error {
	if c.Recorder.OutputDir == "" {
		return fmt.Errorf("recorder.output_dir 不能为空")
	}
	if c.Recorder.HeartbeatInterval <= 0 {
		return fmt.Errorf("recorder.heartbeat_interval 必须为正值")
	}
	if c.Recorder.DedupTTL <= 0 {
		return fmt.Errorf("recorder.dedup_ttl 必须为正值")
	}
	if !strings.Contains(c.Recorder.WebSocketURL, "%s") {
		return fmt.Errorf("recorder.websocket_url 缺少房间ID占位符")
	}
	return nil
}
