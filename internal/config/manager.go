package config

import (
	"log"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Manager 配置管理器，可选地监控配置文件变更并热加载
type Manager struct {
	mu           sync.RWMutex
	cfg          *Config
	v            *viper.Viper
	path         string
	watchEnabled bool
}

// ManagerOption 配置管理器选项
type ManagerOption func(*Manager)

// WithConfigPath 设置配置文件路径
func WithConfigPath(path string) ManagerOption {
	return func(m *Manager) {
		m.path = path
	}
}

// WithWatchEnabled 启用配置文件监控
func WithWatchEnabled(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.watchEnabled = enabled
	}
}

// NewManager 创建配置管理器
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load 加载配置（幂等，已加载时直接返回）
func (m *Manager) Load() (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg != nil {
		return m.cfg, nil
	}

	cfg, v, err := loadWithViper(m.path)
	if err != nil {
		return nil, err
	}

	m.cfg = cfg
	m.v = v

	if m.watchEnabled && m.path != "" {
		m.watchLocked()
	}

	return cfg, nil
}

// Get 获取当前配置，未加载时自动加载
func (m *Manager) Get() (*Config, error) {
	m.mu.RLock()
	if m.cfg != nil {
		defer m.mu.RUnlock()
		return m.cfg, nil
	}
	m.mu.RUnlock()

	return m.Load()
}

// watchLocked 启动文件变更监控，调用方持锁
func (m *Manager) watchLocked() {
	m.v.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("配置文件变更: %s", e.Name)

		cfg := &Config{}
		if err := m.v.Unmarshal(cfg); err != nil {
			log.Printf("热加载配置失败: %v", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			log.Printf("热加载配置无效: %v", err)
			return
		}

		m.mu.Lock()
		m.cfg = cfg
		m.mu.Unlock()
	})
	m.v.WatchConfig()
}
