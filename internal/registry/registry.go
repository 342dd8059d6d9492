// Package registry 管理弹幕录制会话的生命周期。
//
// 一个会话对应一条连接和一个append-only的转写文件。id到(连接,文件)的
// 映射是唯一的可变共享状态，由单把粗粒度锁保护，锁只在map操作和单次
// 文件追加期间持有。
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"LiveBarrageRecorder/internal/config"
	"LiveBarrageRecorder/internal/dedup"
	"LiveBarrageRecorder/internal/dispatch"
	"LiveBarrageRecorder/internal/event"
	"LiveBarrageRecorder/internal/storage"
	"LiveBarrageRecorder/internal/wsclient"
)

const PlatformDouyin = "douyin"

var (
	ErrUnsupportedPlatform  = errors.New("unsupported platform")
	ErrUnresolvedRoomID     = errors.New("cannot resolve room id from url")
	ErrShortLinkUnsupported = errors.New("shortened link is not supported")
)

// Session 一次录制实例
type Session struct {
	ID             string
	RoomID         string
	TranscriptPath string
	Conn           *wsclient.Client
	CreatedAt      time.Time
}

// Registry 会话注册表
// 由应用外壳在启动时构造并持有，不是进程级单例
type Registry struct {
	cfg   *config.RecorderConfig
	store *storage.SessionStore // 可选的元数据归档，nil时禁用

	mu       sync.Mutex
	sessions map[string]*Session
}

// New 创建会话注册表，store为nil时不做元数据归档
func New(cfg *config.RecorderConfig, store *storage.SessionStore) *Registry {
	return &Registry{
		cfg:      cfg,
		store:    store,
		sessions: make(map[string]*Session),
	}
}

// StartSession 开始一次弹幕录制
// 平台不支持、房间ID无法提取或文件创建失败时返回false且不留下任何注册状态；
// 连接在独立goroutine上异步建立，连接失败以[系统]行报告并不影响返回值
func (r *Registry) StartSession(sessionID, roomURL, platform, outputDir string) bool {
	if platform != PlatformDouyin {
		log.Printf("弹幕录制暂不支持平台: %s", platform)
		return false
	}

	roomID, err := ExtractRoomID(roomURL)
	if err != nil {
		log.Printf("无法从URL提取直播间ID: %s: %v", roomURL, err)
		return false
	}

	if outputDir == "" {
		outputDir = r.cfg.OutputDir
	}

	transcriptPath, err := createTranscriptFile(sessionID, outputDir)
	if err != nil {
		log.Printf("创建弹幕文件失败: %v", err)
		return false
	}

	deduper := dedup.New(r.cfg.DedupTTL)
	dispatcher := dispatch.New(r.buildHandlers(sessionID), deduper)

	clientConfig := wsclient.DefaultClientConfig(fmt.Sprintf(r.cfg.WebSocketURL, roomID))
	clientConfig.HeartbeatInterval = r.cfg.HeartbeatInterval
	clientConfig.HandshakeTimeout = r.cfg.HandshakeTimeout
	clientConfig.WriteTimeout = r.cfg.WriteTimeout
	clientConfig.UserAgent = r.cfg.UserAgent
	clientConfig.Cookie = r.cfg.Cookie

	session := &Session{
		ID:             sessionID,
		RoomID:         roomID,
		TranscriptPath: transcriptPath,
		Conn:           wsclient.New(clientConfig, dispatcher),
		CreatedAt:      time.Now(),
	}

	r.mu.Lock()
	if _, exists := r.sessions[sessionID]; exists {
		r.mu.Unlock()
		os.Remove(transcriptPath)
		log.Printf("会话已存在: %s", sessionID)
		return false
	}
	r.sessions[sessionID] = session
	r.mu.Unlock()

	// 连接在独立goroutine上建立，接收循环由客户端自行启动
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.HandshakeTimeout)
		defer cancel()

		if err := session.Conn.Start(ctx); err != nil {
			log.Printf("弹幕连接失败 session=%s: %v", sessionID, err)
			r.AppendLine(sessionID, FormatDiagnostic(fmt.Sprintf("[弹幕] 连接失败: %v", err)))
			return
		}
		r.AppendLine(sessionID, FormatDiagnostic("[弹幕] 连接已启动，等待消息..."))
	}()

	if r.store != nil {
		go func() {
			if err := r.store.RecordStart(context.Background(), sessionID, roomID, transcriptPath, session.CreatedAt); err != nil {
				log.Printf("归档会话开始失败 session=%s: %v", sessionID, err)
			}
		}()
	}

	log.Printf("开始弹幕录制: %s, 文件: %s", sessionID, transcriptPath)
	return true
}

// StopSession 停止一次弹幕录制，id未注册时返回false
func (r *Registry) StopSession(sessionID string) bool {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	if err := session.Conn.Stop(); err != nil {
		log.Printf("关闭弹幕连接失败 session=%s: %v", sessionID, err)
	}

	if r.store != nil {
		go func() {
			if err := r.store.RecordStop(context.Background(), sessionID, time.Now()); err != nil {
				log.Printf("归档会话结束失败 session=%s: %v", sessionID, err)
			}
		}()
	}

	log.Printf("停止弹幕录制: %s", sessionID)
	return true
}

// StopAll 停止所有活跃会话（应用退出时调用）
func (r *Registry) StopAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.StopSession(id)
	}
}

// IsActive 检查会话是否正在录制
func (r *Registry) IsActive(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// TranscriptPath 获取会话的转写文件路径
func (r *Registry) TranscriptPath(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}
	return session.TranscriptPath, true
}

// ActiveSessions 返回所有活跃会话id
func (r *Registry) ActiveSessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// AppendLine 向会话的转写文件追加一行，格式为"[HH:MM:SS] 内容"
// 未知的会话id静默忽略（会话已停止）；写入失败记录日志后吞掉，
// 会话继续运行，后续写入仍可能成功
func (r *Registry) AppendLine(sessionID, text string) {
	if text == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return
	}

	f, err := os.OpenFile(session.TranscriptPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("写入弹幕文件失败 session=%s: %v", sessionID, err)
		return
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("15:04:05"), text)
	if _, err := f.WriteString(line); err != nil {
		log.Printf("写入弹幕文件失败 session=%s: %v", sessionID, err)
	}
}

// buildHandlers 构造会话的类型处理器能力表，所有处理器汇入AppendLine
func (r *Registry) buildHandlers(sessionID string) dispatch.Handlers {
	return dispatch.Handlers{
		OnChat: func(ev *event.ChatEvent) {
			r.AppendLine(sessionID, FormatChat(ev))
		},
		OnGift: func(ev *event.GiftEvent) {
			r.AppendLine(sessionID, FormatGift(ev))
		},
		OnMember: func(ev *event.MemberEvent) {
			r.AppendLine(sessionID, FormatMember(ev))
		},
		OnLike: func(ev *event.LikeEvent) {
			r.AppendLine(sessionID, FormatLike(ev))
		},
		OnSocial: func(ev *event.SocialEvent) {
			r.AppendLine(sessionID, FormatSocial(ev))
		},
		OnEmojiChat: func(ev *event.EmojiChatEvent) {
			r.AppendLine(sessionID, FormatEmojiChat(ev))
		},
		OnRoomUserSeq: func(ev *event.RoomUserSeqEvent) {
			r.AppendLine(sessionID, FormatRoomUserSeq(ev))
		},
		OnRoomStats: func(ev *event.RoomStatsEvent) {
			r.AppendLine(sessionID, FormatRoomStats(ev))
		},
		OnControl: func(ev *event.ControlEvent) {
			r.AppendLine(sessionID, FormatControl(ev))
		},
		OnProductChange: func(ev *event.ProductChangeEvent) {
			r.AppendLine(sessionID, FormatProductChange(ev))
		},
		OnLiveShopping: func(ev *event.LiveShoppingEvent) {
			for _, line := range FormatLiveShopping(ev) {
				r.AppendLine(sessionID, line)
			}
		},
		OnEcomGeneral: func(ev *event.EcomGeneralEvent) {
			for _, line := range FormatEcomGeneral(ev) {
				r.AppendLine(sessionID, line)
			}
		},
		OnDiagnostic: func(text string) {
			r.AppendLine(sessionID, FormatDiagnostic(text))
		},
	}
}

// ExtractRoomID 从直播间URL提取房间ID
// 仅支持直链形式（取最后一个'/'之后、'?'之前的部分）；
// 短链需要额外解析，明确拒绝而不是尝试展开
func ExtractRoomID(roomURL string) (string, error) {
	switch {
	case strings.Contains(roomURL, "live.douyin.com"):
		idx := strings.LastIndex(roomURL, "/")
		if idx < 0 {
			return "", ErrUnresolvedRoomID
		}
		id := roomURL[idx+1:]
		if q := strings.Index(id, "?"); q >= 0 {
			id = id[:q]
		}
		if id == "" {
			return "", ErrUnresolvedRoomID
		}
		return id, nil
	case strings.Contains(roomURL, "v.douyin.com"):
		log.Printf("短链接需要解析，暂不支持: %s", roomURL)
		return "", ErrShortLinkUnsupported
	default:
		return "", ErrUnresolvedRoomID
	}
}

// createTranscriptFile 创建转写文件并写入固定头部
func createTranscriptFile(sessionID, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	now := time.Now()
	filename := fmt.Sprintf("barrage_%s_%s.txt", sessionID, now.Format("20060102_150405"))
	path := filepath.Join(outputDir, filename)

	header := fmt.Sprintf(`# 抖音直播间弹幕解析文件
# 录制ID: %s
# 开始时间: %s
# 格式: [时间] [消息类型] [详细信息]
# 说明: 包含以下消息类型：
#       - 弹幕: 观众聊天消息
#       - 礼物: 观众赠送礼物
#       - 进场: 观众进入直播间
#       - 点赞: 观众点赞
#       - 关注: 观众关注主播
#       - 下单: 观众下单商品
#       - 统计: 直播间统计信息

`, sessionID, now.Format("2006-01-02 15:04:05"))

	if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
		return "", fmt.Errorf("写入文件头失败: %w", err)
	}

	return path, nil
}
