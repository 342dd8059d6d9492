// Package testserver 提供测试用的弹幕推送服务器。
//
// 模拟上游Webcast推送端：向连接的客户端下发gzip压缩的Response帧，
// 并记录收到的ack帧和transport ping，供测试断言。
package testserver

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"LiveBarrageRecorder/internal/protocol"
)

// ServerConfig 测试服务器配置
type ServerConfig struct {
	Addr            string
	ReadBufferSize  int
	WriteBufferSize int
}

// DefaultServerConfig 返回默认配置
func DefaultServerConfig(addr string) *ServerConfig {
	return &ServerConfig{
		Addr:            addr,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// AckRecord 一条收到的ack帧
type AckRecord struct {
	LogID       uint64
	InternalExt string
}

// Connection 一个客户端连接
type Connection struct {
	ID   string
	Conn *websocket.Conn

	stopChan  chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
}

func (c *Connection) safeClose() {
	c.closeOnce.Do(func() {
		close(c.stopChan)
	})
}

// Server 测试用弹幕推送服务器
type Server struct {
	config   *ServerConfig
	server   *http.Server
	upgrader websocket.Upgrader

	connections sync.Map // map[string]*Connection
	connCount   atomic.Int32
	connWg      sync.WaitGroup

	logIDGen  atomic.Uint64
	pingCount atomic.Int64
	isRunning atomic.Bool

	ackMu sync.Mutex
	acks  []AckRecord
}

// New 创建测试服务器
func New(config *ServerConfig) *Server {
	if config == nil {
		config = DefaultServerConfig(":18090")
	}

	s := &Server{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.server = &http.Server{
		Addr:    config.Addr,
		Handler: mux,
	}

	return s
}

// Start 启动服务器
func (s *Server) Start() error {
	if !s.isRunning.CompareAndSwap(false, true) {
		return fmt.Errorf("server is already running")
	}

	log.Printf("启动弹幕测试服务器: %s", s.config.Addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("测试服务器错误: %v", err)
		}
	}()

	// 给服务器足够的启动时间
	time.Sleep(100 * time.Millisecond)
	return nil
}

// Shutdown 关闭服务器
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.isRunning.CompareAndSwap(true, false) {
		return nil
	}

	s.connections.Range(func(key, value interface{}) bool {
		conn := value.(*Connection)
		s.closeConnection(conn)
		return true
	})

	s.connWg.Wait()
	return s.server.Shutdown(ctx)
}

// PushResponse 将一个Response压缩后以msg帧广播给所有连接
// 返回使用的log id
func (s *Server) PushResponse(resp *protocol.Response) uint64 {
	logID := s.logIDGen.Add(1)
	frame := protocol.EncodeFrame(logID, protocol.PayloadTypeMessage,
		protocol.Compress(protocol.EncodeResponse(resp)))

	s.connections.Range(func(key, value interface{}) bool {
		conn := value.(*Connection)
		conn.mu.Lock()
		conn.Conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.Conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			log.Printf("推送失败 %s: %v", conn.ID, err)
		}
		conn.mu.Unlock()
		return true
	})

	return logID
}

// PushRaw 将原始字节直接以binary消息广播（用于注入畸形帧）
func (s *Server) PushRaw(raw []byte) {
	s.connections.Range(func(key, value interface{}) bool {
		conn := value.(*Connection)
		conn.mu.Lock()
		conn.Conn.SetWriteDeadline(time.Now().Add(time.Second))
		conn.Conn.WriteMessage(websocket.BinaryMessage, raw)
		conn.mu.Unlock()
		return true
	})
}

// AckRecords 返回收到的ack帧副本
func (s *Server) AckRecords() []AckRecord {
	s.ackMu.Lock()
	defer s.ackMu.Unlock()
	return append([]AckRecord{}, s.acks...)
}

// PingCount 收到的transport ping数量
func (s *Server) PingCount() int64 {
	return s.pingCount.Load()
}

// ConnectionCount 当前连接数
func (s *Server) ConnectionCount() int {
	return int(s.connCount.Load())
}

// WaitForConnection 等待至少一个客户端连接
func (s *Server) WaitForConnection(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.connCount.Load() > 0 {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// handleWebSocket 处理WebSocket连接
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket升级失败: %v", err)
		return
	}

	connID := fmt.Sprintf("conn_%d", time.Now().UnixNano())
	conn := &Connection{
		ID:       connID,
		Conn:     wsConn,
		stopChan: make(chan struct{}),
	}

	s.connections.Store(connID, conn)
	s.connCount.Add(1)

	wsConn.SetPingHandler(func(appData string) error {
		s.pingCount.Add(1)
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return wsConn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	s.connWg.Add(1)
	go s.readLoop(conn)
}

// readLoop 读取客户端发来的帧，记录ack
func (s *Server) readLoop(conn *Connection) {
	defer func() {
		s.closeConnection(conn)
		s.connWg.Done()
	}()

	for {
		select {
		case <-conn.stopChan:
			return
		default:
			conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			messageType, raw, err := conn.Conn.ReadMessage()
			if err != nil {
				return
			}

			if messageType != websocket.BinaryMessage {
				continue
			}

			frame, err := protocol.DecodeFrame(raw)
			if err != nil {
				log.Printf("解码客户端帧失败: %v", err)
				continue
			}

			if frame.PayloadType == protocol.PayloadTypeAck {
				s.ackMu.Lock()
				s.acks = append(s.acks, AckRecord{
					LogID:       frame.LogID,
					InternalExt: string(frame.Payload),
				})
				s.ackMu.Unlock()
			}
		}
	}
}

// closeConnection 关闭连接
func (s *Server) closeConnection(conn *Connection) {
	if _, loaded := s.connections.LoadAndDelete(conn.ID); loaded {
		s.connCount.Add(-1)
	}

	conn.mu.Lock()
	conn.Conn.Close()
	conn.mu.Unlock()

	conn.safeClose()
}
