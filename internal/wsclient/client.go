package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"LiveBarrageRecorder/internal/dispatch"
	"LiveBarrageRecorder/internal/protocol"
)

// ClientState 客户端连接状态
type ClientState int32

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s ClientState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ClientConfig 客户端配置
type ClientConfig struct {
	URL               string
	HandshakeTimeout  time.Duration
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	UserAgent         string
	Cookie            string
	EnableCompression bool
}

// DefaultClientConfig 返回默认配置
func DefaultClientConfig(url string) *ClientConfig {
	return &ClientConfig{
		URL:               url,
		HandshakeTimeout:  10 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		WriteTimeout:      5 * time.Second,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
		EnableCompression: true,
	}
}

// Client 弹幕WebSocket客户端
// 连接打开后在两个独立goroutine上并发运行心跳循环和接收循环；
// 不做重连，连接失败即终止会话
type Client struct {
	config     *ClientConfig
	dialer     *websocket.Dialer
	conn       *websocket.Conn
	state      atomic.Int32
	dispatcher *dispatch.Dispatcher

	// 同步控制
	mu        sync.RWMutex
	writeMu   sync.Mutex // 专用于WebSocket写入同步（心跳ping与ack并发写）
	stopChan  chan struct{}
	closeOnce sync.Once
	readDone  chan struct{}
}

// New 创建新的弹幕客户端
func New(config *ClientConfig, dispatcher *dispatch.Dispatcher) *Client {
	if config == nil {
		panic("config cannot be nil")
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = config.HandshakeTimeout
	dialer.EnableCompression = config.EnableCompression

	client := &Client{
		config:     config,
		dialer:     &dialer,
		dispatcher: dispatcher,
		stopChan:   make(chan struct{}),
		readDone:   make(chan struct{}),
	}

	client.state.Store(int32(StateDisconnected))
	return client
}

// Start 连接到弹幕服务器并启动心跳和接收循环
// 不支持重复启动：仅允许从Disconnected状态调用
func (c *Client) Start(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return errors.New("client is not in disconnected state")
	}

	headers := http.Header{
		"User-Agent": []string{c.config.UserAgent},
	}
	if c.config.Cookie != "" {
		headers.Set("Cookie", c.config.Cookie)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.config.URL, headers)
	if err != nil {
		c.state.Store(int32(StateClosed))
		close(c.readDone)
		return fmt.Errorf("dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	// 拨号期间可能已被Stop：状态不再是Connecting时放弃这条连接，
	// 不启动任何循环，也不再调用处理器
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
		close(c.readDone)
		return errors.New("client stopped while connecting")
	}

	c.dispatcher.Diagnostic("[弹幕] WebSocket连接成功")

	go c.heartbeatLoop()
	go c.readLoop()

	return nil
}

// Stop 关闭连接并终止两个循环
// 可以从接收循环以外的goroutine安全调用；通过关闭底层连接迫使
// 阻塞中的读取返回，并等待接收循环退出，返回后不再有处理器被调用
func (c *Client) Stop() error {
	prev := ClientState(c.state.Swap(int32(StateClosed)))
	if prev == StateClosed {
		return nil
	}

	c.closeOnce.Do(func() {
		close(c.stopChan)
	})

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}

	if prev == StateOpen {
		<-c.readDone
	}

	return err
}

// State 获取当前状态
func (c *Client) State() ClientState {
	return ClientState(c.state.Load())
}

// heartbeatLoop 心跳循环：按固定间隔发送编码后的心跳帧作为transport ping
// 发送失败记录错误并终止循环，不重试；stop信号使其确定性退出
func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			if c.State() != StateOpen {
				return
			}
			if err := c.writeMessage(websocket.PingMessage, protocol.EncodeHeartbeat()); err != nil {
				log.Printf("发送心跳失败: %v", err)
				c.dispatcher.Diagnostic(fmt.Sprintf("[心跳包错误] %v", err))
				return
			}
		}
	}
}

// readLoop 接收循环：逐帧解码并分发
// 传输层错误终止本会话的循环，不影响其他会话
func (c *Client) readLoop() {
	defer close(c.readDone)

	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			return
		}

		messageType, raw, err := conn.ReadMessage()
		if err != nil {
			if c.State() != StateClosed {
				log.Printf("读取消息失败: %v", err)
				c.dispatcher.Diagnostic(fmt.Sprintf("[WebSocket错误] %v", err))
				c.closeFromReadLoop()
			}
			return
		}

		if messageType != websocket.BinaryMessage {
			continue
		}

		c.handleRawFrame(raw)
	}
}

// handleRawFrame 处理一个入站帧
// 单帧的解码/解压失败只丢弃该帧，对连接非致命
func (c *Client) handleRawFrame(raw []byte) {
	frame, err := protocol.DecodeFrame(raw)
	if err != nil {
		log.Printf("帧解码失败: %v", err)
		return
	}

	if frame.PayloadType != protocol.PayloadTypeMessage {
		return
	}

	decompressed, err := protocol.Decompress(frame.Payload)
	if err != nil {
		log.Printf("负载解压失败 log_id=%d: %v", frame.LogID, err)
		return
	}

	resp, err := protocol.DecodeResponse(decompressed)
	if err != nil {
		log.Printf("Response解码失败 log_id=%d: %v", frame.LogID, err)
		return
	}

	// 每个要求确认的Response用它自己的ack令牌确认一次
	if resp.NeedAck {
		if err := c.sendAck(frame.LogID, resp.InternalExt); err != nil {
			log.Printf("发送ack失败 log_id=%d: %v", frame.LogID, err)
		}
	}

	for _, msg := range resp.Messages {
		c.dispatcher.Handle(msg.Method, msg.Payload)
	}
}

// sendAck 以binary消息回发确认帧
func (c *Client) sendAck(logID uint64, internalExt string) error {
	return c.writeMessage(websocket.BinaryMessage, protocol.EncodeAck(logID, internalExt))
}

// writeMessage 串行化的WebSocket写入，容忍心跳与ack的并发写
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return errors.New("connection is nil")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return conn.WriteMessage(messageType, data)
}

// closeFromReadLoop 接收循环内部的关闭路径，不等待自身退出
func (c *Client) closeFromReadLoop() {
	c.state.Store(int32(StateClosed))
	c.closeOnce.Do(func() {
		close(c.stopChan)
	})

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}
