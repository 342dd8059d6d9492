// Package httpserver 暴露会话控制的HTTP接口，供应用外壳或外部工具调用。
package httpserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"LiveBarrageRecorder/internal/registry"
	"LiveBarrageRecorder/internal/storage"
)

// APIServer HTTP控制接口服务器
type APIServer struct {
	router    *mux.Router
	server    *http.Server
	registry  *registry.Registry
	store     *storage.SessionStore // 可选，nil时健康检查不带连接池信息
	outputDir string
}

// APIResponse 统一响应结构
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// StartSessionRequest 开始录制请求
type StartSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
	RoomURL   string `json:"room_url"`
	Platform  string `json:"platform"`
	OutputDir string `json:"output_dir,omitempty"`
}

// SessionStatus 会话状态
type SessionStatus struct {
	SessionID      string `json:"session_id"`
	Active         bool   `json:"active"`
	TranscriptPath string `json:"transcript_path,omitempty"`
}

// NewAPIServer 创建HTTP控制接口服务器，store为nil时健康检查只报告会话数
func NewAPIServer(addr string, reg *registry.Registry, store *storage.SessionStore, outputDir string) *APIServer {
	s := &APIServer{
		router:    mux.NewRouter(),
		registry:  reg,
		store:     store,
		outputDir: outputDir,
	}

	s.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	s.server = &http.Server{
		Addr:         addr,
		Handler:      c.Handler(s.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes 设置路由
func (s *APIServer) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/healthz", s.healthHandler).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/sessions", s.startSessionHandler).Methods("POST")
	api.HandleFunc("/sessions", s.listSessionsHandler).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.getSessionHandler).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.stopSessionHandler).Methods("DELETE")
}

// Start 启动服务器
func (s *APIServer) Start() error {
	log.Printf("HTTP控制接口已启动: %s", s.server.Addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP服务器错误: %v", err)
		}
	}()
	return nil
}

// Shutdown 优雅关闭服务器
func (s *APIServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// startSessionHandler 开始录制
func (s *APIServer) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "无效的请求体")
		return
	}

	if req.RoomURL == "" {
		s.writeError(w, http.StatusBadRequest, "room_url 不能为空")
		return
	}
	if req.Platform == "" {
		req.Platform = registry.PlatformDouyin
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if req.OutputDir == "" {
		req.OutputDir = s.outputDir
	}

	if !s.registry.StartSession(req.SessionID, req.RoomURL, req.Platform, req.OutputDir) {
		s.writeError(w, http.StatusUnprocessableEntity, "启动录制失败")
		return
	}

	path, _ := s.registry.TranscriptPath(req.SessionID)
	s.writeJSON(w, http.StatusCreated, &SessionStatus{
		SessionID:      req.SessionID,
		Active:         true,
		TranscriptPath: path,
	})
}

// stopSessionHandler 停止录制
func (s *APIServer) stopSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if !s.registry.StopSession(sessionID) {
		s.writeError(w, http.StatusNotFound, "会话不存在")
		return
	}

	s.writeJSON(w, http.StatusOK, &SessionStatus{SessionID: sessionID, Active: false})
}

// getSessionHandler 查询会话状态
func (s *APIServer) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	status := &SessionStatus{
		SessionID: sessionID,
		Active:    s.registry.IsActive(sessionID),
	}
	if path, ok := s.registry.TranscriptPath(sessionID); ok {
		status.TranscriptPath = path
	}

	s.writeJSON(w, http.StatusOK, status)
}

// listSessionsHandler 列出活跃会话
func (s *APIServer) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	ids := s.registry.ActiveSessions()
	statuses := make([]*SessionStatus, 0, len(ids))
	for _, id := range ids {
		status := &SessionStatus{SessionID: id, Active: true}
		if path, ok := s.registry.TranscriptPath(id); ok {
			status.TranscriptPath = path
		}
		statuses = append(statuses, status)
	}

	s.writeJSON(w, http.StatusOK, statuses)
}

// healthHandler 健康检查：状态、活跃会话数，启用归档时附带连接池信息
func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"status":          "ok",
		"active_sessions": len(s.registry.ActiveSessions()),
	}

	if s.store != nil {
		if stat := s.store.Stats(); stat != nil {
			data["db_total_conns"] = stat.TotalConns()
			data["db_idle_conns"] = stat.IdleConns()
			data["db_acquired_conns"] = stat.AcquiredConns()
		}
	}

	s.writeJSON(w, http.StatusOK, data)
}

// loggingMiddleware 请求日志中间件
func (s *APIServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// writeJSON 写入成功响应
func (s *APIServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}

// writeError 写入失败响应
func (s *APIServer) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&APIResponse{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
}
