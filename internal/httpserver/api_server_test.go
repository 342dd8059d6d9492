package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveBarrageRecorder/internal/config"
	"LiveBarrageRecorder/internal/registry"
)

const apiTestAddr = "127.0.0.1:18095"

func startTestAPI(t *testing.T) (*APIServer, *registry.Registry) {
	t.Helper()

	cfg := &config.RecorderConfig{
		OutputDir:         t.TempDir(),
		HeartbeatInterval: time.Second,
		HandshakeTimeout:  500 * time.Millisecond,
		WriteTimeout:      time.Second,
		DedupTTL:          2 * time.Second,
		WebSocketURL:      "ws://127.0.0.1:1/push?room_id=%s",
		UserAgent:         "api-test",
	}

	reg := registry.New(cfg, nil)
	api := NewAPIServer(apiTestAddr, reg, nil, cfg.OutputDir)
	require.NoError(t, api.Start())
	time.Sleep(100 * time.Millisecond)

	t.Cleanup(func() {
		reg.StopAll()
		api.Shutdown(context.Background())
	})

	return api, reg
}

func doJSON(t *testing.T, method, path string, body interface{}) (*http.Response, *APIResponse) {
	t.Helper()

	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}

	req, err := http.NewRequest(method, fmt.Sprintf("http://%s%s", apiTestAddr, path), &reqBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	apiResp := &APIResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(apiResp))
	return resp, apiResp
}

func TestAPISessionLifecycle(t *testing.T) {
	_, reg := startTestAPI(t)

	resp, apiResp := doJSON(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	health, ok := apiResp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(0), health["active_sessions"])

	// 创建会话
	resp, apiResp = doJSON(t, http.MethodPost, "/api/v1/sessions", &StartSessionRequest{
		SessionID: "api-1",
		RoomURL:   "https://live.douyin.com/123456",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, apiResp.Success)
	assert.True(t, reg.IsActive("api-1"))

	// 查询会话
	resp, apiResp = doJSON(t, http.MethodGet, "/api/v1/sessions/api-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, apiResp.Success)

	// 停止会话
	resp, _ = doJSON(t, http.MethodDelete, "/api/v1/sessions/api-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, reg.IsActive("api-1"))

	// 重复停止返回404
	resp, apiResp = doJSON(t, http.MethodDelete, "/api/v1/sessions/api-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, apiResp.Success)
}

func TestAPIStartSessionValidation(t *testing.T) {
	startTestAPI(t)

	// 缺少room_url
	resp, apiResp := doJSON(t, http.MethodPost, "/api/v1/sessions", &StartSessionRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, apiResp.Success)

	// 不支持的平台
	resp, apiResp = doJSON(t, http.MethodPost, "/api/v1/sessions", &StartSessionRequest{
		RoomURL:  "https://live.douyin.com/123456",
		Platform: "bilibili",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.False(t, apiResp.Success)
}

func TestAPIListSessions(t *testing.T) {
	_, reg := startTestAPI(t)

	doJSON(t, http.MethodPost, "/api/v1/sessions", &StartSessionRequest{
		SessionID: "api-a",
		RoomURL:   "https://live.douyin.com/111",
	})
	doJSON(t, http.MethodPost, "/api/v1/sessions", &StartSessionRequest{
		SessionID: "api-b",
		RoomURL:   "https://live.douyin.com/222",
	})

	resp, apiResp := doJSON(t, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, apiResp.Success)

	statuses, ok := apiResp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, statuses, 2)
	assert.ElementsMatch(t, []string{"api-a", "api-b"}, reg.ActiveSessions())
}
