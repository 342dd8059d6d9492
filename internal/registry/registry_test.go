package registry

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveBarrageRecorder/internal/config"
)

// testRecorderConfig 指向一个必然拒绝连接的地址，连接尝试快速失败，
// 不影响注册表本身的行为
func testRecorderConfig(t *testing.T) *config.RecorderConfig {
	return &config.RecorderConfig{
		OutputDir:         t.TempDir(),
		HeartbeatInterval: time.Second,
		HandshakeTimeout:  500 * time.Millisecond,
		WriteTimeout:      time.Second,
		DedupTTL:          2 * time.Second,
		WebSocketURL:      "ws://127.0.0.1:1/push?room_id=%s",
		UserAgent:         "test-agent",
	}
}

func TestExtractRoomID(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr error
	}{
		{"直链", "https://live.douyin.com/123456", "123456", nil},
		{"直链带参数", "https://live.douyin.com/123456?enter_from=homepage", "123456", nil},
		{"直链空房间", "https://live.douyin.com/", "", ErrUnresolvedRoomID},
		{"短链", "https://v.douyin.com/iAbCdEf/", "", ErrShortLinkUnsupported},
		{"无关URL", "https://example.com/watch/1", "", ErrUnresolvedRoomID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractRoomID(tt.url)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStartSessionCreatesTranscriptWithHeader(t *testing.T) {
	reg := New(testRecorderConfig(t), nil)
	defer reg.StopAll()

	require.True(t, reg.StartSession("s1", "https://live.douyin.com/123456", PlatformDouyin, ""))

	path, ok := reg.TranscriptPath("s1")
	require.True(t, ok)
	assert.True(t, reg.IsActive("s1"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# 抖音直播间弹幕解析文件")
	assert.Contains(t, string(content), "# 录制ID: s1")
}

func TestStartSessionUnsupportedPlatform(t *testing.T) {
	reg := New(testRecorderConfig(t), nil)

	assert.False(t, reg.StartSession("s1", "https://live.douyin.com/123456", "bilibili", ""))
	assert.False(t, reg.IsActive("s1"))
}

func TestStartSessionBadURL(t *testing.T) {
	reg := New(testRecorderConfig(t), nil)

	assert.False(t, reg.StartSession("s1", "https://v.douyin.com/iAbCdEf/", PlatformDouyin, ""))
	assert.False(t, reg.IsActive("s1"))
}

func TestStartSessionDuplicateID(t *testing.T) {
	reg := New(testRecorderConfig(t), nil)
	defer reg.StopAll()

	require.True(t, reg.StartSession("s1", "https://live.douyin.com/123456", PlatformDouyin, ""))
	path, _ := reg.TranscriptPath("s1")

	assert.False(t, reg.StartSession("s1", "https://live.douyin.com/654321", PlatformDouyin, ""))

	// 原会话不受影响
	assert.True(t, reg.IsActive("s1"))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestStopSessionRemovesMapping(t *testing.T) {
	reg := New(testRecorderConfig(t), nil)

	require.True(t, reg.StartSession("s1", "https://live.douyin.com/123456", PlatformDouyin, ""))
	require.True(t, reg.StopSession("s1"))

	assert.False(t, reg.IsActive("s1"))
	_, ok := reg.TranscriptPath("s1")
	assert.False(t, ok)

	// 重复停止返回false
	assert.False(t, reg.StopSession("s1"))
}

func TestTwoSessionsDistinctFiles(t *testing.T) {
	reg := New(testRecorderConfig(t), nil)
	defer reg.StopAll()

	require.True(t, reg.StartSession("s1", "https://live.douyin.com/111", PlatformDouyin, ""))
	require.True(t, reg.StartSession("s2", "https://live.douyin.com/222", PlatformDouyin, ""))

	p1, ok1 := reg.TranscriptPath("s1")
	p2, ok2 := reg.TranscriptPath("s2")
	require.True(t, ok1)
	require.True(t, ok2)
	assert.NotEqual(t, p1, p2)

	assert.ElementsMatch(t, []string{"s1", "s2"}, reg.ActiveSessions())
}

func TestStopAll(t *testing.T) {
	reg := New(testRecorderConfig(t), nil)

	require.True(t, reg.StartSession("s1", "https://live.douyin.com/111", PlatformDouyin, ""))
	require.True(t, reg.StartSession("s2", "https://live.douyin.com/222", PlatformDouyin, ""))

	reg.StopAll()
	assert.Empty(t, reg.ActiveSessions())
}

func TestAppendLine(t *testing.T) {
	reg := New(testRecorderConfig(t), nil)
	defer reg.StopAll()

	require.True(t, reg.StartSession("s1", "https://live.douyin.com/123456", PlatformDouyin, ""))
	path, _ := reg.TranscriptPath("s1")

	reg.AppendLine("s1", "[弹幕] 小明: 你好")

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	last := lines[len(lines)-1]
	assert.Regexp(t, `^\[\d{2}:\d{2}:\d{2}\] \[弹幕\] 小明: 你好$`, last)
}

func TestAppendLineSkipsEmptyText(t *testing.T) {
	reg := New(testRecorderConfig(t), nil)
	defer reg.StopAll()

	require.True(t, reg.StartSession("s1", "https://live.douyin.com/123456", PlatformDouyin, ""))
	path, _ := reg.TranscriptPath("s1")

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	reg.AppendLine("s1", "")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAppendLineUnknownSessionNoOp(t *testing.T) {
	reg := New(testRecorderConfig(t), nil)

	assert.NotPanics(t, func() {
		reg.AppendLine("ghost", "[弹幕] 无人收听")
	})
}
