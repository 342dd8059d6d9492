package dispatch_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveBarrageRecorder/internal/dedup"
	"LiveBarrageRecorder/internal/dispatch"
	"LiveBarrageRecorder/internal/event"
	"LiveBarrageRecorder/internal/protocol"
	"LiveBarrageRecorder/internal/testutil"
)

// recorder 收集处理器回调，断言分发结果
type recorder struct {
	chats       []*event.ChatEvent
	gifts       []*event.GiftEvent
	likes       []*event.LikeEvent
	userSeqs    []*event.RoomUserSeqEvent
	controls    []*event.ControlEvent
	shoppings   []*event.LiveShoppingEvent
	diagnostics []string
}

func (r *recorder) handlers() dispatch.Handlers {
	return dispatch.Handlers{
		OnChat:         func(ev *event.ChatEvent) { r.chats = append(r.chats, ev) },
		OnGift:         func(ev *event.GiftEvent) { r.gifts = append(r.gifts, ev) },
		OnLike:         func(ev *event.LikeEvent) { r.likes = append(r.likes, ev) },
		OnRoomUserSeq:  func(ev *event.RoomUserSeqEvent) { r.userSeqs = append(r.userSeqs, ev) },
		OnControl:      func(ev *event.ControlEvent) { r.controls = append(r.controls, ev) },
		OnLiveShopping: func(ev *event.LiveShoppingEvent) { r.shoppings = append(r.shoppings, ev) },
		OnDiagnostic:   func(text string) { r.diagnostics = append(r.diagnostics, text) },
	}
}

func TestDispatchChat(t *testing.T) {
	rec := &recorder{}
	d := dispatch.New(rec.handlers(), nil)

	d.Handle(protocol.MethodChat, testutil.BuildChatPayload(testutil.UserSpec{ID: 1, Nickname: "小明"}, "你好"))

	require.Len(t, rec.chats, 1)
	assert.Equal(t, "小明", rec.chats[0].User.Nickname)
	assert.Equal(t, "你好", rec.chats[0].Content)
	assert.Empty(t, rec.diagnostics)
}

func TestDispatchMalformedDoesNotBlockSubsequent(t *testing.T) {
	rec := &recorder{}
	d := dispatch.New(rec.handlers(), nil)

	d.Handle(protocol.MethodChat, []byte{0xff})
	d.Handle(protocol.MethodChat, testutil.BuildChatPayload(testutil.UserSpec{ID: 1, Nickname: "小明"}, "还在"))

	require.Len(t, rec.chats, 1)
	assert.Equal(t, "还在", rec.chats[0].Content)

	require.Len(t, rec.diagnostics, 1)
	assert.Contains(t, rec.diagnostics[0], "[消息解析异常]")
	assert.Contains(t, rec.diagnostics[0], protocol.MethodChat)
}

func TestDispatchCoreNeverDeduped(t *testing.T) {
	rec := &recorder{}
	d := dispatch.New(rec.handlers(), dedup.New(2*time.Second))

	payload := testutil.BuildChatPayload(testutil.UserSpec{ID: 1, Nickname: "小明"}, "666")
	d.Handle(protocol.MethodChat, payload)
	d.Handle(protocol.MethodChat, payload)
	d.Handle(protocol.MethodChat, payload)

	assert.Len(t, rec.chats, 3)
}

func TestDispatchCommerceDeduped(t *testing.T) {
	rec := &recorder{}
	d := dispatch.New(rec.handlers(), dedup.New(2*time.Second))

	// 同一秒内三条同签名的购物消息只放行一条
	for _, ms := range []int64{1700000000100, 1700000000400, 1700000000900} {
		d.Handle(protocol.MethodLiveShopping, testutil.BuildLiveShoppingPayload(2, 998877, ms))
	}

	require.Len(t, rec.shoppings, 1)
	assert.Equal(t, uint64(998877), rec.shoppings[0].PromotionID)
}

func TestDispatchCommerceWithoutDeduper(t *testing.T) {
	rec := &recorder{}
	d := dispatch.New(rec.handlers(), nil)

	payload := testutil.BuildLiveShoppingPayload(2, 998877, 1700000000100)
	d.Handle(protocol.MethodLiveShopping, payload)
	d.Handle(protocol.MethodLiveShopping, payload)

	assert.Len(t, rec.shoppings, 2)
}

func TestDispatchNoiseRoutedToTypedHandlers(t *testing.T) {
	rec := &recorder{}
	d := dispatch.New(rec.handlers(), nil)

	d.Handle(protocol.MethodRoomUserSeq, testutil.BuildRoomUserSeqPayload(100, "1万+"))
	d.Handle(protocol.MethodControl, testutil.BuildControlPayload(event.ControlStatusEnded))

	require.Len(t, rec.userSeqs, 1)
	assert.Equal(t, int64(100), rec.userSeqs[0].CurrentViewers)
	require.Len(t, rec.controls, 1)
	assert.Equal(t, event.ControlStatusEnded, rec.controls[0].Status)
	assert.Empty(t, rec.diagnostics)
}

func TestDispatchNoiseSilentlyDropped(t *testing.T) {
	rec := &recorder{}
	d := dispatch.New(rec.handlers(), nil)

	d.Handle(protocol.MethodGiftSort, []byte("whatever bytes"))
	d.Handle(protocol.MethodFansclub, []byte{0x08, 0x01})

	assert.Empty(t, rec.diagnostics)
}

func TestDispatchUnknownCommerceKeyword(t *testing.T) {
	rec := &recorder{}
	d := dispatch.New(rec.handlers(), nil)

	d.Handle("WebcastOrderSyncMessage", make([]byte, 37))

	require.Len(t, rec.diagnostics, 1)
	assert.Equal(t, fmt.Sprintf("[消息类型] WebcastOrderSyncMessage - 数据长度: %d", 37), rec.diagnostics[0])
}

func TestDispatchUnknownReadable(t *testing.T) {
	rec := &recorder{}
	d := dispatch.New(rec.handlers(), nil)

	d.Handle("WebcastMysteryMessage", []byte("\x00readable-content-here\x01"))

	require.Len(t, rec.diagnostics, 1)
	assert.Contains(t, rec.diagnostics[0], "[🔍 未知消息] WebcastMysteryMessage")
	assert.Contains(t, rec.diagnostics[0], "readable-content-here")
}

func TestDispatchUnknownUnreadableDropped(t *testing.T) {
	rec := &recorder{}
	d := dispatch.New(rec.handlers(), nil)

	d.Handle("WebcastMysteryMessage", []byte{0x00, 0x01, 0x02})

	assert.Empty(t, rec.diagnostics)
}

func TestDispatchNilHandlersTolerated(t *testing.T) {
	d := dispatch.New(dispatch.Handlers{}, nil)

	assert.NotPanics(t, func() {
		d.Handle(protocol.MethodChat, testutil.BuildChatPayload(testutil.UserSpec{ID: 1, Nickname: "x"}, "y"))
		d.Handle("WebcastMysteryMessage", []byte("readable text payload"))
		d.Diagnostic("no-op")
	})
}
