// Package dispatch 将多路复用消息分类并路由到类型处理器。
//
// 分类规则：核心消息（弹幕/礼物/进场/点赞/关注/表情）始终解码且不去重；
// 电商消息先经内容签名去重再解码；噪声消息不进入诊断通道，但其中的
// user-seq/room-stats/control仍路由到注册的类型处理器；其余未知消息
// 做尽力而为的可读文本提取后送诊断通道。单条消息的解码失败只记录日志，
// 不影响同一Response中的后续消息。
package dispatch

import (
	"fmt"
	"log"

	"LiveBarrageRecorder/internal/dedup"
	"LiveBarrageRecorder/internal/event"
	"LiveBarrageRecorder/internal/protocol"
)

// Handlers 类型处理器能力表，按事件种类注册；nil项表示不关心该类事件
// 处理器在接收循环所在的goroutine上同步执行，必须快速返回
type Handlers struct {
	OnChat          func(*event.ChatEvent)
	OnGift          func(*event.GiftEvent)
	OnMember        func(*event.MemberEvent)
	OnLike          func(*event.LikeEvent)
	OnSocial        func(*event.SocialEvent)
	OnEmojiChat     func(*event.EmojiChatEvent)
	OnRoomUserSeq   func(*event.RoomUserSeqEvent)
	OnRoomStats     func(*event.RoomStatsEvent)
	OnControl       func(*event.ControlEvent)
	OnProductChange func(*event.ProductChangeEvent)
	OnLiveShopping  func(*event.LiveShoppingEvent)
	OnEcomGeneral   func(*event.EcomGeneralEvent)

	// OnDiagnostic 诊断通道：未知但可读的消息、连接状态、异常报告
	OnDiagnostic func(text string)
}

// Dispatcher 消息分发器，每个连接持有一个实例
type Dispatcher struct {
	handlers Handlers
	deduper  *dedup.Deduplicator
}

// New 创建分发器，deduper为nil时电商消息不做去重
func New(handlers Handlers, deduper *dedup.Deduplicator) *Dispatcher {
	return &Dispatcher{
		handlers: handlers,
		deduper:  deduper,
	}
}

// Handle 处理一条多路复用消息，按Response内的到达顺序逐条调用
func (d *Dispatcher) Handle(method string, payload []byte) {
	switch {
	case protocol.IsCoreMethod(method):
		d.handleCore(method, payload)
	case protocol.IsCommerceMethod(method):
		if d.deduper != nil && d.deduper.ShouldSuppress(method, payload) {
			return
		}
		d.handleCommerce(method, payload)
	case protocol.IsNoiseMethod(method):
		d.handleNoise(method, payload)
	default:
		d.handleUnknown(method, payload)
	}
}

// Diagnostic 向诊断通道发送一条文本
func (d *Dispatcher) Diagnostic(text string) {
	if d.handlers.OnDiagnostic != nil {
		d.handlers.OnDiagnostic(text)
	}
}

// handleCore 核心消息：解码并交给类型处理器
func (d *Dispatcher) handleCore(method string, payload []byte) {
	var err error

	switch method {
	case protocol.MethodChat:
		var ev *event.ChatEvent
		if ev, err = event.DecodeChat(payload); err == nil && d.handlers.OnChat != nil {
			d.handlers.OnChat(ev)
		}
	case protocol.MethodGift:
		var ev *event.GiftEvent
		if ev, err = event.DecodeGift(payload); err == nil && d.handlers.OnGift != nil {
			d.handlers.OnGift(ev)
		}
	case protocol.MethodMember:
		var ev *event.MemberEvent
		if ev, err = event.DecodeMember(payload); err == nil && d.handlers.OnMember != nil {
			d.handlers.OnMember(ev)
		}
	case protocol.MethodLike:
		var ev *event.LikeEvent
		if ev, err = event.DecodeLike(payload); err == nil && d.handlers.OnLike != nil {
			d.handlers.OnLike(ev)
		}
	case protocol.MethodSocial:
		var ev *event.SocialEvent
		if ev, err = event.DecodeSocial(payload); err == nil && d.handlers.OnSocial != nil {
			d.handlers.OnSocial(ev)
		}
	case protocol.MethodEmojiChat:
		var ev *event.EmojiChatEvent
		if ev, err = event.DecodeEmojiChat(payload); err == nil && d.handlers.OnEmojiChat != nil {
			d.handlers.OnEmojiChat(ev)
		}
	}

	if err != nil {
		d.reportDecodeError(method, err)
	}
}

// handleCommerce 电商消息：去重已通过，解码后无条件交给类型处理器
func (d *Dispatcher) handleCommerce(method string, payload []byte) {
	var err error

	switch method {
	case protocol.MethodProductChange:
		var ev *event.ProductChangeEvent
		if ev, err = event.DecodeProductChange(payload); err == nil && d.handlers.OnProductChange != nil {
			d.handlers.OnProductChange(ev)
		}
	case protocol.MethodLiveShopping:
		var ev *event.LiveShoppingEvent
		if ev, err = event.DecodeLiveShopping(payload); err == nil && d.handlers.OnLiveShopping != nil {
			d.handlers.OnLiveShopping(ev)
		}
	case protocol.MethodEcomGeneral:
		var ev *event.EcomGeneralEvent
		if ev, err = event.DecodeEcomGeneral(payload); err == nil && d.handlers.OnEcomGeneral != nil {
			d.handlers.OnEcomGeneral(ev)
		}
	}

	if err != nil {
		d.reportDecodeError(method, err)
	}
}

// handleNoise 噪声消息：不进诊断通道，三类统计/控制消息仍路由
func (d *Dispatcher) handleNoise(method string, payload []byte) {
	var err error

	switch method {
	case protocol.MethodRoomUserSeq:
		var ev *event.RoomUserSeqEvent
		if ev, err = event.DecodeRoomUserSeq(payload); err == nil && d.handlers.OnRoomUserSeq != nil {
			d.handlers.OnRoomUserSeq(ev)
		}
	case protocol.MethodRoomStats:
		var ev *event.RoomStatsEvent
		if ev, err = event.DecodeRoomStats(payload); err == nil && d.handlers.OnRoomStats != nil {
			d.handlers.OnRoomStats(ev)
		}
	case protocol.MethodControl:
		var ev *event.ControlEvent
		if ev, err = event.DecodeControl(payload); err == nil && d.handlers.OnControl != nil {
			d.handlers.OnControl(ev)
		}
	}

	if err != nil {
		d.reportDecodeError(method, err)
	}
}

// handleUnknown 未知消息：带电商关键词的报告数据长度，
// 其余尝试提取可读内容，提取失败则静默丢弃
func (d *Dispatcher) handleUnknown(method string, payload []byte) {
	if protocol.HasCommerceKeyword(method) {
		d.Diagnostic(fmt.Sprintf("[消息类型] %s - 数据长度: %d", method, len(payload)))
		return
	}

	if text := event.ExtractReadable(payload); text != "" {
		d.Diagnostic(fmt.Sprintf("[🔍 未知消息] %s - 内容: %s", method, text))
	}
}

// reportDecodeError 记录单条消息的解码失败，不中断会话
func (d *Dispatcher) reportDecodeError(method string, err error) {
	log.Printf("消息解析异常 method=%s: %v", method, err)
	d.Diagnostic(fmt.Sprintf("[消息解析异常] %s: %v", method, err))
}
