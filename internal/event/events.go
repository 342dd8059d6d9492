package event

// GenderUnknown 上游未携带性别字段时的默认值
const GenderUnknown int32 = -1

// User 消息中携带的用户信息
type User struct {
	ID       uint64
	Nickname string
	Gender   int32 // 1=男, 0=女, GenderUnknown=未知
}

// ChatEvent 弹幕消息
type ChatEvent struct {
	User    User
	Content string
}

// GiftEvent 礼物消息
type GiftEvent struct {
	User       User
	GiftName   string
	ComboCount uint64 // 缺省为1
}

// MemberEvent 观众进场消息
type MemberEvent struct {
	User User
}

// LikeEvent 点赞消息
type LikeEvent struct {
	User  User
	Count uint64
}

// SocialEvent 关注消息
type SocialEvent struct {
	User User
}

// EmojiChatEvent 表情弹幕消息
type EmojiChatEvent struct {
	User           User
	EmojiID        int64
	DefaultContent string
}

// RoomUserSeqEvent 房间观看人数统计
// 累计观看人数是上游给出的展示字符串（如"1.2万"），原样保留
type RoomUserSeqEvent struct {
	CurrentViewers int64
	TotalViewers   string
}

// RoomStatsEvent 房间统计展示文本
type RoomStatsEvent struct {
	DisplayLong string
}

// ControlEvent 直播间控制信号
type ControlEvent struct {
	Status int32
}

// ControlStatusEnded 表示直播已结束的控制状态
const ControlStatusEnded int32 = 3

// ProductChangeEvent 商品变更消息
type ProductChangeEvent struct {
	UpdateTimestamp int64 // 毫秒
	UpdateToast     string
}

// LiveShoppingEvent 直播购物动作
type LiveShoppingEvent struct {
	ActionKind  int32 // 1=商品展示 2=下单操作 3=加购物车 4=关注商品 5=取消关注
	PromotionID uint64
	EventTimeMs int64 // 毫秒，取自common.create_time
}

// ActionKindOrder 下单操作
const ActionKindOrder int32 = 2

// EcomGeneralEvent 电商通用消息，schema未公开，只做启发式解读
type EcomGeneralEvent struct {
	Raw      []byte
	Text     string   // 不可打印字节替换为'.'后的文本
	Keywords []string // 文本中命中的电商关键词
}
