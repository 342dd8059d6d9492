package protocol

import "strings"

// Webcast方法名定义 - 平台为每种事件schema分配的类型标签
const (
	MethodChat        = "WebcastChatMessage"
	MethodGift        = "WebcastGiftMessage"
	MethodMember      = "WebcastMemberMessage"
	MethodLike        = "WebcastLikeMessage"
	MethodSocial      = "WebcastSocialMessage"
	MethodEmojiChat   = "WebcastEmojiChatMessage"
	MethodRoomUserSeq = "WebcastRoomUserSeqMessage"
	MethodRoomStats   = "WebcastRoomStatsMessage"
	MethodControl     = "WebcastControlMessage"

	MethodProductChange = "WebcastProductChangeMessage"
	MethodLiveShopping  = "WebcastLiveShoppingMessage"
	MethodEcomGeneral   = "WebcastLiveEcomGeneralMessage"

	MethodRanklistHourEntrance = "WebcastRanklistHourEntranceMessage"
	MethodInRoomBanner         = "WebcastInRoomBannerMessage"
	MethodGiftSort             = "WebcastGiftSortMessage"
	MethodRoomStreamAdaptation = "WebcastRoomStreamAdaptationMessage"
	MethodRoomRank             = "WebcastRoomRankMessage"
	MethodFansclub             = "WebcastFansclubMessage"
	MethodRoom                 = "WebcastRoomMessage"
)

// coreMethods 核心消息：始终解码并交给对应的类型处理器，不做去重
var coreMethods = map[string]bool{
	MethodChat:      true,
	MethodGift:      true,
	MethodMember:    true,
	MethodLike:      true,
	MethodSocial:    true,
	MethodEmojiChat: true,
}

// commerceMethods 高频电商消息：先经过内容签名去重再解码
var commerceMethods = map[string]bool{
	MethodProductChange: true,
	MethodLiveShopping:  true,
	MethodEcomGeneral:   true,
}

// noiseMethods 高频低信息量消息：不进入诊断通道
// 其中user-seq/room-stats/control仍会路由到注册的类型处理器
var noiseMethods = map[string]bool{
	MethodRanklistHourEntrance: true,
	MethodInRoomBanner:         true,
	MethodGiftSort:             true,
	MethodRoomStreamAdaptation: true,
	MethodRoomRank:             true,
	MethodFansclub:             true,
	MethodRoom:                 true,
	MethodRoomUserSeq:          true,
	MethodRoomStats:            true,
	MethodControl:              true,
}

// commerceKeywords 方法名中出现即视为电商相关的关键词
var commerceKeywords = []string{
	"Shopping", "Ecom", "Product", "Order", "Buy", "Purchase",
	"Cart", "Item", "Goods", "Trade", "Commerce", "Sale", "Shop",
}

// IsCoreMethod 判断是否为核心消息方法
func IsCoreMethod(method string) bool {
	return coreMethods[method]
}

// IsCommerceMethod 判断是否为电商消息方法
func IsCommerceMethod(method string) bool {
	return commerceMethods[method]
}

// IsNoiseMethod 判断是否为噪声消息方法
func IsNoiseMethod(method string) bool {
	return noiseMethods[method]
}

// HasCommerceKeyword 判断方法名是否包含电商关键词
func HasCommerceKeyword(method string) bool {
	for _, kw := range commerceKeywords {
		if strings.Contains(method, kw) {
			return true
		}
	}
	return false
}
