package event

import (
	"fmt"

	"LiveBarrageRecorder/internal/protocol"
)

// 各消息类型的字段编号，来自Webcast协议的社区整理定义
// 上游schema存在漂移，所有字段都按"存在则取值，否则用默认值"处理
const (
	userFieldID       = 1
	userFieldNickname = 3
	userFieldGender   = 4

	commonFieldCreateTime = 4

	chatFieldUser    = 2
	chatFieldContent = 3

	giftFieldComboCount = 6
	giftFieldUser       = 7
	giftFieldGift       = 15
	giftStructFieldName = 16

	memberFieldUser = 2

	likeFieldCount = 2
	likeFieldUser  = 5

	socialFieldUser = 2

	emojiFieldUser           = 2
	emojiFieldEmojiID        = 3
	emojiFieldDefaultContent = 5

	roomUserSeqFieldTotal       = 3
	roomUserSeqFieldTotalPV     = 11
	roomStatsFieldDisplayLong   = 4
	controlFieldStatus          = 2
	productFieldUpdateTimestamp = 2
	productFieldUpdateToast     = 3

	shoppingFieldCommon      = 1
	shoppingFieldMsgType     = 2
	shoppingFieldPromotionID = 3
)

// decodeUser 解码嵌套的User结构，gender缺省为未知
func decodeUser(raw []byte) User {
	user := User{Gender: GenderUnknown}
	protocol.EachField(raw, func(f protocol.Field) {
		switch f.Num {
		case userFieldID:
			user.ID = f.Varint()
		case userFieldNickname:
			user.Nickname = f.Text()
		case userFieldGender:
			user.Gender = int32(f.Varint())
		}
	})
	return user
}

// decodeCommonCreateTime 从嵌套的Common结构中提取create_time（毫秒）
func decodeCommonCreateTime(raw []byte) int64 {
	var createTime int64
	protocol.EachField(raw, func(f protocol.Field) {
		if f.Num == commonFieldCreateTime {
			createTime = int64(f.Varint())
		}
	})
	return createTime
}

// DecodeChat 解码弹幕消息
func DecodeChat(payload []byte) (*ChatEvent, error) {
	ev := &ChatEvent{User: User{Gender: GenderUnknown}}
	err := protocol.EachField(payload, func(f protocol.Field) {
		switch f.Num {
		case chatFieldUser:
			ev.User = decodeUser(f.Bytes())
		case chatFieldContent:
			ev.Content = f.Text()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode chat message failed: %w", err)
	}
	return ev, nil
}

// DecodeGift 解码礼物消息，combo_count缺省为1
func DecodeGift(payload []byte) (*GiftEvent, error) {
	ev := &GiftEvent{User: User{Gender: GenderUnknown}, ComboCount: 1}
	err := protocol.EachField(payload, func(f protocol.Field) {
		switch f.Num {
		case giftFieldComboCount:
			if v := f.Varint(); v > 0 {
				ev.ComboCount = v
			}
		case giftFieldUser:
			ev.User = decodeUser(f.Bytes())
		case giftFieldGift:
			protocol.EachField(f.Bytes(), func(g protocol.Field) {
				if g.Num == giftStructFieldName {
					ev.GiftName = g.Text()
				}
			})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode gift message failed: %w", err)
	}
	return ev, nil
}

// DecodeMember 解码观众进场消息
func DecodeMember(payload []byte) (*MemberEvent, error) {
	ev := &MemberEvent{User: User{Gender: GenderUnknown}}
	err := protocol.EachField(payload, func(f protocol.Field) {
		if f.Num == memberFieldUser {
			ev.User = decodeUser(f.Bytes())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode member message failed: %w", err)
	}
	return ev, nil
}

// DecodeLike 解码点赞消息，count缺省为1
func DecodeLike(payload []byte) (*LikeEvent, error) {
	ev := &LikeEvent{User: User{Gender: GenderUnknown}, Count: 1}
	err := protocol.EachField(payload, func(f protocol.Field) {
		switch f.Num {
		case likeFieldCount:
			if v := f.Varint(); v > 0 {
				ev.Count = v
			}
		case likeFieldUser:
			ev.User = decodeUser(f.Bytes())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode like message failed: %w", err)
	}
	return ev, nil
}

// DecodeSocial 解码关注消息
func DecodeSocial(payload []byte) (*SocialEvent, error) {
	ev := &SocialEvent{User: User{Gender: GenderUnknown}}
	err := protocol.EachField(payload, func(f protocol.Field) {
		if f.Num == socialFieldUser {
			ev.User = decodeUser(f.Bytes())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode social message failed: %w", err)
	}
	return ev, nil
}

// DecodeEmojiChat 解码表情弹幕消息
func DecodeEmojiChat(payload []byte) (*EmojiChatEvent, error) {
	ev := &EmojiChatEvent{User: User{Gender: GenderUnknown}}
	err := protocol.EachField(payload, func(f protocol.Field) {
		switch f.Num {
		case emojiFieldUser:
			ev.User = decodeUser(f.Bytes())
		case emojiFieldEmojiID:
			ev.EmojiID = int64(f.Varint())
		case emojiFieldDefaultContent:
			ev.DefaultContent = f.Text()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode emoji chat message failed: %w", err)
	}
	return ev, nil
}

// DecodeRoomUserSeq 解码房间观看人数统计
func DecodeRoomUserSeq(payload []byte) (*RoomUserSeqEvent, error) {
	ev := &RoomUserSeqEvent{}
	err := protocol.EachField(payload, func(f protocol.Field) {
		switch f.Num {
		case roomUserSeqFieldTotal:
			ev.CurrentViewers = int64(f.Varint())
		case roomUserSeqFieldTotalPV:
			ev.TotalViewers = f.Text()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode room user seq message failed: %w", err)
	}
	return ev, nil
}

// DecodeRoomStats 解码房间统计消息
func DecodeRoomStats(payload []byte) (*RoomStatsEvent, error) {
	ev := &RoomStatsEvent{}
	err := protocol.EachField(payload, func(f protocol.Field) {
		if f.Num == roomStatsFieldDisplayLong {
			ev.DisplayLong = f.Text()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode room stats message failed: %w", err)
	}
	return ev, nil
}

// DecodeControl 解码控制消息
func DecodeControl(payload []byte) (*ControlEvent, error) {
	ev := &ControlEvent{}
	err := protocol.EachField(payload, func(f protocol.Field) {
		if f.Num == controlFieldStatus {
			ev.Status = int32(f.Varint())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode control message failed: %w", err)
	}
	return ev, nil
}

// DecodeProductChange 解码商品变更消息
func DecodeProductChange(payload []byte) (*ProductChangeEvent, error) {
	ev := &ProductChangeEvent{}
	err := protocol.EachField(payload, func(f protocol.Field) {
		switch f.Num {
		case productFieldUpdateTimestamp:
			ev.UpdateTimestamp = int64(f.Varint())
		case productFieldUpdateToast:
			ev.UpdateToast = f.Text()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode product change message failed: %w", err)
	}
	return ev, nil
}

// DecodeLiveShopping 解码直播购物消息
func DecodeLiveShopping(payload []byte) (*LiveShoppingEvent, error) {
	ev := &LiveShoppingEvent{}
	err := protocol.EachField(payload, func(f protocol.Field) {
		switch f.Num {
		case shoppingFieldCommon:
			ev.EventTimeMs = decodeCommonCreateTime(f.Bytes())
		case shoppingFieldMsgType:
			ev.ActionKind = int32(f.Varint())
		case shoppingFieldPromotionID:
			ev.PromotionID = f.Varint()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode live shopping message failed: %w", err)
	}
	return ev, nil
}

// ecomKeywords 电商通用消息文本中要扫描的关键词
var ecomKeywords = []string{
	"Product", "Order", "Buy", "Cart", "Item", "Goods",
	"Purchase", "Sale", "Shop", "Commerce", "Ecom", "Refresh", "Update",
}

// DecodeEcomGeneral 解读电商通用消息
// schema未公开，不做结构化解码，只生成可读文本和关键词
func DecodeEcomGeneral(payload []byte) (*EcomGeneralEvent, error) {
	text := dotPrintable(payload)

	var found []string
	for _, kw := range ecomKeywords {
		if containsKeyword(text, kw) {
			found = append(found, kw)
		}
	}

	return &EcomGeneralEvent{
		Raw:      payload,
		Text:     text,
		Keywords: found,
	}, nil
}
