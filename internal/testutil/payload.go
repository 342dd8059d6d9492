// Package testutil 提供测试中构造Webcast消息负载的辅助函数。
//
// 上游schema没有公开的生成代码，测试负载直接用protowire拼装，
// 字段编号与internal/event中的解码器保持一致。
package testutil

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// UserSpec 构造User负载的参数
type UserSpec struct {
	ID        uint64
	Nickname  string
	Gender    int32
	HasGender bool
}

// BuildUser 构造嵌套的User字节
func BuildUser(spec UserSpec) []byte {
	buf := []byte{}
	if spec.ID != 0 {
		buf = protowire.AppendTag(buf, 1, protowire.VarintType)
		buf = protowire.AppendVarint(buf, spec.ID)
	}
	if spec.Nickname != "" {
		buf = protowire.AppendTag(buf, 3, protowire.BytesType)
		buf = protowire.AppendString(buf, spec.Nickname)
	}
	if spec.HasGender {
		buf = protowire.AppendTag(buf, 4, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(spec.Gender))
	}
	return buf
}

// BuildChatPayload 构造弹幕消息负载
func BuildChatPayload(user UserSpec, content string) []byte {
	buf := []byte{}
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, BuildUser(user))
	buf = protowire.AppendTag(buf, 3, protowire.BytesType)
	buf = protowire.AppendString(buf, content)
	return buf
}

// BuildGiftPayload 构造礼物消息负载，comboCount为0时省略该字段
func BuildGiftPayload(user UserSpec, giftName string, comboCount uint64) []byte {
	buf := []byte{}
	if comboCount > 0 {
		buf = protowire.AppendTag(buf, 6, protowire.VarintType)
		buf = protowire.AppendVarint(buf, comboCount)
	}
	buf = protowire.AppendTag(buf, 7, protowire.BytesType)
	buf = protowire.AppendBytes(buf, BuildUser(user))

	gift := []byte{}
	gift = protowire.AppendTag(gift, 16, protowire.BytesType)
	gift = protowire.AppendString(gift, giftName)
	buf = protowire.AppendTag(buf, 15, protowire.BytesType)
	buf = protowire.AppendBytes(buf, gift)
	return buf
}

// BuildMemberPayload 构造进场消息负载
func BuildMemberPayload(user UserSpec) []byte {
	buf := []byte{}
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, BuildUser(user))
	return buf
}

// BuildLikePayload 构造点赞消息负载
func BuildLikePayload(user UserSpec, count uint64) []byte {
	buf := []byte{}
	if count > 0 {
		buf = protowire.AppendTag(buf, 2, protowire.VarintType)
		buf = protowire.AppendVarint(buf, count)
	}
	buf = protowire.AppendTag(buf, 5, protowire.BytesType)
	buf = protowire.AppendBytes(buf, BuildUser(user))
	return buf
}

// BuildSocialPayload 构造关注消息负载
func BuildSocialPayload(user UserSpec) []byte {
	buf := []byte{}
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, BuildUser(user))
	return buf
}

// BuildEmojiChatPayload 构造表情弹幕负载
func BuildEmojiChatPayload(user UserSpec, emojiID int64, defaultContent string) []byte {
	buf := []byte{}
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, BuildUser(user))
	buf = protowire.AppendTag(buf, 3, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(emojiID))
	if defaultContent != "" {
		buf = protowire.AppendTag(buf, 5, protowire.BytesType)
		buf = protowire.AppendString(buf, defaultContent)
	}
	return buf
}

// BuildRoomUserSeqPayload 构造观看人数统计负载
func BuildRoomUserSeqPayload(current int64, totalPV string) []byte {
	buf := []byte{}
	buf = protowire.AppendTag(buf, 3, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(current))
	buf = protowire.AppendTag(buf, 11, protowire.BytesType)
	buf = protowire.AppendString(buf, totalPV)
	return buf
}

// BuildRoomStatsPayload 构造房间统计负载
func BuildRoomStatsPayload(displayLong string) []byte {
	buf := []byte{}
	buf = protowire.AppendTag(buf, 4, protowire.BytesType)
	buf = protowire.AppendString(buf, displayLong)
	return buf
}

// BuildControlPayload 构造控制消息负载
func BuildControlPayload(status int32) []byte {
	buf := []byte{}
	buf = protowire.AppendTag(buf, 2, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(status))
	return buf
}

// BuildProductChangePayload 构造商品变更负载
func BuildProductChangePayload(updateTimestampMs int64, toast string) []byte {
	buf := []byte{}
	buf = protowire.AppendTag(buf, 2, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(updateTimestampMs))
	buf = protowire.AppendTag(buf, 3, protowire.BytesType)
	buf = protowire.AppendString(buf, toast)
	return buf
}

// BuildLiveShoppingPayload 构造直播购物负载
func BuildLiveShoppingPayload(actionKind int32, promotionID uint64, eventTimeMs int64) []byte {
	common := []byte{}
	if eventTimeMs > 0 {
		common = protowire.AppendTag(common, 4, protowire.VarintType)
		common = protowire.AppendVarint(common, uint64(eventTimeMs))
	}

	buf := []byte{}
	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendBytes(buf, common)
	buf = protowire.AppendTag(buf, 2, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(actionKind))
	buf = protowire.AppendTag(buf, 3, protowire.VarintType)
	buf = protowire.AppendVarint(buf, promotionID)
	return buf
}
