package registry

import (
	"fmt"
	"strings"
	"time"

	"LiveBarrageRecorder/internal/event"
)

// 每种类型事件的固定格式模板，输出原样写入转写文件

// FormatChat 弹幕行
func FormatChat(ev *event.ChatEvent) string {
	return fmt.Sprintf("[弹幕] %s: %s", ev.User.Nickname, ev.Content)
}

// FormatGift 礼物行
func FormatGift(ev *event.GiftEvent) string {
	return fmt.Sprintf("[礼物] %s 赠送 %s x%d", ev.User.Nickname, ev.GiftName, ev.ComboCount)
}

// FormatMember 进场行
func FormatMember(ev *event.MemberEvent) string {
	return fmt.Sprintf("[进场] [%s]%s 进入了直播间", genderText(ev.User.Gender), ev.User.Nickname)
}

// FormatLike 点赞行
func FormatLike(ev *event.LikeEvent) string {
	return fmt.Sprintf("[点赞] %s 点了%d个赞", ev.User.Nickname, ev.Count)
}

// FormatSocial 关注行
func FormatSocial(ev *event.SocialEvent) string {
	return fmt.Sprintf("[关注] [%d]%s 关注了主播", ev.User.ID, ev.User.Nickname)
}

// FormatEmojiChat 表情弹幕行，无默认文本时显示表情ID
func FormatEmojiChat(ev *event.EmojiChatEvent) string {
	content := ev.DefaultContent
	if content == "" {
		content = fmt.Sprintf("表情ID:%d", ev.EmojiID)
	}
	return fmt.Sprintf("[表情] %s: %s", ev.User.Nickname, content)
}

// FormatRoomUserSeq 观看人数统计行
func FormatRoomUserSeq(ev *event.RoomUserSeqEvent) string {
	return fmt.Sprintf("[统计] 当前观看人数: %d, 累计观看人数: %s", ev.CurrentViewers, ev.TotalViewers)
}

// FormatRoomStats 房间统计行，展示文本为空时返回空串（不写入）
func FormatRoomStats(ev *event.RoomStatsEvent) string {
	if ev.DisplayLong == "" {
		return ""
	}
	return fmt.Sprintf("[房间统计] %s", ev.DisplayLong)
}

// FormatControl 控制消息行
func FormatControl(ev *event.ControlEvent) string {
	if ev.Status == event.ControlStatusEnded {
		return "[控制] 直播间已结束"
	}
	return fmt.Sprintf("[控制] 直播间状态: %d", ev.Status)
}

// FormatProductChange 商品变更行，toast为空时返回空串
func FormatProductChange(ev *event.ProductChangeEvent) string {
	if ev.UpdateToast == "" {
		return ""
	}
	return fmt.Sprintf("[商品变更] %s", ev.UpdateToast)
}

// shoppingActionText 购物动作类型到描述的映射
var shoppingActionText = map[int32]string{
	1: "商品展示",
	2: "下单操作",
	3: "加购物车",
	4: "关注商品",
	5: "取消关注",
}

// FormatLiveShopping 直播购物行，下单操作追加醒目标记行
func FormatLiveShopping(ev *event.LiveShoppingEvent) []string {
	operation, ok := shoppingActionText[ev.ActionKind]
	if !ok {
		operation = fmt.Sprintf("未知操作(%d)", ev.ActionKind)
	}

	var lines []string
	if ev.EventTimeMs > 0 {
		timeStr := time.UnixMilli(ev.EventTimeMs).Format("15:04:05")
		lines = append(lines, fmt.Sprintf("[直播购物] %s - %s, 商品ID:%d", timeStr, operation, ev.PromotionID))
		if ev.ActionKind == event.ActionKindOrder {
			lines = append(lines, fmt.Sprintf("[🛒 下单] %s - 商品ID:%d", timeStr, ev.PromotionID))
		}
	} else {
		lines = append(lines, fmt.Sprintf("[直播购物] %s, 商品ID:%d", operation, ev.PromotionID))
		if ev.ActionKind == event.ActionKindOrder {
			lines = append(lines, fmt.Sprintf("[🛒 下单] 商品ID:%d", ev.PromotionID))
		}
	}

	return lines
}

// FormatEcomGeneral 电商通用消息行：关键词摘要加详细内容
func FormatEcomGeneral(ev *event.EcomGeneralEvent) []string {
	if len(ev.Keywords) > 0 {
		return []string{
			fmt.Sprintf("[下单] 用户下单商品 - 关键词: %s", strings.Join(ev.Keywords, ", ")),
			fmt.Sprintf("[下单] 详细信息: %s...", truncateText(ev.Text, 200)),
		}
	}
	return []string{
		fmt.Sprintf("[下单] 用户下单商品 - 数据长度: %d", len(ev.Raw)),
		fmt.Sprintf("[下单] 详细信息: %s...", truncateText(ev.Text, 100)),
	}
}

// FormatDiagnostic 诊断/错误行
func FormatDiagnostic(text string) string {
	return fmt.Sprintf("[系统] %s", text)
}

// genderText 性别值到展示文本的映射
func genderText(gender int32) string {
	switch gender {
	case 1:
		return "男"
	case 0:
		return "女"
	default:
		return "未知"
	}
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
