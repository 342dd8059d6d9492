// Package dedup 实现高频电商消息的内容签名去重。
//
// 每次查询先惰性清理超过TTL窗口的缓存条目，再做成员检查；命中时不刷新
// 时间戳，因此持续的重复流按首次出现的节奏被重新放行，而不是无限延长
// 抑制窗口。缓存为单连接私有，不跨会话共享。
package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"LiveBarrageRecorder/internal/event"
	"LiveBarrageRecorder/internal/protocol"
)

// DefaultTTL 重复消息的抑制窗口
const DefaultTTL = 2 * time.Second

// ecomStructureMarker 电商通用消息中可用于结构化签名的标识
const ecomStructureMarker = "ProductRefreshMessage"

// ecomSignaturePrefix 结构化签名取负载前缀的长度，前缀通常已包含关键信息
const ecomSignaturePrefix = 100

// Deduplicator 时间窗口内容签名缓存
type Deduplicator struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	cache map[string]time.Time
}

// New 创建去重器
func New(ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Deduplicator{
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]time.Time),
	}
}

// ShouldSuppress 判断一条消息是否为窗口内的重复
// 首次出现的签名被缓存并放行，窗口内再次出现则抑制
func (d *Deduplicator) ShouldSuppress(method string, payload []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.purgeLocked(now)

	sig, ok := extractSignature(method, payload)
	if !ok {
		// 无法提取特征时退化为逐字节哈希：字节级重复仍被抑制，
		// 语义相同但重新编码的消息不会
		sig = hashKey(fmt.Sprintf("%s_%s", method, payload))
	}

	if _, seen := d.cache[sig]; seen {
		return true
	}

	d.cache[sig] = now
	return false
}

// Size 当前缓存条目数
func (d *Deduplicator) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cache)
}

// purgeLocked 清理所有超过TTL的条目，调用方持锁
func (d *Deduplicator) purgeLocked(now time.Time) {
	for key, seen := range d.cache {
		if now.Sub(seen) > d.ttl {
			delete(d.cache, key)
		}
	}
}

// extractSignature 按方法类型提取内容签名
// 直播购物：商品ID+事件时间截断到秒；商品变更：更新时间截断到秒+toast文本；
// 电商通用：负载含结构标识时取前缀哈希，否则提取失败
func extractSignature(method string, payload []byte) (string, bool) {
	switch method {
	case protocol.MethodLiveShopping:
		ev, err := event.DecodeLiveShopping(payload)
		if err != nil {
			return "", false
		}
		return hashKey(fmt.Sprintf("%s_%d_%d", method, ev.PromotionID, ev.EventTimeMs/1000)), true

	case protocol.MethodProductChange:
		ev, err := event.DecodeProductChange(payload)
		if err != nil {
			return "", false
		}
		return hashKey(fmt.Sprintf("%s_%d_%s", method, ev.UpdateTimestamp/1000, ev.UpdateToast)), true

	case protocol.MethodEcomGeneral:
		ev, err := event.DecodeEcomGeneral(payload)
		if err != nil || !strings.Contains(ev.Text, ecomStructureMarker) {
			return "", false
		}
		prefix := payload
		if len(prefix) > ecomSignaturePrefix {
			prefix = prefix[:ecomSignaturePrefix]
		}
		return hashKey(fmt.Sprintf("%s_%s", method, prefix)), true
	}

	return "", false
}

// hashKey 生成缓存键，与上游一致使用md5摘要
func hashKey(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
