package event

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// 可读内容的上限，提取结果只作诊断参考，不当作解码事件
const maxReadableLen = 200

// ExtractReadable 从未知schema的负载中做尽力而为的可读文本提取
// 先按UTF-8解释并保留可打印字符；不足6个字符时退回到扫描ASCII可打印
// 字节连续段（长度>3），用空格拼接。两种方式都失败时返回空串
func ExtractReadable(payload []byte) string {
	if text := printableUTF8(payload); utf8.RuneCountInString(text) > 5 {
		return truncate(text, maxReadableLen)
	}

	if runs := printableRuns(payload); len(runs) > 0 {
		return truncate(strings.Join(runs, " "), maxReadableLen)
	}

	return ""
}

// printableUTF8 将负载按UTF-8解释，仅保留可打印字符
func printableUTF8(payload []byte) string {
	var sb strings.Builder
	for _, r := range string(payload) {
		if r == utf8.RuneError {
			continue
		}
		if unicode.IsPrint(r) && r >= 0x20 {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// printableRuns 扫描原始字节中长度>3的ASCII可打印连续段
func printableRuns(payload []byte) []string {
	var runs []string
	var current []byte
	for _, b := range payload {
		if b >= 0x20 && b <= 0x7e {
			current = append(current, b)
			continue
		}
		if len(current) > 3 {
			runs = append(runs, string(current))
		}
		current = current[:0]
	}
	if len(current) > 3 {
		runs = append(runs, string(current))
	}
	return runs
}

// dotPrintable 将负载中不可打印的字节替换为'.'，保持长度不变
func dotPrintable(payload []byte) string {
	out := make([]byte, len(payload))
	for i, b := range payload {
		if b >= 0x20 && b <= 0x7e {
			out[i] = b
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}

// containsKeyword 大小写敏感的关键词匹配，与上游的行为一致
func containsKeyword(text, keyword string) bool {
	return strings.Contains(text, keyword)
}

// truncate 按rune边界截断到最多n个字符
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
