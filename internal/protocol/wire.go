package protocol

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Field 一个已定位的protobuf字段，值保持未解码的原始形式
type Field struct {
	Num  protowire.Number
	Type protowire.Type
	raw  []byte
}

// Varint 读取varint字段值，类型不符时返回0
func (f Field) Varint() uint64 {
	if f.Type != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(f.raw)
	if n < 0 {
		return 0
	}
	return v
}

// Bytes 读取length-delimited字段值，类型不符时返回nil
func (f Field) Bytes() []byte {
	if f.Type != protowire.BytesType {
		return nil
	}
	v, n := protowire.ConsumeBytes(f.raw)
	if n < 0 {
		return nil
	}
	return v
}

// Text 读取字段值并解释为UTF-8文本
func (f Field) Text() string {
	return string(f.Bytes())
}

// EachField 顺序遍历一段protobuf编码数据的顶层字段
// 未知字段按wire类型跳过，损坏的数据返回解析错误
func EachField(b []byte, visit func(f Field)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return protowire.ParseError(m)
		}

		visit(Field{Num: num, Type: typ, raw: b[:m]})
		b = b[m:]
	}
	return nil
}
