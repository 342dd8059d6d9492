package protocol

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	// 最大帧大小限制（防止内存攻击）
	MaxFrameSize = 4 * 1024 * 1024 // 4MB

	PayloadTypeMessage   = "msg"
	PayloadTypeHeartbeat = "hb"
	PayloadTypeAck       = "ack"
)

var (
	ErrFrameTooLarge     = errors.New("frame too large")
	ErrFrameDecode       = errors.New("frame decode failed")
	ErrPayloadDecompress = errors.New("payload decompress failed")
	ErrResponseDecode    = errors.New("response decode failed")
)

// PushFrame外层信封字段编号（Webcast推送协议）
const (
	frameFieldLogID       = 2
	frameFieldPayloadType = 7
	frameFieldPayload     = 8
)

// Response内层信封字段编号
const (
	respFieldMessages    = 1
	respFieldInternalExt = 5
	respFieldNeedAck     = 9
)

// Message多路复用单元字段编号
const (
	msgFieldMethod  = 1
	msgFieldPayload = 2
)

// Frame 线上交换的外层信封单元
type Frame struct {
	LogID       uint64
	PayloadType string // "msg" / "hb" / "ack"
	Payload     []byte
}

// Message Response中的一个多路复用单元
type Message struct {
	Method  string
	Payload []byte
}

// Response 一个msg帧解压后的结构化负载
type Response struct {
	NeedAck     bool
	InternalExt string
	Messages    []Message
}

// DecodeFrame 从二进制数据中解码外层信封
func DecodeFrame(raw []byte) (*Frame, error) {
	if len(raw) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	frame := &Frame{}
	err := EachField(raw, func(f Field) {
		switch f.Num {
		case frameFieldLogID:
			frame.LogID = f.Varint()
		case frameFieldPayloadType:
			frame.PayloadType = f.Text()
		case frameFieldPayload:
			frame.Payload = f.Bytes()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameDecode, err)
	}

	return frame, nil
}

// EncodeFrame 将外层信封编码为二进制帧
func EncodeFrame(logID uint64, payloadType string, payload []byte) []byte {
	buf := make([]byte, 0, 16+len(payloadType)+len(payload))

	if logID != 0 {
		buf = protowire.AppendTag(buf, frameFieldLogID, protowire.VarintType)
		buf = protowire.AppendVarint(buf, logID)
	}
	buf = protowire.AppendTag(buf, frameFieldPayloadType, protowire.BytesType)
	buf = protowire.AppendString(buf, payloadType)
	if len(payload) > 0 {
		buf = protowire.AppendTag(buf, frameFieldPayload, protowire.BytesType)
		buf = protowire.AppendBytes(buf, payload)
	}

	return buf
}

// EncodeHeartbeat 编码心跳帧（空负载，作为transport ping发送）
func EncodeHeartbeat() []byte {
	return EncodeFrame(0, PayloadTypeHeartbeat, nil)
}

// EncodeAck 编码确认帧，回显被确认Response的log id并携带其ack令牌
func EncodeAck(logID uint64, internalExt string) []byte {
	return EncodeFrame(logID, PayloadTypeAck, []byte(internalExt))
}

// Decompress 对msg帧的负载做gzip解压
func Decompress(payload []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadDecompress, err)
	}
	defer zr.Close()

	// 多读一个字节以区分"恰好到上限"和"超限被截断"
	decompressed, err := io.ReadAll(io.LimitReader(zr, MaxFrameSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadDecompress, err)
	}
	if len(decompressed) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	return decompressed, nil
}

// Compress gzip压缩，与Decompress配对（测试服务器使用）
func Compress(data []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write(data)
	zw.Close()
	return buf.Bytes()
}

// DecodeResponse 解码内层信封，输入为msg帧解压后的字节
func DecodeResponse(decompressed []byte) (*Response, error) {
	resp := &Response{}
	err := EachField(decompressed, func(f Field) {
		switch f.Num {
		case respFieldMessages:
			if msg, err := decodeMessage(f.Bytes()); err == nil {
				resp.Messages = append(resp.Messages, msg)
			}
		case respFieldInternalExt:
			resp.InternalExt = f.Text()
		case respFieldNeedAck:
			resp.NeedAck = f.Varint() != 0
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseDecode, err)
	}

	return resp, nil
}

// decodeMessage 解码单个多路复用单元
func decodeMessage(raw []byte) (Message, error) {
	msg := Message{}
	err := EachField(raw, func(f Field) {
		switch f.Num {
		case msgFieldMethod:
			msg.Method = f.Text()
		case msgFieldPayload:
			msg.Payload = f.Bytes()
		}
	})
	return msg, err
}

// EncodeResponse 将内层信封编码为protobuf字节（测试服务器使用）
func EncodeResponse(resp *Response) []byte {
	buf := make([]byte, 0, 64)

	for _, msg := range resp.Messages {
		inner := make([]byte, 0, 16+len(msg.Method)+len(msg.Payload))
		inner = protowire.AppendTag(inner, msgFieldMethod, protowire.BytesType)
		inner = protowire.AppendString(inner, msg.Method)
		inner = protowire.AppendTag(inner, msgFieldPayload, protowire.BytesType)
		inner = protowire.AppendBytes(inner, msg.Payload)

		buf = protowire.AppendTag(buf, respFieldMessages, protowire.BytesType)
		buf = protowire.AppendBytes(buf, inner)
	}
	if resp.InternalExt != "" {
		buf = protowire.AppendTag(buf, respFieldInternalExt, protowire.BytesType)
		buf = protowire.AppendString(buf, resp.InternalExt)
	}
	if resp.NeedAck {
		buf = protowire.AppendTag(buf, respFieldNeedAck, protowire.VarintType)
		buf = protowire.AppendVarint(buf, 1)
	}

	return buf
}
