package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatFrameRoundTrip(t *testing.T) {
	raw := EncodeHeartbeat()

	frame, err := DecodeFrame(raw)
	require.NoError(t, err)

	assert.Equal(t, PayloadTypeHeartbeat, frame.PayloadType)
	assert.Equal(t, uint64(0), frame.LogID)
	assert.Empty(t, frame.Payload)
}

func TestAckFrameRoundTrip(t *testing.T) {
	raw := EncodeAck(42, "tok123")

	frame, err := DecodeFrame(raw)
	require.NoError(t, err)

	assert.Equal(t, PayloadTypeAck, frame.PayloadType)
	assert.Equal(t, uint64(42), frame.LogID)
	assert.Equal(t, "tok123", string(frame.Payload))
}

func TestMessageFrameRoundTrip(t *testing.T) {
	resp := &Response{
		NeedAck:     true,
		InternalExt: "ext-token",
		Messages: []Message{
			{Method: "WebcastChatMessage", Payload: []byte{0x0a, 0x02, 0x68, 0x69}},
			{Method: "WebcastLikeMessage", Payload: []byte{0x10, 0x05}},
		},
	}

	frame, err := DecodeFrame(EncodeFrame(7, PayloadTypeMessage, Compress(EncodeResponse(resp))))
	require.NoError(t, err)
	require.Equal(t, PayloadTypeMessage, frame.PayloadType)
	require.Equal(t, uint64(7), frame.LogID)

	decompressed, err := Decompress(frame.Payload)
	require.NoError(t, err)

	decoded, err := DecodeResponse(decompressed)
	require.NoError(t, err)

	assert.True(t, decoded.NeedAck)
	assert.Equal(t, "ext-token", decoded.InternalExt)
	require.Len(t, decoded.Messages, 2)
	assert.Equal(t, "WebcastChatMessage", decoded.Messages[0].Method)
	assert.Equal(t, resp.Messages[0].Payload, decoded.Messages[0].Payload)
	assert.Equal(t, "WebcastLikeMessage", decoded.Messages[1].Method)
}

func TestMessageOrderPreserved(t *testing.T) {
	resp := &Response{}
	for _, method := range []string{"m1", "m2", "m3", "m4"} {
		resp.Messages = append(resp.Messages, Message{Method: method, Payload: []byte{0x08, 0x01}})
	}

	decoded, err := DecodeResponse(EncodeResponse(resp))
	require.NoError(t, err)

	require.Len(t, decoded.Messages, 4)
	for i, method := range []string{"m1", "m2", "m3", "m4"} {
		assert.Equal(t, method, decoded.Messages[i].Method)
	}
}

func TestDecodeFrameMalformed(t *testing.T) {
	_, err := DecodeFrame([]byte{0xff})
	assert.ErrorIs(t, err, ErrFrameDecode)
}

func TestDecodeFrameTooLarge(t *testing.T) {
	_, err := DecodeFrame(make([]byte, MaxFrameSize+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecompressInvalidGzip(t *testing.T) {
	_, err := Decompress([]byte("not gzip data"))
	assert.ErrorIs(t, err, ErrPayloadDecompress)
}

func TestDecompressOversizedRejected(t *testing.T) {
	// 解压后超过上限必须报错，而不是静默截断
	_, err := Decompress(Compress(make([]byte, MaxFrameSize+1)))
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	// 恰好到上限仍然放行
	data, err := Decompress(Compress(make([]byte, MaxFrameSize)))
	require.NoError(t, err)
	assert.Len(t, data, MaxFrameSize)
}

func TestDecodeResponseMalformed(t *testing.T) {
	_, err := DecodeResponse([]byte{0xff, 0xff})
	assert.ErrorIs(t, err, ErrResponseDecode)
}

func TestEncodeFrameOmitsZeroLogID(t *testing.T) {
	frame, err := DecodeFrame(EncodeFrame(0, PayloadTypeMessage, []byte("x")))
	require.NoError(t, err)

	assert.Equal(t, uint64(0), frame.LogID)
	assert.Equal(t, "x", string(frame.Payload))
}
