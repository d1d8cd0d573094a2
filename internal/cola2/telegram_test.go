package cola2

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/safetyscanner/internal/core"
)

func TestEncodeRequestLayout(t *testing.T) {
	var ds core.DeviceStatus
	raw := EncodeRequest(NewDeviceStatusCommand(&ds), 0xCAFEBABE, 0x0102)

	require.Len(t, raw, RequestHeaderSize+2)
	assert.Equal(t, uint32(STx), binary.BigEndian.Uint32(raw[0:4]))
	assert.Equal(t, uint32(len(raw)-8), binary.BigEndian.Uint32(raw[4:8]))
	assert.Equal(t, byte(0), raw[8])
	assert.Equal(t, byte(0), raw[9])
	assert.Equal(t, uint32(0xCAFEBABE), binary.BigEndian.Uint32(raw[10:14]))
	assert.Equal(t, uint16(0x0102), binary.BigEndian.Uint16(raw[14:16]))
	assert.Equal(t, byte('R'), raw[16])
	assert.Equal(t, byte('I'), raw[17])
	assert.Equal(t, uint16(IndexDeviceStatus), binary.LittleEndian.Uint16(raw[18:20]))
}

func TestEncodeCreateSession(t *testing.T) {
	var id uint32
	raw := EncodeRequest(NewCreateSession(60, 1, &id), 0, 1)
	assert.Equal(t, []byte{'O', 'X'}, raw[16:18])
	assert.Equal(t, []byte{60, 0, 0, 0, 1}, raw[18:])
}

func TestExpectedLength(t *testing.T) {
	_, ok := ExpectedLength([]byte{2, 2, 2, 2, 0, 0})
	assert.False(t, ok)

	n, ok := ExpectedLength([]byte{2, 2, 2, 2, 0, 0, 0x01, 0x00})
	assert.True(t, ok)
	assert.Equal(t, 256+8, n)
}

func TestDecodeReply(t *testing.T) {
	raw := EncodeReply(Reply{SessionID: 7, RequestID: 9, Type: 'R', Mode: 'A', Index: 13, Payload: []byte{1, 2, 3}})
	r, err := DecodeReply(core.NewBuffer(raw))
	require.NoError(t, err)
	assert.Equal(t, uint32(7), r.SessionID)
	assert.Equal(t, uint16(9), r.RequestID)
	assert.Equal(t, uint16(13), r.Index)
	assert.Equal(t, []byte{1, 2, 3}, r.Payload)
	assert.False(t, r.Failed())
}

func TestDecodeFailureReply(t *testing.T) {
	raw := EncodeReply(Reply{SessionID: 7, RequestID: 9, Type: 'F', Mode: 'A', ErrorCode: 0x0A05})
	r, err := DecodeReply(core.NewBuffer(raw))
	require.NoError(t, err)
	assert.True(t, r.Failed())
	assert.Equal(t, uint16(0x0A05), r.ErrorCode)
	assert.Empty(t, r.Payload)
}

func TestDecodeReplyRejectsMalformed(t *testing.T) {
	good := EncodeReply(Reply{Type: 'R', Mode: 'A', Payload: []byte{1}})

	t.Run("short", func(t *testing.T) {
		_, err := DecodeReply(core.NewBuffer(good[:10]))
		assert.True(t, errors.Is(err, core.ErrDecode))
	})
	t.Run("marker", func(t *testing.T) {
		bad := append([]byte(nil), good...)
		bad[0] = 0
		_, err := DecodeReply(core.NewBuffer(bad))
		assert.True(t, errors.Is(err, core.ErrProtocol))
	})
	t.Run("length", func(t *testing.T) {
		_, err := DecodeReply(core.NewBuffer(good[:len(good)-1]))
		assert.True(t, errors.Is(err, core.ErrProtocol))
	})
}

func TestDecodeReplyDoesNotCopyPayload(t *testing.T) {
	raw := EncodeReply(Reply{Type: 'R', Mode: 'A', Payload: []byte{1, 2}})
	buf := core.WrapBuffer(raw)
	r, err := DecodeReply(buf)
	require.NoError(t, err)
	raw[ReplyHeaderSize] = 9
	assert.Equal(t, byte(9), r.Payload[0])
}

func TestStreamMergerAnyChunking(t *testing.T) {
	telegram := EncodeReply(Reply{SessionID: 1, RequestID: 2, Type: 'R', Mode: 'A', Payload: make([]byte, 37)})

	for i := 1; i < len(telegram); i++ {
		for j := i; j < len(telegram); j++ {
			m := NewStreamMerger()
			assert.True(t, m.IsEmpty())
			parts := [][]byte{telegram[:i], telegram[i:j], telegram[j:]}
			for k, p := range parts {
				complete := m.Add(core.NewBuffer(p))
				if k < len(parts)-1 && complete {
					t.Fatalf("split %d/%d: complete after part %d", i, j, k)
				}
			}
			require.True(t, m.IsComplete(), "split %d/%d", i, j)
			out, err := m.Deploy()
			require.NoError(t, err)
			require.Equal(t, telegram, out.Bytes(), "split %d/%d", i, j)
		}
	}
}

func TestStreamMergerDropsTrailingBytes(t *testing.T) {
	telegram := EncodeReply(Reply{Type: 'C', Mode: 'A'})
	m := NewStreamMerger()
	assert.True(t, m.Add(core.NewBuffer(append(append([]byte(nil), telegram...), 0xFF, 0xFF))))
	out, err := m.Deploy()
	require.NoError(t, err)
	assert.Equal(t, telegram, out.Bytes())
}

func TestStreamMergerDeployIncomplete(t *testing.T) {
	m := NewStreamMerger()
	m.Add(core.NewBuffer([]byte{2, 2, 2}))
	_, err := m.Deploy()
	assert.True(t, errors.Is(err, core.ErrProtocol))
}

func TestDecodeRequest(t *testing.T) {
	raw := EncodeRequest(NewFindMeCommand(5), 0x11, 3)
	req, err := DecodeRequest(core.NewBuffer(raw))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x11), req.SessionID)
	assert.Equal(t, uint16(3), req.RequestID)
	assert.Equal(t, byte(TypeMethod), req.Type)
	assert.Equal(t, uint16(MethodFindMe), req.Index)
	assert.Equal(t, []byte{5, 0}, req.Payload)

	var id uint32
	req, err = DecodeRequest(core.NewBuffer(EncodeRequest(NewCreateSession(60, 1, &id), 0, 1)))
	require.NoError(t, err)
	assert.Equal(t, []byte{60, 0, 0, 0, 1}, req.Payload)

	_, err = DecodeRequest(core.NewBuffer(raw[:RequestHeaderSize+1]))
	assert.True(t, errors.Is(err, core.ErrProtocol))
}
