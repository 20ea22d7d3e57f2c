package ipc

import (
	"bytes"
	"testing"
	"time"

	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestKeyEventMessageRoundTrip(t *testing.T) {
	at := time.Unix(1700000000, 123456789)
	msg := NewKeyEventMessage(mediakey.VolumeHigher, at, 42)

	var decoded Message
	require.NoError(t, decoded.Unmarshal(msg.Marshal()))

	ev, err := GetKeyEvent(&decoded)
	require.NoError(t, err)
	assert.Equal(t, mediakey.VolumeHigher, ev.Key)
	assert.Equal(t, "VOLUME_HIGHER", ev.Label)
	assert.True(t, at.Equal(ev.Timestamp))
	assert.Equal(t, uint64(42), ev.Sequence)
}

func TestStatusResponseMessage(t *testing.T) {
	msg := NewStatusResponseMessage(&StatusResponse{
		AppName:     "PopcornKeys",
		Backend:     "x11",
		Kind:        "generic",
		Grabbed:     true,
		Subscribers: 3,
	})

	var decoded Message
	require.NoError(t, decoded.Unmarshal(msg.Marshal()))

	st, err := GetStatusResponse(&decoded)
	require.NoError(t, err)
	assert.Equal(t, *msg.Status, *st)

	_, err = GetKeyEvent(&decoded)
	assert.Error(t, err)
}

func TestUnknownKeyEncodesAsEmptyField(t *testing.T) {
	msg := NewKeyEventMessage(mediakey.Unknown, time.Time{}, 0)

	var decoded Message
	require.NoError(t, decoded.Unmarshal(msg.Marshal()))
	assert.Equal(t, mediakey.Unknown, decoded.KeyEvent.Key)
	assert.Equal(t, "UNKNOWN", decoded.KeyEvent.Label)
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	b := NewErrorMessage("nope").Marshal()
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "from the future")
	b = protowire.AppendTag(b, 100, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)

	var decoded Message
	require.NoError(t, decoded.Unmarshal(b))
	assert.Equal(t, MessageTypeError, decoded.Type)
	assert.Equal(t, "nope", decoded.Error)
}

func TestUnmarshalRejectsTruncatedInput(t *testing.T) {
	b := NewStatusResponseMessage(&StatusResponse{AppName: "PopcornKeys"}).Marshal()

	var decoded Message
	assert.Error(t, decoded.Unmarshal(b[:len(b)-3]))
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeMessage(&buf, NewSubscribeMessage()))
	require.NoError(t, writeMessage(&buf, NewStatusMessage()))

	first, err := readMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeSubscribe, first.Type)

	second, err := readMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeStatus, second.Type)

	_, err = readMessage(&buf)
	assert.True(t, isClosed(err))
}

func TestReadMessageRejectsOversizedFrame(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xff, 0xff, 0xff, 0xff})
	_, err := readMessage(buf)
	assert.ErrorContains(t, err, "exceeds limit")
}

func TestMessageTypeString(t *testing.T) {
	assert.Equal(t, "KEY_EVENT", MessageTypeKeyEvent.String())
	assert.Equal(t, "UNSPECIFIED", MessageType(42).String())
}
