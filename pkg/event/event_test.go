package event_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/pkg/event"
)

func TestEmitAssignsMonotonicIDsAndSequences(t *testing.T) {
	e := event.NewEmitter(1234)
	first := e.Emit(event.TypeFilesystemCreate, nil, event.FlagTransactional, event.PriorityNormal, []byte("a"), nil)
	second := e.Emit(event.TypeFilesystemCreate, nil, 0, event.PriorityNormal, []byte("b"), nil)
	assert.Less(t, first.ID, second.ID)
	assert.Less(t, first.GlobalSequence, second.GlobalSequence)
}

func TestHeaderRoundTripIsByteIdentical(t *testing.T) {
	e := event.NewEmitter(42)
	original := e.Emit(event.TypeVectorInsert, event.Context{"k": "v"}, event.FlagCausal, event.PriorityHigh, []byte("payload"), map[string]string{"m": "1"})
	original.ParentID = 7
	original.RootCauseID = 3
	original.CausalityLinks = []uint64{1, 2, 3}
	original.AgentVisibility = 0xFF
	original.AgentRelevance = 90
	original.ReplayPriority = 2
	original.Checksum = 0xDEADBEEF

	buf1 := event.EncodeHeader(original)
	decoded, err := event.DecodeHeader(buf1)
	require.NoError(t, err)
	buf2 := event.EncodeHeader(decoded)

	assert.Equal(t, buf1, buf2, "kernel -> userspace -> kernel header round-trip must be byte-identical")
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	_, err := event.DecodeHeader(make([]byte, 4))
	assert.Error(t, err)
}

func TestTimestampNanosecondPrecisionSurvivesRoundTrip(t *testing.T) {
	e := event.NewEmitter(1)
	ev := e.Emit(event.TypeFilesystemWrite, nil, 0, event.PriorityLow, []byte("x"), nil)
	ev.Timestamp.Sec = time.Now().Unix()
	ev.Timestamp.Nsec = 123456789

	buf := event.EncodeHeader(ev)
	decoded, err := event.DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, ev.Timestamp.Sec, decoded.Timestamp.Sec)
	assert.Equal(t, ev.Timestamp.Nsec, decoded.Timestamp.Nsec)
}
