package event

import (
	"encoding/binary"

	"github.com/vexfs/vexfs/pkg/verrors"
)

// headerSize is the exact byte length of the kernel semantic event
// header (§6): every field below in declaration order, no padding.
const headerSize = 8 + 4 + 4 + 8 + 8 + 4 + 4 + 8 + 8 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 8 + 8 + 8 + 4 + 4

// EncodeHeader serializes e's header fields in the exact order §6
// specifies, for bit-compatible transport across the kernel/userspace
// boundary. Payload, context and metadata bytes are carried
// separately; only their declared sizes appear in the header.
func EncodeHeader(e *Event) []byte {
	buf := make([]byte, headerSize)
	o := 0
	putU32 := func(v uint32) { binary.LittleEndian.PutUint32(buf[o:o+4], v); o += 4 }
	putU64 := func(v uint64) { binary.LittleEndian.PutUint64(buf[o:o+8], v); o += 8 }

	putU64(e.ID)
	putU32(uint32(e.Type))
	putU32(e.Subtype)
	putU64(uint64(e.Timestamp.Sec)*1e9 + uint64(e.Timestamp.Nsec))
	putU64(e.Timestamp.Sequence)
	putU32(e.Timestamp.CPU)
	putU32(e.Timestamp.PID)
	putU64(e.GlobalSequence)
	putU64(e.LocalSequence)
	putU32(uint32(e.Flags))
	putU32(uint32(e.Priority))
	putU32(e.Size)
	putU32(uint32(len(encodeContext(e.Context))))
	putU32(uint32(len(e.Payload)))
	putU32(uint32(len(encodeMetadata(e.Metadata))))
	putU32(e.Version)
	putU32(e.Checksum)
	putU32(e.CompressionType)
	putU32(e.EncryptionType)
	putU32(uint32(len(e.CausalityLinks)))
	putU64(e.ParentID)
	putU64(e.RootCauseID)
	putU64(e.AgentVisibility)
	putU32(e.AgentRelevance)
	putU32(e.ReplayPriority)

	return buf
}

// DecodeHeader parses a header previously produced by EncodeHeader.
// Context, payload and metadata bodies are not recovered here — only
// the fixed header fields, since the variable-length bodies require
// the caller to read exactly the declared sizes from the stream that
// follows.
func DecodeHeader(buf []byte) (*Event, error) {
	if len(buf) < headerSize {
		return nil, verrors.New(verrors.Corruption, "semantic event header truncated")
	}
	o := 0
	getU32 := func() uint32 { v := binary.LittleEndian.Uint32(buf[o : o+4]); o += 4; return v }
	getU64 := func() uint64 { v := binary.LittleEndian.Uint64(buf[o : o+8]); o += 8; return v }

	e := &Event{}
	e.ID = getU64()
	e.Type = Type(getU32())
	e.Subtype = getU32()
	ts := getU64()
	e.Timestamp.Sec = int64(ts / 1e9)
	e.Timestamp.Nsec = int32(ts % 1e9)
	e.Timestamp.Sequence = getU64()
	e.Timestamp.CPU = getU32()
	e.Timestamp.PID = getU32()
	e.GlobalSequence = getU64()
	e.LocalSequence = getU64()
	e.Flags = Flags(getU32())
	e.Priority = Priority(getU32())
	e.Size = getU32()
	_ = getU32() // context size, caller reads the declared body length
	_ = getU32() // payload size, ditto
	_ = getU32() // metadata size, ditto
	e.Version = getU32()
	e.Checksum = getU32()
	e.CompressionType = getU32()
	e.EncryptionType = getU32()
	linkCount := getU32()
	e.ParentID = getU64()
	e.RootCauseID = getU64()
	e.AgentVisibility = getU64()
	e.AgentRelevance = getU32()
	e.ReplayPriority = getU32()
	e.CausalityLinks = make([]uint64, linkCount)

	if e.Size == 0 || e.Version == 0 {
		return nil, verrors.New(verrors.Corruption, "semantic event header has zero size or version")
	}
	return e, nil
}

func encodeContext(c Context) []byte {
	if len(c) == 0 {
		return nil
	}
	buf := make([]byte, 0, 32*len(c))
	for k, v := range c {
		buf = append(buf, []byte(k+"="+v+"\x00")...)
	}
	return buf
}

func encodeMetadata(m map[string]string) []byte {
	if len(m) == 0 {
		return nil
	}
	buf := make([]byte, 0, 32*len(m))
	for k, v := range m {
		buf = append(buf, []byte(k+"="+v+"\x00")...)
	}
	return buf
}
