package journal

import (
	"encoding/binary"

	"github.com/vexfs/vexfs/pkg/block"
	"github.com/vexfs/vexfs/pkg/verrors"
)

const headerEncodedSize = 4 + 4 + 8 + 4 + 4 + 4 + 4 + 8

func encodeHeader(h RecordHeader) []byte {
	buf := make([]byte, headerEncodedSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.Kind))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(h.TxnID))
	binary.LittleEndian.PutUint32(buf[16:20], h.Sequence)
	binary.LittleEndian.PutUint32(buf[20:24], h.Length)
	binary.LittleEndian.PutUint32(buf[24:28], h.Checksum)
	binary.LittleEndian.PutUint32(buf[28:32], h.Flags)
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.Timestamp))
	return buf
}

func decodeHeader(buf []byte) (RecordHeader, error) {
	if len(buf) < headerEncodedSize {
		return RecordHeader{}, verrors.New(verrors.Corruption, "record header truncated")
	}
	h := RecordHeader{
		Magic:     binary.LittleEndian.Uint32(buf[0:4]),
		Kind:      RecordKind(binary.LittleEndian.Uint32(buf[4:8])),
		TxnID:     TxnID(binary.LittleEndian.Uint64(buf[8:16])),
		Sequence:  binary.LittleEndian.Uint32(buf[16:20]),
		Length:    binary.LittleEndian.Uint32(buf[20:24]),
		Checksum:  binary.LittleEndian.Uint32(buf[24:28]),
		Flags:     binary.LittleEndian.Uint32(buf[28:32]),
		Timestamp: int64(binary.LittleEndian.Uint64(buf[32:40])),
	}
	if h.Magic != recordMagic {
		return RecordHeader{}, verrors.Newf(verrors.Corruption, "bad journal record magic 0x%x", h.Magic)
	}
	return h, nil
}

// headerChecksum computes the CRC32 the header carries, over its own bytes
// excluding the checksum field itself (§4.1).
func headerChecksum(h RecordHeader) uint32 {
	h.Checksum = 0
	buf := encodeHeader(h)
	return crc32Of(append(buf[:24:24], buf[28:]...)) // every byte except the Checksum field at [24:28]
}

// encodeOperation serializes an OperationRecord: header, then op type,
// block number, tier, offset, old/new lengths and checksums, then the old
// and new payloads themselves.
func encodeOperation(rec *OperationRecord) []byte {
	body := make([]byte, 4+8+4+4+4+4+4+4+len(rec.Old)+len(rec.New))
	o := 0
	putU32 := func(v uint32) { binary.LittleEndian.PutUint32(body[o:o+4], v); o += 4 }
	putU64 := func(v uint64) { binary.LittleEndian.PutUint64(body[o:o+8], v); o += 8 }

	putU32(uint32(rec.Op))
	putU64(uint64(rec.Block))
	putU32(uint32(rec.Tier))
	putU32(rec.Offset)
	putU32(uint32(len(rec.Old)))
	putU32(uint32(len(rec.New)))
	putU32(rec.OldChecksum)
	putU32(rec.NewChecksum)
	o += copy(body[o:], rec.Old)
	o += copy(body[o:], rec.New)

	rec.Header.Kind = RecordOperation
	rec.Header.Magic = recordMagic
	rec.Header.Length = uint32(headerEncodedSize + len(body))
	rec.Header.Checksum = 0
	rec.Header.Checksum = headerChecksum(rec.Header)

	out := make([]byte, 0, int(rec.Header.Length))
	out = append(out, encodeHeader(rec.Header)...)
	out = append(out, body...)
	return out
}

func decodeOperation(h RecordHeader, body []byte) (*OperationRecord, error) {
	if len(body) < 36 {
		return nil, verrors.New(verrors.Corruption, "operation record body truncated")
	}
	o := 0
	getU32 := func() uint32 { v := binary.LittleEndian.Uint32(body[o : o+4]); o += 4; return v }
	getU64 := func() uint64 { v := binary.LittleEndian.Uint64(body[o : o+8]); o += 8; return v }

	op := OpType(getU32())
	blk := block.Number(getU64())
	tier := block.Tier(getU32())
	offset := getU32()
	oldLen := getU32()
	newLen := getU32()
	oldSum := getU32()
	newSum := getU32()

	if o+int(oldLen)+int(newLen) > len(body) {
		return nil, verrors.New(verrors.Corruption, "operation record payload truncated")
	}
	old := append([]byte(nil), body[o:o+int(oldLen)]...)
	o += int(oldLen)
	newData := append([]byte(nil), body[o:o+int(newLen)]...)

	rec := &OperationRecord{
		Header:      h,
		Op:          op,
		Block:       blk,
		Tier:        tier,
		Offset:      offset,
		Old:         old,
		New:         newData,
		OldChecksum: oldSum,
		NewChecksum: newSum,
	}
	if crc32Of(old) != oldSum || crc32Of(newData) != newSum {
		return nil, verrors.New(verrors.Corruption, "operation record payload checksum mismatch")
	}
	return rec, nil
}

func encodeCommit(rec *CommitRecord) []byte {
	body := make([]byte, 8)
	binary.LittleEndian.PutUint32(body[0:4], rec.OpCount)
	binary.LittleEndian.PutUint32(body[4:8], rec.TxnChecksum)

	rec.Header.Kind = RecordCommit
	rec.Header.Magic = recordMagic
	rec.Header.Length = uint32(headerEncodedSize + len(body))
	rec.Header.Checksum = 0
	rec.Header.Checksum = headerChecksum(rec.Header)

	out := make([]byte, 0, int(rec.Header.Length))
	out = append(out, encodeHeader(rec.Header)...)
	out = append(out, body...)
	return out
}

func decodeCommit(h RecordHeader, body []byte) (*CommitRecord, error) {
	if len(body) < 8 {
		return nil, verrors.New(verrors.Corruption, "commit record body truncated")
	}
	return &CommitRecord{
		Header:      h,
		OpCount:     binary.LittleEndian.Uint32(body[0:4]),
		TxnChecksum: binary.LittleEndian.Uint32(body[4:8]),
	}, nil
}
