package journal

import (
	"bytes"
	"encoding/binary"

	"github.com/vexfs/vexfs/pkg/verrors"
)

// SuperblockMagic identifies a VexFS journal device per §6: little-endian
// 0x56454A4C ("VEJL").
const SuperblockMagic uint32 = 0x56454A4C

// State is the superblock's crash-consistency state.
type State uint32

const (
	StateClean State = iota + 1
	StateDirty
	StateRecovering
)

// VersionMajor/VersionMinor are the on-disk format version this package
// writes and the newest version it will recover from.
const (
	VersionMajor uint16 = 1
	VersionMinor uint16 = 0
)

// Superblock is the fixed-size header occupying block 0 of a journal
// device (§6).
type Superblock struct {
	Magic         uint32
	VersionMajor  uint16
	VersionMinor  uint16
	BlockSize     uint32
	TotalBlocks   uint64
	FirstCommitID TxnID
	Head          uint64 // next write offset, in bytes, within the body
	Tail          uint64 // oldest live offset, in bytes, within the body
	State         State
	Checksum      uint32 // CRC32 over all preceding fields
}

const superblockEncodedSize = 4 + 2 + 2 + 4 + 8 + 8 + 8 + 8 + 4 + 4

func (sb *Superblock) encode() []byte {
	buf := make([]byte, superblockEncodedSize)
	binary.LittleEndian.PutUint32(buf[0:4], sb.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], sb.VersionMajor)
	binary.LittleEndian.PutUint16(buf[6:8], sb.VersionMinor)
	binary.LittleEndian.PutUint32(buf[8:12], sb.BlockSize)
	binary.LittleEndian.PutUint64(buf[12:20], sb.TotalBlocks)
	binary.LittleEndian.PutUint64(buf[20:28], uint64(sb.FirstCommitID))
	binary.LittleEndian.PutUint64(buf[28:36], sb.Head)
	binary.LittleEndian.PutUint64(buf[36:44], sb.Tail)
	binary.LittleEndian.PutUint32(buf[44:48], uint32(sb.State))
	sb.Checksum = crc32Of(buf[:48])
	binary.LittleEndian.PutUint32(buf[48:52], sb.Checksum)
	return buf
}

func decodeSuperblock(buf []byte) (*Superblock, error) {
	if len(buf) < superblockEncodedSize {
		return nil, verrors.New(verrors.Corruption, "superblock buffer too short")
	}
	sb := &Superblock{
		Magic:         binary.LittleEndian.Uint32(buf[0:4]),
		VersionMajor:  binary.LittleEndian.Uint16(buf[4:6]),
		VersionMinor:  binary.LittleEndian.Uint16(buf[6:8]),
		BlockSize:     binary.LittleEndian.Uint32(buf[8:12]),
		TotalBlocks:   binary.LittleEndian.Uint64(buf[12:20]),
		FirstCommitID: TxnID(binary.LittleEndian.Uint64(buf[20:28])),
		Head:          binary.LittleEndian.Uint64(buf[28:36]),
		Tail:          binary.LittleEndian.Uint64(buf[36:44]),
		State:         State(binary.LittleEndian.Uint32(buf[44:48])),
		Checksum:      binary.LittleEndian.Uint32(buf[48:52]),
	}
	if sb.Magic != SuperblockMagic {
		return nil, verrors.Newf(verrors.Corruption, "bad journal superblock magic 0x%x", sb.Magic)
	}
	want := crc32Of(buf[:48])
	if want != sb.Checksum {
		return nil, verrors.New(verrors.Corruption, "journal superblock checksum mismatch")
	}
	return sb, nil
}

func isZero(buf []byte) bool {
	return bytes.Equal(buf, make([]byte, len(buf)))
}
