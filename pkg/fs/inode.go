// Package fs implements the POSIX-shaped inode/directory/file core
// (§4.5): every operation runs inside a txn.Transaction, acquiring the
// minimal lock set and performing journaled writes through pkg/txn.
// Grounded on dittofs's metadata-store operation handlers (same
// wrap-in-a-transaction, lock-then-mutate shape), narrowed to the
// object model VexFS needs (plus a vector-embedding descriptor field
// dittofs's own inode has no equivalent of).
package fs

import (
	"time"

	"github.com/google/uuid"
)

// FileType distinguishes the kinds of inode this filesystem supports.
type FileType int

const (
	TypeRegular FileType = iota
	TypeDirectory
	TypeSymlink
	TypeVector
)

// InodeNumber identifies an inode.
type InodeNumber uint64

// VectorDescriptor is the optional per-inode embedding descriptor
// (§3): present only on inodes of TypeVector or regular files carrying
// an attached embedding.
type VectorDescriptor struct {
	Dimensions     uint32
	ElementType    string
	DistanceMetric string
	Quantisation   []byte
	PayloadBlocks  []uint64
}

// Inode is the in-memory representation of a filesystem object.
type Inode struct {
	Number    InodeNumber
	Type      FileType
	Mode      uint32
	UID       uint32
	GID       uint32
	Size      uint64
	LinkCount uint32
	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
	BlockMap  []uint64
	Vector    *VectorDescriptor
}

// NewInodeNumber mints a new inode number. Grounded on dittofs's use of
// uuid for globally unique ids, folded to 64 bits since block-mapped
// inode numbers must fit a uint64 key space.
func NewInodeNumber() InodeNumber {
	id := uuid.New()
	var n uint64
	for i := 0; i < 8; i++ {
		n = n<<8 | uint64(id[i])
	}
	return InodeNumber(n)
}

// DirEntry is one (name, inode, file-type) triple (§3).
type DirEntry struct {
	Name string
	Ino  InodeNumber
	Type FileType
}
