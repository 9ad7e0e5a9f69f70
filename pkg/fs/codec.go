package fs

import (
	"encoding/json"

	"github.com/vexfs/vexfs/pkg/acl"
	"github.com/vexfs/vexfs/pkg/verrors"
)

// encodeInode/decodeInode and encodeDirectory/decodeDirectory serialize
// the in-memory structs for storage as txn.Manager values. JSON is used
// rather than a bespoke binary layout because, unlike the journal
// superblock and semantic event headers (§6), nothing requires these
// records to be bit-compatible with an external reader — dittofs's own
// metadata store likewise uses a structured encoder (gob) for values
// that cross no wire-format boundary.
func encodeInode(i *Inode) ([]byte, error) {
	b, err := json.Marshal(i)
	if err != nil {
		return nil, verrors.Wrap(verrors.Argument, err, "encode inode")
	}
	return b, nil
}

func decodeInode(b []byte) (*Inode, error) {
	var i Inode
	if err := json.Unmarshal(b, &i); err != nil {
		return nil, verrors.Wrap(verrors.Corruption, err, "decode inode")
	}
	return &i, nil
}

func encodeDirectory(d *Directory) ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, verrors.Wrap(verrors.Argument, err, "encode directory")
	}
	return b, nil
}

func decodeDirectory(b []byte) (*Directory, error) {
	var d Directory
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, verrors.Wrap(verrors.Corruption, err, "decode directory")
	}
	return &d, nil
}

func encodeACL(a *acl.ACL) ([]byte, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, verrors.Wrap(verrors.Argument, err, "encode acl")
	}
	return b, nil
}

func decodeACL(b []byte) (*acl.ACL, error) {
	var a acl.ACL
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, verrors.Wrap(verrors.Corruption, err, "decode acl")
	}
	return &a, nil
}
