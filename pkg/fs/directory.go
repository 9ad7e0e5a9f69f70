package fs

import "github.com/vexfs/vexfs/pkg/verrors"

// Directory is the ordered-set-of-entries body of a directory inode
// (§3). Held entirely in the MVCC store via the encode/decode pair
// below; callers never mutate a Directory value shared across
// transactions.
type Directory struct {
	Entries []DirEntry
}

// Lookup returns the entry named name, if present.
func (d *Directory) Lookup(name string) (DirEntry, bool) {
	for _, e := range d.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return DirEntry{}, false
}

// Insert adds a new entry, rejecting duplicate names (§3 invariant:
// names unique within a directory).
func (d *Directory) Insert(e DirEntry) error {
	if _, ok := d.Lookup(e.Name); ok {
		return verrors.Newf(verrors.Conflict, "entry %q already exists", e.Name)
	}
	d.Entries = append(d.Entries, e)
	return nil
}

// Remove deletes the entry named name. Returns NotFound if absent.
func (d *Directory) Remove(name string) error {
	for i, e := range d.Entries {
		if e.Name == name {
			d.Entries = append(d.Entries[:i], d.Entries[i+1:]...)
			return nil
		}
	}
	return verrors.Newf(verrors.NotFound, "entry %q not found", name)
}

// IsEmpty reports whether d holds only "." and ".." (§3: removal of a
// non-empty directory fails).
func (d *Directory) IsEmpty() bool {
	for _, e := range d.Entries {
		if e.Name != "." && e.Name != ".." {
			return false
		}
	}
	return true
}

// NewDirectory builds a fresh directory body with self and parent
// entries (§3: "." and ".." exist exactly once).
func NewDirectory(self, parent InodeNumber) *Directory {
	return &Directory{Entries: []DirEntry{
		{Name: ".", Ino: self, Type: TypeDirectory},
		{Name: "..", Ino: parent, Type: TypeDirectory},
	}}
}
