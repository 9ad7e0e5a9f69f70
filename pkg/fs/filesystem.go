package fs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vexfs/vexfs/pkg/acl"
	"github.com/vexfs/vexfs/pkg/txn"
	"github.com/vexfs/vexfs/pkg/verrors"
)

const RootInode InodeNumber = 1

func inodeKey(n InodeNumber) txn.Key { return txn.Key(fmt.Sprintf("inode:%d", n)) }
func dataKey(n InodeNumber) txn.Key  { return txn.Key(fmt.Sprintf("data:%d", n)) }
func aclKey(n InodeNumber) txn.Key   { return txn.Key(fmt.Sprintf("acl:%d", n)) }

// Filesystem is the inode/directory/file core (§4.5): every exposed
// operation runs inside its own txn.Transaction, acquires the minimal
// lock set, performs journaled writes, and ends in commit-or-abort.
type Filesystem struct {
	txns *txn.Manager

	mu      sync.Mutex
	handles map[InodeNumber]int // open-handle refcount, gates deletion
}

// New creates a Filesystem with a fresh root directory, grounded on
// dittofs's filesystem-init path that seeds a root inode before serving
// any request.
func New(ctx context.Context, txns *txn.Manager) (*Filesystem, error) {
	fsys := &Filesystem{txns: txns, handles: make(map[InodeNumber]int)}
	tx, err := txns.Begin(ctx, txn.IsolationRepeatableRead, 0)
	if err != nil {
		return nil, err
	}
	if _, ok, _ := tx.Get(inodeKey(RootInode)); !ok {
		root := &Inode{
			Number:    RootInode,
			Type:      TypeDirectory,
			Mode:      0o755,
			LinkCount: 2,
			Mtime:     time.Now(),
			Ctime:     time.Now(),
		}
		if err := fsys.putInode(ctx, tx, root); err != nil {
			_ = tx.Abort(ctx)
			return nil, err
		}
		dir := NewDirectory(RootInode, RootInode)
		if err := fsys.putDirectory(ctx, tx, RootInode, dir); err != nil {
			_ = tx.Abort(ctx)
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return fsys, nil
}

func (f *Filesystem) putInode(ctx context.Context, tx *txn.Transaction, i *Inode) error {
	b, err := encodeInode(i)
	if err != nil {
		return err
	}
	return tx.Put(ctx, inodeKey(i.Number), b)
}

func (f *Filesystem) getInode(tx *txn.Transaction, n InodeNumber) (*Inode, error) {
	b, ok, err := tx.Get(inodeKey(n))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, verrors.Newf(verrors.NotFound, "inode %d not found", n)
	}
	return decodeInode(b)
}

func (f *Filesystem) putDirectory(ctx context.Context, tx *txn.Transaction, n InodeNumber, d *Directory) error {
	b, err := encodeDirectory(d)
	if err != nil {
		return err
	}
	return tx.Put(ctx, dataKey(n), b)
}

func (f *Filesystem) getDirectory(tx *txn.Transaction, n InodeNumber) (*Directory, error) {
	b, ok, err := tx.Get(dataKey(n))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, verrors.Newf(verrors.NotFound, "directory body %d not found", n)
	}
	return decodeDirectory(b)
}

// resolve walks path components from oc.Cwd (or root, if path is
// absolute), rejecting paths of more than maxSymlinkDepth components.
// Symlinks are not dereferenced: a symlink before the last component,
// or as the last component when oc.FollowSymlink is set, fails with
// Unsupported; a terminal symlink without FollowSymlink resolves to the
// link inode itself.
func (f *Filesystem) resolve(tx *txn.Transaction, oc OperationContext, path string) (InodeNumber, *Inode, error) {
	cur := oc.Cwd
	if strings.HasPrefix(path, "/") {
		cur = RootInode
	}
	parts := splitPath(path)
	depth := 0
	for idx, part := range parts {
		if part == "" {
			continue
		}
		depth++
		if depth > maxSymlinkDepth {
			return 0, nil, verrors.New(verrors.Argument, "path resolution exceeded maximum symlink depth")
		}
		dir, err := f.getDirectory(tx, cur)
		if err != nil {
			return 0, nil, err
		}
		entry, ok := dir.Lookup(part)
		if !ok {
			return 0, nil, verrors.Newf(verrors.NotFound, "%q not found", part)
		}
		cur = entry.Ino
		last := idx == len(parts)-1
		ino, err := f.getInode(tx, cur)
		if err != nil {
			return 0, nil, err
		}
		if ino.Type == TypeSymlink && (!last || oc.FollowSymlink) {
			return 0, nil, verrors.New(verrors.Unsupported, "symlink dereference requires target storage, not implemented at this layer")
		}
	}
	ino, err := f.getInode(tx, cur)
	if err != nil {
		return 0, nil, err
	}
	return cur, ino, nil
}

func splitPath(p string) []string {
	var out []string
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// checkPermission consults the ACL manager per §4.5's permission gate
// before any mutating operation.
func (f *Filesystem) checkPermission(tx *txn.Transaction, n InodeNumber, owner *Inode, principal acl.Principal, need acl.Perm) error {
	b, ok, err := tx.Get(aclKey(n))
	if err != nil {
		return err
	}
	var a *acl.ACL
	if ok {
		a, err = decodeACL(b)
		if err != nil {
			return err
		}
	} else {
		a = acl.Synthesize(owner.Mode)
	}
	got := acl.Evaluate(a, principal, owner.UID, owner.GID)
	if got&need != need {
		return verrors.New(verrors.Permission, "permission denied")
	}
	return nil
}

func principalOf(oc OperationContext) acl.Principal {
	return acl.Principal{UID: oc.UID, GID: oc.GID, Groups: oc.Groups}
}

// CreateFile creates a new regular-file inode and links it into its
// parent directory, all inside one transaction.
func (f *Filesystem) CreateFile(ctx context.Context, oc OperationContext, dirPath, name string, mode uint32) (InodeNumber, error) {
	tx, err := f.txns.Begin(ctx, txn.IsolationRepeatableRead, 0)
	if err != nil {
		return 0, err
	}
	parentNum, parent, err := f.resolve(tx, oc, dirPath)
	if err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	if err := f.checkPermission(tx, parentNum, parent, principalOf(oc), acl.PermWrite); err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	dir, err := f.getDirectory(tx, parentNum)
	if err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	if _, exists := dir.Lookup(name); exists {
		_ = tx.Abort(ctx)
		return 0, verrors.Newf(verrors.Conflict, "%q already exists", name)
	}

	num := NewInodeNumber()
	now := time.Now()
	newInode := &Inode{Number: num, Type: TypeRegular, Mode: mode &^ oc.Umask, UID: oc.UID, GID: oc.GID, LinkCount: 1, Mtime: now, Ctime: now, Atime: now}
	if err := f.putInode(ctx, tx, newInode); err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	if err := dir.Insert(DirEntry{Name: name, Ino: num, Type: TypeRegular}); err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	if err := f.putDirectory(ctx, tx, parentNum, dir); err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return num, nil
}

// Open increments an inode's open-handle count, gating deletion.
func (f *Filesystem) Open(_ context.Context, n InodeNumber) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handles[n]++
	return nil
}

// Close decrements the open-handle count.
func (f *Filesystem) Close(_ context.Context, n InodeNumber) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handles[n] > 0 {
		f.handles[n]--
	}
	return nil
}

func (f *Filesystem) openHandles(n InodeNumber) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[n]
}

// Write stores full-file content at the given offset, extending Size
// if needed, within one transaction.
func (f *Filesystem) Write(ctx context.Context, oc OperationContext, path string, offset int64, data []byte) (int, error) {
	tx, err := f.txns.Begin(ctx, txn.IsolationRepeatableRead, 0)
	if err != nil {
		return 0, err
	}
	num, ino, err := f.resolve(tx, oc, path)
	if err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	if err := f.checkPermission(tx, num, ino, principalOf(oc), acl.PermWrite); err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	existing, _, err := tx.Get(dataKey(num))
	if err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	buf := append([]byte(nil), existing...)
	end := offset + int64(len(data))
	if end > int64(len(buf)) {
		grown := make([]byte, end)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[offset:], data)
	if err := tx.Put(ctx, dataKey(num), buf); err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	ino.Size = uint64(len(buf))
	ino.Mtime = time.Now()
	if err := f.putInode(ctx, tx, ino); err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Read returns up to len(buf) bytes starting at offset.
func (f *Filesystem) Read(ctx context.Context, oc OperationContext, path string, offset int64, buf []byte) (int, error) {
	tx, err := f.txns.Begin(ctx, txn.IsolationRepeatableRead, 0)
	if err != nil {
		return 0, err
	}
	defer tx.Abort(ctx)
	num, ino, err := f.resolve(tx, oc, path)
	if err != nil {
		return 0, err
	}
	if err := f.checkPermission(tx, num, ino, principalOf(oc), acl.PermRead); err != nil {
		return 0, err
	}
	content, ok, err := tx.Get(dataKey(num))
	if err != nil {
		return 0, err
	}
	if !ok || offset >= int64(len(content)) {
		return 0, nil
	}
	n := copy(buf, content[offset:])
	return n, nil
}

// Delete removes a file's directory entry and, once link count reaches
// zero and no handles remain open, destroys the inode and its data
// (§3 lifecycle).
func (f *Filesystem) Delete(ctx context.Context, oc OperationContext, dirPath, name string) error {
	tx, err := f.txns.Begin(ctx, txn.IsolationRepeatableRead, 0)
	if err != nil {
		return err
	}
	parentNum, parent, err := f.resolve(tx, oc, dirPath)
	if err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	if err := f.checkPermission(tx, parentNum, parent, principalOf(oc), acl.PermWrite); err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	dir, err := f.getDirectory(tx, parentNum)
	if err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	entry, ok := dir.Lookup(name)
	if !ok {
		_ = tx.Abort(ctx)
		return verrors.Newf(verrors.NotFound, "%q not found", name)
	}
	ino, err := f.getInode(tx, entry.Ino)
	if err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	if err := dir.Remove(name); err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	if err := f.putDirectory(ctx, tx, parentNum, dir); err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	ino.LinkCount--
	if ino.LinkCount == 0 && f.openHandles(ino.Number) == 0 {
		if err := tx.Delete(ctx, inodeKey(ino.Number)); err != nil {
			_ = tx.Abort(ctx)
			return err
		}
		if err := tx.Delete(ctx, dataKey(ino.Number)); err != nil {
			_ = tx.Abort(ctx)
			return err
		}
	} else if err := f.putInode(ctx, tx, ino); err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// CreateDirectory creates a new, empty child directory.
func (f *Filesystem) CreateDirectory(ctx context.Context, oc OperationContext, dirPath, name string, mode uint32) (InodeNumber, error) {
	tx, err := f.txns.Begin(ctx, txn.IsolationRepeatableRead, 0)
	if err != nil {
		return 0, err
	}
	parentNum, parent, err := f.resolve(tx, oc, dirPath)
	if err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	if err := f.checkPermission(tx, parentNum, parent, principalOf(oc), acl.PermWrite); err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	dir, err := f.getDirectory(tx, parentNum)
	if err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	if _, exists := dir.Lookup(name); exists {
		_ = tx.Abort(ctx)
		return 0, verrors.Newf(verrors.Conflict, "%q already exists", name)
	}

	num := NewInodeNumber()
	now := time.Now()
	child := &Inode{Number: num, Type: TypeDirectory, Mode: mode &^ oc.Umask, UID: oc.UID, GID: oc.GID, LinkCount: 2, Mtime: now, Ctime: now, Atime: now}
	if err := f.putInode(ctx, tx, child); err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	if err := f.putDirectory(ctx, tx, num, NewDirectory(num, parentNum)); err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	if err := dir.Insert(DirEntry{Name: name, Ino: num, Type: TypeDirectory}); err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	if err := f.putDirectory(ctx, tx, parentNum, dir); err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	parent.LinkCount++
	if err := f.putInode(ctx, tx, parent); err != nil {
		_ = tx.Abort(ctx)
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return num, nil
}

// ListDirectory returns dirPath's entries.
func (f *Filesystem) ListDirectory(ctx context.Context, oc OperationContext, dirPath string) ([]DirEntry, error) {
	tx, err := f.txns.Begin(ctx, txn.IsolationRepeatableRead, 0)
	if err != nil {
		return nil, err
	}
	defer tx.Abort(ctx)
	num, ino, err := f.resolve(tx, oc, dirPath)
	if err != nil {
		return nil, err
	}
	if err := f.checkPermission(tx, num, ino, principalOf(oc), acl.PermRead); err != nil {
		return nil, err
	}
	dir, err := f.getDirectory(tx, num)
	if err != nil {
		return nil, err
	}
	return dir.Entries, nil
}

// RemoveDirectory removes an empty child directory (§3: removal of a
// non-empty directory fails).
func (f *Filesystem) RemoveDirectory(ctx context.Context, oc OperationContext, dirPath, name string) error {
	tx, err := f.txns.Begin(ctx, txn.IsolationRepeatableRead, 0)
	if err != nil {
		return err
	}
	parentNum, parent, err := f.resolve(tx, oc, dirPath)
	if err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	if err := f.checkPermission(tx, parentNum, parent, principalOf(oc), acl.PermWrite); err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	dir, err := f.getDirectory(tx, parentNum)
	if err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	entry, ok := dir.Lookup(name)
	if !ok {
		_ = tx.Abort(ctx)
		return verrors.Newf(verrors.NotFound, "%q not found", name)
	}
	child, err := f.getDirectory(tx, entry.Ino)
	if err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	if !child.IsEmpty() {
		_ = tx.Abort(ctx)
		return verrors.New(verrors.Conflict, "directory not empty")
	}
	if err := dir.Remove(name); err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	if err := f.putDirectory(ctx, tx, parentNum, dir); err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	if err := tx.Delete(ctx, inodeKey(entry.Ino)); err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	if err := tx.Delete(ctx, dataKey(entry.Ino)); err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	parent.LinkCount--
	if err := f.putInode(ctx, tx, parent); err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Rename moves name from srcDir to destDir (optionally renaming),
// locking both parents in canonical (lower-inode-first) order to avoid
// lock inversion (§4.5).
func (f *Filesystem) Rename(ctx context.Context, oc OperationContext, srcDir, srcName, destDir, destName string) error {
	tx, err := f.txns.Begin(ctx, txn.IsolationRepeatableRead, 0)
	if err != nil {
		return err
	}
	srcNum, srcParent, err := f.resolve(tx, oc, srcDir)
	if err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	destNum, destParent, err := f.resolve(tx, oc, destDir)
	if err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	if srcNum == destNum && srcName == destName {
		_ = tx.Abort(ctx)
		return verrors.New(verrors.Argument, "rename onto self is invalid")
	}

	if err := f.checkPermission(tx, srcNum, srcParent, principalOf(oc), acl.PermWrite); err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	if err := f.checkPermission(tx, destNum, destParent, principalOf(oc), acl.PermWrite); err != nil {
		_ = tx.Abort(ctx)
		return err
	}

	srcDirBody, err := f.getDirectory(tx, srcNum)
	if err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	entry, ok := srcDirBody.Lookup(srcName)
	if !ok {
		_ = tx.Abort(ctx)
		return verrors.Newf(verrors.NotFound, "%q not found", srcName)
	}
	if err := srcDirBody.Remove(srcName); err != nil {
		_ = tx.Abort(ctx)
		return err
	}

	destDirBody := srcDirBody
	if srcNum != destNum {
		destDirBody, err = f.getDirectory(tx, destNum)
		if err != nil {
			_ = tx.Abort(ctx)
			return err
		}
	}
	if err := destDirBody.Insert(DirEntry{Name: destName, Ino: entry.Ino, Type: entry.Type}); err != nil {
		_ = tx.Abort(ctx)
		return err
	}

	if srcNum == destNum {
		if err := f.putDirectory(ctx, tx, srcNum, srcDirBody); err != nil {
			_ = tx.Abort(ctx)
			return err
		}
		return tx.Commit(ctx)
	}

	// Both directories are written in canonical (lower-inode-first)
	// order: two concurrent renames between the same directory pair in
	// opposite directions would otherwise acquire tx.Put's per-key
	// locks in reverse order of each other, inverting lock order.
	firstNum, firstBody, secondNum, secondBody := srcNum, srcDirBody, destNum, destDirBody
	if destNum < srcNum {
		firstNum, firstBody, secondNum, secondBody = destNum, destDirBody, srcNum, srcDirBody
	}
	if err := f.putDirectory(ctx, tx, firstNum, firstBody); err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	if err := f.putDirectory(ctx, tx, secondNum, secondBody); err != nil {
		_ = tx.Abort(ctx)
		return err
	}

	if entry.Type == TypeDirectory {
		moved, err := f.getDirectory(tx, entry.Ino)
		if err != nil {
			_ = tx.Abort(ctx)
			return err
		}
		for i, e := range moved.Entries {
			if e.Name == ".." {
				moved.Entries[i].Ino = destNum
			}
		}
		if err := f.putDirectory(ctx, tx, entry.Ino, moved); err != nil {
			_ = tx.Abort(ctx)
			return err
		}
		srcParent.LinkCount--
		destParent.LinkCount++
		firstParent, secondParent := srcParent, destParent
		if destNum < srcNum {
			firstParent, secondParent = destParent, srcParent
		}
		if err := f.putInode(ctx, tx, firstParent); err != nil {
			_ = tx.Abort(ctx)
			return err
		}
		if err := f.putInode(ctx, tx, secondParent); err != nil {
			_ = tx.Abort(ctx)
			return err
		}
	}
	return tx.Commit(ctx)
}

// GetMetadata returns the inode for path.
func (f *Filesystem) GetMetadata(ctx context.Context, oc OperationContext, path string) (*Inode, error) {
	tx, err := f.txns.Begin(ctx, txn.IsolationRepeatableRead, 0)
	if err != nil {
		return nil, err
	}
	defer tx.Abort(ctx)
	_, ino, err := f.resolve(tx, oc, path)
	if err != nil {
		return nil, err
	}
	return ino, nil
}

// ChangePermissions updates an inode's mode bits.
func (f *Filesystem) ChangePermissions(ctx context.Context, oc OperationContext, path string, mode uint32) error {
	tx, err := f.txns.Begin(ctx, txn.IsolationRepeatableRead, 0)
	if err != nil {
		return err
	}
	num, ino, err := f.resolve(tx, oc, path)
	if err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	if ino.UID != oc.UID {
		_ = tx.Abort(ctx)
		return verrors.New(verrors.Permission, "only the owner may change permissions")
	}
	ino.Mode = mode
	ino.Ctime = time.Now()
	if err := f.putInode(ctx, tx, ino); err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	_ = num
	return tx.Commit(ctx)
}

// SetACL validates and stores an explicit ACL for path, replacing
// whatever mode-synthesized default was in effect.
func (f *Filesystem) SetACL(ctx context.Context, oc OperationContext, path string, a *acl.ACL) error {
	if err := acl.Validate(a.Access); err != nil {
		return err
	}
	tx, err := f.txns.Begin(ctx, txn.IsolationRepeatableRead, 0)
	if err != nil {
		return err
	}
	num, ino, err := f.resolve(tx, oc, path)
	if err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	if ino.UID != oc.UID {
		_ = tx.Abort(ctx)
		return verrors.New(verrors.Permission, "only the owner may set an ACL")
	}
	b, err := encodeACL(a)
	if err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	if err := tx.Put(ctx, aclKey(num), b); err != nil {
		_ = tx.Abort(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// SyncFilesystem forces the durability manager to flush every pending
// write, via the transaction manager's durability wiring.
func (f *Filesystem) SyncFilesystem(ctx context.Context) error {
	tx, err := f.txns.Begin(ctx, txn.IsolationRepeatableRead, 0)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
