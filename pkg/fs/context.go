package fs

// OperationContext is the per-call bundle the glossary describes:
// user identity, current directory, umask, and the follow-symlink
// flag. Path resolution does not dereference symlinks: with the flag
// set, a symlink as the terminal component is an Unsupported error
// (§4.5).
type OperationContext struct {
	UID           uint32
	GID           uint32
	Groups        []uint32
	Cwd           InodeNumber
	Umask         uint32
	FollowSymlink bool
}

// maxSymlinkDepth bounds the number of path components resolve will
// walk; a longer path is rejected.
const maxSymlinkDepth = 40
