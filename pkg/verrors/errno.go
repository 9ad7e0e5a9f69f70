package verrors

import "syscall"

// Errno maps a VexError's abstract kind to the POSIX errno the filesystem
// core returns on its POSIX-shaped verbs (§7: "POSIX-style verbs return
// POSIX errno mappings").
func Errno(err error) syscall.Errno {
	switch CodeOf(err) {
	case Argument:
		return syscall.EINVAL
	case NotFound:
		return syscall.ENOENT
	case Permission:
		return syscall.EACCES
	case Conflict:
		return syscall.EEXIST
	case Resource:
		return syscall.ENOSPC
	case Busy:
		return syscall.EBUSY
	case Timeout:
		return syscall.ETIMEDOUT
	case Corruption:
		return syscall.EIO
	case Unsupported:
		return syscall.EOPNOTSUPP
	case TransactionFailed:
		return syscall.EAGAIN
	case BoundaryUnavailable:
		return syscall.ENETUNREACH
	default:
		return syscall.EIO
	}
}
