// Package acl implements POSIX-ACL semantics persisted as xattr blobs
// (§3, §4.5), grounded on dittofs's pkg/metadata/acl evaluate/
// synthesize/inherit split and cross-checked against
// original_source/src/security/acl.rs for exact mask/inheritance
// behavior.
package acl

import (
	"sort"

	"github.com/vexfs/vexfs/pkg/verrors"
)

// Kind is the ACL entry kind.
type Kind int

const (
	KindUser Kind = iota
	KindNamedUser
	KindGroup
	KindNamedGroup
	KindOther
	KindMask
)

// Perm is a permission bitmask.
type Perm uint8

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermExecute
)

// Entry is one ACL entry (§3).
type Entry struct {
	Kind Kind
	ID   *uint32 // nil for user/group/other/mask
	Perm Perm
}

// ACL is the access and (optional) default entry lists for one inode.
type ACL struct {
	Access  []Entry
	Default []Entry
}

// Validate enforces §3's invariants: exactly one each of user/group/
// other; mask mandatory iff any named entry exists; no duplicates.
func Validate(entries []Entry) error {
	counts := map[Kind]int{}
	named := map[Kind]map[uint32]bool{KindNamedUser: {}, KindNamedGroup: {}}
	hasNamed := false
	for _, e := range entries {
		counts[e.Kind]++
		if e.Kind == KindNamedUser || e.Kind == KindNamedGroup {
			hasNamed = true
			if e.ID == nil {
				return verrors.New(verrors.Argument, "named ACL entry requires an id")
			}
			if named[e.Kind][*e.ID] {
				return verrors.Newf(verrors.Conflict, "duplicate named ACL entry %d", *e.ID)
			}
			named[e.Kind][*e.ID] = true
		}
	}
	for _, k := range []Kind{KindUser, KindGroup, KindOther} {
		if counts[k] != 1 {
			return verrors.Newf(verrors.Argument, "ACL must have exactly one %v entry, found %d", k, counts[k])
		}
	}
	if counts[KindMask] > 1 {
		return verrors.New(verrors.Conflict, "duplicate ACL mask entry")
	}
	if hasNamed && counts[KindMask] != 1 {
		return verrors.New(verrors.Argument, "ACL with named entries requires exactly one mask entry")
	}
	return nil
}

// Principal is the identity an access check is evaluated for.
type Principal struct {
	UID    uint32
	GID    uint32
	Groups []uint32
}

// Evaluate returns the effective permission for principal against acl,
// applying the mask to every entry but owner/other (§4.5 permission
// gate: "masked by the ACL mask for all but owner/other entries").
func Evaluate(a *ACL, p Principal, ownerUID, ownerGID uint32) Perm {
	mask := Perm(PermRead | PermWrite | PermExecute)
	hasMask := false
	for _, e := range a.Access {
		if e.Kind == KindMask {
			mask = e.Perm
			hasMask = true
		}
	}

	best := bestMatch(a.Access, p, ownerUID, ownerGID)
	if best == nil {
		return 0
	}
	if best.kind == KindUser || best.kind == KindOther {
		return best.perm
	}
	if hasMask {
		return best.perm & mask
	}
	return best.perm
}

type match struct {
	kind Kind
	perm Perm
	rank int
}

// bestMatch picks the most specific matching entry, ranked
// owning-user > named-user > named-group > owning-group > other, the
// POSIX-ACL precedence order dittofs's evaluate() follows.
func bestMatch(entries []Entry, p Principal, ownerUID, ownerGID uint32) *match {
	var candidates []match
	inGroups := func(gid uint32) bool {
		if p.GID == gid {
			return true
		}
		for _, g := range p.Groups {
			if g == gid {
				return true
			}
		}
		return false
	}
	for _, e := range entries {
		switch e.Kind {
		case KindUser:
			if p.UID == ownerUID {
				candidates = append(candidates, match{KindUser, e.Perm, 0})
			}
		case KindNamedUser:
			if e.ID != nil && *e.ID == p.UID {
				candidates = append(candidates, match{KindNamedUser, e.Perm, 1})
			}
		case KindGroup:
			if inGroups(ownerGID) {
				candidates = append(candidates, match{KindGroup, e.Perm, 3})
			}
		case KindNamedGroup:
			if e.ID != nil && inGroups(*e.ID) {
				candidates = append(candidates, match{KindNamedGroup, e.Perm, 2})
			}
		case KindOther:
			candidates = append(candidates, match{KindOther, e.Perm, 4})
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].rank < candidates[j].rank })
	return &candidates[0]
}

// Inherit builds the access list a new child inherits from its
// parent's default list (§3: default list is inherited by children).
func Inherit(parentDefault []Entry) *ACL {
	access := append([]Entry(nil), parentDefault...)
	return &ACL{Access: access, Default: nil}
}

// Synthesize builds a minimal valid ACL (owner/group/other only) from a
// traditional POSIX mode, for inodes that never had an explicit ACL set.
func Synthesize(mode uint32) *ACL {
	return &ACL{Access: []Entry{
		{Kind: KindUser, Perm: Perm((mode >> 6) & 0x7)},
		{Kind: KindGroup, Perm: Perm((mode >> 3) & 0x7)},
		{Kind: KindOther, Perm: Perm(mode & 0x7)},
	}}
}
