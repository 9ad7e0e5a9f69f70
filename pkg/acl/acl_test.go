package acl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/pkg/acl"
)

func u(id uint32) *uint32 { return &id }

func TestValidateRequiresExactlyOneOwnerGroupOther(t *testing.T) {
	err := acl.Validate([]acl.Entry{
		{Kind: acl.KindUser, Perm: acl.PermRead},
		{Kind: acl.KindGroup, Perm: acl.PermRead},
	})
	assert.Error(t, err)
}

func TestValidateRequiresMaskWhenNamedEntryPresent(t *testing.T) {
	entries := []acl.Entry{
		{Kind: acl.KindUser, Perm: acl.PermRead | acl.PermWrite},
		{Kind: acl.KindGroup, Perm: acl.PermRead},
		{Kind: acl.KindOther, Perm: 0},
		{Kind: acl.KindNamedUser, ID: u(42), Perm: acl.PermRead},
	}
	assert.Error(t, acl.Validate(entries))

	entries = append(entries, acl.Entry{Kind: acl.KindMask, Perm: acl.PermRead})
	assert.NoError(t, acl.Validate(entries))
}

func TestValidateRejectsDuplicateNamedEntries(t *testing.T) {
	entries := []acl.Entry{
		{Kind: acl.KindUser, Perm: acl.PermRead},
		{Kind: acl.KindGroup, Perm: acl.PermRead},
		{Kind: acl.KindOther, Perm: 0},
		{Kind: acl.KindNamedUser, ID: u(1), Perm: acl.PermRead},
		{Kind: acl.KindNamedUser, ID: u(1), Perm: acl.PermWrite},
		{Kind: acl.KindMask, Perm: acl.PermRead | acl.PermWrite},
	}
	assert.Error(t, acl.Validate(entries))
}

func TestEvaluateMasksNamedEntriesButNotOwnerOrOther(t *testing.T) {
	a := &acl.ACL{Access: []acl.Entry{
		{Kind: acl.KindUser, Perm: acl.PermRead | acl.PermWrite | acl.PermExecute},
		{Kind: acl.KindNamedUser, ID: u(7), Perm: acl.PermRead | acl.PermWrite},
		{Kind: acl.KindGroup, Perm: acl.PermRead},
		{Kind: acl.KindOther, Perm: acl.PermRead},
		{Kind: acl.KindMask, Perm: acl.PermRead},
	}}
	require.NoError(t, acl.Validate(a.Access))

	owner := acl.Evaluate(a, acl.Principal{UID: 1}, 1, 1)
	assert.Equal(t, acl.PermRead|acl.PermWrite|acl.PermExecute, owner)

	named := acl.Evaluate(a, acl.Principal{UID: 7}, 1, 1)
	assert.Equal(t, acl.PermRead, named, "mask should strip write from the named-user grant")

	other := acl.Evaluate(a, acl.Principal{UID: 99}, 1, 1)
	assert.Equal(t, acl.PermRead, other)
}

func TestSynthesizeFromMode(t *testing.T) {
	a := acl.Synthesize(0o750)
	require.NoError(t, acl.Validate(a.Access))
	p := acl.Evaluate(a, acl.Principal{UID: 1}, 1, 1)
	assert.Equal(t, acl.PermRead|acl.PermWrite|acl.PermExecute, p)
}
