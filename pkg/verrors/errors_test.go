package verrors_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/pkg/verrors"
)

func TestVexErrorWrapping(t *testing.T) {
	cause := errors.New("disk gone")
	err := verrors.Wrap(verrors.Corruption, cause, "checksum mismatch")

	assert.True(t, verrors.Is(err, verrors.Corruption))
	assert.Equal(t, verrors.Corruption, verrors.CodeOf(err))
	assert.ErrorIs(t, err, cause)
	assert.NotEmpty(t, err.CorrelationID)
}

func TestRecoverable(t *testing.T) {
	cases := []struct {
		code Code
		want bool
	}{
		{verrors.Busy, true},
		{verrors.Resource, true},
		{verrors.Timeout, true},
		{verrors.BoundaryUnavailable, true},
		{verrors.Argument, false},
		{verrors.Permission, false},
		{verrors.Corruption, false},
	}
	for _, c := range cases {
		err := verrors.New(c.code, "x")
		assert.Equal(t, c.want, verrors.Recoverable(err), c.code.String())
	}
}

type Code = verrors.Code

func TestErrno(t *testing.T) {
	assert.NotZero(t, verrors.Errno(verrors.New(verrors.NotFound, "x")))
	assert.NotZero(t, verrors.Errno(verrors.New(verrors.Permission, "x")))
}

func TestRetryGivesUpOnPermanent(t *testing.T) {
	calls := 0
	err := verrors.Retry(context.Background(), verrors.DefaultRetryPolicy(), func() error {
		calls++
		return verrors.New(verrors.Argument, "bad")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, verrors.Is(err, verrors.Argument))
}

func TestRetrySucceedsEventually(t *testing.T) {
	calls := 0
	policy := verrors.RetryPolicy{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, MaxElapsedTime: time.Second}
	err := verrors.Retry(context.Background(), policy, func() error {
		calls++
		if calls < 3 {
			return verrors.New(verrors.Busy, "contended")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
