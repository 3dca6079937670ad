package strataerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_FormatsWithAndWithoutCause(t *testing.T) {
	t.Parallel()
	plain := New(InvalidRequest, "bad request")
	require.Equal(t, "InvalidRequest: bad request", plain.Error())

	wrapped := Wrap(IoError, "reading file", errors.New("disk full"))
	require.Equal(t, "IoError: reading file: disk full", wrapped.Error())
}

func TestError_UnwrapExposesCause(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	err := Wrap(ExternalToolError, "duckdb failed", cause)
	require.Equal(t, cause, errors.Unwrap(err))
}

func TestAs_MatchesKindThroughWrapping(t *testing.T) {
	t.Parallel()
	inner := New(MappingSchemaMismatch, "missing column")
	outer := Wrap(IoError, "while validating", inner)

	require.True(t, As(inner, MappingSchemaMismatch))
	require.False(t, As(outer, MappingSchemaMismatch)) // As only unwraps non-*Error chains
	require.True(t, As(outer, IoError))
	require.False(t, As(errors.New("unrelated"), IoError))
}

func TestNewf_FormatsMessage(t *testing.T) {
	t.Parallel()
	err := Newf(UnsupportedCast, "cannot cast %q to %q", "str", "date")
	require.Equal(t, `UnsupportedCast: cannot cast "str" to "date"`, err.Error())
}
