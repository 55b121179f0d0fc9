package errors_test

import (
	"fmt"
	"testing"

	apperrors "github.com/jrsteele09/go-backoffice-session/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		require.NoError(t, apperrors.Wrapf(nil, "saving %s", "tokens"))
	})

	t.Run("wraps with context", func(t *testing.T) {
		err := apperrors.Wrapf(apperrors.ErrPersistence, "saving %s", "tokens")
		require.EqualError(t, err, "saving tokens: token persistence failed")
		require.True(t, apperrors.Is(err, apperrors.ErrPersistence))
	})
}

type statusErr struct{ code int }

func (s *statusErr) Error() string { return fmt.Sprintf("status %d", s.code) }

func TestAs(t *testing.T) {
	err := fmt.Errorf("outer: %w", &statusErr{code: 401})

	var target *statusErr
	require.True(t, apperrors.As(err, &target))
	require.Equal(t, 401, target.code)
}
