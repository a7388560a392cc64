package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := NotFoundf("category %s not found", "abc")

	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrValidation))
	assert.Equal(t, "category abc not found", err.Error())
}

func TestError_WrappedChain(t *testing.T) {
	cause := fmt.Errorf("dial tcp: timeout")
	err := fmt.Errorf("search: %w", Provider("YouTube is unreachable").WithCause(cause))

	assert.True(t, Is(err, ErrProvider))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeProvider, CodeOf(err))
	assert.Equal(t, "YouTube is unreachable", MessageOf(err, "fallback"))
}

func TestMessageOf_Fallback(t *testing.T) {
	assert.Equal(t, "Failed to search videos", MessageOf(fmt.Errorf("boom"), "Failed to search videos"))
	assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("boom")))
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := map[Code]int{
		CodeNotFound:           http.StatusNotFound,
		CodeAlreadyExists:      http.StatusConflict,
		CodeInvalidCredentials: http.StatusUnauthorized,
		CodeValidation:         http.StatusUnprocessableEntity,
		CodeRateLimited:        http.StatusTooManyRequests,
		CodeProvider:           http.StatusBadGateway,
		CodeSync:               http.StatusServiceUnavailable,
		CodeInternal:           http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, code.HTTPStatus(), code)
	}
}

func TestWithDetails_DoesNotMutateSentinel(t *testing.T) {
	err := ErrValidation.WithDetails([]string{"name"})

	assert.Nil(t, ErrValidation.Details)
	assert.Equal(t, []string{"name"}, err.Details)
}
