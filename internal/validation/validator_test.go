package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/curatorapp/curator-server/internal/errors"
	"github.com/curatorapp/curator-server/internal/validation"
)

type categoryRequest struct {
	Name     string   `json:"name" validate:"notblank,max=100"`
	Keywords []string `json:"keywords" validate:"max=3,dive,notblank"`
	Score    int      `json:"score" validate:"gte=0,lte=100"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(categoryRequest{Name: "Cooking", Keywords: []string{"recipe"}, Score: 40})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       categoryRequest
		wantField string
		wantMsg   string
	}{
		{
			name:      "blank name",
			req:       categoryRequest{Name: "   "},
			wantField: "name",
			wantMsg:   "must not be blank",
		},
		{
			name:      "too many keywords",
			req:       categoryRequest{Name: "a", Keywords: []string{"a", "b", "c", "d"}},
			wantField: "keywords",
			wantMsg:   "must contain at most 3 items",
		},
		{
			name:      "blank keyword",
			req:       categoryRequest{Name: "a", Keywords: []string{" "}},
			wantField: "keywords[0]",
			wantMsg:   "must not be blank",
		},
		{
			name:      "score out of range",
			req:       categoryRequest{Name: "a", Score: 101},
			wantField: "score",
			wantMsg:   "must be less than or equal to 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)

			var de *domainerrors.Error
			require.ErrorAs(t, err, &de)
			details, ok := de.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, details[tt.wantField])
		})
	}
}
