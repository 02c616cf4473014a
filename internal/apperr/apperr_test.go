package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "conflict", err: Conflict("dup"), want: KindConflict},
		{name: "wrapped", err: fmt.Errorf("start: %w", NotFound("no course")), want: KindNotFound},
		{name: "plain", err: errors.New("boom"), want: KindInternal},
		{name: "nil", err: nil, want: KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestDetailOfHidesUnclassified(t *testing.T) {
	assert.Equal(t, "bad code", DetailOf(fmt.Errorf("x: %w", InvalidCode("bad code"))))
	assert.Equal(t, "internal server error", DetailOf(errors.New("pq: connection refused")))
}

func TestIs(t *testing.T) {
	assert.True(t, Is(Forbidden("no"), KindForbidden))
	assert.False(t, Is(Forbidden("no"), KindConflict))
	assert.False(t, Is(nil, KindInternal))
	assert.Equal(t, "validation", KindValidation.String())
}
