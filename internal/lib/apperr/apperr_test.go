package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsComparesByCode(t *testing.T) {
	base := New(KindConflict, "wrong_state", "pass is not pending")
	custom := base.WithMessage("pass is already completed")

	assert.ErrorIs(t, custom, base)
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", custom), base)
	assert.Equal(t, "pass is already completed", custom.Error())
	assert.Equal(t, "pass is not pending", base.Error())

	other := New(KindConflict, "active_pass_exists", "active pass exists")
	assert.NotErrorIs(t, custom, other)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "validation", err: New(KindValidation, "v", "bad"), want: KindValidation},
		{name: "wrapped not found", err: fmt.Errorf("op: %w", New(KindNotFound, "nf", "missing")), want: KindNotFound},
		{name: "plain error", err: errors.New("disk full"), want: KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindValidation))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindConflict))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindAuth))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(KindNotFound))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(KindForbidden))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindInternal))
	assert.Equal(t, "internal", CodeOf(errors.New("x")))
}
