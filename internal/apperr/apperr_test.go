package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "network", err: Network("create", "products", 502, nil), want: KindNetwork},
		{name: "wrapped empty", err: fmt.Errorf("save: %w", EmptyResponse("create", "products")), want: KindEmptyResponse},
		{name: "precondition", err: Precondition("create", "no store"), want: KindPrecondition},
		{name: "plain error", err: errors.New("boom"), want: KindNetwork},
		{name: "context", err: context.DeadlineExceeded, want: KindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestRollbackable(t *testing.T) {
	assert.True(t, Rollbackable(Network("update", "products", 500, nil)))
	assert.True(t, Rollbackable(EmptyResponse("create", "products")))
	assert.False(t, Rollbackable(Precondition("create", "no store")))
	assert.False(t, Rollbackable(Inconclusive("check", nil)))
	assert.False(t, Rollbackable(nil))
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", Network("delete", "suppliers", 404, errors.New("not found")))
	require.ErrorIs(t, err, &Error{Kind: KindNetwork})
	require.ErrorIs(t, err, &Error{Kind: KindNetwork, Op: "delete"})
	assert.NotErrorIs(t, err, &Error{Kind: KindNetwork, Op: "create"})
	assert.NotErrorIs(t, err, &Error{Kind: KindEmptyResponse})
	assert.Contains(t, err.Error(), "status=404")
	assert.Contains(t, err.Error(), "suppliers")
}
