package shared

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTraceID(t *testing.T) {
	t.Parallel()

	assert.Empty(t, GetTraceID(context.Background()))

	ctx := SetTraceID(context.Background())
	id := GetTraceID(ctx)
	assert.Len(t, id, 2*TraceIDLength)
	assert.NotEqual(t, id, GetTraceID(SetTraceID(context.Background())))
}

func TestOwnerIDFromContext(t *testing.T) {
	t.Parallel()

	_, ok := OwnerIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = OwnerIDFromContext(WithOwnerID(context.Background(), uuid.Nil))
	assert.False(t, ok, "nil owner is treated as absent")

	id := uuid.New()
	got, ok := OwnerIDFromContext(WithOwnerID(context.Background(), id))
	assert.True(t, ok)
	assert.Equal(t, id, got)
}
