package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserFromContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	id, ok := UserFromContext(WithUser(context.Background(), 42))
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = UserFromContext(WithUser(context.Background(), 0))
	assert.False(t, ok)
}
