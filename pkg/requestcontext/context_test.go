package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActorDefaultsToSystem(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, SystemActor, Actor(ctx))
	assert.False(t, HasActor(ctx))

	ctx = WithActor(ctx, "jdoe")
	assert.Equal(t, "jdoe", Actor(ctx))
	assert.True(t, HasActor(ctx))
}

func TestNowPinned(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
}

func TestGroupsAndToken(t *testing.T) {
	ctx := WithGroups(context.Background(), []string{"/COMPLIANCE/USER"})
	ctx = WithAccessToken(ctx, "tok")
	assert.Equal(t, []string{"/COMPLIANCE/USER"}, Groups(ctx))
	assert.Equal(t, "tok", AccessToken(ctx))
}
