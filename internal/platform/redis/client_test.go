package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliance/internal/platform/config"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "compliance:registry:project:7", Key("registry", "project", "7"))
}

func TestNewWithoutURLIsDisabled(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "://nope"})
	assert.ErrorContains(t, err, "parse redis URL")
}
