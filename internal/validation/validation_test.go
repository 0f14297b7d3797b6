package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestOptionalFailureIsLogged(t *testing.T) {
	sv := NewServiceValidator()
	sv.Register("database", ok)
	sv.Register("redis", down)
	assert.NoError(t, sv.ValidateServices(context.Background()))
}

func TestRequiredFailureStopsStartup(t *testing.T) {
	t.Setenv("ARB_REQUIRE_REDIS", "yes")
	sv := NewServiceValidator()
	sv.Register("redis", down)

	err := sv.ValidateServices(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestRequiredWithoutCheck(t *testing.T) {
	sv := NewServiceValidator()
	sv.Require("s3")
	sv.Register("database", ok)
	assert.ErrorContains(t, sv.ValidateServices(context.Background()), "not configured")
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " on "} {
		assert.True(t, isTruthy(v), v)
	}
	for _, v := range []string{"", "0", "false", "nope"} {
		assert.False(t, isTruthy(v), v)
	}
}
