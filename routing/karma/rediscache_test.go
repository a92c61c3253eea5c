package karma

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRedisTierDisabledWhenAddrEmpty(t *testing.T) {
	require.Nil(t, newRedisTier("", 0))
}

func TestClientHasNoRedisTierByDefault(t *testing.T) {
	c := New(testCfg(), &fakeSource{}, nil, nil)
	require.Nil(t, c.redis, "default config leaves RedisAddr empty, so no tier should be constructed")
}
