package cache_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardenhq/warden/internal/cache"
	"go.uber.org/zap"
)

func setupTest(t *testing.T) (*cache.Notifier, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return cache.NewNotifier(client, zap.NewNop()), mr
}

func TestInvalidateGameSetsMarker(t *testing.T) {
	t.Parallel()

	notifier, mr := setupTest(t)

	notifier.InvalidateGame(t.Context(), "76561197960287930")

	key := cache.Channel + ":game:76561197960287930"
	value, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "1", value)

	// The marker must expire on its own.
	ttl := mr.TTL(key)
	assert.Positive(t, ttl)
}

func TestInvalidateUserSetsMarker(t *testing.T) {
	t.Parallel()

	notifier, mr := setupTest(t)

	notifier.InvalidateUser(t.Context(), 111222333444555666)

	value, err := mr.Get(cache.Channel + ":user:111222333444555666")
	require.NoError(t, err)
	assert.Equal(t, "1", value)
}

func TestInvalidatePublishesOnChannel(t *testing.T) {
	t.Parallel()

	notifier, mr := setupTest(t)

	sub := mr.NewSubscriber()
	defer sub.Close()
	sub.Subscribe(cache.Channel)

	notifier.InvalidateGame(t.Context(), "76561197960287930")

	msg := <-sub.Messages()
	assert.Equal(t, cache.Channel, msg.Channel)
	assert.Equal(t, "game:76561197960287930", msg.Message)
}
