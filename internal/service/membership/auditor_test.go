package membership

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditChannelPersistsOnlyChanges(t *testing.T) {
	store := newMemStore()
	store.addChannel(sponsorChannel(1, "@open", 10))
	checker := newFakeChecker()
	checker.access["@open"] = true
	a := NewAuditor(store, checker, zerolog.Nop())

	ch := store.channels[0]
	assert.True(t, a.AuditChannel(context.Background(), &ch))
	assert.Zero(t, store.accessSets)

	checker.access["@open"] = false
	assert.False(t, a.AuditChannel(context.Background(), &ch))
	assert.Equal(t, 1, store.accessSets)
	assert.False(t, ch.BotHasAccess)
	require.NotNil(t, ch.LastAccessCheck)
	assert.False(t, store.channels[0].BotHasAccess)
}

func TestAuditAllCountsAccessible(t *testing.T) {
	store := newMemStore()
	store.addChannel(sponsorChannel(1, "@a", 10))
	lost := sponsorChannel(2, "@b", 10)
	lost.BotHasAccess = false
	store.addChannel(lost)
	store.addChannel(sponsorChannel(3, "@c", 10))
	checker := newFakeChecker()
	checker.access["@a"] = true
	checker.access["@b"] = true
	a := NewAuditor(store, checker, zerolog.Nop())

	channels, err := store.ListActive(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, a.AuditAll(context.Background(), channels))
	assert.True(t, channels[1].BotHasAccess)
	assert.False(t, channels[2].BotHasAccess)
	assert.Equal(t, int32(3), checker.accessCalls.Load())
	assert.Equal(t, 2, store.accessSets)
}

func TestAuditThenReconcileGatesRevokedChannel(t *testing.T) {
	store := newMemStore()
	store.addUser(1, 100)
	store.addChannel(sponsorChannel(1, "@gone", 10))
	checker := newFakeChecker()
	checker.setStatus(100, "@gone", "member")
	a := NewAuditor(store, checker, zerolog.Nop())
	r := newTestReconciler(store, checker, 1)

	channels, err := store.ListActive(context.Background())
	require.NoError(t, err)
	assert.Zero(t, a.AuditAll(context.Background(), channels))

	res, err := r.ReconcileChannels(context.Background(), channels)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChannelsSkipped)
	assert.Zero(t, checker.memberCalls.Load())
}
