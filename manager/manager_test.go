package manager

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/agiledragon/gomonkey/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaoxuxiansheng/redis_lock"

	"github.com/cedarsql/txncoord/config"
	"github.com/cedarsql/txncoord/hlc"
	"github.com/cedarsql/txncoord/wire"
)

type fakeClient struct{}

func (fakeClient) UpdateTransaction(ctx context.Context, tablet RemoteTablet, req wire.UpdateTransactionRequest) (wire.UpdateTransactionResponse, error) {
	return wire.UpdateTransactionResponse{PropagatedHybridTime: hlc.Timestamp{Physical: 1}}, nil
}

func (fakeClient) AbortTransaction(ctx context.Context, tablet RemoteTablet, req wire.AbortTransactionRequest) (wire.AbortTransactionResponse, error) {
	return wire.AbortTransactionResponse{}, nil
}

func newTestManager(t *testing.T, tabletIDs []string) *Manager {
	t.Helper()
	clock := hlc.NewPhysicalLogicalClock(0)
	pool := NewLocalPool(tabletIDs)
	m, err := New(clock, config.Default(), fakeClient{}, pool, 16)
	require.NoError(t, err)
	return m
}

func Test_pick_status_tablet_round_robins(t *testing.T) {
	m := newTestManager(t, []string{"s1", "s2"})

	results := make(chan string, 2)
	m.PickStatusTablet(func(tabletID string, err error) {
		require.NoError(t, err)
		results <- tabletID
	})
	m.PickStatusTablet(func(tabletID string, err error) {
		require.NoError(t, err)
		results <- tabletID
	})

	seen := map[string]bool{<-results: true, <-results: true}
	assert.True(t, seen["s1"])
	assert.True(t, seen["s2"])
}

func Test_pick_status_tablet_empty_pool_errors(t *testing.T) {
	m := newTestManager(t, nil)
	done := make(chan error, 1)
	m.PickStatusTablet(func(tabletID string, err error) {
		done <- err
	})
	assert.Error(t, <-done)
}

func Test_resolve_tablet_caches(t *testing.T) {
	m := newTestManager(t, []string{"s1"})
	first, err := m.ResolveTablet(context.Background(), "t1")
	require.NoError(t, err)
	second, err := m.ResolveTablet(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func Test_update_clock_and_now(t *testing.T) {
	m := newTestManager(t, []string{"s1"})
	future := hlc.Timestamp{Physical: 99999999999}
	m.UpdateClock(future)
	assert.False(t, m.Now().Less(future))
}

func Test_distributed_pool_propagates_lock_failure(t *testing.T) {
	patch := gomonkey.ApplyMethod(reflect.TypeOf(&redis_lock.RedisLock{}), "Lock", func(_ *redis_lock.RedisLock, _ context.Context) error {
		return errors.New("lock err")
	})
	defer patch.Reset()

	pool := NewDistributedPool([]string{"s1", "s2"}, nil)
	_, err := pool.Pick(context.Background())
	assert.Error(t, err)
}

func Test_distributed_pool_empty_errors(t *testing.T) {
	pool := NewDistributedPool(nil, nil)
	_, err := pool.Pick(context.Background())
	assert.Error(t, err)
}
