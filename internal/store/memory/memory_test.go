package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finova-oss/rewardengine/internal/errs"
	"github.com/finova-oss/rewardengine/internal/model"
	"github.com/finova-oss/rewardengine/internal/store"
	"github.com/finova-oss/rewardengine/internal/store/memory"
)

func TestGetUnknownUserReturnsUnknownUserError(t *testing.T) {
	s := memory.New(nil, model.NetworkState{})
	_, err := s.GetUser(context.Background(), "ghost")
	require.Error(t, err)
	e, ok := errs.AsEngineError(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUnknownUser, e.Kind)
}

func TestCreateUserIsIdempotent(t *testing.T) {
	s := memory.New(nil, model.NetworkState{})
	ctx := context.Background()
	a1, err := s.CreateUser(ctx, "u1", time.Now())
	require.NoError(t, err)
	a2, err := s.CreateUser(ctx, "u1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, a1.CreatedAt, a2.CreatedAt)
}

func TestUpdateUserAppliesMutatorAtomically(t *testing.T) {
	s := memory.New(nil, model.NetworkState{})
	ctx := context.Background()
	_, err := s.CreateUser(ctx, "u1", time.Now())
	require.NoError(t, err)

	updated, err := s.UpdateUser(ctx, "u1", func(a *model.UserAccount) error {
		a.XPTotal += 100
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), updated.XPTotal)

	fetched, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), fetched.XPTotal)
}

func TestUpdateUserRollsBackOnMutatorError(t *testing.T) {
	s := memory.New(nil, model.NetworkState{})
	ctx := context.Background()
	_, err := s.CreateUser(ctx, "u1", time.Now())
	require.NoError(t, err)

	_, err = s.UpdateUser(ctx, "u1", func(a *model.UserAccount) error {
		a.XPTotal = 999
		return errs.InvariantViolation("forced failure")
	})
	require.Error(t, err)

	fetched, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), fetched.XPTotal)
}

func TestConcurrentUpdatesToSameUserAreSerialized(t *testing.T) {
	s := memory.New(nil, model.NetworkState{})
	ctx := context.Background()
	_, err := s.CreateUser(ctx, "u1", time.Now())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.UpdateUser(ctx, "u1", func(a *model.UserAccount) error {
				a.XPTotal++
				return nil
			})
		}()
	}
	wg.Wait()

	fetched, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), fetched.XPTotal)
}

func TestNetworkStateReadWrite(t *testing.T) {
	s := memory.New(nil, model.NetworkState{TotalUsers: 10})
	n, err := s.GetNetworkState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(10), n.TotalUsers)

	s.SetNetworkState(model.NetworkState{TotalUsers: 20})
	n, err = s.GetNetworkState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(20), n.TotalUsers)
}

func TestLogSuspiciousNeverBlocks(t *testing.T) {
	var s store.Store = memory.New(nil, model.NetworkState{})
	done := make(chan struct{})
	go func() {
		s.LogSuspicious(store.AuditRecord{UserID: "u1"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("LogSuspicious blocked")
	}
}
