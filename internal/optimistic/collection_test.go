package optimistic

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/storedesk/internal/apperr"
	"github.com/Spok95/storedesk/internal/infra/metrics"
	"github.com/Spok95/storedesk/internal/infra/notify"
)

type account struct {
	ID      string
	Name    string
	Balance int
}

func (a account) EntityID() string { return a.ID }

var errRemote = apperr.Network("remote", "accounts", 500, errors.New("boom"))

func newAccounts(t *testing.T, initial ...account) *Collection[account] {
	t.Helper()
	c := NewCollection[account]("accounts")
	require.NoError(t, c.Replace(context.Background(), initial))
	return c
}

func TestUpdateRollsBackOnFailure(t *testing.T) {
	c := newAccounts(t, account{ID: "a", Balance: 10})

	err := c.Update(context.Background(), account{ID: "a", Balance: 20}, func(context.Context, account) error {
		return errRemote
	})

	require.ErrorIs(t, err, &apperr.Error{Kind: apperr.KindNetwork})
	assert.Equal(t, []account{{ID: "a", Balance: 10}}, c.Entities())
}

func TestCreateReplacesTempID(t *testing.T) {
	c := newAccounts(t)

	saved, err := c.Create(context.Background(), account{Name: "X"}, func(_ context.Context, e account) (account, error) {
		e.ID = "srv1"
		return e, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "srv1", saved.ID)
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, StatusConfirmed, items[0].Status)
	assert.Equal(t, account{ID: "srv1", Name: "X"}, items[0].Entity)
	for _, it := range items {
		assert.False(t, IsTempID(it.ID()))
	}
}

func TestDeleteRollbackKeepsOrder(t *testing.T) {
	c := newAccounts(t, account{ID: "a"}, account{ID: "b"})

	err := c.Delete(context.Background(), "a", func(context.Context, string) error { return errRemote })

	require.Error(t, err)
	assert.Equal(t, []account{{ID: "a"}, {ID: "b"}}, c.Entities())
}

func TestDeleteConfirmed(t *testing.T) {
	c := newAccounts(t, account{ID: "a"}, account{ID: "b"}, account{ID: "c"})

	require.NoError(t, c.Delete(context.Background(), "b", func(context.Context, string) error { return nil }))
	assert.Equal(t, []account{{ID: "a"}, {ID: "c"}}, c.Entities())
}

func TestCreateEmptyResponseRollsBack(t *testing.T) {
	c := newAccounts(t, account{ID: "a"})

	_, err := c.Create(context.Background(), account{Name: "X"}, func(context.Context, account) (account, error) {
		return account{}, nil
	})

	assert.True(t, apperr.IsKind(err, apperr.KindEmptyResponse))
	assert.Equal(t, []account{{ID: "a"}}, c.Entities())
	assert.Equal(t, 1, c.Len())
}

func TestRollbackRestoresSnapshotExactly(t *testing.T) {
	initial := []account{{ID: "a", Balance: 1}, {ID: "b", Balance: 2}, {ID: "c", Balance: 3}}
	fail := func(context.Context, account) error { return errRemote }

	muts := map[string]func(c *Collection[account]) error{
		"update first": func(c *Collection[account]) error {
			return c.Update(context.Background(), account{ID: "a", Balance: 100}, fail)
		},
		"update last": func(c *Collection[account]) error {
			return c.Update(context.Background(), account{ID: "c", Name: "renamed"}, fail)
		},
		"delete middle": func(c *Collection[account]) error {
			return c.Delete(context.Background(), "b", func(context.Context, string) error { return errRemote })
		},
		"create": func(c *Collection[account]) error {
			_, err := c.Create(context.Background(), account{Name: "new"}, func(context.Context, account) (account, error) {
				return account{}, errRemote
			})
			return err
		},
	}
	for name, mut := range muts {
		t.Run(name, func(t *testing.T) {
			c := newAccounts(t, initial...)
			before := c.Items()
			require.Error(t, mut(c))
			assert.Equal(t, before, c.Items())
		})
	}
}

func TestSpeculativeStateVisibleBeforeRemoteSettles(t *testing.T) {
	c := newAccounts(t, account{ID: "a", Balance: 10})

	var appliedCalled bool
	var seenDuringRemote []account
	var states []State
	err := c.Update(context.Background(), account{ID: "a", Balance: 20},
		func(context.Context, account) error {
			seenDuringRemote = c.Entities()
			return nil
		},
		OnApplied(func() {
			appliedCalled = true
			// модалка закрывается до сетевого вызова
			assert.Nil(t, seenDuringRemote)
		}),
		OnTransition(func(s State) { states = append(states, s) }),
	)

	require.NoError(t, err)
	assert.True(t, appliedCalled)
	assert.Equal(t, []account{{ID: "a", Balance: 20}}, seenDuringRemote)
	assert.Equal(t, []State{StateSpeculativeApplied, StateConfirmed}, states)
}

func TestPendingItemDuringCreate(t *testing.T) {
	c := NewCollection[account]("accounts", WithPrepend(), WithIDGenerator(func() string { return "temp-1" }))
	require.NoError(t, c.Replace(context.Background(), []account{{ID: "old"}}))

	var during []Item[account]
	_, err := c.Create(context.Background(), account{Name: "n"}, func(_ context.Context, e account) (account, error) {
		during = c.Items()
		e.ID = "srv"
		return e, nil
	})
	require.NoError(t, err)

	require.Len(t, during, 2)
	assert.True(t, during[0].IsPending())
	assert.Equal(t, "temp-1", during[0].ID())
	assert.Equal(t, []account{{ID: "old"}}, c.Entities()[1:])
	assert.Equal(t, "srv", c.Items()[0].ID())
}

func TestUpdateMissingEntityIsPrecondition(t *testing.T) {
	c := newAccounts(t, account{ID: "a"})
	called := false

	err := c.Update(context.Background(), account{ID: "zzz"}, func(context.Context, account) error {
		called = true
		return nil
	})

	assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))
	assert.False(t, called)
	assert.Equal(t, []account{{ID: "a"}}, c.Entities())
}

func TestFailureNotifiesUser(t *testing.T) {
	var got []notify.Notification
	n := notify.Func(func(ctx context.Context, nt notify.Notification) error {
		require.NoError(t, ctx.Err())
		got = append(got, nt)
		return nil
	})
	c := NewCollection[account]("accounts", WithNotifier(n), WithStoreID("s1"))
	require.NoError(t, c.Replace(context.Background(), []account{{ID: "a"}}))

	ctx, cancel := context.WithCancel(context.Background())
	err := c.Delete(ctx, "a", func(context.Context, string) error {
		cancel()
		return context.Canceled
	}, FailureMessage("Не удалось удалить"))
	require.Error(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].StoreID)
	assert.Equal(t, notify.LevelError, got[0].Level)
	assert.Equal(t, "Не удалось удалить", got[0].Message)
}

func TestMutationsOnSameCollectionAreSerialized(t *testing.T) {
	c := newAccounts(t, account{ID: "a", Balance: 1}, account{ID: "b", Balance: 1})

	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		_ = c.Update(context.Background(), account{ID: "a", Balance: 100}, func(context.Context, account) error {
			close(firstStarted)
			<-releaseFirst
			return errRemote
		})
	}()
	<-firstStarted

	secondDone := make(chan error, 1)
	go func() {
		defer wg.Done()
		secondDone <- c.Update(context.Background(), account{ID: "b", Balance: 200}, func(context.Context, account) error {
			return nil
		})
	}()

	select {
	case <-secondDone:
		t.Fatal("second mutation must wait for the first one to settle")
	case <-time.After(50 * time.Millisecond):
	}
	close(releaseFirst)
	wg.Wait()
	require.NoError(t, <-secondDone)

	// откат первой мутации не затирает вторую
	assert.Equal(t, []account{{ID: "a", Balance: 1}, {ID: "b", Balance: 200}}, c.Entities())
}

func TestCancelledWaitLeavesCollectionUntouched(t *testing.T) {
	c := newAccounts(t, account{ID: "a"})
	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = c.Update(context.Background(), account{ID: "a", Name: "x"}, func(context.Context, account) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	err := c.Delete(ctx, "a", func(context.Context, string) error {
		called = true
		return nil
	})
	close(hold)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollection[account]("accounts", WithMetrics(metrics.New(reg)))
	require.NoError(t, c.Replace(context.Background(), []account{{ID: "a"}}))
	require.Error(t, c.Delete(context.Background(), "a", func(context.Context, string) error { return errRemote }))
	require.NoError(t, c.Delete(context.Background(), "a", func(context.Context, string) error { return nil }))
	assert.Equal(t, 0, c.Len())

	assert.Equal(t, 1.0, mutationCount(t, reg, string(StateRolledBack)))
	assert.Equal(t, 1.0, mutationCount(t, reg, string(StateConfirmed)))
}

func mutationCount(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "storedesk_mutations_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRollbackLogLevelByKind(t *testing.T) {
	var buf bytes.Buffer
	c := NewCollection[account]("accounts", WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	require.NoError(t, c.Replace(context.Background(), []account{{ID: "a"}}))

	require.Error(t, c.Update(context.Background(), account{ID: "a", Balance: 1},
		func(context.Context, account) error { return errRemote }))
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.NotContains(t, buf.String(), `"level":"ERROR"`)

	buf.Reset()
	require.Error(t, c.Update(context.Background(), account{ID: "a", Balance: 2},
		func(context.Context, account) error { return apperr.Precondition("update", "stale version") }))
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), "validation_precondition")
	a, _ := c.Get("a")
	assert.Equal(t, 0, a.Balance)
}
