package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventually = time.Second

func TestStartFetchesImmediatelyOldestFirst(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.store.seed(h.room.ID, msg(1, "first", now), msg(2, "second", now.Add(time.Second)))

	s, _ := h.start(t, h.room.ID)

	assert.Equal(t, StatePolling, s.State())
	assert.Equal(t, 1, h.store.fetchCount())
	assert.Equal(t, []string{"first", "second"}, contents(s.Visible()))
	assert.False(t, s.LastFetchedAt().IsZero())
}

func TestTickReplacesAuthoritativePortion(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.store.seed(h.room.ID, msg(1, "hi", now))

	s, ticker := h.start(t, h.room.ID)
	require.True(t, ticker.fire(eventually))
	require.True(t, ticker.fire(eventually))

	require.Eventually(t, func() bool { return h.store.fetchCount() >= 3 }, eventually, 5*time.Millisecond)
	assert.Equal(t, []string{"hi"}, contents(s.Visible()))

	h.store.seed(h.room.ID, msg(2, "there", now.Add(time.Second)))
	require.True(t, ticker.fire(eventually))
	require.Eventually(t, func() bool { return len(s.Visible()) == 2 }, eventually, 5*time.Millisecond)
	assert.Equal(t, []string{"hi", "there"}, contents(s.Visible()))
}

func TestDuplicateIdentitiesRenderOnce(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.store.seed(h.room.ID, msg(1, "hi", now), msg(1, "hi", now), msg(2, "yo", now))

	s, _ := h.start(t, h.room.ID)

	assert.Equal(t, []string{"hi", "yo"}, contents(s.Visible()))
}

func TestPendingEntryReconciledWithoutDuplicate(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.store.seed(h.room.ID, msg(1, "hi", now))
	h.store.deferIndex = true

	s, ticker := h.start(t, h.room.ID)
	c := NewComposer(h.store, h.dir, s, zerolog.Nop())

	entered, release := h.store.holdPosts()
	type result struct {
		entry PendingEntry
		err   error
	}
	done := make(chan result, 1)
	go func() {
		e, err := c.Submit(context.Background(), "hello", nil)
		done <- result{e, err}
	}()

	<-entered
	// Visible while the submission is still in flight.
	assert.Equal(t, []string{"hi", "hello(submitting)"}, contents(s.Visible()))

	require.True(t, ticker.fire(eventually))
	require.Eventually(t, func() bool { return h.store.fetchCount() >= 2 }, eventually, 5*time.Millisecond)
	assert.Equal(t, []string{"hi", "hello(submitting)"}, contents(s.Visible()))

	close(release)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, StatusResolved, res.entry.Status)
	assert.Less(t, res.entry.Message.ID, int64(0))
	assert.Greater(t, res.entry.ServerID, int64(0))

	// Accepted but not indexed yet: still shown, still exactly once.
	require.Eventually(t, func() bool { return h.store.fetchCount() >= 3 }, eventually, 5*time.Millisecond)
	assert.Equal(t, []string{"hi", "hello(resolved)"}, contents(s.Visible()))

	h.store.publish()
	require.True(t, ticker.fire(eventually))
	require.Eventually(t, func() bool {
		v := s.Visible()
		return len(v) == 2 && !v[1].IsPending()
	}, eventually, 5*time.Millisecond)
	assert.Equal(t, []string{"hi", "hello"}, contents(s.Visible()))
	assert.Empty(t, s.Pending())
}

func TestFetchFailureKeepsPreviousSequence(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.store.seed(h.room.ID, msg(1, "hi", now))

	s, ticker := h.start(t, h.room.ID)
	before := s.Visible()

	h.store.setFetchErr(errors.New("connection refused"))
	require.True(t, ticker.fire(eventually))
	require.Eventually(t, func() bool { return s.LastFetchError() != nil }, eventually, 5*time.Millisecond)
	assert.Equal(t, before, s.Visible())
	assert.Equal(t, StatePolling, s.State())

	h.store.setFetchErr(nil)
	h.store.seed(h.room.ID, msg(2, "back", now.Add(time.Second)))
	require.True(t, ticker.fire(eventually))
	require.Eventually(t, func() bool { return len(s.Visible()) == 2 }, eventually, 5*time.Millisecond)
	assert.NoError(t, s.LastFetchError())
}

func TestLateFetchAfterStopIsDiscarded(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.store.seed(h.room.ID, msg(1, "hi", now))

	s, ticker := h.start(t, h.room.ID)
	before := s.Visible()

	entered, release := h.store.holdFetches()
	require.True(t, ticker.fire(eventually))
	<-entered

	s.Stop()
	h.store.seed(h.room.ID, msg(2, "late", now.Add(time.Second)))
	close(release)

	select {
	case <-s.Done():
	case <-time.After(eventually):
		t.Fatal("polling goroutine did not exit")
	}
	assert.Equal(t, before, s.Visible())
	assert.Equal(t, StateStopped, s.State())
}

func TestStopCancelsScheduledTicks(t *testing.T) {
	h := newHarness(t)
	s, ticker := h.start(t, h.room.ID)

	s.Stop()
	<-s.Done()

	select {
	case <-ticker.stopped:
	default:
		t.Fatal("ticker was not stopped")
	}
	calls := h.store.fetchCount()
	assert.False(t, ticker.fire(50*time.Millisecond), "tick delivered after stop")
	s.Refresh()
	assert.Equal(t, calls, h.store.fetchCount())

	s.Stop()
}

func TestStartSwitchesRooms(t *testing.T) {
	h := newHarness(t)
	second := Room{ID: uuid.New(), Name: "random", Owner: h.other, Members: []User{h.other, h.user}}
	h.backend.rooms = append(h.backend.rooms, second)

	first, _ := h.start(t, h.room.ID)
	next, _ := h.start(t, second.ID)

	<-first.Done()
	assert.Equal(t, StateStopped, first.State())
	assert.Equal(t, StatePolling, next.State())
	assert.Same(t, next, h.engine.Active())

	h.engine.Stop()
	<-next.Done()
	assert.Nil(t, h.engine.Active())
}

func TestStartRejectsNonMember(t *testing.T) {
	h := newHarness(t)
	stranger := User{ID: uuid.New(), Name: "eve"}
	private := Room{ID: uuid.New(), Name: "secret", IsPrivate: true, Owner: stranger, Members: []User{stranger}}
	h.backend.rooms = append(h.backend.rooms, private)

	s, err := h.engine.Start(context.Background(), private.ID)

	require.Error(t, err)
	assert.True(t, IsAuthorization(err))
	assert.Nil(t, s)
	assert.Zero(t, h.store.fetchCount())
	assert.Nil(t, h.engine.Active())
}

func TestHistoryWindowIsBounded(t *testing.T) {
	h := newHarness(t)
	h.engine = NewEngine(h.store, h.dir, WithHistoryLimit(3), WithTicker(func(time.Duration) Ticker {
		mt := newManualTicker()
		h.tickers <- mt
		return mt
	}))
	t.Cleanup(h.engine.Stop)

	now := time.Now()
	for i := int64(1); i <= 5; i++ {
		h.store.seed(h.room.ID, msg(i, string(rune('a'+i-1)), now.Add(time.Duration(i)*time.Second)))
	}

	s, _ := h.start(t, h.room.ID)

	assert.Equal(t, []string{"c", "d", "e"}, contents(s.Visible()))
}

func TestRefreshFetchesOutOfSchedule(t *testing.T) {
	h := newHarness(t)
	s, _ := h.start(t, h.room.ID)

	s.Refresh()

	require.Eventually(t, func() bool { return h.store.fetchCount() == 2 }, eventually, 5*time.Millisecond)
}

func TestUpdatesSignalsChanges(t *testing.T) {
	h := newHarness(t)
	s, ticker := h.start(t, h.room.ID)

	select {
	case <-s.Updates():
	case <-time.After(eventually):
		t.Fatal("no update after the initial fetch")
	}

	h.store.seed(h.room.ID, msg(1, "ping", time.Now()))
	require.True(t, ticker.fire(eventually))
	select {
	case <-s.Updates():
	case <-time.After(eventually):
		t.Fatal("no update after a tick")
	}
}

func TestStartHonoursCallerCancellation(t *testing.T) {
	h := newHarness(t)
	entered, release := h.store.holdFetches()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := h.engine.Start(ctx, h.room.ID)
		errc <- err
	}()

	<-entered
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(eventually):
		t.Fatal("Start kept waiting on a cancelled context")
	}
	assert.Nil(t, h.engine.Active())
	assert.Empty(t, h.tickers, "no polling after a cancelled start")
}
