package syncpoint

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsync/fedsync/internal/timebase"
)

func TestList_Add(t *testing.T) {
	l := NewList()

	require.NoError(t, l.Add("init_phase_1"))
	require.NoError(t, l.Add("init_phase_2"))

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, []string{"init_phase_1", "init_phase_2"}, l.Labels())

	p, ok := l.Lookup("init_phase_1")
	require.True(t, ok)
	assert.Equal(t, StateUnregistered, p.State)
	assert.Equal(t, timebase.Unscheduled, p.At)
}

func TestList_AddAt(t *testing.T) {
	l := NewList()

	require.NoError(t, l.AddAt("checkpoint", 120_000_000))

	p, ok := l.Lookup("checkpoint")
	require.True(t, ok)
	assert.Equal(t, timebase.Time(120_000_000), p.At)
}

func TestList_Add_DuplicateRejected(t *testing.T) {
	l := announcedList("ready")

	err := l.Add("ready")
	require.Error(t, err)
	assert.True(t, IsDuplicateLabel(err))

	// The original point is untouched: same state, same time, no new entry.
	assert.Equal(t, 1, l.Len())
	p, ok := l.Lookup("ready")
	require.True(t, ok)
	assert.Equal(t, StateAnnounced, p.State)
	assert.Equal(t, timebase.Unscheduled, p.At)
}

func TestList_AddAt_DuplicateKeepsOriginalTime(t *testing.T) {
	l := NewList()
	require.NoError(t, l.AddAt("ready", 100))

	err := l.AddAt("ready", 999)
	require.Error(t, err)
	assert.True(t, IsDuplicateLabel(err))

	p, _ := l.Lookup("ready")
	assert.Equal(t, timebase.Time(100), p.At)
}

func TestList_Add_EmptyLabel(t *testing.T) {
	l := NewList()
	require.Error(t, l.Add(""))
	assert.Equal(t, 0, l.Len())
}

func TestList_Announce(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Add("ready"))

	require.NoError(t, l.Announce("ready", timebase.Unscheduled))

	p, _ := l.Lookup("ready")
	assert.Equal(t, StateAnnounced, p.State)
}

func TestList_Announce_AdoptsUnknownByDefault(t *testing.T) {
	l := NewList()

	require.NoError(t, l.Announce("peer_barrier", 500))

	p, ok := l.Lookup("peer_barrier")
	require.True(t, ok, "default policy adopts announced labels")
	assert.Equal(t, StateAnnounced, p.State)
	assert.Equal(t, timebase.Time(500), p.At)
}

func TestList_Announce_IgnorePolicy(t *testing.T) {
	l := NewList(WithAnnouncePolicy(AnnounceIgnore))

	err := l.Announce("peer_barrier", timebase.Unscheduled)
	require.Error(t, err)
	assert.True(t, IsUnknownLabel(err))
	assert.Equal(t, 0, l.Len(), "ignored announce must not create a point")
}

func TestList_Announce_AdoptsScheduledTime(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Add("ready"))

	require.NoError(t, l.Announce("ready", 2_000))

	p, _ := l.Lookup("ready")
	assert.Equal(t, timebase.Time(2_000), p.At)
}

func TestList_Announce_UnscheduledKeepsLocalTime(t *testing.T) {
	l := NewList()
	require.NoError(t, l.AddAt("ready", 750))

	require.NoError(t, l.Announce("ready", timebase.Unscheduled))

	p, _ := l.Lookup("ready")
	assert.Equal(t, timebase.Time(750), p.At)
}

func TestList_Announce_RepeatNeverRegresses(t *testing.T) {
	l := announcedList("ready")
	gw := newRecordingGateway()
	require.NoError(t, l.Achieve(context.Background(), gw, "ready"))

	require.NoError(t, l.Announce("ready", timebase.Unscheduled))

	p, _ := l.Lookup("ready")
	assert.Equal(t, StateAchieved, p.State, "repeat announce must not regress state")
}

func TestList_Register(t *testing.T) {
	l := NewList()
	require.NoError(t, l.AddAt("ready", 100))
	gw := newRecordingGateway()

	require.NoError(t, l.Register(context.Background(), gw, "ready"))

	assert.Equal(t, []string{"ready"}, gw.registered)
	p, _ := l.Lookup("ready")
	assert.Equal(t, StateAnnounced, p.State)
}

func TestList_Register_IdempotentNoSecondCall(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Add("ready"))
	gw := newRecordingGateway()

	require.NoError(t, l.Register(context.Background(), gw, "ready"))
	require.NoError(t, l.Register(context.Background(), gw, "ready"))

	assert.Equal(t, 1, gw.registerCalls, "repeat register must not call the gateway again")
}

func TestList_Register_Unknown(t *testing.T) {
	l := NewList()
	gw := newRecordingGateway()

	err := l.Register(context.Background(), gw, "ghost")
	require.Error(t, err)
	assert.True(t, IsUnknownLabel(err))
	assert.Zero(t, gw.registerCalls)
}

func TestList_Register_GatewayFailure(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Add("ready"))
	gw := newRecordingGateway()
	gw.failRegister["ready"] = errors.New("exchange unreachable")

	err := l.Register(context.Background(), gw, "ready")
	require.Error(t, err)
	assert.True(t, IsGatewayFailure(err))

	p, _ := l.Lookup("ready")
	assert.Equal(t, StateError, p.State)
}

func TestList_RegisterAll_FailureIsolation(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Add("a"))
	require.NoError(t, l.Add("b"))
	require.NoError(t, l.Add("c"))
	gw := newRecordingGateway()
	gw.failRegister["b"] = errors.New("boom")

	err := l.RegisterAll(context.Background(), gw)
	require.Error(t, err)
	assert.True(t, IsGatewayFailure(err))

	// a and c registered in insertion order; only b errored.
	assert.Equal(t, []string{"a", "c"}, gw.registered)
	pa, _ := l.Lookup("a")
	pb, _ := l.Lookup("b")
	pc, _ := l.Lookup("c")
	assert.Equal(t, StateAnnounced, pa.State)
	assert.Equal(t, StateError, pb.State)
	assert.Equal(t, StateAnnounced, pc.State)
}

func TestList_RegisterAll_SkipsAdvancedPoints(t *testing.T) {
	l := announcedList("already")
	require.NoError(t, l.Add("fresh"))
	gw := newRecordingGateway()

	require.NoError(t, l.RegisterAll(context.Background(), gw))

	assert.Equal(t, []string{"fresh"}, gw.registered)
}

func TestList_Achieve(t *testing.T) {
	l := announcedList("ready")
	gw := newRecordingGateway()

	require.NoError(t, l.Achieve(context.Background(), gw, "ready"))

	assert.Equal(t, []string{"ready"}, gw.achieved)
	p, _ := l.Lookup("ready")
	assert.Equal(t, StateAchieved, p.State)
}

func TestList_Achieve_IdempotentNoDuplicateGatewayCall(t *testing.T) {
	l := announcedList("ready")
	gw := newRecordingGateway()

	require.NoError(t, l.Achieve(context.Background(), gw, "ready"))
	require.NoError(t, l.Achieve(context.Background(), gw, "ready"))

	assert.Equal(t, 1, gw.achieveCalls, "repeat achieve must not call the gateway again")
	p, _ := l.Lookup("ready")
	assert.Equal(t, StateAchieved, p.State)
}

func TestList_Achieve_SynchronizedIsNoOp(t *testing.T) {
	l := announcedList("ready")
	gw := newRecordingGateway()
	require.NoError(t, l.Achieve(context.Background(), gw, "ready"))
	require.NoError(t, l.Synchronized("ready"))

	require.NoError(t, l.Achieve(context.Background(), gw, "ready"))

	assert.Equal(t, 1, gw.achieveCalls)
	p, _ := l.Lookup("ready")
	assert.Equal(t, StateSynchronized, p.State, "achieve must not regress a synchronized point")
}

func TestList_Achieve_NotAnnounced(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Add("ready"))
	gw := newRecordingGateway()

	err := l.Achieve(context.Background(), gw, "ready")
	require.Error(t, err)

	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeNotAnnounced, pe.Code)
	assert.Zero(t, gw.achieveCalls)
}

func TestList_Achieve_Unknown(t *testing.T) {
	l := NewList()
	gw := newRecordingGateway()

	err := l.Achieve(context.Background(), gw, "ghost")
	require.Error(t, err)
	assert.True(t, IsUnknownLabel(err))
}

func TestList_Achieve_GatewayFailure(t *testing.T) {
	l := announcedList("ready")
	gw := newRecordingGateway()
	gw.failAchieve["ready"] = errors.New("write timeout")

	err := l.Achieve(context.Background(), gw, "ready")
	require.Error(t, err)
	assert.True(t, IsGatewayFailure(err))

	p, _ := l.Lookup("ready")
	assert.Equal(t, StateError, p.State)
}

func TestList_AchieveAll(t *testing.T) {
	l := announcedList("a", "b")
	require.NoError(t, l.Add("unannounced"))
	gw := newRecordingGateway()

	changed := l.AchieveAll(context.Background(), gw)

	assert.True(t, changed)
	assert.Equal(t, []string{"a", "b"}, gw.achieved, "achieved in insertion order")

	p, _ := l.Lookup("unannounced")
	assert.Equal(t, StateUnregistered, p.State, "unannounced points are not achievable")
}

func TestList_AchieveAll_IgnoresTargetTimes(t *testing.T) {
	l := NewList()
	require.NoError(t, l.AddAt("future", 1_000_000))
	require.NoError(t, l.Announce("future", 1_000_000))
	gw := newRecordingGateway()

	changed := l.AchieveAll(context.Background(), gw)

	assert.True(t, changed)
	p, _ := l.Lookup("future")
	assert.Equal(t, StateAchieved, p.State)
}

func TestList_AchieveAll_NothingToDo(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Add("unannounced"))
	gw := newRecordingGateway()

	changed := l.AchieveAll(context.Background(), gw)

	assert.False(t, changed)
	assert.Zero(t, gw.achieveCalls)
}

func TestList_AchieveAll_FailureIsolation(t *testing.T) {
	l := announcedList("first", "second")
	gw := newRecordingGateway()
	gw.failAchieve["first"] = errors.New("boom")

	changed := l.AchieveAll(context.Background(), gw)

	assert.True(t, changed, "second point still achieved")
	p1, _ := l.Lookup("first")
	p2, _ := l.Lookup("second")
	assert.Equal(t, StateError, p1.State)
	assert.Equal(t, StateAchieved, p2.State)
}

func TestList_Synchronized(t *testing.T) {
	l := announcedList("ready")
	gw := newRecordingGateway()
	require.NoError(t, l.Achieve(context.Background(), gw, "ready"))

	require.NoError(t, l.Synchronized("ready"))

	p, _ := l.Lookup("ready")
	assert.Equal(t, StateSynchronized, p.State)
}

func TestList_Synchronized_UnknownCreatesNoPhantom(t *testing.T) {
	l := announcedList("ready")

	err := l.Synchronized("never-added")
	require.Error(t, err)
	assert.True(t, IsUnknownLabel(err))
	assert.Equal(t, 1, l.Len())
	_, ok := l.Lookup("never-added")
	assert.False(t, ok)
}

func TestList_Synchronized_BeforeLocalAchieve(t *testing.T) {
	// The federation's confirmation is authoritative even if this federate
	// never achieved the point (a late joiner that was skipped, for
	// example). Refusing it would hang the point forever.
	l := announcedList("ready")

	require.NoError(t, l.Synchronized("ready"))

	p, _ := l.Lookup("ready")
	assert.Equal(t, StateSynchronized, p.State)
}

func TestList_Synchronized_ErroredStaysErrored(t *testing.T) {
	l := announcedList("ready")
	gw := newRecordingGateway()
	gw.failAchieve["ready"] = errors.New("boom")
	_ = l.Achieve(context.Background(), gw, "ready")

	require.NoError(t, l.Synchronized("ready"))

	p, _ := l.Lookup("ready")
	assert.Equal(t, StateError, p.State)
}

func TestList_HasPending(t *testing.T) {
	l := NewList()
	assert.False(t, l.HasPending(), "empty list has nothing pending")

	require.NoError(t, l.Add("ready"))
	assert.True(t, l.HasPending())

	require.NoError(t, l.Announce("ready", timebase.Unscheduled))
	gw := newRecordingGateway()
	require.NoError(t, l.Achieve(context.Background(), gw, "ready"))
	assert.True(t, l.HasPending(), "achieved still awaits confirmation")

	require.NoError(t, l.Synchronized("ready"))
	assert.False(t, l.HasPending())
}

func TestList_AllSynchronized(t *testing.T) {
	l := NewList()
	assert.True(t, l.AllSynchronized(), "empty list is trivially synchronized")

	gw := newRecordingGateway()
	require.NoError(t, l.Add("a"))
	require.NoError(t, l.Announce("a", timebase.Unscheduled))
	assert.False(t, l.AllSynchronized())

	require.NoError(t, l.Achieve(context.Background(), gw, "a"))
	assert.False(t, l.AllSynchronized())

	require.NoError(t, l.Synchronized("a"))
	assert.True(t, l.AllSynchronized())
}

func TestList_AllSynchronized_ErroredPointsDoNotStall(t *testing.T) {
	l := announcedList("good", "bad")
	gw := newRecordingGateway()
	gw.failAchieve["bad"] = errors.New("boom")

	l.AchieveAll(context.Background(), gw)
	require.NoError(t, l.Synchronized("good"))

	assert.True(t, l.AllSynchronized(), "an errored point can never synchronize and must not stall the run")
}

func TestList_Lookup_ReturnsCopy(t *testing.T) {
	l := announcedList("ready")

	p, ok := l.Lookup("ready")
	require.True(t, ok)
	p.State = StateError

	again, _ := l.Lookup("ready")
	assert.Equal(t, StateAnnounced, again.State, "mutating the copy must not touch the list")
}

func TestList_Tally(t *testing.T) {
	l := announcedList("a", "b")
	require.NoError(t, l.Add("c"))
	gw := newRecordingGateway()
	require.NoError(t, l.Achieve(context.Background(), gw, "a"))

	tally := l.Tally()
	assert.Equal(t, 1, tally[StateUnregistered])
	assert.Equal(t, 1, tally[StateAnnounced])
	assert.Equal(t, 1, tally[StateAchieved])
}
