package gateway

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsync/fedsync/internal/exchange"
	"github.com/fedsync/fedsync/internal/protocol"
	"github.com/fedsync/fedsync/internal/syncpoint"
	"github.com/fedsync/fedsync/internal/timebase"
)

var _ syncpoint.Gateway = (*Client)(nil)

func newTestServer(t *testing.T) (*httptest.Server, *exchange.Exchange) {
	t.Helper()
	ex := exchange.New("test-fed", exchange.NewMetrics(prometheus.NewRegistry()))
	s := httptest.NewServer(exchange.NewServer(ex))
	t.Cleanup(s.Close)
	return s, ex
}

func federationURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/v1/federation"
}

func dial(t *testing.T, s *httptest.Server, name string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), federationURL(s), name)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestClient_DialHandshake(t *testing.T) {
	s, ex := newTestServer(t)

	c := dial(t, s, "physics")

	assert.Equal(t, "physics", c.Federate())
	require.Eventually(t, func() bool {
		members := ex.Members()
		return len(members) == 1 && members[0] == "physics"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_DialRejectedDuplicateName(t *testing.T) {
	s, _ := newTestServer(t)
	dial(t, s, "physics")

	_, err := Dial(context.Background(), federationURL(s), "physics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "join rejected")
}

func TestClient_DialBadURL(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/v1/federation", "physics",
		WithHandshakeTimeout(time.Second))
	assert.Error(t, err)
}

func TestClient_RegisterAchieveRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)
	f1 := dial(t, s, "f1")
	f2 := dial(t, s, "f2")

	ctx := context.Background()
	require.NoError(t, f1.Register(ctx, "ready_to_run", 100))

	for _, c := range []*Client{f1, f2} {
		m := receive(t, c.Inbound())
		assert.Equal(t, protocol.KindAnnounce, m.Kind)
		assert.Equal(t, "ready_to_run", m.Label)
		assert.Equal(t, timebase.Time(100), m.TimeOf())
	}

	require.NoError(t, f1.Achieve(ctx, "ready_to_run"))
	require.NoError(t, f2.Achieve(ctx, "ready_to_run"))

	for _, c := range []*Client{f1, f2} {
		m := receive(t, c.Inbound())
		assert.Equal(t, protocol.KindSynchronized, m.Kind)
	}
}

func TestClient_ReplayArrivesOnInbound(t *testing.T) {
	s, ex := newTestServer(t)
	ex.Register("external", "init", timebase.Unscheduled)

	late := dial(t, s, "late")

	m := receive(t, late.Inbound())
	assert.Equal(t, protocol.KindAnnounce, m.Kind)
	assert.Equal(t, "init", m.Label)
}

func TestClient_CloseActsAsResign(t *testing.T) {
	s, ex := newTestServer(t)
	f1 := dial(t, s, "f1")
	f2 := dial(t, s, "f2")

	ctx := context.Background()
	require.NoError(t, f1.Register(ctx, "ready", timebase.Unscheduled))
	receive(t, f1.Inbound())
	receive(t, f2.Inbound())
	require.NoError(t, f1.Achieve(ctx, "ready"))

	// f2 drops without resigning; the barrier waiting only on it settles.
	f2.Close()

	m := receive(t, f1.Inbound())
	assert.Equal(t, protocol.KindSynchronized, m.Kind)

	require.Eventually(t, func() bool {
		return len(ex.Members()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_ResignSendsNotice(t *testing.T) {
	s, ex := newTestServer(t)
	c := dial(t, s, "physics")

	require.NoError(t, c.Resign())

	require.Eventually(t, func() bool {
		return len(ex.Members()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_InboundClosesOnConnectionLoss(t *testing.T) {
	s, _ := newTestServer(t)
	c := dial(t, s, "physics")

	c.Close()

	select {
	case _, ok := <-c.Inbound():
		assert.False(t, ok, "inbound should close when the connection drops")
	case <-time.After(2 * time.Second):
		t.Fatal("inbound not closed after connection loss")
	}
}

func TestClient_CancelledContext(t *testing.T) {
	s, _ := newTestServer(t)
	c := dial(t, s, "physics")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, c.Register(ctx, "ready", timebase.Unscheduled))
	assert.Error(t, c.Achieve(ctx, "ready"))
}
