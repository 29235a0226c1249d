package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/chessd/internal/protocol"
)

func TestLinkIsSymmetric(t *testing.T) {
	s := newBareServer(t)
	a, _ := addOnlineUser(t, s, "alice", 1000)
	b, _ := addOnlineUser(t, s, "bob", 1000)

	s.link(a, b)

	pa, ok := s.partner(a.ID)
	require.True(t, ok)
	assert.Same(t, b, pa)
	pb, ok := s.partner(b.ID)
	require.True(t, ok)
	assert.Same(t, a, pb)
}

func TestLinkMessageOrderAndColors(t *testing.T) {
	s := newBareServer(t)
	a, connA := addOnlineUser(t, s, "alice", 1000)
	b, connB := addOnlineUser(t, s, "bob", 1250)

	s.link(a, b)

	recA := connA.records()
	require.Len(t, recA, 4)
	assert.Equal(t, "%NAME bob", recA[0])
	assert.Contains(t, recA[1], "%NOTE")
	assert.Contains(t, recA[1], "bob")
	assert.Contains(t, recA[1], "1250")
	assert.Equal(t, protocol.NewGame, recA[2])

	recB := connB.records()
	require.Len(t, recB, 4)
	assert.Equal(t, "%NAME alice", recB[0])
	assert.Equal(t, protocol.NewGame, recB[2])

	// Exactly one side plays white.
	colors := map[string]bool{recA[3]: true, recB[3]: true}
	assert.True(t, colors[protocol.PlayWhite])
	assert.True(t, colors[protocol.PlayBlack])
}

func TestRequestLinkQueuesAndNotifies(t *testing.T) {
	s := newBareServer(t)
	a, conn := addOnlineUser(t, s, "alice", 1000)

	s.requestLink(a)

	assert.Equal(t, 1, s.WaitingCount())
	rec := conn.records()
	require.Len(t, rec, 1)
	assert.Contains(t, rec[0], "%NOTE")
}

func TestRequestLinkIgnoredWhilePlaying(t *testing.T) {
	s := newBareServer(t)
	a, _ := addOnlineUser(t, s, "alice", 1000)
	b, _ := addOnlineUser(t, s, "bob", 1000)
	s.link(a, b)

	s.requestLink(a)

	assert.Zero(t, s.WaitingCount())
}

func TestMatchmakePairsByRatingProximity(t *testing.T) {
	s := newBareServer(t)
	ratings := map[string]int{"a": 1000, "b": 1010, "c": 1500, "d": 1490}
	for name, rating := range ratings {
		u, _ := addOnlineUser(t, s, name, rating)
		s.requestLink(u)
	}

	s.matchmake()

	assert.Equal(t, 4, s.LinkedCount())
	assert.Zero(t, s.WaitingCount())

	// The two low-rated users pair with each other, regardless of the
	// sort direction of this tick.
	a, _ := s.reg.byNameLookup("a")
	pa, ok := s.partner(a.ID)
	require.True(t, ok)
	assert.Equal(t, "b", pa.Name)
}

func TestMatchmakeOddManWaits(t *testing.T) {
	s := newBareServer(t)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		u, _ := addOnlineUser(t, s, name, 1000)
		s.requestLink(u)
	}

	s.matchmake()

	assert.Equal(t, 4, s.LinkedCount())
	assert.Equal(t, 1, s.WaitingCount())
}

func TestMatchmakeAlternatesSortDirection(t *testing.T) {
	s := newBareServer(t)

	first := s.reverseSort
	s.matchmake()
	assert.Equal(t, !first, s.reverseSort)
	s.matchmake()
	assert.Equal(t, first, s.reverseSort)
}

func TestLinkToPairsDirectly(t *testing.T) {
	s := newBareServer(t)
	a, _ := addOnlineUser(t, s, "alice", 1000)
	b, _ := addOnlineUser(t, s, "bob", 1000)

	s.linkTo(a, "bob")

	p, ok := s.partner(a.ID)
	require.True(t, ok)
	assert.Same(t, b, p)
}

func TestLinkToDropsBadTargets(t *testing.T) {
	s := newBareServer(t)
	a, _ := addOnlineUser(t, s, "alice", 1000)
	b, _ := addOnlineUser(t, s, "bob", 1000)
	c, _ := addOnlineUser(t, s, "carol", 1000)
	s.link(b, c)

	// Unknown, self, and already-playing targets are silently dropped.
	s.linkTo(a, "nobody")
	s.linkTo(a, "alice")
	s.linkTo(a, "bob")

	_, ok := s.partner(a.ID)
	assert.False(t, ok)
}

func TestDisconnectDissolvesLink(t *testing.T) {
	s := newBareServer(t)
	a, _ := addOnlineUser(t, s, "alice", 1000)
	b, _ := addOnlineUser(t, s, "bob", 1000)
	s.link(a, b)

	s.disconnected[a.ID] = a
	s.sweepDisconnected()

	assert.Zero(t, s.LinkedCount())
	assert.False(t, s.reg.isOnline(a.ID))
	assert.True(t, s.reg.isOnline(b.ID))
	assert.Zero(t, s.ips.Count("127.0.0.1")-1) // only bob's count remains
}
