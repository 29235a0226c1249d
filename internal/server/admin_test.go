package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/chessd/internal/db"
	"github.com/udisondev/chessd/internal/lang"
	"github.com/udisondev/chessd/internal/model"
)

func TestExecuteWrapsOutput(t *testing.T) {
	s := newBareServer(t)

	out := s.Execute("info")

	assert.True(t, strings.HasPrefix(out, separatorLF))
	assert.True(t, strings.HasSuffix(out, separatorLF))
}

func TestExecuteUnknownVerb(t *testing.T) {
	s := newBareServer(t)

	out := s.Execute("frobnicate")

	assert.Contains(t, out, "command 'frobnicate' not found.")
	assert.Contains(t, out, "valid commands:")
	for _, v := range adminVerbs {
		assert.Contains(t, out, v)
	}
}

func TestExecuteEmptyCommand(t *testing.T) {
	s := newBareServer(t)
	assert.Equal(t, "no arguments", s.Execute(""))
}

func TestExecuteGet(t *testing.T) {
	s := newBareServer(t)

	out := s.Execute("get")
	assert.Contains(t, out, "no users online")
	assert.Contains(t, out, "no users offline")

	addOnlineUser(t, s, "alice", 1000)
	off := model.NewUser(s.takeID(), nil, "10.0.0.2")
	off.SetName("bob")
	s.reg.register(off)

	out = s.Execute("get")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "#online:1")
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "#offline:1")
}

func TestExecuteInfo(t *testing.T) {
	s := newBareServer(t)
	addOnlineUser(t, s, "alice", 1000)

	out := s.Execute("info")

	assert.Contains(t, out, "active goroutines:")
	assert.Contains(t, out, "users: 1")
	assert.Contains(t, out, "online: 1")
	assert.Contains(t, out, "linked users: 0")
}

func TestExecuteIPAddresses(t *testing.T) {
	s := newBareServer(t)
	addOnlineUser(t, s, "alice", 1000)
	addOnlineUser(t, s, "bob", 1000)

	out := s.Execute("ip")

	assert.Contains(t, out, "127.0.0.1: 2")
	assert.Contains(t, out, "TOTAL: 2")
}

func TestExecuteLinks(t *testing.T) {
	s := newBareServer(t)
	a, _ := addOnlineUser(t, s, "alice", 1000)
	b, _ := addOnlineUser(t, s, "bob", 1000)
	addOnlineUser(t, s, "carol", 1000)
	s.link(a, b)

	out := s.Execute("links")

	assert.Contains(t, out, "<->")
	assert.Contains(t, out, "unlinked:")
	assert.Contains(t, out, "carol")
	assert.Contains(t, out, "linked: 2 / unlinked: 1")
}

func TestExecuteNotify(t *testing.T) {
	s := newBareServer(t)
	_, conn := addOnlineUser(t, s, "alice", 1000)

	assert.Contains(t, s.Execute("notify"), "too few arguments")
	assert.Contains(t, s.Execute("notify nobody hi"), "no user online named nobody")

	out := s.Execute("notify alice have a nice day!")
	assert.Contains(t, out, "alice notified")
	rec := conn.records()
	require.Len(t, rec, 1)
	assert.Equal(t, "have a nice day!", rec[0])
}

func TestExecuteNotifyAll(t *testing.T) {
	s := newBareServer(t)
	_, connA := addOnlineUser(t, s, "alice", 1000)
	_, connB := addOnlineUser(t, s, "bob", 1000)

	assert.Contains(t, s.Execute("notify_all"), "too few arguments")

	out := s.Execute("notify_all users server maintenance soon")
	assert.Contains(t, out, "notified users")
	assert.Equal(t, []string{"server maintenance soon"}, connA.records())
	assert.Equal(t, []string{"server maintenance soon"}, connB.records())
}

func TestExecuteResetPassword(t *testing.T) {
	s := newBareServer(t)
	u, _ := addOnlineUser(t, s, "alice", 1000)
	u.Password = "some-hash"

	assert.Contains(t, s.Execute("resetpw nobody"), "no user named nobody")

	out := s.Execute("resetpw alice")
	assert.Contains(t, out, "alice password reset")
	assert.Equal(t, db.ResetSentinel, u.Password)
}

func TestExecuteRemove(t *testing.T) {
	s := newBareServer(t)
	u, _ := addOnlineUser(t, s, "alice", 1000)

	out := s.Execute("remove alice")

	assert.Contains(t, out, "removed user alice")
	assert.False(t, s.reg.isOnline(u.ID))
	_, known := s.reg.byNameLookup("alice")
	assert.False(t, known)
	assert.Zero(t, s.ips.Count("127.0.0.1"))
}

func TestExecuteSignOff(t *testing.T) {
	s := newBareServer(t)
	u, _ := addOnlineUser(t, s, "alice", 1000)

	out := s.Execute("signoff alice")

	assert.Contains(t, out, "signed off alice")
	assert.False(t, s.reg.isOnline(u.ID))
	// Still registered, only the session ended.
	_, known := s.reg.byNameLookup("alice")
	assert.True(t, known)
}

func TestExecuteSetLanguage(t *testing.T) {
	s := newBareServer(t)
	t.Cleanup(func() { lang.SetLanguage(lang.DE) })

	assert.Contains(t, s.Execute("setlang 0"), "set language to English")
	assert.Equal(t, lang.EN, lang.Active())
	assert.Contains(t, s.Execute("setlang 1"), "set language to German")
	assert.Equal(t, lang.DE, lang.Active())
	assert.Contains(t, s.Execute("setlang x"), "invalid language: x")
}

func TestExecuteRatingChart(t *testing.T) {
	s := newBareServer(t)
	a, _ := addOnlineUser(t, s, "alice", 1200)
	a.PlayedGames = 3
	b := model.NewUser(s.takeID(), nil, "10.0.0.2")
	b.SetName("bob")
	b.Rating = 1100
	b.PlayedGames = 1
	s.reg.register(b)
	fresh, _ := addOnlineUser(t, s, "carol", 1000)
	_ = fresh // no games played, stays off the chart

	out := s.Execute("rating")

	assert.Contains(t, out, "1. (*) alice - 1200")
	assert.Contains(t, out, "2. (o) bob - 1100")
	assert.NotContains(t, out, "carol")
	assert.Contains(t, out, "online: 2 / offline: 1")
	assert.Contains(t, out, "online: (*) / offline: (o)")
}

func TestExecuteFeedback(t *testing.T) {
	s := newBareServer(t)
	a, _ := addOnlineUser(t, s, "alice", 1000)
	b, _ := addOnlineUser(t, s, "bob", 1000)
	require.NoError(t, s.writeFeedback(a, "great server"))
	require.NoError(t, s.writeFeedback(b, "needs a clock"))

	out := s.Execute("feedback")

	assert.Contains(t, out, "great server")
	assert.Contains(t, out, "needs a clock")
	assert.Contains(t, out, separator)
}

func TestExecuteStop(t *testing.T) {
	s := newBareServer(t)

	out := s.Execute("stop")

	assert.Contains(t, out, "stop server script in")
	assert.True(t, s.stop.Load())
}
