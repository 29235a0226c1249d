package server

import (
	"bytes"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/udisondev/chessd/internal/config"
	"github.com/udisondev/chessd/internal/model"
	"github.com/udisondev/chessd/internal/protocol"
)

// newBareServer builds a server without running it, for exercising the
// relay-side logic directly.
func newBareServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.BindAddress = "127.0.0.1"
	cfg.Authentication = "auth"
	cfg.AdminAuthentication = "adminpw"
	cfg.DataRoot = t.TempDir()

	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

// fakeConn is an in-memory net.Conn half: writes accumulate, reads
// always time out. Good enough for code paths that only notify.
type fakeConn struct {
	mu     sync.Mutex
	wr     bytes.Buffer
	closed bool
}

func (c *fakeConn) Read(p []byte) (int, error) { return 0, os.ErrDeadlineExceeded }

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	return c.wr.Write(p)
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) LocalAddr() net.Addr                { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (c *fakeConn) RemoteAddr() net.Addr               { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (c *fakeConn) SetDeadline(t time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

// records returns every complete record written so far.
func (c *fakeConn) records() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, part := range bytes.Split(c.wr.Bytes(), []byte{protocol.ETX}) {
		if len(part) > 0 {
			out = append(out, string(part))
		}
	}
	return out
}

// addOnlineUser registers a connected user directly with the server, as
// if it had passed the handshake and the staging merge.
func addOnlineUser(t *testing.T, s *Server, name string, rating int) (*model.User, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	u := model.NewUser(s.takeID(), conn, "127.0.0.1")
	u.SetName(name)
	u.Rating = rating
	s.ips.Add(u.IP)
	s.reg.register(u)
	s.reg.setOnline(u)
	return u, conn
}
