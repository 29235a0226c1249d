// Package model holds the persistent user record and its runtime
// connection state.
package model

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/udisondev/chessd/internal/protocol"
)

// Rating constants. The Elo weight is the per-user K-factor: it starts
// high so new accounts converge quickly and decays to a floor.
const (
	InitialRating    = 1000
	InitialEloWeight = 40
	eloWeightStep    = 2
	eloWeightFloor   = 12
)

// LastLoginLayout formats the last-login timestamp stored with the user.
const LastLoginLayout = "2006.01.02.15:04:05"

// pollWindow bounds a steady-state read so the relay never blocks on an
// idle socket for longer than one poll.
const pollWindow = time.Millisecond

// User is a persistent account plus, while online, its live connection.
// Identity is the ID alone: every container keys users by ID so a late
// name change could never affect membership.
type User struct {
	ID       int64
	Name     string // immutable once set
	Password string // bcrypt hash, or the reset sentinel
	IP       string

	LastLogin   string
	PlayedGames int
	ScoringZero int // games lost
	ScoringHalf int // games drawn
	ScoringOne  int // games won
	Rating      int
	EloWeight   int

	// Runtime state, only meaningful while online.
	Conn    net.Conn
	Framer  *protocol.Framer
	Pending []string // records received from this user, awaiting dispatch
}

// NewUser creates a fresh account bound to a live connection.
func NewUser(id int64, conn net.Conn, ip string) *User {
	return &User{
		ID:        id,
		IP:        ip,
		LastLogin: time.Now().Format(LastLoginLayout),
		Rating:    InitialRating,
		EloWeight: InitialEloWeight,
		Conn:      conn,
		Framer:    protocol.NewFramer(conn),
	}
}

// SetName assigns the name on first use; later calls are ignored.
func (u *User) SetName(name string) {
	if u.Name == "" {
		u.Name = name
	}
}

// RenewConnection grafts a fresh socket onto a returning account.
func (u *User) RenewConnection(conn net.Conn, ip, lastLogin string) {
	u.Conn = conn
	u.Framer = protocol.NewFramer(conn)
	u.IP = ip
	u.LastLogin = lastLogin
}

// Online reports whether the user currently holds a live socket.
func (u *User) Online() bool {
	return u.Conn != nil
}

// DecEloWeight lowers the K-factor after a rated game, stopping at the floor.
func (u *User) DecEloWeight() {
	if u.EloWeight > eloWeightFloor-1 {
		u.EloWeight -= eloWeightStep
	}
}

// Notify writes one record to the user's socket.
func (u *User) Notify(msg string) error {
	if u.Conn == nil {
		return net.ErrClosed
	}
	return protocol.WriteRecord(u.Conn, msg)
}

// Poll drains at most one record from the socket without blocking the
// relay for longer than the poll window. A complete record is appended to
// the pending queue. Nothing to read is not an error; EOF and transport
// failures are returned so the caller can mark the user disconnected.
func (u *User) Poll() error {
	if u.Conn == nil {
		return net.ErrClosed
	}
	if err := u.Conn.SetReadDeadline(time.Now().Add(pollWindow)); err != nil {
		return fmt.Errorf("setting poll deadline: %w", err)
	}
	msg, err := u.Framer.Next()
	if err != nil {
		if errors.Is(err, protocol.ErrNoRecord) || errors.Is(err, protocol.ErrIncomplete) || os.IsTimeout(err) {
			return nil
		}
		return err
	}
	u.Pending = append(u.Pending, msg)
	return nil
}

// NextPending pops the oldest pending record.
func (u *User) NextPending() (string, bool) {
	if len(u.Pending) == 0 {
		return "", false
	}
	msg := u.Pending[0]
	u.Pending = u.Pending[1:]
	return msg, true
}

// Reject sends a localized %INFO record followed by a short echo probe so
// the error has a chance to flush, then closes the socket. Runs detached:
// the caller never waits on a dead peer.
func (u *User) Reject(msg string) {
	conn := u.Conn
	if conn == nil {
		return
	}
	go func() {
		_ = conn.SetDeadline(time.Now().Add(time.Second))
		_ = protocol.WriteRecord(conn, protocol.TagInfo+" "+msg)
		_ = protocol.WriteRecord(conn, protocol.EchoProbe)
		buf := make([]byte, protocol.BufferSize)
		_, _ = conn.Read(buf)
		conn.Close()
	}()
}

// String renders the admin listing form.
func (u *User) String() string {
	return fmt.Sprintf("ID_%d %s L:%d/D:%d/W:%d/#T:%d ELO:%d(%d)",
		u.ID, u.Name,
		u.ScoringZero, u.ScoringHalf, u.ScoringOne, u.PlayedGames,
		u.Rating, u.EloWeight)
}
