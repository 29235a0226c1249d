package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/udisondev/chessd/internal/db"
	"github.com/udisondev/chessd/internal/lang"
	"github.com/udisondev/chessd/internal/model"
	"github.com/udisondev/chessd/internal/protocol"
)

// listen accepts connections and runs the handshake for each one
// synchronously. The accept deadline bounds how long a stop request can
// go unnoticed. The persistence timer also fires here.
func (s *Server) listen(ctx context.Context) error {
	lastDBUpdate := time.Now()

	for !s.stopping(ctx) {
		if time.Since(lastDBUpdate) > s.cfg.DBUpdateIntervalDur() {
			if err := s.persist(ctx); err != nil {
				slog.Warn("periodic database update skipped", "err", err)
			}
			lastDBUpdate = time.Now()
		}

		if err := s.listener.SetDeadline(time.Now().Add(s.cfg.AcceptTimeout())); err != nil {
			return fmt.Errorf("setting accept deadline: %w", err)
		}
		conn, err := s.listener.Accept()
		if err != nil {
			if os.IsTimeout(err) {
				slog.Debug("listening...")
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			slog.Error("accept failed", "err", err)
			continue
		}
		s.admit(ctx, conn)
	}

	slog.Info("request manager interrupted", "socket", s.socketName)
	return nil
}

// admit runs the auth/name/password handshake on one fresh connection
// and stages the resulting user for the relay. Each handshake record
// must arrive within the per-record deadline.
func (s *Server) admit(ctx context.Context, conn net.Conn) {
	ip, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		slog.Error("splitting remote address", "remote", conn.RemoteAddr(), "err", err)
		conn.Close()
		return
	}
	slog.Info("connected", "remote", conn.RemoteAddr())

	u := model.NewUser(s.takeID(), conn, ip)

	next := func() (string, error) {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout())); err != nil {
			return "", err
		}
		return u.Framer.Next()
	}

	auth, err := next()
	if err != nil {
		s.handshakeFailed(u, conn, err)
		return
	}

	if auth == s.adminAuth {
		s.admitAdmin(ctx, u, conn)
		return
	}
	if auth != s.auth {
		u.Reject(lang.AuthError.String())
		return
	}

	nameRecord, err := next()
	if err != nil {
		s.handshakeFailed(u, conn, err)
		return
	}
	name, ok := parseNameRecord(nameRecord)
	if !ok {
		u.Reject(lang.ProtocolError.String())
		return
	}

	if known, exists := s.reg.byNameLookup(name); exists {
		if s.reg.isOnline(known.ID) {
			u.Reject(lang.AlreadyAssigned.Format(name))
			return
		}

		password, err := next()
		if err != nil {
			s.handshakeFailed(u, conn, err)
			return
		}
		if known.Password == db.ResetSentinel {
			hash, err := db.HashPassword(password)
			if err != nil {
				slog.Error("hashing replacement password", "name", name, "err", err)
				conn.Close()
				return
			}
			known.Password = hash
			slog.Info("password replaced after reset", "name", name)
		} else if !db.VerifyPassword(known.Password, password) {
			u.Reject(lang.IncorrectPW.String())
			return
		}

		known.RenewConnection(conn, ip, time.Now().Format(model.LastLoginLayout))
		u = known // the placeholder is discarded, its ID stays burned
	} else {
		password, err := next()
		if err != nil {
			s.handshakeFailed(u, conn, err)
			return
		}
		hash, err := db.HashPassword(password)
		if err != nil {
			slog.Error("hashing password", "name", name, "err", err)
			conn.Close()
			return
		}
		u.Password = hash
		u.SetName(name)
	}

	if err := u.Notify(protocol.TagWelcome + " " + name); err != nil {
		slog.Info("welcome failed", "name", name, "err", err)
		conn.Close()
		return
	}
	slog.Info("user connected", "name", name)

	if s.ips.Count(ip) >= s.cfg.MaxPerIP {
		u.Reject(lang.TooManyIP.String())
		return
	}
	s.ips.Add(ip)
	s.reg.register(u)
	// The relay may already be gone during shutdown; never block on a
	// full staging channel then.
	select {
	case s.staging <- admitted{user: u}:
	case <-ctx.Done():
		conn.Close()
	}
}

// admitAdmin promotes a connection that presented the admin secret. The
// relay installs it, replacing any previous admin.
func (s *Server) admitAdmin(ctx context.Context, u *model.User, conn net.Conn) {
	u.SetName("admin")
	// The admin socket runs without a timeout; the relay polls it.
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		slog.Error("clearing admin deadline", "err", err)
		conn.Close()
		return
	}
	banner := fmt.Sprintf("database:\n%s\nprogram version:%s", s.cfg.DatabasePath(), ProgramVersion)
	if err := u.Notify(banner); err != nil {
		slog.Info("admin banner failed", "err", err)
		conn.Close()
		return
	}
	slog.Info("admin connected")
	select {
	case s.staging <- admitted{user: u, admin: true}:
	case <-ctx.Done():
		conn.Close()
	}
}

// handshakeFailed maps a handshake read error to the right rejection.
func (s *Server) handshakeFailed(u *model.User, conn net.Conn, err error) {
	switch {
	case os.IsTimeout(err):
		slog.Info("handshake timeout", "remote", conn.RemoteAddr())
		u.Reject(lang.TimeoutError.String())
	case errors.Is(err, protocol.ErrNoRecord), errors.Is(err, protocol.ErrIncomplete):
		slog.Info("handshake framing error", "remote", conn.RemoteAddr())
		u.Reject(lang.ProtocolError.String())
	default:
		slog.Info("handshake connection error", "remote", conn.RemoteAddr(), "err", err)
		conn.Close()
	}
}

// parseNameRecord extracts the name from a "%NAME <name>" record.
func parseNameRecord(record string) (string, bool) {
	if !strings.HasPrefix(record, protocol.TagName+" ") {
		return "", false
	}
	name := strings.TrimSpace(record[len(protocol.TagName)+1:])
	if name == "" {
		return "", false
	}
	return name, true
}
