// Package server implements the session, matchmaking and game-relay
// engine: the admission pipeline that authenticates connections, the
// relay loop that forwards records between linked players, the rating
// update on reported results and the privileged admin channel.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/chessd/internal/config"
	"github.com/udisondev/chessd/internal/db"
	"github.com/udisondev/chessd/internal/model"
)

// ProgramVersion is reported in the admin welcome banner.
const ProgramVersion = "V1.04"

const (
	separator   = "---------------------------------------"
	separatorLF = separator + "\n"
)

// stagingDepth bounds how many admitted users can wait for the relay to
// pick them up before the listener blocks.
const stagingDepth = 10

// admitted is one handshake result handed from the listener to the relay.
type admitted struct {
	user  *model.User
	admin bool
}

// Server pairs authenticated clients into games and relays their records.
//
// Ownership: the registry and the IP tracker are shared between the
// listener and the relay behind their own locks. The link state
// (usersToLink, linkedUsers, lastGame) is guarded by mu so admin
// commands and tests can take consistent snapshots. The pending queues,
// the disconnected set and the admin handle belong to the relay alone.
type Server struct {
	cfg       config.Server
	auth      string
	adminAuth string

	dataDir string
	store   *db.Store

	listener   *net.TCPListener
	port       atomic.Int32
	socketName string

	nextID atomic.Int64

	reg *registry
	ips *ipTracker

	staging chan admitted

	mu          sync.Mutex
	usersToLink map[int64]*model.User
	linkedUsers map[int64]*model.User // id -> partner, both directions present
	lastGame    string

	// Relay-owned, never touched from other goroutines.
	disconnected map[int64]*model.User
	admin        *model.User
	reverseSort  bool

	workersMu sync.Mutex
	workers   []string

	stop atomic.Bool
}

// New prepares a server and its data directory. Run starts it.
func New(cfg config.Server) (*Server, error) {
	if cfg.Authentication == "" || cfg.AdminAuthentication == "" {
		return nil, errors.New("authentication secrets must not be empty")
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}
	slog.Info("data directory ready", "path", dataDir)

	return &Server{
		cfg:          cfg,
		auth:         cfg.Authentication,
		adminAuth:    cfg.AdminAuthentication,
		dataDir:      dataDir,
		reg:          newRegistry(),
		ips:          newIPTracker(),
		staging:      make(chan admitted, stagingDepth),
		usersToLink:  make(map[int64]*model.User),
		linkedUsers:  make(map[int64]*model.User),
		disconnected: make(map[int64]*model.User),
		reverseSort:  true,
	}, nil
}

// Port returns the port the server actually bound, which may be up to
// MaxAttempts-1 above the configured one. Zero until Run has bound.
func (s *Server) Port() int {
	return int(s.port.Load())
}

// Stop asks all workers to exit at their next cycle.
func (s *Server) Stop() {
	s.stop.Store(true)
}

// Run binds the listening socket, loads the persisted users and drives
// the listener and relay workers until the context is cancelled or an
// admin stop is requested.
func (s *Server) Run(ctx context.Context) error {
	if err := s.bind(); err != nil {
		return err
	}
	defer s.listener.Close()

	store, err := db.Open(ctx, s.cfg.DatabasePath())
	if err != nil {
		return err
	}
	s.store = store
	defer store.Close()

	users, maxID, err := store.LoadAll(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		s.reg.register(u)
	}
	s.nextID.Store(maxID + 1)
	slog.Info("users loaded", "count", len(users), "max_id", maxID)

	g, gctx := errgroup.WithContext(ctx)
	go func() {
		// Unblock a pending accept as soon as cancellation arrives.
		<-gctx.Done()
		s.listener.Close()
	}()
	g.Go(func() error {
		s.registerWorker(s.socketName + " request manager")
		return s.listen(gctx)
	})
	g.Go(func() error {
		s.registerWorker(s.socketName + " main loop")
		return s.relay(gctx)
	})
	return g.Wait()
}

// bind probes the configured port and up to MaxAttempts-1 successors.
func (s *Server) bind() error {
	port := s.cfg.Port
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.BindAddress, strconv.Itoa(port)))
		if err == nil {
			s.listener = ln.(*net.TCPListener)
			s.port.Store(int32(port))
			s.socketName = ln.Addr().String()
			slog.Info("binding successful", "addr", s.socketName)
			return nil
		}
		slog.Info("binding failed", "addr", net.JoinHostPort(s.cfg.BindAddress, strconv.Itoa(port)), "err", err)
		port++
	}
	return fmt.Errorf("no bindable port in [%d, %d)", s.cfg.Port, s.cfg.Port+s.cfg.MaxAttempts)
}

// stopping reports whether any worker should wind down.
func (s *Server) stopping(ctx context.Context) bool {
	if s.stop.Load() {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// persist replaces the stored rows with the current in-memory user set.
// A busy database skips the interval; memory stays authoritative.
func (s *Server) persist(ctx context.Context) error {
	users := s.reg.all()
	if err := s.store.ReplaceAll(ctx, users); err != nil {
		return fmt.Errorf("updating database: %w", err)
	}
	slog.Info("database updated", "users", len(users))
	return nil
}

func (s *Server) takeID() int64 {
	return s.nextID.Add(1) - 1
}

func (s *Server) registerWorker(name string) {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	s.workers = append(s.workers, name)
}

func (s *Server) workerNames() []string {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	out := make([]string, len(s.workers))
	copy(out, s.workers)
	return out
}

// setOffline closes the user's socket and removes every trace of the
// live session: online set, IP count, matchmaking request and link.
func (s *Server) setOffline(u *model.User) {
	s.reg.setOffline(u.ID)
	s.ips.Discard(u.IP)

	s.mu.Lock()
	delete(s.usersToLink, u.ID)
	if partner, ok := s.linkedUsers[u.ID]; ok {
		delete(s.linkedUsers, partner.ID)
		delete(s.linkedUsers, u.ID)
	}
	s.mu.Unlock()

	if u.Conn != nil {
		u.Conn.Close()
		u.Conn = nil
	}
	u.Pending = nil
	slog.Info("user left", "name", u.Name)
}

// Snapshot accessors for admin output and tests.

func (s *Server) LinkedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.linkedUsers)
}

func (s *Server) WaitingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id := range s.usersToLink {
		if _, linked := s.linkedUsers[id]; !linked {
			n++
		}
	}
	return n
}

func (s *Server) UserCount() int {
	return len(s.reg.all())
}

func (s *Server) OnlineCount() int {
	return len(s.reg.online())
}

func (s *Server) LastGame() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastGame
}

// partner returns the linked peer of the given user, if any.
func (s *Server) partner(id int64) (*model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.linkedUsers[id]
	return p, ok
}
