package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/udisondev/chessd/internal/lang"
	"github.com/udisondev/chessd/internal/model"
	"github.com/udisondev/chessd/internal/protocol"
)

// relay is the single cooperative worker that drains every online
// socket, dispatches messages, runs the matchmaker and services the
// admin. Each cycle is floored at the configured relay cycle so an idle
// server stays quiescent.
func (s *Server) relay(ctx context.Context) error {
	var lastLink time.Time // zero so the first cycle links immediately

	for !s.stopping(ctx) {
		t0 := time.Now()

		for _, u := range s.reg.online() {
			if err := u.Poll(); err != nil {
				slog.Info("receive failed", "name", u.Name, "err", err)
				s.disconnected[u.ID] = u
			}
		}

		s.sweepDisconnected()
		s.dispatchMessages()
		s.sweepDisconnected()
		s.mergeStaging()

		if time.Since(lastLink) > s.cfg.LinkInterval() {
			s.matchmake()
			lastLink = time.Now()
		}

		s.serviceAdmin()

		if time.Since(t0) > s.cfg.RelayCycle() {
			// Cycle overran its floor; start the next one immediately.
			slog.Info("relay cycle time limit exceeded")
			continue
		}
		time.Sleep(s.cfg.RelayCycle())
	}

	slog.Info("main loop interrupted", "socket", s.socketName)
	if err := s.persist(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("final database update failed", "err", err)
	}
	return nil
}

// sweepDisconnected signs off every user marked disconnected this cycle.
func (s *Server) sweepDisconnected() {
	for id, u := range s.disconnected {
		s.setOffline(u)
		delete(s.disconnected, id)
	}
}

// mergeStaging promotes users the listener admitted since the last cycle.
// The channel receive is non-blocking, so a busy listener never stalls
// the relay.
func (s *Server) mergeStaging() {
	for {
		select {
		case a := <-s.staging:
			if a.admin {
				s.installAdmin(a.user)
				continue
			}
			s.reg.setOnline(a.user)
		default:
			return
		}
	}
}

// installAdmin makes the given user the single admin, displacing any
// previous one.
func (s *Server) installAdmin(u *model.User) {
	if s.admin != nil {
		_ = s.admin.Notify("ERROR: ADMIN SIGNED IN TWICE")
		if s.admin.Conn != nil {
			s.admin.Conn.Close()
		}
		slog.Info("previous admin displaced")
	}
	s.admin = u
}

// dispatchMessages handles at most one pending record per online user:
// %SERVER commands are interpreted, everything else is relayed verbatim
// to the linked partner.
func (s *Server) dispatchMessages() {
	for _, u := range s.reg.online() {
		msg, ok := u.NextPending()
		if !ok {
			continue
		}
		slog.Debug("dispatch", "name", u.Name, "msg", msg)

		if strings.HasPrefix(msg, protocol.TagServer) {
			s.handleUserCommand(u, msg)
			continue
		}
		s.relayToPeer(u, msg)
	}
}

// relayToPeer forwards a record to the originator's partner, or tells
// the originator it is not linked.
func (s *Server) relayToPeer(u *model.User, msg string) {
	if partner, ok := s.partner(u.ID); ok {
		if err := partner.Notify(msg); err != nil {
			slog.Info("relay to partner failed", "name", partner.Name, "err", err)
			s.disconnected[partner.ID] = partner
		}
		return
	}
	if err := u.Notify(protocol.TagNote + " " + lang.NotLinked.String()); err != nil {
		slog.Info("not-linked notice failed", "name", u.Name, "err", err)
		s.disconnected[u.ID] = u
	}
}

// handleUserCommand interprets one "%SERVER <COMMAND> [ARG]" record.
// Unknown or malformed commands are logged and dropped.
func (s *Server) handleUserCommand(u *model.User, msg string) {
	args := splitTokens(msg, 3)
	if len(args) < 2 {
		slog.Info("server command without arguments", "name", u.Name, "msg", msg)
		return
	}
	command := args[1]
	tail := ""
	if len(args) == 3 {
		tail = args[2]
	}

	switch command {
	case "LINK":
		s.requestLink(u)
	case "LINKTO":
		if tail == "" {
			slog.Info("LINKTO without a name", "name", u.Name)
			return
		}
		s.linkTo(u, tail)
	case "FEEDBACK":
		if tail == "" {
			slog.Info("FEEDBACK without text", "name", u.Name)
			return
		}
		if err := s.writeFeedback(u, tail); err != nil {
			slog.Error("writing feedback", "name", u.Name, "err", err)
		}
	case "ELO":
		s.sendRatingChart(u)
	case "DISCONNECT":
		s.disconnected[u.ID] = u
	case "SCORING":
		score, err := strconv.ParseFloat(tail, 64)
		if err != nil {
			slog.Info("SCORING with invalid result", "name", u.Name, "arg", tail)
			return
		}
		s.applyScoring(u, score)
	default:
		slog.Info("unknown server command", "name", u.Name, "command", command)
	}
}

// sendRatingChart sends the user its own rating header followed by the
// global chart.
func (s *Server) sendRatingChart(u *model.User) {
	out := fmt.Sprintf("%s [ %s - %d ]\n", protocol.TagElo, u.Name, u.Rating)
	out += s.Execute("rating")
	if err := u.Notify(out); err != nil {
		slog.Info("rating chart failed", "name", u.Name, "err", err)
		s.disconnected[u.ID] = u
	}
}

// writeFeedback stores one timestamped feedback file in the data directory.
func (s *Server) writeFeedback(u *model.User, text string) error {
	stamp := time.Now().Format("d01-02t15-04-05")
	name := fmt.Sprintf("feedback-%s-%s.txt", stamp, u.Name)
	path := filepath.Join(s.dataDir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing feedback file: %w", err)
	}
	return nil
}

// serviceAdmin polls the admin socket once and executes at most one
// command, returning the result on the same socket.
func (s *Server) serviceAdmin() {
	if s.admin == nil {
		return
	}
	if err := s.admin.Poll(); err != nil {
		slog.Info("receive from admin failed", "err", err)
		s.dropAdmin()
		return
	}
	cmd, ok := s.admin.NextPending()
	if !ok {
		return
	}
	result := s.Execute(cmd)
	if err := s.admin.Notify(result); err != nil {
		slog.Info("notify admin failed", "err", err)
		s.dropAdmin()
	}
}

func (s *Server) dropAdmin() {
	if s.admin.Conn != nil {
		s.admin.Conn.Close()
	}
	s.admin = nil
}

// splitTokens splits s into at most max whitespace-separated tokens; the
// final token keeps its internal whitespace verbatim.
func splitTokens(s string, max int) []string {
	var out []string
	for len(out) < max-1 {
		s = strings.TrimLeft(s, " \t")
		i := strings.IndexAny(s, " \t")
		if i < 0 {
			break
		}
		out = append(out, s[:i])
		s = s[i+1:]
	}
	s = strings.TrimLeft(s, " \t")
	if s != "" {
		out = append(out, s)
	}
	return out
}
