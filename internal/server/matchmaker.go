package server

import (
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/udisondev/chessd/internal/lang"
	"github.com/udisondev/chessd/internal/model"
	"github.com/udisondev/chessd/internal/protocol"
)

// requestLink puts the user into the matchmaking pool unless it is
// already playing.
func (s *Server) requestLink(u *model.User) {
	s.mu.Lock()
	_, linked := s.linkedUsers[u.ID]
	if !linked {
		s.usersToLink[u.ID] = u
	}
	s.mu.Unlock()

	if !linked {
		if err := u.Notify(protocol.TagNote + " " + lang.WaitForPlayer.String()); err != nil {
			slog.Info("wait notice failed", "name", u.Name, "err", err)
			s.disconnected[u.ID] = u
		}
	}
}

// linkTo pairs the originator directly with the named online user. The
// request is silently dropped when the target is unknown, offline,
// already playing, or the originator itself.
func (s *Server) linkTo(u *model.User, name string) {
	target, ok := s.reg.onlineByName(name)
	if !ok || target.ID == u.ID {
		return
	}
	s.mu.Lock()
	_, linked := s.linkedUsers[target.ID]
	s.mu.Unlock()
	if linked {
		return
	}
	s.link(u, target)
}

// matchmake pairs the waiting users by rating proximity. The sort
// direction alternates each tick so neither end of the table gets a
// permanent tie-break advantage. An odd candidate waits for the next tick.
func (s *Server) matchmake() {
	s.mu.Lock()
	s.reverseSort = !s.reverseSort
	reverse := s.reverseSort
	candidates := make([]*model.User, 0, len(s.usersToLink))
	for id, u := range s.usersToLink {
		if _, linked := s.linkedUsers[id]; !linked {
			candidates = append(candidates, u)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(candidates, func(a, b *model.User) int {
		if reverse {
			return b.Rating - a.Rating
		}
		return a.Rating - b.Rating
	})

	for i := 0; i+1 < len(candidates); i += 2 {
		s.link(candidates[i], candidates[i+1])
	}
}

// link establishes the symmetric pairing and tells both sides who they
// play against, that a new game starts, and which color they hold.
func (s *Server) link(a, b *model.User) {
	s.mu.Lock()
	s.linkedUsers[a.ID] = b
	s.linkedUsers[b.ID] = a
	delete(s.usersToLink, a.ID)
	delete(s.usersToLink, b.ID)
	s.mu.Unlock()

	slog.Info("linked users", "a", a.Name, "b", b.Name)

	s.sendLinked(a, protocol.TagName+" "+b.Name)
	s.sendLinked(a, protocol.TagNote+" "+lang.ConnectedWith.Format(b.Name, b.Rating))
	s.sendLinked(b, protocol.TagName+" "+a.Name)
	s.sendLinked(b, protocol.TagNote+" "+lang.ConnectedWith.Format(a.Name, a.Rating))

	s.sendLinked(a, protocol.NewGame)
	s.sendLinked(b, protocol.NewGame)
	if rand.IntN(2) == 1 {
		s.sendLinked(a, protocol.PlayWhite)
		s.sendLinked(b, protocol.PlayBlack)
	} else {
		s.sendLinked(a, protocol.PlayBlack)
		s.sendLinked(b, protocol.PlayWhite)
	}
}

// sendLinked notifies one side of a fresh pairing; a dead socket marks
// the recipient for the next disconnect sweep.
func (s *Server) sendLinked(u *model.User, msg string) {
	if err := u.Notify(msg); err != nil {
		slog.Info("pairing notice failed", "name", u.Name, "err", err)
		s.disconnected[u.ID] = u
	}
}
