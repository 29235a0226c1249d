package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/udisondev/chessd/internal/db"
	"github.com/udisondev/chessd/internal/lang"
	"github.com/udisondev/chessd/internal/model"
)

// adminVerbs lists the accepted commands for the usage message, in
// display order.
var adminVerbs = []string{
	"feedback", "get", "info", "ip", "links", "list", "notify",
	"notify_all", "rating", "resetpw", "remove", "setlang", "signoff",
	"stop", "shutdown", "update",
}

// Execute runs one admin command string of up to three whitespace
// separated tokens (verb, name, tail) and returns the printable result
// wrapped between separator lines.
func (s *Server) Execute(command string) string {
	args := splitTokens(command, 3)
	if len(args) == 0 {
		return "no arguments"
	}
	verb := args[0]
	rest := args[1:]

	var out string
	switch verb {
	case "feedback":
		out = s.cmdFeedback()
	case "get":
		out = s.cmdUsers()
	case "info":
		out = s.cmdInfo()
	case "ip":
		out = s.cmdIPAddresses()
	case "links":
		out = s.cmdLinks()
	case "list":
		out = s.cmdWorkers()
	case "notify":
		out = s.cmdNotify(rest)
	case "notify_all":
		out = s.cmdNotifyAll(rest)
	case "rating":
		out = s.cmdRatingChart()
	case "resetpw":
		out = s.cmdResetPassword(rest)
	case "remove":
		out = s.cmdRemove(rest)
	case "setlang":
		out = s.cmdSetLanguage(rest)
	case "signoff":
		out = s.cmdSignOff(rest)
	case "stop":
		out = s.cmdStop()
	case "shutdown":
		out = s.cmdShutdown()
	case "update":
		out = s.cmdUpdate()
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "command '%s' not found.\nvalid commands:\n#####\n", verb)
		for _, v := range adminVerbs {
			b.WriteString(v + "\n")
		}
		b.WriteString("#####\n")
		return separatorLF + b.String() + separatorLF
	}

	return separatorLF + out + "\n" + separatorLF
}

func (s *Server) cmdUsers() string {
	var out []string
	online := s.reg.online()
	if len(online) > 0 {
		out = append(out, "online:")
		for _, u := range online {
			out = append(out, u.String())
		}
		out = append(out, "#online:"+strconv.Itoa(len(online)))
	} else {
		out = append(out, "no users online")
	}
	out = append(out, separator)

	var offline []*model.User
	for _, u := range s.reg.all() {
		if !s.reg.isOnline(u.ID) {
			offline = append(offline, u)
		}
	}
	if len(offline) > 0 {
		out = append(out, "offline:")
		for _, u := range offline {
			out = append(out, u.String())
		}
		out = append(out, "#offline:"+strconv.Itoa(len(offline)))
	} else {
		out = append(out, "no users offline")
	}
	return strings.Join(out, "\n")
}

func (s *Server) cmdInfo() string {
	return fmt.Sprintf("active goroutines: %d\nusers: %d\nonline: %d\nlinked users: %d",
		runtime.NumGoroutine(), s.UserCount(), s.OnlineCount(), s.LinkedCount())
}

func (s *Server) cmdIPAddresses() string {
	var out []string
	total := 0
	counts := s.ips.Snapshot()
	ips := make([]string, 0, len(counts))
	for ip := range counts {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	for _, ip := range ips {
		total += counts[ip]
		out = append(out, fmt.Sprintf("%s: %d", ip, counts[ip]))
	}
	out = append(out, "TOTAL: "+strconv.Itoa(total))
	return strings.Join(out, "\n")
}

func (s *Server) cmdLinks() string {
	var out []string

	s.mu.Lock()
	linked := make(map[int64]*model.User, len(s.linkedUsers))
	for id, partner := range s.linkedUsers {
		linked[id] = partner
	}
	s.mu.Unlock()

	// Both directions are present, so the partner's partner is the user
	// itself; every pair shows up twice, mirroring each direction.
	for id, partner := range linked {
		u := linked[partner.ID]
		if u == nil || u.ID != id {
			continue
		}
		out = append(out, u.String()+" <-> "+partner.String())
	}

	var unlinked []*model.User
	for _, u := range s.reg.online() {
		if _, ok := linked[u.ID]; !ok {
			unlinked = append(unlinked, u)
		}
	}
	if len(unlinked) > 0 {
		out = append(out, "unlinked:")
		for _, u := range unlinked {
			out = append(out, u.String())
		}
	}
	out = append(out, fmt.Sprintf("linked: %d / unlinked: %d", len(linked), len(unlinked)))
	return strings.Join(out, "\n")
}

func (s *Server) cmdWorkers() string {
	out := []string{"workers:"}
	out = append(out, s.workerNames()...)
	return strings.Join(out, "\n")
}

func (s *Server) cmdRatingChart() string {
	users := s.reg.all()
	sort.Slice(users, func(i, j int) bool { return users[i].Rating > users[j].Rating })

	var out []string
	n := 0
	for _, u := range users {
		marker := "(o)"
		if s.reg.isOnline(u.ID) {
			marker = "(*)"
		}
		if u.PlayedGames > 0 {
			out = append(out, fmt.Sprintf("%d. %s %s - %d", n+1, marker, u.Name, u.Rating))
			n++
		}
		if n >= 10 {
			break
		}
	}
	out = append(out, separator)
	if last := s.LastGame(); last != "" {
		out = append(out, last, separator)
	}
	online := s.OnlineCount()
	out = append(out, fmt.Sprintf("online: %d / offline: %d", online, s.UserCount()-online))
	out = append(out, "online: (*) / offline: (o)")
	return strings.Join(out, "\n")
}

func (s *Server) cmdNotify(args []string) string {
	if len(args) < 2 {
		return "too few arguments - notify *name* *message*"
	}
	u, ok := s.reg.onlineByName(args[0])
	if !ok {
		return "no user online named " + args[0]
	}
	if err := u.Notify(args[1]); err != nil {
		slog.Info("admin notify failed", "name", u.Name, "err", err)
		s.disconnected[u.ID] = u
		return "notify " + u.Name + " failed"
	}
	return u.Name + " notified"
}

func (s *Server) cmdNotifyAll(args []string) string {
	if len(args) < 2 {
		return "too few arguments - notify_all users *message*"
	}
	for _, u := range s.reg.online() {
		if err := u.Notify(args[1]); err != nil {
			slog.Info("broadcast failed", "name", u.Name, "err", err)
			s.disconnected[u.ID] = u
			continue
		}
		slog.Debug("notified", "name", u.Name)
	}
	return "notified users"
}

func (s *Server) cmdResetPassword(args []string) string {
	if len(args) < 1 {
		return "too few arguments - resetpw *username*"
	}
	u, ok := s.reg.byNameLookup(args[0])
	if !ok {
		return "no user named " + args[0]
	}
	u.Password = db.ResetSentinel
	return u.Name + " password reset"
}

func (s *Server) cmdRemove(args []string) string {
	if len(args) < 1 {
		return "too few arguments"
	}
	u, ok := s.reg.byNameLookup(args[0])
	if !ok {
		return "no user named " + args[0]
	}
	if s.reg.isOnline(u.ID) {
		s.setOffline(u)
	}
	s.reg.remove(u)
	return "removed user " + args[0]
}

func (s *Server) cmdSetLanguage(args []string) string {
	if len(args) < 1 {
		return "too few arguments - setlang *0|1*"
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return "invalid language: " + args[0]
	}
	lang.SetLanguage(n)
	names := []string{"English", "German"}
	return "set language to " + names[lang.Active()]
}

func (s *Server) cmdSignOff(args []string) string {
	if len(args) < 1 {
		return "too few arguments - signoff *name*"
	}
	u, ok := s.reg.onlineByName(args[0])
	if !ok {
		return "no user online named " + args[0]
	}
	s.setOffline(u)
	return "signed off " + args[0]
}

func (s *Server) cmdFeedback() string {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		slog.Error("reading data directory", "err", err)
		return "reading feedback failed"
	}
	var feedback []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dataDir, entry.Name()))
		if err != nil {
			slog.Error("reading feedback file", "file", entry.Name(), "err", err)
			continue
		}
		feedback = append(feedback, string(data))
	}
	return strings.Join(feedback, "\n"+separator+"\n")
}

func (s *Server) cmdUpdate() string {
	if err := s.persist(context.Background()); err != nil {
		return "update database not possible. most likely db is locked"
	}
	return "database updated"
}

func (s *Server) cmdStop() string {
	s.Stop()
	return fmt.Sprintf("stop server script in %d seconds", s.cfg.AcceptTimeoutSec)
}

func (s *Server) cmdShutdown() string {
	if err := exec.Command("shutdown", "-h", "0").Start(); err != nil {
		slog.Error("host shutdown failed", "err", err)
		return "shutdown failed: " + err.Error()
	}
	return "shut server down immediately"
}
