package server

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/udisondev/chessd/internal/model"
)

// EloRating returns the player's rating after a game against an opponent
// with the given rating. result is 1 for a win, 0.5 for a draw, 0 for a
// loss; weight is the K-factor applied to the surprise.
func EloRating(rating, opponent int, result float64, weight int) int {
	expectancy := 1 / (1 + math.Pow(10, float64(opponent-rating)/400))
	return int(math.Round(float64(rating) + float64(weight)*(result-expectancy)))
}

// applyScoring performs the rated-game update for a result reported by
// user a from a's perspective. Both ratings move by the same K-factor
// (the smaller of the two weights), the link dissolves and the game
// counters advance symmetrically. A report from an unlinked user is
// ignored.
func (s *Server) applyScoring(a *model.User, score float64) {
	b, ok := s.partner(a.ID)
	if !ok {
		return
	}

	weight := min(a.EloWeight, b.EloWeight)
	oldA, oldB := a.Rating, b.Rating
	a.Rating = EloRating(oldA, oldB, score, weight)
	b.Rating = EloRating(oldB, oldA, 1-score, weight)
	slog.Info("rating updated",
		"a", a.Name, "a_old", oldA, "a_new", a.Rating,
		"b", b.Name, "b_old", oldB, "b_new", b.Rating)

	a.DecEloWeight()
	b.DecEloWeight()

	a.PlayedGames++
	b.PlayedGames++
	var tally string
	switch score {
	case 0:
		a.ScoringZero++
		b.ScoringOne++
		tally = "0:1"
	case 1:
		a.ScoringOne++
		b.ScoringZero++
		tally = "1:0"
	default:
		a.ScoringHalf++
		b.ScoringHalf++
		if score == 0.5 {
			tally = "1/2:1/2"
		}
	}

	s.mu.Lock()
	delete(s.linkedUsers, a.ID)
	delete(s.linkedUsers, b.ID)
	if tally != "" {
		date := time.Now().Format("02.01.")
		s.lastGame = fmt.Sprintf("%s - %s %s (%s)", a.Name, b.Name, tally, date)
	}
	s.mu.Unlock()
}
