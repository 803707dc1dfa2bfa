package archive

import (
	"math"

	"github.com/mcoot/chesschain-go/internal/model"
)

// EloK is the maximum rating change for a single game
const EloK = 32

// eloDelta returns the change for a player rated r against an opponent rated
// opp, where score is 1 for a win, 0.5 for a draw and 0 for a loss
func eloDelta(r, opp int, score float64) int {
	expected := 1 / (1 + math.Pow(10, float64(opp-r)/400))
	return int(math.Round(EloK * (score - expected)))
}

// applyResult updates both sides' ratings and tallies. Ratings never drop below zero.
func applyResult(white, black model.ParticipantMetadata, result *model.Result) (model.ParticipantMetadata, model.ParticipantMetadata) {
	var whiteScore float64
	switch {
	case result.IsDraw():
		whiteScore = 0.5
		white.Draws++
		black.Draws++
	case result.Winner == model.SideWhite:
		whiteScore = 1
		white.Wins++
		black.Losses++
	default:
		black.Wins++
		white.Losses++
	}

	wd := eloDelta(white.Rating, black.Rating, whiteScore)
	bd := eloDelta(black.Rating, white.Rating, 1-whiteScore)
	white.Rating = max(0, white.Rating+wd)
	black.Rating = max(0, black.Rating+bd)
	return white, black
}
