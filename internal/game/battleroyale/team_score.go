package battleroyale

import (
	"sort"

	"battle-royale-bot/internal/model"
)

// InvalidTeamID is returned by WinningTeamID when nobody scored.
const InvalidTeamID int64 = -1

// PlayerResult is a member's counted score in a round.
type PlayerResult struct {
	PlayerID    int64   `json:"playerId"`
	Score       int64   `json:"score"`
	Passed      bool    `json:"passed"`
	Accuracy    float64 `json:"accuracy"`
	LetterGrade string  `json:"letterGrade"`
}

// TeamScore is a team's summed score in a round.
type TeamScore struct {
	TeamID     int64          `json:"teamId"`
	TeamNumber int            `json:"teamNumber"`
	Score      int64          `json:"score"`
	Players    []PlayerResult `json:"players"`
}

// ScoresForVirtualMatch sums each active team's member scores over the
// round's matches, ordered by team number. Teams without a single scoring
// member are left out.
func ScoresForVirtualMatch(game *model.Game, vm *VirtualMatch) []TeamScore {
	teams := teamsByNumber(game)

	owner := make(map[int64]int, len(teams))
	for i, gt := range teams {
		if gt.Team == nil {
			continue
		}
		for _, p := range gt.Team.Players {
			if _, taken := owner[p.ID]; !taken {
				owner[p.ID] = i
			}
		}
	}

	scores := make([]*TeamScore, len(teams))
	for _, m := range vm.Matches {
		for _, ps := range m.Scores {
			i, ok := owner[ps.PlayerID]
			if !ok {
				continue
			}
			if scores[i] == nil {
				scores[i] = &TeamScore{TeamID: teams[i].TeamID, TeamNumber: teams[i].TeamNumber}
			}
			counted := ps.Score
			if !game.CountFailedScores && !ps.Passed {
				counted = 0
			}
			scores[i].Score += counted
			scores[i].Players = append(scores[i].Players, PlayerResult{
				PlayerID:    ps.PlayerID,
				Score:       counted,
				Passed:      ps.Passed,
				Accuracy:    ps.Accuracy,
				LetterGrade: ps.LetterGrade,
			})
		}
	}

	result := make([]TeamScore, 0, len(teams))
	for _, s := range scores {
		if s != nil {
			result = append(result, *s)
		}
	}
	return result
}

// WinningTeamID returns the team with the highest total in the round, the
// lowest team number among equals, or InvalidTeamID when nobody scored.
func WinningTeamID(game *model.Game, vm *VirtualMatch) int64 {
	winner := InvalidTeamID
	var best int64
	for _, s := range ScoresForVirtualMatch(game, vm) {
		if winner == InvalidTeamID || s.Score > best {
			winner = s.TeamID
			best = s.Score
		}
	}
	return winner
}

// LowestScoringTeamIDs returns every team sharing the lowest total in the
// round, or nil when nobody scored.
func LowestScoringTeamIDs(game *model.Game, vm *VirtualMatch) []int64 {
	scores := ScoresForVirtualMatch(game, vm)
	if len(scores) == 0 {
		return nil
	}
	lowest := scores[0].Score
	for _, s := range scores[1:] {
		if s.Score < lowest {
			lowest = s.Score
		}
	}
	var ids []int64
	for _, s := range scores {
		if s.Score == lowest {
			ids = append(ids, s.TeamID)
		}
	}
	return ids
}

func teamsByNumber(game *model.Game) []*model.GameTeam {
	teams := game.ActiveTeams()
	sort.SliceStable(teams, func(i, j int) bool {
		return teams[i].TeamNumber < teams[j].TeamNumber
	})
	return teams
}
