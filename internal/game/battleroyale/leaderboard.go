package battleroyale

import (
	"sort"
	"time"

	"battle-royale-bot/internal/model"
)

// PositionChange compares a team's rank with its rank in the previous round.
type PositionChange string

const (
	PositionGained PositionChange = "gained"
	PositionLost   PositionChange = "lost"
	PositionSame   PositionChange = "same"
)

// Position is a team's rank in a round. Previous and Change are empty for the
// first scored round.
type Position struct {
	Current  int            `json:"current"`
	Previous *int           `json:"previous,omitempty"`
	Change   PositionChange `json:"change,omitempty"`
}

// LeaderboardPlayerLine is one member's result in the round.
type LeaderboardPlayerLine struct {
	PlayerID      int64   `json:"playerId"`
	Username      string  `json:"username"`
	Score         int64   `json:"score"`
	Passed        bool    `json:"passed"`
	Accuracy      float64 `json:"accuracy"`
	LetterGrade   string  `json:"letterGrade"`
	HighestScorer bool    `json:"highestScorer"`
}

// LeaderboardLine is one team's standing after a round.
type LeaderboardLine struct {
	TeamID       int64                   `json:"teamId"`
	TeamNumber   int                     `json:"teamNumber"`
	TeamName     string                  `json:"teamName"`
	Colour       string                  `json:"colour"`
	Position     Position                `json:"position"`
	Lives        int                     `json:"lives"`
	EliminatedAt *VirtualMatchKey        `json:"eliminatedAt,omitempty"`
	Submitted    bool                    `json:"submitted"`
	MatchScore   int64                   `json:"matchScore"`
	TeamScore    int64                   `json:"teamScore"`
	Players      []LeaderboardPlayerLine `json:"players"`
}

// Leaderboard is the ranked snapshot of a game after one round.
type Leaderboard struct {
	Key       VirtualMatchKey   `json:"key"`
	Lines     []LeaderboardLine `json:"leaderboardLines"`
	EventTime time.Time         `json:"leaderboardEventTime"`
}

// TeamsAlive counts the lines with lives left.
func (lb *Leaderboard) TeamsAlive() int {
	n := 0
	for _, l := range lb.Lines {
		if l.Lives > 0 {
			n++
		}
	}
	return n
}

// BuildLeaderboard builds the leaderboard for the round key. It returns nil
// when that round has no TeamScoresSubmitted event.
func BuildLeaderboard(game *model.Game, vms []*VirtualMatch, events map[VirtualMatchKey][]GameEvent, key VirtualMatchKey) (*Leaderboard, error) {
	timeline := OrderByTime(vms)
	scored := submittedRounds(timeline, events)

	idx := -1
	for i, vm := range scored {
		if vm.Key == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}
	target := scored[idx]

	replay, err := ReplayLives(game, vms, key)
	if err != nil {
		return nil, err
	}

	current := rankTeams(game, target)
	var previous map[int64]int
	if idx > 0 {
		previous = rankTeams(game, scored[idx-1])
	}
	cumulative := cumulativeScores(game, timeline, key, replay)

	matchScores := make(map[int64]TeamScore)
	for _, s := range ScoresForVirtualMatch(game, target) {
		matchScores[s.TeamID] = s
	}

	lb := &Leaderboard{Key: key, EventTime: target.Time()}
	for _, gt := range teamsByNumber(game) {
		line := LeaderboardLine{
			TeamID:     gt.TeamID,
			TeamNumber: gt.TeamNumber,
			Colour:     gt.Colour,
			Position:   Position{Current: current[gt.TeamID]},
			Lives:      replay.Lives[gt.TeamID],
			TeamScore:  cumulative[gt.TeamID],
		}
		if gt.Team != nil {
			line.TeamName = gt.Team.Name
		}
		if at, ok := replay.EliminatedAt[gt.TeamID]; ok {
			line.EliminatedAt = &at
		}
		if prev, ok := previous[gt.TeamID]; ok {
			line.Position.Previous = &prev
			line.Position.Change = comparePositions(line.Position.Current, prev)
		}
		if s, ok := matchScores[gt.TeamID]; ok {
			line.Submitted = true
			line.MatchScore = s.Score
			line.Players = playerLines(gt, s)
		}
		lb.Lines = append(lb.Lines, line)
	}

	sort.SliceStable(lb.Lines, func(i, j int) bool {
		if lb.Lines[i].Position.Current != lb.Lines[j].Position.Current {
			return lb.Lines[i].Position.Current < lb.Lines[j].Position.Current
		}
		return lb.Lines[i].TeamNumber < lb.Lines[j].TeamNumber
	})
	return lb, nil
}

// LatestLeaderboard builds the leaderboard for the round of the most recent
// TeamScoresSubmitted event, or returns nil when no round has been scored.
func LatestLeaderboard(game *model.Game, vms []*VirtualMatch, events map[VirtualMatchKey][]GameEvent) (*Leaderboard, error) {
	scored := submittedRounds(OrderByTime(vms), events)
	if len(scored) == 0 {
		return nil, nil
	}
	return BuildLeaderboard(game, vms, events, scored[len(scored)-1].Key)
}

// rankTeams ranks teams by their score in the round. Ranks are 1-based
// competition ranks: equal scores share a rank, and teams that did not score
// all share rank len(scores)+1, after everyone who did.
func rankTeams(game *model.Game, vm *VirtualMatch) map[int64]int {
	scores := ScoresForVirtualMatch(game, vm)
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

	ranks := make(map[int64]int)
	for i, s := range scores {
		if i > 0 && s.Score == scores[i-1].Score {
			ranks[s.TeamID] = ranks[scores[i-1].TeamID]
			continue
		}
		ranks[s.TeamID] = i + 1
	}
	for _, gt := range teamsByNumber(game) {
		if _, ok := ranks[gt.TeamID]; !ok {
			ranks[gt.TeamID] = len(scores) + 1
		}
	}
	return ranks
}

func comparePositions(current, previous int) PositionChange {
	switch {
	case current < previous:
		return PositionGained
	case current > previous:
		return PositionLost
	default:
		return PositionSame
	}
}

// cumulativeScores sums each team's round totals up to and including key,
// ignoring rounds played after the team was eliminated.
func cumulativeScores(game *model.Game, timeline []*VirtualMatch, key VirtualMatchKey, replay *LifeReplay) map[int64]int64 {
	position := make(map[VirtualMatchKey]int, len(timeline))
	for i, vm := range timeline {
		position[vm.Key] = i
	}

	totals := make(map[int64]int64)
	for i, vm := range timeline {
		for _, s := range ScoresForVirtualMatch(game, vm) {
			if at, ok := replay.EliminatedAt[s.TeamID]; ok && i > position[at] {
				continue
			}
			totals[s.TeamID] += s.Score
		}
		if vm.Key == key {
			break
		}
	}
	return totals
}

func playerLines(gt *model.GameTeam, s TeamScore) []LeaderboardPlayerLine {
	names := make(map[int64]string)
	if gt.Team != nil {
		for _, p := range gt.Team.Players {
			names[p.ID] = p.Username
		}
	}

	var best int64
	for i, p := range s.Players {
		if i == 0 || p.Score > best {
			best = p.Score
		}
	}

	lines := make([]LeaderboardPlayerLine, 0, len(s.Players))
	for _, p := range s.Players {
		lines = append(lines, LeaderboardPlayerLine{
			PlayerID:      p.PlayerID,
			Username:      names[p.PlayerID],
			Score:         p.Score,
			Passed:        p.Passed,
			Accuracy:      p.Accuracy,
			LetterGrade:   p.LetterGrade,
			HighestScorer: p.Score == best,
		})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Score > lines[j].Score })
	return lines
}

func submittedRounds(timeline []*VirtualMatch, events map[VirtualMatchKey][]GameEvent) []*VirtualMatch {
	var scored []*VirtualMatch
	for _, vm := range timeline {
		for _, ev := range events[vm.Key] {
			if ev.Kind() == KindTeamScoresSubmitted {
				scored = append(scored, vm)
				break
			}
		}
	}
	return scored
}
