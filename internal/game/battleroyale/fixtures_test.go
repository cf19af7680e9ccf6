package battleroyale

import (
	"sort"
	"time"

	"battle-royale-bot/internal/model"
)

var fixtureStart = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

// newGame creates a game with one team per players slice. Team ids and
// numbers start at 1; the players of team n get the given osu! ids.
func newGame(lives int, teams ...[]int64) *model.Game {
	g := &model.Game{ID: 1, Name: "test royale", TeamLives: lives, CountFailedScores: true, Status: model.GameStatusStarted}
	for i, players := range teams {
		team := &model.Team{ID: int64(i + 1), Name: string(rune('A' + i))}
		for _, pid := range players {
			team.Players = append(team.Players, &model.Player{ID: pid, Username: "player"})
		}
		g.Teams = append(g.Teams, &model.GameTeam{
			GameID:     g.ID,
			TeamID:     team.ID,
			TeamNumber: i + 1,
			Colour:     "red",
			Team:       team,
		})
	}
	return g
}

// matchClock hands out increasing match ids and times.
type matchClock struct {
	now    time.Time
	nextID int64
}

func newClock() *matchClock {
	return &matchClock{now: fixtureStart}
}

func newLobby(id int64) *model.Lobby {
	return &model.Lobby{ID: id, GameID: 1, LobbyNumber: int(id), MultiplayerID: 1000 + id}
}

// play appends a finished match to the lobby with the given player scores.
func (c *matchClock) play(l *model.Lobby, beatmapID int64, scores map[int64]int64) *model.Match {
	c.nextID++
	c.now = c.now.Add(5 * time.Minute)
	end := c.now.Add(3 * time.Minute)
	m := &model.Match{
		ID:        c.nextID,
		LobbyID:   l.ID,
		BeatmapID: beatmapID,
		MapNumber: len(l.Matches) + 1,
		StartTime: c.now,
		EndTime:   &end,
		TeamMode:  "head-to-head",
	}

	pids := make([]int64, 0, len(scores))
	for pid := range scores {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	for _, pid := range pids {
		m.Scores = append(m.Scores, &model.PlayerScore{
			MatchID:     m.ID,
			PlayerID:    pid,
			Score:       scores[pid],
			Passed:      true,
			Accuracy:    0.95,
			LetterGrade: "A",
		})
	}
	l.Matches = append(l.Matches, m)
	return m
}

// abort appends an aborted match to the lobby.
func (c *matchClock) abort(l *model.Lobby, beatmapID int64) *model.Match {
	c.nextID++
	c.now = c.now.Add(5 * time.Minute)
	m := &model.Match{
		ID:        c.nextID,
		LobbyID:   l.ID,
		BeatmapID: beatmapID,
		MapNumber: len(l.Matches) + 1,
		StartTime: c.now,
		Aborted:   true,
	}
	l.Matches = append(l.Matches, m)
	return m
}

// start appends an in-progress match to the lobby.
func (c *matchClock) start(l *model.Lobby, beatmapID int64) *model.Match {
	c.nextID++
	c.now = c.now.Add(5 * time.Minute)
	m := &model.Match{
		ID:        c.nextID,
		LobbyID:   l.ID,
		BeatmapID: beatmapID,
		MapNumber: len(l.Matches) + 1,
		StartTime: c.now,
	}
	l.Matches = append(l.Matches, m)
	return m
}

func kindsOf(events []GameEvent) []EventKind {
	kinds := make([]EventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind())
	}
	return kinds
}

func lobbyIDs(lobbies []*model.Lobby) []int64 {
	ids := make([]int64, 0, len(lobbies))
	for _, l := range lobbies {
		ids = append(ids, l.ID)
	}
	return ids
}
