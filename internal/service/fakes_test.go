package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"battle-royale-bot/internal/game/battleroyale"
	"battle-royale-bot/internal/model"
)

var errNotFound = errors.New("not found")

var baseTime = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

type fakeGames struct {
	mu     sync.Mutex
	games  map[int64]*model.Game
	ends   int
	endErr error
}

func (f *fakeGames) GetWithTeams(_ context.Context, gameID int64) (*model.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[gameID]
	if !ok {
		return nil, errNotFound
	}
	cp := *g
	return &cp, nil
}

func (f *fakeGames) End(_ context.Context, gameID int64) (*model.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[gameID]
	if !ok {
		return nil, errNotFound
	}
	if f.endErr != nil {
		return nil, f.endErr
	}
	f.ends++
	g.Status = model.GameStatusEnded
	cp := *g
	return &cp, nil
}

type fakeLobbies struct {
	lobbies map[int64][]*model.Lobby
}

func (f *fakeLobbies) ListByGame(_ context.Context, gameID int64) ([]*model.Lobby, error) {
	return f.lobbies[gameID], nil
}

type fakeDelivered struct {
	mu   sync.Mutex
	rows map[int64][]*model.DeliveredReportable
}

func (f *fakeDelivered) ListDelivered(_ context.Context, gameID int64) ([]*model.DeliveredReportable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.DeliveredReportable(nil), f.rows[gameID]...), nil
}

func (f *fakeDelivered) MarkDelivered(_ context.Context, gameID int64, batch []*model.DeliveredReportable) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows == nil {
		f.rows = make(map[int64][]*model.DeliveredReportable)
	}
	var n int64
	for _, d := range batch {
		dup := false
		for _, r := range f.rows[gameID] {
			if r.Type == d.Type && r.SubType == d.SubType && r.BeatmapID == d.BeatmapID && r.SameBeatmapNumber == d.SameBeatmapNumber {
				dup = true
			}
		}
		if !dup {
			f.rows[gameID] = append(f.rows[gameID], d)
			n++
		}
	}
	return n, nil
}

type fakeDispatcher struct {
	mu      sync.Mutex
	err     error
	batches [][]battleroyale.ReportableContext
}

func (f *fakeDispatcher) Dispatch(_ context.Context, _ *model.Game, reportables []battleroyale.ReportableContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, reportables)
	return nil
}

func (f *fakeDispatcher) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

// gameFixture builds a started game with one single-player team per entry
// of players and one lobby.
func gameFixture(lives int, players ...int64) (*model.Game, *model.Lobby) {
	g := &model.Game{ID: 1, Name: "royale", TeamLives: lives, CountFailedScores: true, Status: model.GameStatusStarted}
	for i, pid := range players {
		g.Teams = append(g.Teams, &model.GameTeam{
			GameID:     g.ID,
			TeamID:     int64(i + 1),
			TeamNumber: i + 1,
			Team: &model.Team{
				ID:      int64(i + 1),
				Name:    string(rune('A' + i)),
				Players: []*model.Player{{ID: pid, Username: "p"}},
			},
		})
	}
	return g, &model.Lobby{ID: 1, GameID: g.ID, LobbyNumber: 1, MultiplayerID: 5000}
}

// addRound appends a finished match to the lobby.
func addRound(l *model.Lobby, beatmapID int64, scores map[int64]int64) {
	n := len(l.Matches) + 1
	start := baseTime.Add(time.Duration(n) * 5 * time.Minute)
	end := start.Add(3 * time.Minute)
	m := &model.Match{ID: int64(n), LobbyID: l.ID, BeatmapID: beatmapID, MapNumber: n, StartTime: start, EndTime: &end}
	for pid, score := range scores {
		m.Scores = append(m.Scores, &model.PlayerScore{MatchID: m.ID, PlayerID: pid, Score: score, Passed: true})
	}
	l.Matches = append(l.Matches, m)
}

type harness struct {
	games      *fakeGames
	lobbies    *fakeLobbies
	delivered  *fakeDelivered
	dispatcher *fakeDispatcher
	svc        *ResultsService
}

func newHarness(g *model.Game, lobbies ...*model.Lobby) *harness {
	h := &harness{
		games:      &fakeGames{games: map[int64]*model.Game{g.ID: g}},
		lobbies:    &fakeLobbies{lobbies: map[int64][]*model.Lobby{g.ID: lobbies}},
		delivered:  &fakeDelivered{},
		dispatcher: &fakeDispatcher{},
	}
	h.svc = NewResultsService(h.games, h.lobbies, h.delivered, h.dispatcher, nil, time.Second)
	return h
}
