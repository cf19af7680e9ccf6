package battleroyale

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battle-royale-bot/internal/model"
)

func aggregate(t *testing.T, game *model.Game, lobbies []*model.Lobby, delivered []ReportableIdentity) *Report {
	t.Helper()
	data, err := BuildReportData(game, lobbies)
	require.NoError(t, err)
	report, err := Aggregate(data, lobbies, delivered)
	require.NoError(t, err)
	return report
}

func identities(rcs []ReportableContext) []ReportableIdentity {
	ids := make([]ReportableIdentity, 0, len(rcs))
	for _, rc := range rcs {
		ids = append(ids, rc.Identity())
	}
	return ids
}

func TestAggregate_AbortedMatch(t *testing.T) {
	game := newGame(3, []int64{101}, []int64{201})
	c := newClock()
	l1, l2 := newLobby(1), newLobby(2)
	aborted := c.abort(l1, 10)
	c.play(l1, 10, map[int64]int64{101: 100})
	c.play(l2, 10, map[int64]int64{201: 200})

	report := aggregate(t, game, []*model.Lobby{l1, l2}, nil)

	var messages []ReportableContext
	for _, rc := range report.ToBeReported {
		if rc.Type == ReportableMessage {
			messages = append(messages, rc)
		}
	}
	require.Len(t, messages, 1)
	assert.Equal(t, string(MessageMatchAborted), messages[0].SubType)
	assert.Equal(t, int64(10), messages[0].BeatmapID)
	assert.Equal(t, 1, messages[0].SameBeatmapNumber)

	msg, ok := messages[0].Item.(StatusMessage)
	require.True(t, ok)
	assert.Equal(t, aborted.ID, msg.MatchID)
	assert.Equal(t, int64(1), msg.LobbyID)

	assert.Equal(t, messages[0], report.ToBeReported[0], "the abort happened first")
	last := report.ToBeReported[len(report.ToBeReported)-1]
	assert.Equal(t, ReportableLeaderboard, last.Type)
}

// Both lobbies abort their first play of the same beatmap.
func TestAggregate_SameAbortInTwoLobbies(t *testing.T) {
	game := newGame(3, []int64{101}, []int64{201})
	c := newClock()
	l1, l2 := newLobby(1), newLobby(2)
	c.abort(l1, 10)
	c.abort(l2, 10)
	c.play(l1, 10, map[int64]int64{101: 100})
	c.play(l2, 10, map[int64]int64{201: 200})

	report := aggregate(t, game, []*model.Lobby{l1, l2}, nil)

	counts := make(map[ReportableIdentity]int)
	for _, rc := range report.ToBeReported {
		counts[rc.Identity()]++
	}
	for id, n := range counts {
		assert.Equal(t, 1, n, "identity %+v reported more than once", id)
	}

	var aborts []StatusMessage
	for _, rc := range report.ToBeReported {
		if rc.SubType == string(MessageMatchAborted) {
			aborts = append(aborts, rc.Item.(StatusMessage))
		}
	}
	require.Len(t, aborts, 1)
	assert.Equal(t, int64(1), aborts[0].LobbyID, "the earlier abort wins")

	var inAll int
	for _, rc := range report.All {
		if rc.SubType == string(MessageMatchAborted) {
			inAll++
		}
	}
	assert.Equal(t, 2, inAll)

	again := aggregate(t, game, []*model.Lobby{l1, l2}, identities(report.ToBeReported))
	assert.Empty(t, again.ToBeReported)
}

func TestAggregate_WaitingForLobbies(t *testing.T) {
	game := newGame(3, []int64{101}, []int64{201})
	c := newClock()
	l1, l2 := newLobby(1), newLobby(2)
	c.play(l1, 10, map[int64]int64{101: 100})

	report := aggregate(t, game, []*model.Lobby{l1, l2}, nil)
	require.Len(t, report.ToBeReported, 1)

	rc := report.ToBeReported[0]
	assert.Equal(t, ReportableMessage, rc.Type)
	assert.Equal(t, string(MessageWaitingForLobbies), rc.SubType)
	msg := rc.Item.(StatusMessage)
	assert.Equal(t, []int64{1}, msg.LobbiesPlayed)
	assert.Equal(t, []int64{2}, msg.LobbiesRemaining)
}

func TestAggregate_Idempotent(t *testing.T) {
	game := newGame(2, []int64{101}, []int64{201}, []int64{301})
	c := newClock()
	l1, l2 := newLobby(1), newLobby(2)
	c.play(l1, 1, map[int64]int64{101: 100, 201: 200})
	c.play(l2, 1, map[int64]int64{301: 300})
	c.abort(l1, 2)
	c.play(l1, 2, map[int64]int64{101: 50, 201: 200})
	c.play(l2, 2, map[int64]int64{301: 300})
	c.play(l1, 3, map[int64]int64{101: 10})
	lobbies := []*model.Lobby{l1, l2}

	first := aggregate(t, game, lobbies, nil)
	require.NotEmpty(t, first.ToBeReported)

	second := aggregate(t, game, lobbies, identities(first.ToBeReported))
	assert.Empty(t, second.ToBeReported)
	if diff := cmp.Diff(first.All, second.All); diff != "" {
		t.Errorf("All differs between passes (-first +second):\n%s", diff)
	}

	// partial delivery leaves exactly the rest
	half := len(first.ToBeReported) / 2
	third := aggregate(t, game, lobbies, identities(first.ToBeReported[:half]))
	if diff := cmp.Diff(first.ToBeReported[half:], third.ToBeReported); diff != "" {
		t.Errorf("undelivered reportables mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildReportData_Deterministic(t *testing.T) {
	game := newGame(2, []int64{101}, []int64{201})
	c := newClock()
	l1, l2 := newLobby(1), newLobby(2)
	c.play(l1, 1, map[int64]int64{101: 100})
	c.play(l2, 1, map[int64]int64{201: 200})
	c.play(l1, 2, map[int64]int64{101: 100})

	a, err := BuildReportData(game, []*model.Lobby{l1, l2})
	require.NoError(t, err)
	b, err := BuildReportData(game, []*model.Lobby{l1, l2})
	require.NoError(t, err)

	if diff := cmp.Diff(a, b, cmp.AllowUnexported(VirtualMatch{})); diff != "" {
		t.Errorf("report data differs (-a +b):\n%s", diff)
	}
	require.Len(t, a, 2)
	assert.NotNil(t, a[0].Leaderboard)
	assert.Nil(t, a[1].Leaderboard)
	require.Len(t, a[1].Messages, 1)
}

func TestAggregate_TruncatesAfterConclusion(t *testing.T) {
	game := newGame(1, []int64{101}, []int64{201}, []int64{301})
	c := newClock()
	l := newLobby(1)
	c.play(l, 1, map[int64]int64{101: 100, 201: 200, 301: 300})
	c.play(l, 2, map[int64]int64{201: 200, 301: 100})
	c.play(l, 3, map[int64]int64{201: 500, 301: 100})

	report := aggregate(t, game, []*model.Lobby{l}, nil)

	champion, ok := report.Champion()
	require.True(t, ok)
	assert.Equal(t, int64(2), champion.TeamID)
	assert.Equal(t, VirtualMatchKey{BeatmapID: 2, SameBeatmapNumber: 1}, champion.EventMatch)

	late := VirtualMatchKey{BeatmapID: 3, SameBeatmapNumber: 1}
	var inAll bool
	for _, rc := range report.All {
		if rc.Key() == late {
			inAll = true
		}
	}
	assert.True(t, inAll, "All keeps the untruncated history")
	for _, rc := range report.ToBeReported {
		assert.NotEqual(t, late, rc.Key(), "nothing after the deciding round is reported")
	}

	last := report.ToBeReported[len(report.ToBeReported)-1]
	require.Equal(t, ReportableLeaderboard, last.Type)
	assert.Equal(t, 1, last.Item.(*Leaderboard).TeamsAlive())
}

func TestAggregate_NoChampionWithoutConclusion(t *testing.T) {
	game := newGame(3, []int64{101}, []int64{201})
	vm := singleRound(t, game, map[int64]int64{101: 1, 201: 2})
	report := aggregate(t, game, []*model.Lobby{{ID: 1, GameID: 1, Matches: vm.Matches}}, nil)

	_, ok := report.Champion()
	assert.False(t, ok)
	assert.Equal(t, len(report.All), len(report.ToBeReported))
}

func TestBuildReportData_InvalidGame(t *testing.T) {
	_, err := BuildReportData(&model.Game{}, nil)
	assert.ErrorIs(t, err, ErrDataInconsistency)
}
