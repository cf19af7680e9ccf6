package osuapi

import (
	"time"

	"battle-royale-bot/internal/model"
)

type matchResponse struct {
	Match         apiRoom    `json:"match"`
	Events        []apiEvent `json:"events"`
	LatestEventID int64      `json:"latest_event_id"`
}

type apiRoom struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

type apiEvent struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Game      *apiGame  `json:"game"`
}

type apiGame struct {
	ID        int64       `json:"id"`
	BeatmapID int64       `json:"beatmap_id"`
	StartTime time.Time   `json:"start_time"`
	EndTime   *time.Time  `json:"end_time"`
	TeamType  string      `json:"team_type"`
	Scores    []apiScore  `json:"scores"`
	Beatmap   *apiBeatmap `json:"beatmap"`
}

type apiBeatmap struct {
	ID int64 `json:"id"`
}

type apiScore struct {
	UserID   int64   `json:"user_id"`
	Score    int64   `json:"score"`
	Passed   bool    `json:"passed"`
	Accuracy float64 `json:"accuracy"`
	Rank     string  `json:"rank"`
}

// toResult numbers the room's games in play order. A game without an end
// time is aborted once a later game started or the room closed; otherwise it
// is still being played.
func toResult(multiplayerID int64, events []apiEvent, roomEnded bool) *model.ApiMultiplayerResult {
	var games []*apiGame
	seen := make(map[int64]int)
	for _, ev := range events {
		if ev.Game == nil {
			continue
		}
		// a game shows up again once it finishes; keep the latest copy
		if i, ok := seen[ev.Game.ID]; ok {
			games[i] = ev.Game
			continue
		}
		seen[ev.Game.ID] = len(games)
		games = append(games, ev.Game)
	}

	result := &model.ApiMultiplayerResult{MultiplayerID: multiplayerID}
	for i, g := range games {
		beatmapID := g.BeatmapID
		if beatmapID == 0 && g.Beatmap != nil {
			beatmapID = g.Beatmap.ID
		}
		am := model.ApiMatch{
			BeatmapID: beatmapID,
			MapNumber: i + 1,
			StartTime: g.StartTime,
			EndTime:   g.EndTime,
			TeamMode:  g.TeamType,
		}
		if g.EndTime == nil && (i < len(games)-1 || roomEnded) {
			am.Aborted = true
		}
		if !am.Aborted {
			for _, s := range g.Scores {
				am.Scores = append(am.Scores, model.ApiScore{
					PlayerID:    s.UserID,
					Score:       s.Score,
					Passed:      s.Passed,
					Accuracy:    s.Accuracy,
					LetterGrade: s.Rank,
				})
			}
		}
		result.Matches = append(result.Matches, am)
	}
	return result
}
