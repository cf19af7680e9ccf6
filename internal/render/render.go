// Package render turns reportables and leaderboards into chat text.
package render

import (
	"fmt"
	"strings"

	"battle-royale-bot/internal/game/battleroyale"
	"battle-royale-bot/internal/model"
)

const divider = "━━━━━━━━━━━━━━━"

// Reportable renders one reportable as a chat message.
func Reportable(game *model.Game, rc battleroyale.ReportableContext) string {
	switch item := rc.Item.(type) {
	case battleroyale.TeamScoresSubmitted:
		submitted := 0
		for _, t := range item.Teams {
			if t.Submitted {
				submitted++
			}
		}
		return fmt.Sprintf("📥 Map %s is done: %d of %d teams submitted scores", mapLabel(item.EventMatch), submitted, len(item.Teams))
	case battleroyale.TeamScoredHighest:
		return fmt.Sprintf("🏆 %s scored highest on map %s with %s", teamName(game, item.TeamID), mapLabel(item.EventMatch), formatScore(item.Score))
	case battleroyale.TeamScoresTied:
		var parts []string
		for _, tie := range item.Ties {
			names := make([]string, 0, len(tie.TeamIDs))
			for _, id := range tie.TeamIDs {
				names = append(names, teamName(game, id))
			}
			parts = append(parts, fmt.Sprintf("%s on %s", strings.Join(names, ", "), formatScore(tie.Score)))
		}
		return fmt.Sprintf("🤝 Tie on map %s: %s", mapLabel(item.EventMatch), strings.Join(parts, "; "))
	case battleroyale.TeamScoredLowest:
		return fmt.Sprintf("💔 %s scored lowest on map %s (%s) and loses a life", teamName(game, item.TeamID), mapLabel(item.EventMatch), formatScore(item.Score))
	case battleroyale.TeamEliminated:
		return fmt.Sprintf("☠️ %s has been eliminated! %d teams remain", teamName(game, item.TeamID), item.TeamsAlive)
	case battleroyale.TeamIsGameChampion:
		return fmt.Sprintf("👑 %s wins %s with %s left!", teamName(game, item.TeamID), game.Name, plural(item.Lives, "life", "lives"))
	case battleroyale.StatusMessage:
		return statusMessage(item)
	case *battleroyale.Leaderboard:
		return Leaderboard(game, item)
	default:
		return fmt.Sprintf("%s/%s on map %s", rc.Type, rc.SubType, mapLabel(rc.Key()))
	}
}

func statusMessage(msg battleroyale.StatusMessage) string {
	switch msg.Kind {
	case battleroyale.MessageMatchAborted:
		return fmt.Sprintf("⚠️ Map %s was aborted in lobby %d and does not count", mapLabel(msg.Key), msg.LobbyID)
	case battleroyale.MessageWaitingForLobbies:
		return fmt.Sprintf("⏳ Map %s finished in %s, waiting for %s",
			mapLabel(msg.Key), lobbyList(msg.LobbiesPlayed), lobbyList(msg.LobbiesRemaining))
	default:
		return fmt.Sprintf("ℹ️ %s on map %s", msg.Kind, mapLabel(msg.Key))
	}
}

// Leaderboard renders a leaderboard with one line per team.
func Leaderboard(game *model.Game, lb *battleroyale.Leaderboard) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 %s standings after map %s\n", game.Name, mapLabel(lb.Key))
	sb.WriteString(divider + "\n")

	for _, line := range lb.Lines {
		name := line.TeamName
		if name == "" {
			name = fmt.Sprintf("Team %d", line.TeamNumber)
		}

		status := "❤️x" + fmt.Sprint(line.Lives)
		if line.Lives == 0 {
			status = "☠️"
		}

		score := "no score"
		if line.Submitted {
			score = formatScore(line.MatchScore)
		}

		fmt.Fprintf(&sb, "%d. %s%s %s | %s | total %s\n",
			line.Position.Current, name, changeMarker(line.Position.Change), status, score, formatScore(line.TeamScore))
		for _, p := range line.Players {
			star := ""
			if p.HighestScorer {
				star = " ⭐"
			}
			fmt.Fprintf(&sb, "    %s %s %s%s\n", displayName(p), formatScore(p.Score), p.LetterGrade, star)
		}
	}
	sb.WriteString(divider)
	return sb.String()
}

func changeMarker(c battleroyale.PositionChange) string {
	switch c {
	case battleroyale.PositionGained:
		return " ▲"
	case battleroyale.PositionLost:
		return " ▼"
	default:
		return ""
	}
}

func displayName(p battleroyale.LeaderboardPlayerLine) string {
	if p.Username != "" {
		return p.Username
	}
	return fmt.Sprintf("Player%d", p.PlayerID)
}

func teamName(game *model.Game, teamID int64) string {
	for _, gt := range game.Teams {
		if gt.TeamID != teamID {
			continue
		}
		if gt.Team != nil && gt.Team.Name != "" {
			return gt.Team.Name
		}
		return fmt.Sprintf("Team %d", gt.TeamNumber)
	}
	return fmt.Sprintf("Team #%d", teamID)
}

func mapLabel(key battleroyale.VirtualMatchKey) string {
	if key.SameBeatmapNumber > 1 {
		return fmt.Sprintf("%d (play %d)", key.BeatmapID, key.SameBeatmapNumber)
	}
	return fmt.Sprint(key.BeatmapID)
}

func lobbyList(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("#%d", id))
	}
	return "lobby " + strings.Join(parts, ", ")
}

// formatScore groups digits by thousands: 1234567 -> 1,234,567.
func formatScore(score int64) string {
	s := fmt.Sprint(score)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	if neg {
		return "-" + sb.String()
	}
	return sb.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
