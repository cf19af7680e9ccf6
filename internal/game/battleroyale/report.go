package battleroyale

import (
	"fmt"
	"sort"
	"time"

	"battle-royale-bot/internal/model"
)

// ReportableType is the family a reportable belongs to.
type ReportableType string

const (
	ReportableMessage     ReportableType = "message"
	ReportableGameEvent   ReportableType = "game_event"
	ReportableLeaderboard ReportableType = "leaderboard"
)

// LeaderboardSubType is the subtype of every leaderboard reportable.
const LeaderboardSubType = "virtual_match_leaderboard"

// ReportableIdentity is what makes two reportables the same notification.
// Each identity is delivered at most once per game.
type ReportableIdentity struct {
	Type              ReportableType
	SubType           string
	BeatmapID         int64
	SameBeatmapNumber int
}

// ReportableContext wraps an event, status message or leaderboard for diffing and delivery.
// Item is a GameEvent, a StatusMessage or a *Leaderboard.
type ReportableContext struct {
	Type              ReportableType
	SubType           string
	BeatmapID         int64
	SameBeatmapNumber int
	Time              time.Time
	Item              any
}

// Identity returns the reportable's delivery identity.
func (r ReportableContext) Identity() ReportableIdentity {
	return ReportableIdentity{
		Type:              r.Type,
		SubType:           r.SubType,
		BeatmapID:         r.BeatmapID,
		SameBeatmapNumber: r.SameBeatmapNumber,
	}
}

// Key returns the round the reportable belongs to.
func (r ReportableContext) Key() VirtualMatchKey {
	return VirtualMatchKey{BeatmapID: r.BeatmapID, SameBeatmapNumber: r.SameBeatmapNumber}
}

// VirtualMatchReportData is everything derived for one round.
type VirtualMatchReportData struct {
	Key          VirtualMatchKey
	VirtualMatch *VirtualMatch
	Events       []GameEvent
	Messages     []StatusMessage
	Leaderboard  *Leaderboard
}

// Report is the outcome of one aggregation pass.
type Report struct {
	// All holds every reportable, ordered by time, before truncation.
	All []ReportableContext
	// ToBeReported holds what is still undelivered after truncation.
	ToBeReported []ReportableContext
}

// Champion returns the champion event, if the game has one.
func (r *Report) Champion() (TeamIsGameChampion, bool) {
	for _, rc := range r.All {
		if ev, ok := rc.Item.(TeamIsGameChampion); ok {
			return ev, true
		}
	}
	return TeamIsGameChampion{}, false
}

// BuildReportData derives the rounds of a game and, for each of them, its
// events, status messages and leaderboard. Rounds keep builder order.
func BuildReportData(game *model.Game, lobbies []*model.Lobby) ([]*VirtualMatchReportData, error) {
	if err := validateGame(game); err != nil {
		return nil, err
	}

	vms, err := BuildVirtualMatches(lobbies)
	if err != nil {
		return nil, fmt.Errorf("failed to build virtual matches: %w", err)
	}
	events, err := DetectEvents(game, vms)
	if err != nil {
		return nil, err
	}
	waiting := waitingMessages(vms)

	data := make([]*VirtualMatchReportData, 0, len(vms))
	for _, vm := range vms {
		d := &VirtualMatchReportData{
			Key:          vm.Key,
			VirtualMatch: vm,
			Events:       events[vm.Key],
			Messages:     waiting[vm.Key],
		}
		lb, err := BuildLeaderboard(game, vms, events, vm.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to build leaderboard for %s: %w", vm.Key, err)
		}
		d.Leaderboard = lb
		data = append(data, d)
	}
	return data, nil
}

// Aggregate flattens the report data into reportables, adds one match_aborted
// message per aborted match, cuts everything after the game's conclusion and
// diffs the rest against what was already delivered. It does no I/O.
func Aggregate(data []*VirtualMatchReportData, lobbies []*model.Lobby, delivered []ReportableIdentity) (*Report, error) {
	var all []ReportableContext
	for _, d := range data {
		for _, ev := range d.Events {
			ctx := ev.Context()
			all = append(all, ReportableContext{
				Type:              ReportableGameEvent,
				SubType:           string(ev.Kind()),
				BeatmapID:         ctx.EventMatch.BeatmapID,
				SameBeatmapNumber: ctx.EventMatch.SameBeatmapNumber,
				Time:              ctx.TimeOfEvent,
				Item:              ev,
			})
		}
		for _, msg := range d.Messages {
			all = append(all, messageReportable(msg))
		}
		if d.Leaderboard != nil {
			all = append(all, ReportableContext{
				Type:              ReportableLeaderboard,
				SubType:           LeaderboardSubType,
				BeatmapID:         d.Leaderboard.Key.BeatmapID,
				SameBeatmapNumber: d.Leaderboard.Key.SameBeatmapNumber,
				Time:              d.Leaderboard.EventTime,
				Item:              d.Leaderboard,
			})
		}
	}

	aborted, err := abortedMessages(lobbies)
	if err != nil {
		return nil, err
	}
	for _, msg := range aborted {
		all = append(all, messageReportable(msg))
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Time.Before(all[j].Time) })

	seen := make(map[ReportableIdentity]struct{}, len(delivered))
	for _, id := range delivered {
		seen[id] = struct{}{}
	}

	// an identity is reported once; the earliest reportable holding it wins
	report := &Report{All: all}
	for _, rc := range truncateAfterConclusion(all) {
		id := rc.Identity()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		report.ToBeReported = append(report.ToBeReported, rc)
	}
	return report, nil
}

// truncateAfterConclusion drops every reportable whose round comes, in time
// order, after the round of the first leaderboard with at most one team alive.
func truncateAfterConclusion(sorted []ReportableContext) []ReportableContext {
	order := make(map[VirtualMatchKey]int)
	for _, rc := range sorted {
		if _, ok := order[rc.Key()]; !ok {
			order[rc.Key()] = len(order)
		}
	}

	terminal := -1
	for _, rc := range sorted {
		lb, ok := rc.Item.(*Leaderboard)
		if ok && rc.Type == ReportableLeaderboard && lb.TeamsAlive() <= 1 {
			terminal = order[rc.Key()]
			break
		}
	}
	if terminal < 0 {
		return sorted
	}

	kept := make([]ReportableContext, 0, len(sorted))
	for _, rc := range sorted {
		if order[rc.Key()] <= terminal {
			kept = append(kept, rc)
		}
	}
	return kept
}

func messageReportable(msg StatusMessage) ReportableContext {
	return ReportableContext{
		Type:              ReportableMessage,
		SubType:           string(msg.Kind),
		BeatmapID:         msg.Key.BeatmapID,
		SameBeatmapNumber: msg.Key.SameBeatmapNumber,
		Time:              msg.Time,
		Item:              msg,
	}
}
