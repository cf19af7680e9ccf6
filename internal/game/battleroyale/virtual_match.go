// Package battleroyale derives rounds, game events, leaderboards and the
// delivery delta of an osu! battle royale from the matches played in its lobbies.
//
// Everything in this package is recomputed from the snapshot passed in; nothing
// is cached between calls and nothing is written anywhere.
package battleroyale

import (
	"fmt"
	"sort"
	"time"

	"battle-royale-bot/internal/model"
)

// VirtualMatchKey identifies a round: the Nth play of a beatmap in every lobby.
type VirtualMatchKey struct {
	BeatmapID         int64 `json:"beatmapId"`
	SameBeatmapNumber int   `json:"sameBeatmapNumber"`
}

func (k VirtualMatchKey) String() string {
	return fmt.Sprintf("%d#%d", k.BeatmapID, k.SameBeatmapNumber)
}

// VirtualMatch groups the real matches of all lobbies that make up one round.
type VirtualMatch struct {
	Key                 VirtualMatchKey
	Matches             []*model.Match
	LobbiesPlayed       []*model.Lobby
	LobbiesRemaining    []*model.Lobby
	GreatestPlayedCount int

	// position of the round's first match in the sorted match history
	order int
}

// Complete reports whether every attached lobby has played this round.
func (vm *VirtualMatch) Complete() bool {
	return len(vm.LobbiesRemaining) == 0
}

// Time is the end time of the round's latest match.
func (vm *VirtualMatch) Time() time.Time {
	var latest time.Time
	for _, m := range vm.Matches {
		if t := m.OrderTime(); t.After(latest) {
			latest = t
		}
	}
	return latest
}

type lobbyBeatmap struct {
	lobbyID   int64
	beatmapID int64
}

// BuildVirtualMatches groups the finished, non-aborted matches of all attached
// lobbies into rounds, in order of each round's first match.
func BuildVirtualMatches(lobbies []*model.Lobby) ([]*VirtualMatch, error) {
	attached := attachedLobbies(lobbies)

	var eligible []*model.Match
	for _, l := range attached {
		for _, m := range l.Matches {
			if m.EndTime != nil && !m.Aborted {
				eligible = append(eligible, m)
			}
		}
	}
	if len(eligible) == 0 {
		return []*VirtualMatch{}, nil
	}
	sortMatches(eligible)

	// One pass: the position of a match in its (lobby, beatmap) list is its
	// same-beatmap number, and that number is also the round it belongs to.
	index := make(map[lobbyBeatmap][]*model.Match)
	byKey := make(map[VirtualMatchKey]*VirtualMatch)
	var vms []*VirtualMatch
	for _, m := range eligible {
		lb := lobbyBeatmap{lobbyID: m.LobbyID, beatmapID: m.BeatmapID}
		index[lb] = append(index[lb], m)

		key := VirtualMatchKey{BeatmapID: m.BeatmapID, SameBeatmapNumber: len(index[lb])}
		vm, ok := byKey[key]
		if !ok {
			vm = &VirtualMatch{Key: key, order: len(vms)}
			byKey[key] = vm
			vms = append(vms, vm)
		}
		vm.Matches = append(vm.Matches, m)
	}

	for _, vm := range vms {
		greatest := 0
		for _, l := range attached {
			played := len(index[lobbyBeatmap{lobbyID: l.ID, beatmapID: vm.Key.BeatmapID}])
			if played > greatest {
				greatest = played
			}
			if played >= vm.Key.SameBeatmapNumber {
				vm.LobbiesPlayed = append(vm.LobbiesPlayed, l)
			} else {
				vm.LobbiesRemaining = append(vm.LobbiesRemaining, l)
			}
		}
		if greatest < 1 {
			key := vm.Key
			return nil, &DataInconsistencyError{
				Reason: "no attached lobby played the virtual match beatmap",
				Key:    &key,
			}
		}
		vm.GreatestPlayedCount = greatest
	}

	return vms, nil
}

// KeyForMatch derives the round key of any match in the lobbies, aborted or
// in progress ones included: one plus the number of matches of the same
// beatmap played earlier in the same lobby.
func KeyForMatch(lobbies []*model.Lobby, matchID int64) (VirtualMatchKey, error) {
	for _, l := range lobbies {
		for _, target := range l.Matches {
			if target.ID != matchID {
				continue
			}
			n := 1
			for _, m := range l.Matches {
				if m.ID != target.ID && m.BeatmapID == target.BeatmapID && matchBefore(m, target) {
					n++
				}
			}
			return VirtualMatchKey{BeatmapID: target.BeatmapID, SameBeatmapNumber: n}, nil
		}
	}
	return VirtualMatchKey{}, &DataInconsistencyError{
		Reason:  "match not found while deriving its virtual match key",
		MatchID: matchID,
	}
}

// OrderByTime returns the completed rounds ordered by completion time. Rounds
// completing at the same instant keep the order of their first match.
func OrderByTime(vms []*VirtualMatch) []*VirtualMatch {
	completed := make([]*VirtualMatch, 0, len(vms))
	for _, vm := range vms {
		if vm.Complete() {
			completed = append(completed, vm)
		}
	}
	sort.SliceStable(completed, func(i, j int) bool {
		ti, tj := completed[i].Time(), completed[j].Time()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return completed[i].order < completed[j].order
	})
	return completed
}

func findVirtualMatch(vms []*VirtualMatch, key VirtualMatchKey) *VirtualMatch {
	for _, vm := range vms {
		if vm.Key == key {
			return vm
		}
	}
	return nil
}

func attachedLobbies(lobbies []*model.Lobby) []*model.Lobby {
	attached := make([]*model.Lobby, 0, len(lobbies))
	for _, l := range lobbies {
		if l.RemovedAt == nil {
			attached = append(attached, l)
		}
	}
	return attached
}

func matchBefore(a, b *model.Match) bool {
	ta, tb := a.OrderTime(), b.OrderTime()
	if !ta.Equal(tb) {
		return ta.Before(tb)
	}
	return a.ID < b.ID
}

func sortMatches(ms []*model.Match) {
	sort.SliceStable(ms, func(i, j int) bool {
		return matchBefore(ms[i], ms[j])
	})
}
