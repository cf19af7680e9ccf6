package battleroyale

import (
	"fmt"
	"sort"

	"battle-royale-bot/internal/model"
)

// LifeReplay is the life state of every active team after replaying the
// completed rounds up to a target round.
type LifeReplay struct {
	Lives        map[int64]int
	EliminatedAt map[int64]VirtualMatchKey
	// DecidedAt is the round after which fewer than two teams were alive.
	DecidedAt *VirtualMatchKey
	// Replayed lists the rounds applied, in time order.
	Replayed []VirtualMatchKey

	teamOrder []int64
}

// Alive returns the ids of teams with lives left, in team number order.
func (r *LifeReplay) Alive() []int64 {
	var ids []int64
	for _, id := range r.teamOrder {
		if r.Lives[id] > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// ReplayLives walks the completed rounds in time order up to and including
// upTo. Each round with a unique lowest scorer costs that team one life.
// The walk stops once fewer than two teams are alive.
func ReplayLives(game *model.Game, vms []*VirtualMatch, upTo VirtualMatchKey) (*LifeReplay, error) {
	teams := teamsByNumber(game)
	r := &LifeReplay{
		Lives:        make(map[int64]int, len(teams)),
		EliminatedAt: make(map[int64]VirtualMatchKey),
	}
	for _, gt := range teams {
		lives := gt.StartingLives
		if lives <= 0 {
			lives = game.TeamLives
		}
		r.Lives[gt.TeamID] = lives
		r.teamOrder = append(r.teamOrder, gt.TeamID)
	}

	for _, vm := range OrderByTime(vms) {
		if len(r.Alive()) < 2 {
			break
		}
		r.Replayed = append(r.Replayed, vm.Key)

		if lowest := LowestScoringTeamIDs(game, vm); len(lowest) == 1 {
			id := lowest[0]
			if r.Lives[id] > 0 {
				r.Lives[id]--
				if r.Lives[id] == 0 {
					r.EliminatedAt[id] = vm.Key
				}
			}
		}

		if eliminated := eliminatedIn(r, vm.Key); len(eliminated) > 1 {
			return nil, &InvariantViolationError{Key: vm.Key, TeamIDs: eliminated}
		}
		if len(r.Alive()) < 2 {
			key := vm.Key
			r.DecidedAt = &key
		}
		if vm.Key == upTo {
			break
		}
	}

	return r, nil
}

// Detect evaluates one detector against a round. An incomplete round is not
// ready yet and yields no event and no error.
func Detect(kind EventKind, game *model.Game, target *VirtualMatch, all []*VirtualMatch) (GameEvent, bool, error) {
	if target == nil || !target.Complete() {
		return nil, false, nil
	}
	ctx := EventContext{EventMatch: target.Key, TimeOfEvent: target.Time()}

	switch kind {
	case KindTeamScoresSubmitted:
		return detectScoresSubmitted(game, target, ctx)
	case KindTeamScoredHighest:
		return detectScoredHighest(game, target, ctx)
	case KindTeamScoresTied:
		return detectScoresTied(game, target, ctx)
	case KindTeamScoredLowest:
		return detectScoredLowest(game, target, ctx)
	case KindTeamEliminated:
		return detectEliminated(game, target, all, ctx)
	case KindTeamIsGameChampion:
		return detectChampion(game, target, all, ctx)
	default:
		return nil, false, fmt.Errorf("unknown event kind %q", kind)
	}
}

// DetectEvents runs every detector, in evaluation order, over every completed
// round. Events are keyed by round.
func DetectEvents(game *model.Game, vms []*VirtualMatch) (map[VirtualMatchKey][]GameEvent, error) {
	if err := validateGame(game); err != nil {
		return nil, err
	}

	events := make(map[VirtualMatchKey][]GameEvent)
	for _, vm := range OrderByTime(vms) {
		for _, kind := range EvaluationOrder() {
			ev, fired, err := Detect(kind, game, vm, vms)
			if err != nil {
				return nil, fmt.Errorf("failed to detect %s for %s: %w", kind, vm.Key, err)
			}
			if fired {
				events[vm.Key] = append(events[vm.Key], ev)
			}
		}
	}
	return events, nil
}

func detectScoresSubmitted(game *model.Game, vm *VirtualMatch, ctx EventContext) (GameEvent, bool, error) {
	scores := ScoresForVirtualMatch(game, vm)
	if len(scores) == 0 {
		return nil, false, nil
	}
	byTeam := make(map[int64]int64, len(scores))
	for _, s := range scores {
		byTeam[s.TeamID] = s.Score
	}

	ev := TeamScoresSubmitted{EventContext: ctx}
	for _, gt := range teamsByNumber(game) {
		score, ok := byTeam[gt.TeamID]
		ev.Teams = append(ev.Teams, TeamSubmission{TeamID: gt.TeamID, Submitted: ok, Score: score})
	}
	return ev, true, nil
}

func detectScoredHighest(game *model.Game, vm *VirtualMatch, ctx EventContext) (GameEvent, bool, error) {
	winner := WinningTeamID(game, vm)
	if winner == InvalidTeamID {
		return nil, false, nil
	}
	ctx.TeamID = winner
	ev := TeamScoredHighest{EventContext: ctx}
	for _, s := range ScoresForVirtualMatch(game, vm) {
		if s.TeamID == winner {
			ev.Score = s.Score
		}
	}
	return ev, true, nil
}

func detectScoresTied(game *model.Game, vm *VirtualMatch, ctx EventContext) (GameEvent, bool, error) {
	groups := make(map[int64][]int64)
	for _, s := range ScoresForVirtualMatch(game, vm) {
		groups[s.Score] = append(groups[s.Score], s.TeamID)
	}

	var ties []TieGroup
	for score, ids := range groups {
		if len(ids) > 1 {
			ties = append(ties, TieGroup{Score: score, TeamIDs: ids})
		}
	}
	if len(ties) == 0 {
		return nil, false, nil
	}
	sort.Slice(ties, func(i, j int) bool { return ties[i].Score > ties[j].Score })
	return TeamScoresTied{EventContext: ctx, Ties: ties}, true, nil
}

func detectScoredLowest(game *model.Game, vm *VirtualMatch, ctx EventContext) (GameEvent, bool, error) {
	lowest := LowestScoringTeamIDs(game, vm)
	if len(lowest) != 1 {
		return nil, false, nil
	}
	ctx.TeamID = lowest[0]
	ev := TeamScoredLowest{EventContext: ctx}
	for _, s := range ScoresForVirtualMatch(game, vm) {
		if s.TeamID == lowest[0] {
			ev.Score = s.Score
		}
	}
	return ev, true, nil
}

func detectEliminated(game *model.Game, vm *VirtualMatch, all []*VirtualMatch, ctx EventContext) (GameEvent, bool, error) {
	replay, err := ReplayLives(game, all, vm.Key)
	if err != nil {
		return nil, false, err
	}
	eliminated := eliminatedIn(replay, vm.Key)
	switch len(eliminated) {
	case 0:
		return nil, false, nil
	case 1:
		ctx.TeamID = eliminated[0]
		return TeamEliminated{EventContext: ctx, TeamsAlive: len(replay.Alive())}, true, nil
	default:
		return nil, false, &InvariantViolationError{Key: vm.Key, TeamIDs: eliminated}
	}
}

func detectChampion(game *model.Game, vm *VirtualMatch, all []*VirtualMatch, ctx EventContext) (GameEvent, bool, error) {
	replay, err := ReplayLives(game, all, vm.Key)
	if err != nil {
		return nil, false, err
	}
	alive := replay.Alive()
	if len(alive) != 1 || replay.DecidedAt == nil || *replay.DecidedAt != vm.Key {
		return nil, false, nil
	}
	ctx.TeamID = alive[0]
	return TeamIsGameChampion{EventContext: ctx, Lives: replay.Lives[alive[0]]}, true, nil
}

func eliminatedIn(r *LifeReplay, key VirtualMatchKey) []int64 {
	var ids []int64
	for _, id := range r.teamOrder {
		if at, ok := r.EliminatedAt[id]; ok && at == key {
			ids = append(ids, id)
		}
	}
	return ids
}

func validateGame(game *model.Game) error {
	if game == nil {
		return &DataInconsistencyError{Reason: "missing game"}
	}
	if game.ID <= 0 {
		return &DataInconsistencyError{Reason: "invalid game id", GameID: game.ID}
	}
	return nil
}
