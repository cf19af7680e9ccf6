package battleroyale

import "time"

// EventKind names a game event variant. It is also the event's reportable subtype.
type EventKind string

const (
	KindTeamScoresSubmitted EventKind = "team_scores_submitted"
	KindTeamScoredHighest   EventKind = "team_scored_highest"
	KindTeamScoresTied      EventKind = "team_scores_tied"
	KindTeamScoredLowest    EventKind = "team_scored_lowest"
	KindTeamEliminated      EventKind = "team_eliminated"
	KindTeamIsGameChampion  EventKind = "team_is_game_champion"
)

// EvaluationOrder is the order detectors run in for every round.
func EvaluationOrder() []EventKind {
	return []EventKind{
		KindTeamScoresSubmitted,
		KindTeamScoredHighest,
		KindTeamScoresTied,
		KindTeamScoredLowest,
		KindTeamEliminated,
		KindTeamIsGameChampion,
	}
}

// EventContext is carried by every event.
type EventContext struct {
	EventMatch  VirtualMatchKey `json:"eventMatch"`
	TimeOfEvent time.Time       `json:"timeOfEvent"`
	TeamID      int64           `json:"teamId,omitempty"`
}

// Context returns the event's round, time and team.
func (c EventContext) Context() EventContext { return c }

// GameEvent is one of the six event variants below. The set is closed.
type GameEvent interface {
	Kind() EventKind
	Context() EventContext
	gameEvent()
}

// TeamSubmission records whether a team scored in a round.
type TeamSubmission struct {
	TeamID    int64 `json:"teamId"`
	Submitted bool  `json:"submitted"`
	Score     int64 `json:"score"`
}

// TeamScoresSubmitted fires when at least one team scored in a round.
type TeamScoresSubmitted struct {
	EventContext
	Teams []TeamSubmission `json:"teams"`
}

// TeamScoredHighest fires for the round's top scoring team.
type TeamScoredHighest struct {
	EventContext
	Score int64 `json:"score"`
}

// TieGroup is a set of teams sharing one total.
type TieGroup struct {
	Score   int64   `json:"score"`
	TeamIDs []int64 `json:"teamIds"`
}

// TeamScoresTied fires when two or more teams share a total.
type TeamScoresTied struct {
	EventContext
	Ties []TieGroup `json:"ties"`
}

// TeamScoredLowest fires only for a unique lowest scorer; that team loses a life.
type TeamScoredLowest struct {
	EventContext
	Score int64 `json:"score"`
}

// TeamEliminated fires in the round where a team's lives reach zero.
type TeamEliminated struct {
	EventContext
	TeamsAlive int `json:"teamsAlive"`
}

// TeamIsGameChampion fires in the round that leaves exactly one team alive.
type TeamIsGameChampion struct {
	EventContext
	Lives int `json:"lives"`
}

func (TeamScoresSubmitted) Kind() EventKind { return KindTeamScoresSubmitted }
func (TeamScoredHighest) Kind() EventKind   { return KindTeamScoredHighest }
func (TeamScoresTied) Kind() EventKind      { return KindTeamScoresTied }
func (TeamScoredLowest) Kind() EventKind    { return KindTeamScoredLowest }
func (TeamEliminated) Kind() EventKind      { return KindTeamEliminated }
func (TeamIsGameChampion) Kind() EventKind  { return KindTeamIsGameChampion }

func (TeamScoresSubmitted) gameEvent() {}
func (TeamScoredHighest) gameEvent()   {}
func (TeamScoresTied) gameEvent()      {}
func (TeamScoredLowest) gameEvent()    {}
func (TeamEliminated) gameEvent()      {}
func (TeamIsGameChampion) gameEvent()  {}
