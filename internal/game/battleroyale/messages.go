package battleroyale

import (
	"time"

	"battle-royale-bot/internal/model"
)

// MessageKind names a status message. It is also the message's reportable subtype.
type MessageKind string

const (
	MessageMatchAborted      MessageKind = "match_aborted"
	MessageWaitingForLobbies MessageKind = "waiting_for_lobbies"
)

// StatusMessage is a notice about a round that is not a scoring event.
type StatusMessage struct {
	Kind             MessageKind     `json:"kind"`
	Key              VirtualMatchKey `json:"key"`
	Time             time.Time       `json:"time"`
	LobbyID          int64           `json:"lobbyId,omitempty"`
	MatchID          int64           `json:"matchId,omitempty"`
	LobbiesPlayed    []int64         `json:"lobbiesPlayed,omitempty"`
	LobbiesRemaining []int64         `json:"lobbiesRemaining,omitempty"`
}

// waitingMessages reports every round some lobbies have finished while others
// have not started or finished it yet.
func waitingMessages(vms []*VirtualMatch) map[VirtualMatchKey][]StatusMessage {
	messages := make(map[VirtualMatchKey][]StatusMessage)
	for _, vm := range vms {
		if vm.Complete() || len(vm.LobbiesPlayed) == 0 {
			continue
		}
		msg := StatusMessage{Kind: MessageWaitingForLobbies, Key: vm.Key, Time: vm.Time()}
		for _, l := range vm.LobbiesPlayed {
			msg.LobbiesPlayed = append(msg.LobbiesPlayed, l.ID)
		}
		for _, l := range vm.LobbiesRemaining {
			msg.LobbiesRemaining = append(msg.LobbiesRemaining, l.ID)
		}
		messages[vm.Key] = append(messages[vm.Key], msg)
	}
	return messages
}

// abortedMessages reports every aborted match of the attached lobbies. Aborted
// matches never join a round, so they are reported on their own.
func abortedMessages(lobbies []*model.Lobby) ([]StatusMessage, error) {
	attached := attachedLobbies(lobbies)

	var messages []StatusMessage
	for _, l := range attached {
		for _, m := range l.Matches {
			if !m.Aborted {
				continue
			}
			key, err := KeyForMatch(attached, m.ID)
			if err != nil {
				return nil, err
			}
			messages = append(messages, StatusMessage{
				Kind:    MessageMatchAborted,
				Key:     key,
				Time:    m.OrderTime(),
				LobbyID: l.ID,
				MatchID: m.ID,
			})
		}
	}
	return messages, nil
}
