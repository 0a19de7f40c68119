package requests

import "github.com/theleywin/Collab-Nest/src/models"

type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionWithdraw Action = "withdraw"
)

type Direction string

const (
	DirectionReceived Direction = "received"
	DirectionSent     Direction = "sent"
)

// Card is one rendered row.
type Card struct {
	RequestID  string
	OtherParty models.UserDto
	Direction  Direction
	Status     models.ConnectionStatus
	Message    string
	Actions    []Action
}

// Cards resolves the other party and the available actions per row. The
// accepted tab mixes both directions, so nothing is inferred from the tab.
func (v *View) Cards() []Card {
	state := v.State()
	cards := make([]Card, 0, len(state.Requests))
	for _, r := range state.Requests {
		cards = append(cards, cardFor(v.accountID, r))
	}
	return cards
}

func cardFor(accountID uint, r models.ConnectionRequestDto) Card {
	card := Card{RequestID: r.ID, Status: r.Status, Message: r.Message}
	if r.Sender.ID == accountID {
		card.Direction = DirectionSent
		card.OtherParty = r.Receiver
	} else {
		card.Direction = DirectionReceived
		card.OtherParty = r.Sender
	}

	if r.Status == models.ConnectionStatusPending {
		switch card.Direction {
		case DirectionReceived:
			card.Actions = []Action{ActionAccept, ActionReject}
		case DirectionSent:
			card.Actions = []Action{ActionWithdraw}
		}
	}
	return card
}
