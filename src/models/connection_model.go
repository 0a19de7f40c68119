package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/theleywin/Collab-Nest/src/apperr"
)

// ConnectionRequest is a directional proposal between two accounts. Sender,
// receiver, message and creation time never change after insert.
type ConnectionRequest struct {
	ID          string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	SenderID    uint             `json:"senderId" gorm:"not null;index"`
	ReceiverID  uint             `json:"receiverId" gorm:"not null;index"`
	Status      ConnectionStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Message     string           `json:"message" gorm:"type:text"`
	PairKey     string           `json:"-" gorm:"type:varchar(64);not null;uniqueIndex:idx_pending_pair,where:status = 'PENDING'"`
	CreatedAt   time.Time        `json:"createdAt" gorm:"index"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	RespondedAt *time.Time       `json:"respondedAt,omitempty"`
	Sender      User             `json:"-" gorm:"foreignKey:SenderID"`
	Receiver    User             `json:"-" gorm:"foreignKey:ReceiverID"`
}

type ConnectionStatus string

const (
	ConnectionStatusPending   ConnectionStatus = "PENDING"
	ConnectionStatusAccepted  ConnectionStatus = "ACCEPTED"
	ConnectionStatusRejected  ConnectionStatus = "REJECTED"
	ConnectionStatusWithdrawn ConnectionStatus = "WITHDRAWN"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s ConnectionStatus) IsTerminal() bool {
	return s == ConnectionStatusAccepted || s == ConnectionStatusRejected || s == ConnectionStatusWithdrawn
}

// BeforeCreate assigns the id and the unordered pair key.
func (r *ConnectionRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = ConnectionStatusPending
	}
	r.PairKey = PairKey(r.SenderID, r.ReceiverID)
	return nil
}

// PairKey identifies the unordered pair {a, b}.
func PairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// CheckTransition validates that actor may move r to target. Only a PENDING
// request moves: the receiver accepts or rejects, the sender withdraws.
func (r *ConnectionRequest) CheckTransition(actorID uint, target ConnectionStatus) error {
	if r.Status != ConnectionStatusPending {
		return apperr.InvalidStateTransition("This request has already been processed")
	}

	switch target {
	case ConnectionStatusAccepted, ConnectionStatusRejected:
		if actorID != r.ReceiverID {
			return apperr.InvalidStateTransition("Only the receiver can respond to this request")
		}
	case ConnectionStatusWithdrawn:
		if actorID != r.SenderID {
			return apperr.InvalidStateTransition("Only the sender can withdraw this request")
		}
	default:
		return apperr.InvalidStateTransition(fmt.Sprintf("Cannot move a request to %s", target))
	}
	return nil
}

// OtherParty returns the account on the other side of the request from accountID.
func (r *ConnectionRequest) OtherParty(accountID uint) uint {
	if r.SenderID == accountID {
		return r.ReceiverID
	}
	return r.SenderID
}

// ConnectionRequestDto is the wire shape, carrying both party summaries so the
// client can resolve the other party per card.
type ConnectionRequestDto struct {
	ID          string           `json:"id"`
	Sender      UserDto          `json:"sender"`
	Receiver    UserDto          `json:"receiver"`
	Status      ConnectionStatus `json:"status"`
	Message     string           `json:"message,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	RespondedAt *time.Time       `json:"respondedAt,omitempty"`
}

func (r *ConnectionRequest) ToDto() ConnectionRequestDto {
	return ConnectionRequestDto{
		ID:          r.ID,
		Sender:      r.Sender.ToDto(),
		Receiver:    r.Receiver.ToDto(),
		Status:      r.Status,
		Message:     r.Message,
		CreatedAt:   r.CreatedAt,
		RespondedAt: r.RespondedAt,
	}
}

// Tab is a filter view over the requests of one account.
type Tab string

const (
	TabIncoming Tab = "incoming"
	TabOutgoing Tab = "outgoing"
	TabAccepted Tab = "accepted"
)

func (t Tab) Valid() bool {
	return t == TabIncoming || t == TabOutgoing || t == TabAccepted
}

// Pagination accompanies every list page.
type Pagination struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasMore  bool `json:"hasMore"`
}
