package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification belongs exclusively to AccountID. Only IsRead ever changes
// after insert; the back-references are for navigation and own nothing.
type Notification struct {
	ID                  string                 `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AccountID           uint                   `json:"accountId" gorm:"not null;index:idx_notification_owner"`
	Type                NotificationType       `json:"type" gorm:"type:varchar(32);not null"`
	Title               string                 `json:"title"`
	Message             string                 `json:"message" gorm:"type:text"`
	IsRead              bool                   `json:"isRead" gorm:"not null;default:false;index:idx_notification_owner"`
	ReadAt              *time.Time             `json:"readAt,omitempty"`
	ConnectionRequestID *string                `json:"connectionRequestId,omitempty" gorm:"type:varchar(36)"`
	MessageID           *string                `json:"messageId,omitempty" gorm:"type:varchar(36)"`
	ConversationID      *string                `json:"conversationId,omitempty" gorm:"type:varchar(36)"`
	Metadata            map[string]interface{} `json:"metadata,omitempty" gorm:"serializer:json"`
	CreatedAt           time.Time              `json:"createdAt" gorm:"index"`
}

type NotificationType string

const (
	NotificationTypeConnectionRequest  NotificationType = "CONNECTION_REQUEST"
	NotificationTypeConnectionAccepted NotificationType = "CONNECTION_ACCEPTED"
	NotificationTypeConnectionRejected NotificationType = "CONNECTION_REJECTED"
	NotificationTypeNewMessage         NotificationType = "NEW_MESSAGE"
	NotificationTypeMessageReply       NotificationType = "MESSAGE_REPLY"
	NotificationTypeProfileView        NotificationType = "PROFILE_VIEW"
	NotificationTypeSystem             NotificationType = "SYSTEM"
)

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
