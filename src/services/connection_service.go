package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theleywin/Collab-Nest/src/apperr"
	"github.com/theleywin/Collab-Nest/src/audit"
	"github.com/theleywin/Collab-Nest/src/logger"
	"github.com/theleywin/Collab-Nest/src/metrics"
	"github.com/theleywin/Collab-Nest/src/models"
)

// MaxMessageLength bounds the optional note attached to a request.
const MaxMessageLength = 500

// ConnectionService runs the connection-request state machine. Every status
// change is a compare-and-swap on PENDING, and the notification it causes is
// written in the same transaction.
type ConnectionService struct {
	db            *gorm.DB
	notifications *NotificationService
	audit         audit.Recorder
	log           logger.Logger
	maxPageSize   int
}

func NewConnectionService(db *gorm.DB, notifications *NotificationService, recorder audit.Recorder, log logger.Logger, maxPageSize int) *ConnectionService {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if maxPageSize <= 0 {
		maxPageSize = 50
	}
	return &ConnectionService{
		db:            db,
		notifications: notifications,
		audit:         recorder,
		log:           log,
		maxPageSize:   maxPageSize,
	}
}

// Send creates a PENDING request from senderID to receiverID and notifies the receiver.
func (s *ConnectionService) Send(ctx context.Context, senderID, receiverID uint, message string) (*models.ConnectionRequest, error) {
	if senderID == receiverID {
		return nil, s.refused("send", apperr.Validation("You can't send a connection request to yourself"))
	}
	if len([]rune(message)) > MaxMessageLength {
		return nil, s.refused("send", apperr.Validation(fmt.Sprintf("Message must be at most %d characters", MaxMessageLength)))
	}

	var request models.ConnectionRequest
	var note *models.Notification

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sender, receiver models.User
		if err := tx.First(&sender, senderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Unauthorized("Account not found")
			}
			return fmt.Errorf("find sender: %w", err)
		}
		if err := tx.First(&receiver, receiverID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("User not found")
			}
			return fmt.Errorf("find receiver: %w", err)
		}

		var existing models.ConnectionRequest
		err := tx.Where("pair_key = ? AND status IN ?", models.PairKey(senderID, receiverID),
			[]models.ConnectionStatus{models.ConnectionStatusPending, models.ConnectionStatusAccepted}).
			First(&existing).Error
		switch {
		case err == nil && existing.Status == models.ConnectionStatusAccepted:
			return apperr.DuplicateRequest("You are already connected with this user")
		case err == nil:
			return apperr.DuplicateRequest("A connection request already exists between you and this user")
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("check existing requests: %w", err)
		}

		request = models.ConnectionRequest{
			SenderID:   senderID,
			ReceiverID: receiverID,
			Status:     models.ConnectionStatusPending,
			Message:    message,
		}
		// the partial unique index on pair_key settles concurrent senders
		if err := tx.Omit(clause.Associations).Create(&request).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.DuplicateRequest("A connection request already exists between you and this user")
			}
			return fmt.Errorf("create connection request: %w", err)
		}
		request.Sender = sender
		request.Receiver = receiver

		note, err = s.notifications.Create(ctx, tx, CreateNotificationInput{
			AccountID:           receiverID,
			Type:                models.NotificationTypeConnectionRequest,
			Title:               "New connection request",
			Message:             fmt.Sprintf("%s wants to connect with you", sender.DisplayName()),
			ConnectionRequestID: &request.ID,
			Metadata: map[string]interface{}{
				"senderId": senderID,
				"message":  message,
			},
		})
		return err
	})
	if err != nil {
		return nil, s.refused("send", err)
	}

	s.committed(ctx, &request, senderID, "", note)
	return &request, nil
}

func (s *ConnectionService) Accept(ctx context.Context, actorID uint, requestID string) (*models.ConnectionRequest, error) {
	return s.transition(ctx, actorID, requestID, models.ConnectionStatusAccepted)
}

func (s *ConnectionService) Reject(ctx context.Context, actorID uint, requestID string) (*models.ConnectionRequest, error) {
	return s.transition(ctx, actorID, requestID, models.ConnectionStatusRejected)
}

// Withdraw lets the sender retract a PENDING request. The receiver is not notified.
func (s *ConnectionService) Withdraw(ctx context.Context, actorID uint, requestID string) (*models.ConnectionRequest, error) {
	return s.transition(ctx, actorID, requestID, models.ConnectionStatusWithdrawn)
}

func (s *ConnectionService) transition(ctx context.Context, actorID uint, requestID string, to models.ConnectionStatus) (*models.ConnectionRequest, error) {
	op := operationFor(to)

	var request models.ConnectionRequest
	var note *models.Notification

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Sender").Preload("Receiver").First(&request, "id = ?", requestID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Connection request not found")
		}
		if err != nil {
			return fmt.Errorf("find connection request: %w", err)
		}

		if err := request.CheckTransition(actorID, to); err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&models.ConnectionRequest{}).
			Where("id = ? AND status = ?", request.ID, models.ConnectionStatusPending).
			Updates(map[string]interface{}{"status": to, "responded_at": now, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("update connection request: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// another transition won the race
			return apperr.InvalidStateTransition("This request has already been processed")
		}
		request.Status = to
		request.RespondedAt = &now
		request.UpdatedAt = now

		switch to {
		case models.ConnectionStatusAccepted:
			note, err = s.notifications.Create(ctx, tx, CreateNotificationInput{
				AccountID:           request.SenderID,
				Type:                models.NotificationTypeConnectionAccepted,
				Title:               "Connection accepted",
				Message:             fmt.Sprintf("%s accepted your connection request", request.Receiver.DisplayName()),
				ConnectionRequestID: &request.ID,
				Metadata:            map[string]interface{}{"receiverId": request.ReceiverID},
			})
		case models.ConnectionStatusRejected:
			note, err = s.notifications.Create(ctx, tx, CreateNotificationInput{
				AccountID:           request.SenderID,
				Type:                models.NotificationTypeConnectionRejected,
				Title:               "Connection request declined",
				Message:             fmt.Sprintf("%s declined your connection request", request.Receiver.DisplayName()),
				ConnectionRequestID: &request.ID,
				Metadata:            map[string]interface{}{"receiverId": request.ReceiverID},
			})
		}
		return err
	})
	if err != nil {
		return nil, s.refused(op, err)
	}

	s.committed(ctx, &request, actorID, models.ConnectionStatusPending, note)
	return &request, nil
}

// List returns one 1-indexed page of accountID's requests for tab. A page past
// the end is empty with HasMore false.
func (s *ConnectionService) List(ctx context.Context, accountID uint, tab models.Tab, page, pageSize int) ([]models.ConnectionRequest, models.Pagination, error) {
	if !tab.Valid() {
		return nil, models.Pagination{}, apperr.Validation(fmt.Sprintf("Unknown tab %q", tab))
	}
	if page < 1 {
		return nil, models.Pagination{}, apperr.Validation("page must be 1 or greater")
	}
	if pageSize < 1 || pageSize > s.maxPageSize {
		return nil, models.Pagination{}, apperr.Validation(fmt.Sprintf("pageSize must be between 1 and %d", s.maxPageSize))
	}

	q := s.db.WithContext(ctx).Preload("Sender").Preload("Receiver")
	switch tab {
	case models.TabIncoming:
		q = q.Where("receiver_id = ? AND status = ?", accountID, models.ConnectionStatusPending)
	case models.TabOutgoing:
		q = q.Where("sender_id = ? AND status = ?", accountID, models.ConnectionStatusPending)
	case models.TabAccepted:
		q = q.Where("(sender_id = ? OR receiver_id = ?) AND status = ?", accountID, accountID, models.ConnectionStatusAccepted)
	}

	requests := make([]models.ConnectionRequest, 0, pageSize+1)
	err := q.Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize + 1).
		Find(&requests).Error
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("list connection requests: %w", err)
	}

	hasMore := len(requests) > pageSize
	if hasMore {
		requests = requests[:pageSize]
	}
	return requests, models.Pagination{Page: page, PageSize: pageSize, HasMore: hasMore}, nil
}

type ConnectionState string

const (
	StateConnected    ConnectionState = "connected"
	StatePending      ConnectionState = "pending"
	StateReceived     ConnectionState = "received"
	StateNotConnected ConnectionState = "not_connected"
)

// StatusResult describes the relation between the caller and another account.
// RequestID is set while a request is PENDING.
type StatusResult struct {
	Status    ConnectionState `json:"status"`
	RequestID string          `json:"requestId,omitempty"`
}

func (s *ConnectionService) Status(ctx context.Context, accountID, otherID uint) (*StatusResult, error) {
	if accountID == otherID {
		return nil, apperr.Validation("Cannot check connection status with yourself")
	}

	var request models.ConnectionRequest
	err := s.db.WithContext(ctx).
		Where("pair_key = ? AND status IN ?", models.PairKey(accountID, otherID),
			[]models.ConnectionStatus{models.ConnectionStatusPending, models.ConnectionStatusAccepted}).
		Order("created_at DESC").
		First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &StatusResult{Status: StateNotConnected}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find connection status: %w", err)
	}

	switch {
	case request.Status == models.ConnectionStatusAccepted:
		return &StatusResult{Status: StateConnected}, nil
	case request.SenderID == accountID:
		return &StatusResult{Status: StatePending, RequestID: request.ID}, nil
	default:
		return &StatusResult{Status: StateReceived, RequestID: request.ID}, nil
	}
}

// Connections lists the accounts accountID is connected with.
func (s *ConnectionService) Connections(ctx context.Context, accountID uint) ([]models.UserDto, error) {
	var requests []models.ConnectionRequest
	err := s.db.WithContext(ctx).
		Preload("Sender").Preload("Receiver").
		Where("(sender_id = ? OR receiver_id = ?) AND status = ?", accountID, accountID, models.ConnectionStatusAccepted).
		Order("responded_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	users := make([]models.UserDto, 0, len(requests))
	for _, r := range requests {
		if r.SenderID == accountID {
			users = append(users, r.Receiver.ToDto())
		} else {
			users = append(users, r.Sender.ToDto())
		}
	}
	return users, nil
}

func (s *ConnectionService) committed(ctx context.Context, r *models.ConnectionRequest, actorID uint, from models.ConnectionStatus, note *models.Notification) {
	metrics.ConnectionTransitions.WithLabelValues(string(r.Status)).Inc()
	s.log.Info("Connection request transitioned", map[string]interface{}{
		"requestId": r.ID,
		"actorId":   actorID,
		"from":      string(from),
		"to":        string(r.Status),
	})

	if note != nil {
		s.notifications.Delivered(ctx, *note)
	}
	if err := s.audit.Record(ctx, audit.EntryFor(r, actorID, from, r.Status)); err != nil {
		s.log.WithError(err).Warn("Failed to record connection audit entry", map[string]interface{}{"requestId": r.ID})
	}
}

func (s *ConnectionService) refused(op string, err error) error {
	metrics.ConnectionTransitionsRejected.WithLabelValues(op, string(apperr.CodeOf(err))).Inc()
	return err
}

func operationFor(to models.ConnectionStatus) string {
	switch to {
	case models.ConnectionStatusAccepted:
		return "accept"
	case models.ConnectionStatusRejected:
		return "reject"
	case models.ConnectionStatusWithdrawn:
		return "withdraw"
	}
	return "transition"
}
