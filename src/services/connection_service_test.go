package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theleywin/Collab-Nest/src/apperr"
	"github.com/theleywin/Collab-Nest/src/lib"
	"github.com/theleywin/Collab-Nest/src/models"
)

func TestSend_CreatesPendingAndNotifiesReceiver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.connections.Send(ctx, f.alice.ID, f.bob.ID, "Loved your salon work!")
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, models.ConnectionStatusPending, req.Status)
	assert.Equal(t, "Loved your salon work!", req.Message)
	assert.Equal(t, "bob", req.Receiver.Username)

	notes := f.notificationsOf(t, f.bob.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationTypeConnectionRequest, notes[0].Type)
	require.NotNil(t, notes[0].ConnectionRequestID)
	assert.Equal(t, req.ID, *notes[0].ConnectionRequestID)
	assert.Contains(t, notes[0].Message, "Alice")
	assert.Equal(t, int64(1), f.unread(t, f.bob.ID))
	assert.Equal(t, int64(0), f.unread(t, f.alice.ID))
	assert.Equal(t, 1, f.publisher.count())

	require.Len(t, f.recorder.entries, 1)
	assert.Equal(t, models.ConnectionStatusPending, f.recorder.entries[0].To)
}

func TestSend_DuplicateInEitherDirection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.connections.Send(ctx, f.alice.ID, f.bob.ID, "")
	require.NoError(t, err)

	_, err = f.connections.Send(ctx, f.alice.ID, f.bob.ID, "")
	assert.True(t, apperr.Is(err, apperr.CodeDuplicateRequest), "got %v", err)

	_, err = f.connections.Send(ctx, f.bob.ID, f.alice.ID, "")
	assert.True(t, apperr.Is(err, apperr.CodeDuplicateRequest), "got %v", err)

	// unrelated pair is unaffected
	_, err = f.connections.Send(ctx, f.carol.ID, f.bob.ID, "")
	assert.NoError(t, err)

	assert.Len(t, f.notificationsOf(t, f.alice.ID), 0)
	assert.Len(t, f.notificationsOf(t, f.bob.ID), 2)
}

func TestSend_ConcurrentSendsYieldOnePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := f.alice.ID, f.bob.ID
			if i%2 == 1 {
				from, to = to, from
			}
			_, err := f.connections.Send(ctx, from, to, "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.Is(err, apperr.CodeDuplicateRequest):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, dup)

	var pending int64
	require.NoError(t, f.db.Model(&models.ConnectionRequest{}).
		Where("status = ?", models.ConnectionStatusPending).Count(&pending).Error)
	assert.Equal(t, int64(1), pending)
}

func TestSend_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.connections.Send(ctx, f.alice.ID, f.alice.ID, "")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = f.connections.Send(ctx, f.alice.ID, 9999, "")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, err = f.connections.Send(ctx, f.alice.ID, f.bob.ID, strings.Repeat("x", MaxMessageLength+1))
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestSend_AlreadyConnected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.connections.Send(ctx, f.alice.ID, f.bob.ID, "")
	require.NoError(t, err)
	_, err = f.connections.Accept(ctx, f.bob.ID, req.ID)
	require.NoError(t, err)

	_, err = f.connections.Send(ctx, f.bob.ID, f.alice.ID, "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeDuplicateRequest))
	assert.Equal(t, "You are already connected with this user", apperr.MessageOf(err))
}

func TestSend_AllowedAgainAfterRejectOrWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.connections.Send(ctx, f.alice.ID, f.bob.ID, "")
	require.NoError(t, err)
	_, err = f.connections.Reject(ctx, f.bob.ID, first.ID)
	require.NoError(t, err)

	second, err := f.connections.Send(ctx, f.alice.ID, f.bob.ID, "")
	require.NoError(t, err)
	_, err = f.connections.Withdraw(ctx, f.alice.ID, second.ID)
	require.NoError(t, err)

	_, err = f.connections.Send(ctx, f.bob.ID, f.alice.ID, "")
	assert.NoError(t, err)
}

func TestAccept_NotifiesSenderOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.connections.Send(ctx, f.alice.ID, f.bob.ID, "")
	require.NoError(t, err)
	bobUnreadBefore := f.unread(t, f.bob.ID)
	require.Equal(t, int64(1), bobUnreadBefore)

	accepted, err := f.connections.Accept(ctx, f.bob.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusAccepted, accepted.Status)
	assert.NotNil(t, accepted.RespondedAt)

	aliceNotes := f.notificationsOf(t, f.alice.ID)
	require.Len(t, aliceNotes, 1)
	assert.Equal(t, models.NotificationTypeConnectionAccepted, aliceNotes[0].Type)
	assert.Equal(t, req.ID, *aliceNotes[0].ConnectionRequestID)
	assert.Contains(t, aliceNotes[0].Message, "Bob")

	assert.Equal(t, int64(1), f.unread(t, f.alice.ID))
	assert.Equal(t, bobUnreadBefore, f.unread(t, f.bob.ID))
}

func TestReject_NotifiesSender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.connections.Send(ctx, f.alice.ID, f.bob.ID, "")
	require.NoError(t, err)

	rejected, err := f.connections.Reject(ctx, f.bob.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusRejected, rejected.Status)

	aliceNotes := f.notificationsOf(t, f.alice.ID)
	require.Len(t, aliceNotes, 1)
	assert.Equal(t, models.NotificationTypeConnectionRejected, aliceNotes[0].Type)
}

func TestWithdraw_IsSilentAndLeavesIncoming(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.connections.Send(ctx, f.alice.ID, f.bob.ID, "")
	require.NoError(t, err)
	published := f.publisher.count()

	withdrawn, err := f.connections.Withdraw(ctx, f.alice.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusWithdrawn, withdrawn.Status)

	assert.Len(t, f.notificationsOf(t, f.alice.ID), 0)
	assert.Len(t, f.notificationsOf(t, f.bob.ID), 1)
	assert.Equal(t, published, f.publisher.count())

	incoming, page, err := f.connections.List(ctx, f.bob.ID, models.TabIncoming, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, incoming)
	assert.False(t, page.HasMore)
}

func TestTransitions_WrongActorOrStateLeavesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.connections.Send(ctx, f.alice.ID, f.bob.ID, "")
	require.NoError(t, err)

	attempts := []struct {
		name string
		call func() error
	}{
		{"sender accepts", func() error { _, err := f.connections.Accept(ctx, f.alice.ID, req.ID); return err }},
		{"sender rejects", func() error { _, err := f.connections.Reject(ctx, f.alice.ID, req.ID); return err }},
		{"receiver withdraws", func() error { _, err := f.connections.Withdraw(ctx, f.bob.ID, req.ID); return err }},
		{"stranger accepts", func() error { _, err := f.connections.Accept(ctx, f.carol.ID, req.ID); return err }},
	}
	for _, a := range attempts {
		err := a.call()
		assert.True(t, apperr.Is(err, apperr.CodeInvalidStateTransition), "%s: got %v", a.name, err)
	}

	var stored models.ConnectionRequest
	require.NoError(t, f.db.First(&stored, "id = ?", req.ID).Error)
	assert.Equal(t, models.ConnectionStatusPending, stored.Status)

	_, err = f.connections.Accept(ctx, f.bob.ID, req.ID)
	require.NoError(t, err)

	for _, call := range []func() error{
		func() error { _, err := f.connections.Accept(ctx, f.bob.ID, req.ID); return err },
		func() error { _, err := f.connections.Reject(ctx, f.bob.ID, req.ID); return err },
		func() error { _, err := f.connections.Withdraw(ctx, f.alice.ID, req.ID); return err },
	} {
		assert.True(t, apperr.Is(call(), apperr.CodeInvalidStateTransition))
	}

	require.NoError(t, f.db.First(&stored, "id = ?", req.ID).Error)
	assert.Equal(t, models.ConnectionStatusAccepted, stored.Status)
}

func TestTransition_UnknownRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.connections.Accept(context.Background(), f.bob.ID, "does-not-exist")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestAccept_ConcurrentDoubleAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.connections.Send(ctx, f.alice.ID, f.bob.ID, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.connections.Accept(ctx, f.bob.ID, req.ID)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, apperr.Is(err, apperr.CodeInvalidStateTransition), "got %v", err)
	}
	assert.Equal(t, 1, ok)
	assert.Len(t, f.notificationsOf(t, f.alice.ID), 1)
}

func TestList_TabsAndPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var senders []models.User
	for _, name := range []string{"dora", "eve", "finn", "gus", "hana"} {
		u := lib.SeedUser(t, f.db, name)
		senders = append(senders, u)
		_, err := f.connections.Send(ctx, u.ID, f.alice.ID, "")
		require.NoError(t, err)
	}

	page1, p1, err := f.connections.List(ctx, f.alice.ID, models.TabIncoming, 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.True(t, p1.HasMore)
	// newest first
	assert.Equal(t, "hana", page1[0].Sender.Username)
	assert.Equal(t, "gus", page1[1].Sender.Username)

	page3, p3, err := f.connections.List(ctx, f.alice.ID, models.TabIncoming, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.False(t, p3.HasMore)
	assert.Equal(t, "dora", page3[0].Sender.Username)

	page4, p4, err := f.connections.List(ctx, f.alice.ID, models.TabIncoming, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, page4)
	assert.False(t, p4.HasMore)

	outgoing, _, err := f.connections.List(ctx, senders[0].ID, models.TabOutgoing, 1, 10)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, f.alice.ID, outgoing[0].ReceiverID)

	none, _, err := f.connections.List(ctx, f.alice.ID, models.TabOutgoing, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestList_AcceptedTabMixesDirections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.connections.Send(ctx, f.alice.ID, f.bob.ID, "")
	require.NoError(t, err)
	_, err = f.connections.Accept(ctx, f.bob.ID, out.ID)
	require.NoError(t, err)

	in, err := f.connections.Send(ctx, f.carol.ID, f.alice.ID, "")
	require.NoError(t, err)
	_, err = f.connections.Accept(ctx, f.alice.ID, in.ID)
	require.NoError(t, err)

	accepted, _, err := f.connections.List(ctx, f.alice.ID, models.TabAccepted, 1, 10)
	require.NoError(t, err)
	require.Len(t, accepted, 2)

	others := map[uint]bool{}
	for _, r := range accepted {
		others[r.OtherParty(f.alice.ID)] = true
	}
	assert.True(t, others[f.bob.ID])
	assert.True(t, others[f.carol.ID])

	conns, err := f.connections.Connections(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Len(t, conns, 2)
}

func TestList_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.connections.List(ctx, f.alice.ID, models.Tab("archived"), 1, 10)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, _, err = f.connections.List(ctx, f.alice.ID, models.TabIncoming, 0, 10)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, _, err = f.connections.List(ctx, f.alice.ID, models.TabIncoming, 1, 51)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.connections.Status(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, StateNotConnected, st.Status)

	req, err := f.connections.Send(ctx, f.alice.ID, f.bob.ID, "")
	require.NoError(t, err)

	st, err = f.connections.Status(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, StatePending, st.Status)

	st, err = f.connections.Status(ctx, f.bob.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, StateReceived, st.Status)
	assert.Equal(t, req.ID, st.RequestID)

	_, err = f.connections.Accept(ctx, f.bob.ID, req.ID)
	require.NoError(t, err)

	st, err = f.connections.Status(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, StateConnected, st.Status)

	_, err = f.connections.Status(ctx, f.alice.ID, f.alice.ID)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}
