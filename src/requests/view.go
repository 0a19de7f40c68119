// Package requests drives the connection-requests screen: the active tab, its
// accumulated pages and the per-card actions.
package requests

import (
	"context"
	"sync"

	"github.com/theleywin/Collab-Nest/src/apperr"
	"github.com/theleywin/Collab-Nest/src/client"
	"github.com/theleywin/Collab-Nest/src/models"
)

const DefaultPageSize = 10

// Service is the subset of the API client the view needs.
type Service interface {
	ListRequests(ctx context.Context, tab models.Tab, page, pageSize int) (*client.RequestPage, error)
	Accept(ctx context.Context, requestID string) (*models.ConnectionRequestDto, error)
	Reject(ctx context.Context, requestID string) (*models.ConnectionRequestDto, error)
	Withdraw(ctx context.Context, requestID string) (*models.ConnectionRequestDto, error)
}

// Toaster shows a transient error message.
type Toaster interface {
	Error(message string)
}

// BadgeRefresher reloads the unread notification count after a transition.
type BadgeRefresher interface {
	RefreshUnreadCount(ctx context.Context) error
}

type nopToaster struct{}

func (nopToaster) Error(string) {}

type Option func(*View)

func WithToaster(t Toaster) Option {
	return func(v *View) { v.toast = t }
}

func WithBadge(b BadgeRefresher) Option {
	return func(v *View) { v.badge = b }
}

func WithPageSize(n int) Option {
	return func(v *View) {
		if n > 0 {
			v.pageSize = n
		}
	}
}

// View owns the list for one account. Each fetch carries a token and only the
// response to the latest fetch is applied.
type View struct {
	svc       Service
	toast     Toaster
	badge     BadgeRefresher
	accountID uint
	pageSize  int

	mu       sync.Mutex
	tab      models.Tab
	requests []models.ConnectionRequestDto
	page     int
	hasMore  bool
	loading  bool
	token    uint64
}

func New(svc Service, accountID uint, opts ...Option) *View {
	v := &View{
		svc:       svc,
		toast:     nopToaster{},
		accountID: accountID,
		pageSize:  DefaultPageSize,
		tab:       models.TabIncoming,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// State is a copy of what the screen renders.
type State struct {
	Tab      models.Tab
	Requests []models.ConnectionRequestDto
	Page     int
	HasMore  bool
	Loading  bool
}

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	list := make([]models.ConnectionRequestDto, len(v.requests))
	copy(list, v.requests)
	return State{Tab: v.tab, Requests: list, Page: v.page, HasMore: v.hasMore, Loading: v.loading}
}

// SwitchTab clears the list and loads page 1 of tab.
func (v *View) SwitchTab(ctx context.Context, tab models.Tab) error {
	if !tab.Valid() {
		err := apperr.Validation("Unknown tab " + string(tab))
		v.toast.Error(err.Message)
		return err
	}

	v.mu.Lock()
	v.tab = tab
	v.requests = nil
	v.page = 0
	v.hasMore = false
	token := v.begin()
	v.mu.Unlock()

	return v.fetch(ctx, token, tab, 1)
}

// Reload refetches page 1 of the active tab and replaces the list once it arrives.
func (v *View) Reload(ctx context.Context) error {
	v.mu.Lock()
	tab := v.tab
	token := v.begin()
	v.mu.Unlock()

	return v.fetch(ctx, token, tab, 1)
}

// LoadMore appends the next page. It does nothing while a fetch is in flight or
// when the last page said there is no more.
func (v *View) LoadMore(ctx context.Context) error {
	v.mu.Lock()
	if v.loading || !v.hasMore {
		v.mu.Unlock()
		return nil
	}
	tab, next := v.tab, v.page+1
	token := v.begin()
	v.mu.Unlock()

	return v.fetch(ctx, token, tab, next)
}

func (v *View) Accept(ctx context.Context, requestID string) error {
	return v.mutate(ctx, requestID, v.svc.Accept)
}

func (v *View) Reject(ctx context.Context, requestID string) error {
	return v.mutate(ctx, requestID, v.svc.Reject)
}

func (v *View) Withdraw(ctx context.Context, requestID string) error {
	return v.mutate(ctx, requestID, v.svc.Withdraw)
}

// mutate runs a transition and then refetches page 1 instead of editing the
// list in place, so ordering and offsets stay those of the server.
func (v *View) mutate(ctx context.Context, requestID string, call func(context.Context, string) (*models.ConnectionRequestDto, error)) error {
	if _, err := call(ctx, requestID); err != nil {
		v.toast.Error(apperr.MessageOf(err))
		return err
	}

	err := v.Reload(ctx)
	if v.badge != nil {
		_ = v.badge.RefreshUnreadCount(ctx)
	}
	return err
}

// begin must be called with mu held.
func (v *View) begin() uint64 {
	v.token++
	v.loading = true
	return v.token
}

func (v *View) fetch(ctx context.Context, token uint64, tab models.Tab, page int) error {
	res, err := v.svc.ListRequests(ctx, tab, page, v.pageSize)

	v.mu.Lock()
	if token != v.token {
		v.mu.Unlock()
		return nil
	}
	v.loading = false
	if err != nil {
		v.mu.Unlock()
		v.toast.Error(apperr.MessageOf(err))
		return err
	}

	if page == 1 {
		v.requests = append([]models.ConnectionRequestDto(nil), res.Requests...)
	} else {
		v.requests = append(v.requests, res.Requests...)
	}
	v.page = page
	v.hasMore = res.Pagination.HasMore
	v.mu.Unlock()
	return nil
}
