package friends

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ichat-server/internal/core"
	"github.com/vovakirdan/ichat-server/internal/store"
)

// Common errors for friend operations.
var (
	ErrCannotFriendSelf     = errors.New("cannot send friend request to yourself")
	ErrAlreadyFriends       = errors.New("already friends")
	ErrRequestAlreadyExists = errors.New("friend request already exists")
	ErrRequestNotFound      = errors.New("friend request not found")
	ErrRequestHandled       = errors.New("friend request already handled")
	ErrUserNotFound         = errors.New("user not found")
)

const searchLimit = 20

// Notifier pushes realtime events to online users.
type Notifier interface {
	Notify(userID int64, ev *core.Event) bool
	IsOnline(userID int64) bool
}

// PendingRequest is an incoming request with the sender resolved.
type PendingRequest struct {
	Request *store.FriendRequest
	From    *store.User
}

// Service provides friend management business logic.
type Service struct {
	store    store.Store
	notifier Notifier
	log      zerolog.Logger
}

// New creates a new friend service. notifier may be nil.
func New(st store.Store, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		log:      logger,
	}
}

// SendRequest sends a friend request and notifies the target if online.
func (s *Service) SendRequest(ctx context.Context, fromUserID, toUserID int64) (*store.FriendRequest, error) {
	if fromUserID == toUserID {
		return nil, ErrCannotFriendSelf
	}

	if _, err := s.store.GetUserByID(ctx, toUserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get target user: %w", err)
	}

	already, err := s.store.IsFriend(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, fmt.Errorf("check friendship: %w", err)
	}
	if already {
		return nil, ErrAlreadyFriends
	}

	if _, err := s.store.GetPendingRequest(ctx, fromUserID, toUserID); err == nil {
		return nil, ErrRequestAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check pending request: %w", err)
	}

	req, err := s.store.CreateFriendRequest(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, fmt.Errorf("create friend request: %w", err)
	}

	sender, err := s.store.GetUserByID(ctx, fromUserID)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", fromUserID).Msg("request created but sender lookup failed")
		return req, nil
	}

	s.notify(toUserID, &core.Event{
		Kind: core.EventNewFriendRequest,
		FriendRequest: &core.FriendRequestNotice{
			ID:        req.ID,
			From:      s.profile(sender),
			Status:    string(req.Status),
			CreatedAt: req.CreatedAt,
		},
	})
	return req, nil
}

// ListPendingRequests returns incoming pending requests with their senders.
func (s *Service) ListPendingRequests(ctx context.Context, userID int64) ([]PendingRequest, error) {
	reqs, err := s.store.ListPendingRequests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}

	out := make([]PendingRequest, 0, len(reqs))
	for _, r := range reqs {
		from, err := s.store.GetUserByID(ctx, r.FromUserID)
		if err != nil {
			return nil, fmt.Errorf("get requester %d: %w", r.FromUserID, err)
		}
		out = append(out, PendingRequest{Request: r, From: from})
	}
	return out, nil
}

// Respond accepts or rejects a pending request addressed to userID.
// On accept the requester is notified if online. Sessions already running keep
// their friend sets until they reconnect.
func (s *Service) Respond(ctx context.Context, userID, requestID int64, accept bool) error {
	req, err := s.store.GetFriendRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("get friend request: %w", err)
	}
	if req.ToUserID != userID {
		return ErrRequestNotFound
	}
	if req.Status != store.FriendRequestPending {
		return ErrRequestHandled
	}

	if !accept {
		if err := s.store.UpdateFriendRequestStatus(ctx, requestID, store.FriendRequestRejected); err != nil {
			return s.mapRequestUpdate(err, "reject request")
		}
		return nil
	}

	if err := s.store.AcceptFriendRequest(ctx, requestID); err != nil {
		return s.mapRequestUpdate(err, "accept request")
	}

	accepter, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("request accepted but accepter lookup failed")
		return nil
	}
	profile := s.profile(accepter)
	s.notify(req.FromUserID, &core.Event{
		Kind:    core.EventFriendRequestAccepted,
		Profile: &profile,
	})
	return nil
}

func (s *Service) mapRequestUpdate(err error, op string) error {
	if errors.Is(err, store.ErrNotFound) {
		// Raced with another response.
		return ErrRequestHandled
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ListFriends returns the user's friends with live presence applied to Status.
func (s *Service) ListFriends(ctx context.Context, userID int64) ([]*store.User, error) {
	friends, err := s.store.ListFriends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	for _, f := range friends {
		f.Status = s.status(f.ID)
	}
	return friends, nil
}

// Search finds users by username or email, excluding the caller.
func (s *Service) Search(ctx context.Context, userID int64, query string) ([]*store.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*store.User{}, nil
	}

	users, err := s.store.SearchUsers(ctx, query, searchLimit+1)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	out := make([]*store.User, 0, len(users))
	for _, u := range users {
		if u.ID == userID {
			continue
		}
		u.Status = s.status(u.ID)
		out = append(out, u)
		if len(out) == searchLimit {
			break
		}
	}
	return out, nil
}

func (s *Service) notify(userID int64, ev *core.Event) {
	if s.notifier == nil {
		return
	}
	if !s.notifier.Notify(userID, ev) {
		s.log.Debug().Int64("user_id", userID).Str("event", ev.Kind.String()).Msg("notification not delivered")
	}
}

func (s *Service) status(userID int64) store.UserStatus {
	if s.notifier != nil && s.notifier.IsOnline(userID) {
		return store.UserStatusOnline
	}
	return store.UserStatusOffline
}

func (s *Service) profile(u *store.User) core.Profile {
	return core.Profile{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Avatar:   u.Avatar,
		Status:   string(s.status(u.ID)),
	}
}
