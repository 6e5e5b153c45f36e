// Package api exposes the sync components to clients over gRPC. Messages are
// plain Go structs carried by a JSON codec.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/tgsift/internal/bus"
	"github.com/matheus3301/tgsift/internal/model"
	"github.com/matheus3301/tgsift/internal/remote"
	"github.com/matheus3301/tgsift/internal/status"
	intsync "github.com/matheus3301/tgsift/internal/sync"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// watchBuffer is the per-stream event backlog; events beyond it are dropped.
const watchBuffer = 64

// Service implements Server on top of one sync session.
type Service struct {
	profile     string
	cacheDriver string
	startedAt   time.Time
	machine     *status.Machine
	session     *intsync.Session
	governor    *remote.Governor
	logger      *zap.Logger

	dialogs  *intsync.Dialogs
	messages *intsync.Messages
	search   *intsync.Search
	topics   *intsync.Topics

	mu      sync.Mutex
	account string
}

var _ Server = (*Service)(nil)

// NewService creates the service. gov may be nil when the remote source is
// not rate limited.
func NewService(profile, cacheDriver string, machine *status.Machine, s *intsync.Session, gov *remote.Governor) *Service {
	return &Service{
		profile:     profile,
		cacheDriver: cacheDriver,
		startedAt:   time.Now(),
		machine:     machine,
		session:     s,
		governor:    gov,
		logger:      s.Logger.Named("api"),
		dialogs:     intsync.NewDialogs(s),
		messages:    intsync.NewMessages(s),
		search:      intsync.NewSearch(s),
		topics:      intsync.NewTopics(s),
	}
}

// Account returns the id of the account the remote source is logged in as.
// The first successful lookup is remembered.
func (s *Service) Account(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account != "" {
		return s.account, nil
	}
	acc, err := s.session.Remote.CurrentAccount(ctx)
	if err != nil {
		return "", remote.Unavailable(err)
	}
	s.account = acc
	return acc, nil
}

func (s *Service) Status(ctx context.Context, _ *StatusRequest) (*StatusResponse, error) {
	resp := &StatusResponse{
		Profile:     s.profile,
		State:       string(s.machine.Current()),
		Reason:      s.machine.Reason(),
		UptimeMs:    time.Since(s.startedAt).Milliseconds(),
		CacheDriver: s.cacheDriver,
	}
	if s.governor != nil {
		if until := s.governor.BlockedUntil(); until.After(time.Now()) {
			resp.BlockedUntilMs = until.UnixMilli()
		}
	}

	acc, err := s.Account(ctx)
	if err != nil {
		s.logger.Debug("status without account", zap.Error(err))
		return resp, nil
	}
	resp.Account = acc
	if s.session.Cache != nil {
		stats, err := s.session.Cache.Stats(ctx, acc)
		if err != nil {
			s.logger.Warn("cache stats failed", zap.Error(err))
			return resp, nil
		}
		resp.Dialogs = stats.Dialogs
		resp.Messages = stats.Messages
		resp.Topics = stats.Topics
	}
	return resp, nil
}

func (s *Service) ListDialogs(ctx context.Context, req *ListDialogsRequest) (*ListDialogsResponse, error) {
	spec, err := req.Filter.Spec()
	if err != nil {
		return nil, grpcstatus.Error(codes.InvalidArgument, err.Error())
	}
	acc, err := s.Account(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	dialogs, err := s.dialogs.List(ctx, acc, spec)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &ListDialogsResponse{Dialogs: make([]Dialog, len(dialogs))}
	for i, d := range dialogs {
		resp.Dialogs[i] = dialogToWire(d)
	}
	return resp, nil
}

func (s *Service) ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	if req.DialogID == 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "dialog_id is required")
	}
	spec, err := req.Filter.Spec()
	if err != nil {
		return nil, grpcstatus.Error(codes.InvalidArgument, err.Error())
	}
	acc, err := s.Account(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	page, err := s.messages.List(ctx, acc, req.DialogID, spec)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListMessagesResponse{
		Messages:      messagesToWire(page.Messages),
		FromCache:     page.FromCache,
		TopicIsolated: page.TopicIsolated,
		Notes:         page.Notes,
	}, nil
}

func (s *Service) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	if len(req.DialogIDs) == 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "at least one dialog id is required")
	}
	spec, err := req.Filter.Spec()
	if err != nil {
		return nil, grpcstatus.Error(codes.InvalidArgument, err.Error())
	}
	acc, err := s.Account(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	results, err := s.search.Run(ctx, acc, req.DialogIDs, spec)
	if ctx.Err() != nil {
		return nil, toStatus(ctx.Err())
	}

	resp := &SearchResponse{Results: []DialogResult{}}
	seen := make(map[int64]bool, len(req.DialogIDs))
	for _, id := range req.DialogIDs {
		msgs, ok := results[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		resp.Results = append(resp.Results, DialogResult{DialogID: id, Messages: messagesToWire(msgs)})
	}
	for _, e := range splitJoined(err) {
		resp.Errors = append(resp.Errors, e.Error())
	}
	return resp, nil
}

func (s *Service) SupportsTopics(ctx context.Context, req *SupportsTopicsRequest) (*SupportsTopicsResponse, error) {
	if req.DialogID == 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "dialog_id is required")
	}
	ok, err := s.topics.Supports(ctx, req.DialogID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SupportsTopicsResponse{Supported: ok}, nil
}

func (s *Service) ListTopics(ctx context.Context, req *ListTopicsRequest) (*ListTopicsResponse, error) {
	if req.DialogID == 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "dialog_id is required")
	}
	acc, err := s.Account(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	list, err := s.topics.List(ctx, acc, req.DialogID)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &ListTopicsResponse{Topics: make([]Topic, len(list))}
	for i, t := range list {
		resp.Topics[i] = Topic{ID: t.ID, Title: t.Title, UnreadCount: t.UnreadCount}
	}
	return resp, nil
}

func (s *Service) WatchEvents(req *WatchEventsRequest, stream grpc.ServerStreamingServer[EventEnvelope]) error {
	if s.session.Bus == nil {
		return grpcstatus.Error(codes.Unavailable, "event bus not running")
	}
	events, unsubscribe := s.session.Bus.Subscribe(req.Prefix, watchBuffer)
	defer unsubscribe()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-events:
			env, err := s.envelope(evt)
			if err != nil {
				s.logger.Warn("drop unencodable event", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.Send(env); err != nil {
				return err
			}
		}
	}
}

func (s *Service) envelope(evt bus.Event) (*EventEnvelope, error) {
	env := &EventEnvelope{
		ID:           uuid.NewString(),
		Profile:      s.profile,
		Kind:         evt.Kind,
		OccurredAtMs: evt.Timestamp.UnixMilli(),
	}
	if evt.Payload != nil {
		payload, err := json.Marshal(evt.Payload)
		if err != nil {
			return nil, err
		}
		env.Payload = payload
	}
	return env, nil
}

// toStatus maps the domain error taxonomy onto gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if d, ok := model.RetryAfter(err); ok {
		return grpcstatus.Errorf(codes.ResourceExhausted, "retry after %s: %v", d, err)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return grpcstatus.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, remote.ErrNotFound):
		return grpcstatus.Error(codes.NotFound, err.Error())
	case errors.Is(err, model.ErrRemoteUnavailable), errors.Is(err, model.ErrCacheUnavailable):
		return grpcstatus.Error(codes.Unavailable, err.Error())
	default:
		return grpcstatus.Error(codes.Internal, err.Error())
	}
}

func splitJoined(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
