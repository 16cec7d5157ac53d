// Package connect provides Connect RPC service implementations.
package connect

import (
	"context"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/flashread/internal/app/notification"
	"github.com/osa030/flashread/internal/app/session"
)

// ReaderServiceName is the fully-qualified name of the ReaderService.
const ReaderServiceName = "flashread.v1.ReaderService"

// Procedure paths of the ReaderService.
const (
	ReaderServiceLoadDocumentProcedure = "/flashread.v1.ReaderService/LoadDocument"
	ReaderServiceStartProcedure        = "/flashread.v1.ReaderService/Start"
	ReaderServicePauseProcedure        = "/flashread.v1.ReaderService/Pause"
	ReaderServiceResumeProcedure       = "/flashread.v1.ReaderService/Resume"
	ReaderServiceStopProcedure         = "/flashread.v1.ReaderService/Stop"
	ReaderServiceSetRateProcedure      = "/flashread.v1.ReaderService/SetRate"
	ReaderServiceGetStatusProcedure    = "/flashread.v1.ReaderService/GetStatus"
	ReaderServiceSubscribeProcedure    = "/flashread.v1.ReaderService/Subscribe"
)

// DocumentNameHeader carries the document name on LoadDocument.
const DocumentNameHeader = "X-Document-Name"

// ReaderService implements the ReaderService RPC.
type ReaderService struct {
	session *session.Manager
}

// NewReaderService creates a new ReaderService.
func NewReaderService(session *session.Manager) *ReaderService {
	return &ReaderService{
		session: session,
	}
}

// uploadOverhead is the room left above the document size limit for the
// request envelope.
const uploadOverhead = 1024

// NewReaderServiceHandler builds an HTTP handler for the service and returns
// the path prefix to mount it on.
// When the session limits document size, larger LoadDocument requests are
// refused while being read.
func NewReaderServiceHandler(svc *ReaderService, opts ...connect.HandlerOption) (string, http.Handler) {
	loadOpts := opts
	if limit := svc.session.MaxDocumentBytes(); limit > 0 {
		loadOpts = append(append([]connect.HandlerOption(nil), opts...), connect.WithReadMaxBytes(limit+uploadOverhead))
	}

	mux := http.NewServeMux()
	mux.Handle(ReaderServiceLoadDocumentProcedure, connect.NewUnaryHandler(ReaderServiceLoadDocumentProcedure, svc.LoadDocument, loadOpts...))
	mux.Handle(ReaderServiceStartProcedure, connect.NewUnaryHandler(ReaderServiceStartProcedure, svc.Start, opts...))
	mux.Handle(ReaderServicePauseProcedure, connect.NewUnaryHandler(ReaderServicePauseProcedure, svc.Pause, opts...))
	mux.Handle(ReaderServiceResumeProcedure, connect.NewUnaryHandler(ReaderServiceResumeProcedure, svc.Resume, opts...))
	mux.Handle(ReaderServiceStopProcedure, connect.NewUnaryHandler(ReaderServiceStopProcedure, svc.Stop, opts...))
	mux.Handle(ReaderServiceSetRateProcedure, connect.NewUnaryHandler(ReaderServiceSetRateProcedure, svc.SetRate, opts...))
	mux.Handle(ReaderServiceGetStatusProcedure, connect.NewUnaryHandler(ReaderServiceGetStatusProcedure, svc.GetStatus, opts...))
	mux.Handle(ReaderServiceSubscribeProcedure, connect.NewServerStreamHandler(ReaderServiceSubscribeProcedure, svc.Subscribe, opts...))
	return "/" + ReaderServiceName + "/", mux
}

// LoadDocument handles document uploads.
func (s *ReaderService) LoadDocument(
	ctx context.Context,
	req *connect.Request[wrapperspb.BytesValue],
) (*connect.Response[structpb.Struct], error) {
	name := req.Header().Get(DocumentNameHeader)
	result, err := s.session.LoadDocument(ctx, name, req.Msg.GetValue())
	if err != nil {
		return nil, toConnectError(err)
	}
	return replyResponse(result)
}

// Start starts reading. An empty value uses the configured default rate.
func (s *ReaderService) Start(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[structpb.Struct], error) {
	result, err := s.session.Start(req.Msg.GetValue())
	if err != nil {
		return nil, toConnectError(err)
	}
	return replyResponse(result)
}

// Pause pauses reading.
func (s *ReaderService) Pause(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return replyResponse(s.session.Pause())
}

// Resume resumes reading.
func (s *ReaderService) Resume(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return replyResponse(s.session.Resume())
}

// Stop stops reading.
func (s *ReaderService) Stop(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return replyResponse(s.session.Stop())
}

// SetRate changes the reading rate.
func (s *ReaderService) SetRate(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[structpb.Struct], error) {
	result, err := s.session.SetRate(req.Msg.GetValue())
	if err != nil {
		return nil, toConnectError(err)
	}
	return replyResponse(result)
}

// GetStatus returns the current session status.
func (s *ReaderService) GetStatus(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	msg, err := statusToStruct(s.session.GetStatus())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// Subscribe streams notifications until the client goes away or the session ends.
// The first message is the current status.
func (s *ReaderService) Subscribe(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
	stream *connect.ServerStream[structpb.Struct],
) error {
	adapter := &notificationStreamAdapter{stream: stream}
	subscriptionID, err := s.session.Subscribe(adapter)
	if err != nil {
		return toConnectError(err)
	}

	// Wait for context cancellation, eviction or session end
	var evicted bool
	select {
	case <-ctx.Done():
	case <-s.session.Done():
	case <-s.session.SubscriptionDone(subscriptionID):
		evicted = true
	}

	// Unsubscribe when done
	s.session.Unsubscribe(subscriptionID)
	adapter.close()

	if evicted {
		return connect.NewError(connect.CodeResourceExhausted, errors.New("subscriber fell behind"))
	}
	return nil
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	closed bool
	stream *connect.ServerStream[structpb.Struct]
}

var errStreamClosed = errors.New("stream closed")

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	msg, err := notificationToStruct(n)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errStreamClosed
	}
	return a.stream.Send(msg)
}

// close waits for an in-flight send. The stream is not used once the
// handler returns.
func (a *notificationStreamAdapter) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

func replyResponse(result session.Result) (*connect.Response[structpb.Struct], error) {
	msg, err := resultToStruct(result)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func toConnectError(err error) error {
	if errors.Is(err, session.ErrSessionClosed) {
		return connect.NewError(connect.CodeUnavailable, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}
