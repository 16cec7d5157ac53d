package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a ReaderService client.
type Client struct {
	loadDocument *connect.Client[wrapperspb.BytesValue, structpb.Struct]
	start        *connect.Client[wrapperspb.StringValue, structpb.Struct]
	pause        *connect.Client[emptypb.Empty, structpb.Struct]
	resume       *connect.Client[emptypb.Empty, structpb.Struct]
	stop         *connect.Client[emptypb.Empty, structpb.Struct]
	setRate      *connect.Client[wrapperspb.StringValue, structpb.Struct]
	getStatus    *connect.Client[emptypb.Empty, structpb.Struct]
	subscribe    *connect.Client[emptypb.Empty, structpb.Struct]
}

// NewClient creates a client for the server at baseURL.
// A non-empty token is sent with every call.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if token != "" {
		opts = append(opts, connect.WithInterceptors(NewTokenClientInterceptor(token)))
	}
	return &Client{
		loadDocument: connect.NewClient[wrapperspb.BytesValue, structpb.Struct](httpClient, baseURL+ReaderServiceLoadDocumentProcedure, opts...),
		start:        connect.NewClient[wrapperspb.StringValue, structpb.Struct](httpClient, baseURL+ReaderServiceStartProcedure, opts...),
		pause:        connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ReaderServicePauseProcedure, opts...),
		resume:       connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ReaderServiceResumeProcedure, opts...),
		stop:         connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ReaderServiceStopProcedure, opts...),
		setRate:      connect.NewClient[wrapperspb.StringValue, structpb.Struct](httpClient, baseURL+ReaderServiceSetRateProcedure, opts...),
		getStatus:    connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ReaderServiceGetStatusProcedure, opts...),
		subscribe:    connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ReaderServiceSubscribeProcedure, opts...),
	}
}

// LoadDocument uploads a document.
func (c *Client) LoadDocument(ctx context.Context, name string, data []byte) (*Reply, error) {
	req := connect.NewRequest(wrapperspb.Bytes(data))
	req.Header().Set(DocumentNameHeader, name)
	resp, err := c.loadDocument.CallUnary(ctx, req)
	if err != nil {
		return nil, err
	}
	return toReply(resp.Msg)
}

// Start starts reading. An empty wpm uses the server default.
func (c *Client) Start(ctx context.Context, wpm string) (*Reply, error) {
	resp, err := c.start.CallUnary(ctx, connect.NewRequest(wrapperspb.String(wpm)))
	if err != nil {
		return nil, err
	}
	return toReply(resp.Msg)
}

// Pause pauses reading.
func (c *Client) Pause(ctx context.Context) (*Reply, error) {
	return c.callEmpty(ctx, c.pause)
}

// Resume resumes reading.
func (c *Client) Resume(ctx context.Context) (*Reply, error) {
	return c.callEmpty(ctx, c.resume)
}

// Stop stops reading.
func (c *Client) Stop(ctx context.Context) (*Reply, error) {
	return c.callEmpty(ctx, c.stop)
}

// SetRate changes the reading rate.
func (c *Client) SetRate(ctx context.Context, wpm string) (*Reply, error) {
	resp, err := c.setRate.CallUnary(ctx, connect.NewRequest(wrapperspb.String(wpm)))
	if err != nil {
		return nil, err
	}
	return toReply(resp.Msg)
}

// GetStatus returns the session status.
func (c *Client) GetStatus(ctx context.Context) (*StatusReply, error) {
	resp, err := c.getStatus.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	var status StatusReply
	if err := decodeStruct(resp.Msg, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Subscribe opens the notification stream.
func (c *Client) Subscribe(ctx context.Context) (*EventStream, error) {
	stream, err := c.subscribe.CallServerStream(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}

func (c *Client) callEmpty(ctx context.Context, client *connect.Client[emptypb.Empty, structpb.Struct]) (*Reply, error) {
	resp, err := client.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return toReply(resp.Msg)
}

func toReply(msg *structpb.Struct) (*Reply, error) {
	var reply Reply
	if err := decodeStruct(msg, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// EventStream is the client side of Subscribe.
type EventStream struct {
	stream *connect.ServerStreamForClient[structpb.Struct]
	event  *Event
	err    error
}

// Receive advances to the next event. It returns false when the stream ends
// or fails; Err reports the failure.
func (s *EventStream) Receive() bool {
	if s.err != nil || !s.stream.Receive() {
		return false
	}

	var event Event
	if err := decodeStruct(s.stream.Msg(), &event); err != nil {
		s.err = errors.Wrap(err, "failed to decode event")
		return false
	}
	s.event = &event
	return true
}

// Event returns the most recently received event.
func (s *EventStream) Event() *Event {
	return s.event
}

// Err returns the error that ended the stream, if any.
func (s *EventStream) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.stream.Err()
}

// Close closes the stream.
func (s *EventStream) Close() error {
	return s.stream.Close()
}
