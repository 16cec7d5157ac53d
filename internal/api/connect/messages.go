package connect

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/flashread/internal/app/notification"
	"github.com/osa030/flashread/internal/app/session"
)

// Reply is the outcome of a control call.
type Reply struct {
	Success bool   `mapstructure:"success"`
	Code    string `mapstructure:"code"`
	Message string `mapstructure:"message"`
}

// StatusReply is the reply of GetStatus.
type StatusReply struct {
	SessionID       string `mapstructure:"session_id"`
	Phase           string `mapstructure:"phase"`
	State           string `mapstructure:"state"`
	Cursor          int    `mapstructure:"cursor"`
	Total           int    `mapstructure:"total"`
	WPM             int    `mapstructure:"wpm"`
	DelayMs         int64  `mapstructure:"delay_ms"`
	CurrentWord     string `mapstructure:"current_word"`
	RemainingMs     int64  `mapstructure:"remaining_ms"`
	DocumentName    string `mapstructure:"document_name"`
	MIMEType        string `mapstructure:"mime_type"`
	LoadedAt        string `mapstructure:"loaded_at"` // RFC 3339, empty without a document
	RunsStarted     int    `mapstructure:"runs_started"`
	RunsCompleted   int    `mapstructure:"runs_completed"`
	LastCompletedAt string `mapstructure:"last_completed_at"` // RFC 3339, empty before the first completion
	SubscriberCount int    `mapstructure:"subscriber_count"`
}

// Event is a notification received from Subscribe.
type Event struct {
	SequenceNo uint64 `mapstructure:"sequence_no"`
	Type       string `mapstructure:"type"`
	Word       string `mapstructure:"word"`
	Index      int    `mapstructure:"index"`
	Total      int    `mapstructure:"total"`
	State      string `mapstructure:"state"`
	Message    string `mapstructure:"message"`
	Time       string `mapstructure:"time"`
}

func resultToStruct(r session.Result) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"success": r.Success,
		"code":    r.Code,
		"message": r.Message,
	})
}

func statusToStruct(s session.Status) (*structpb.Struct, error) {
	var loadedAt string
	if !s.LoadedAt.IsZero() {
		loadedAt = s.LoadedAt.Format(time.RFC3339)
	}
	var lastCompletedAt string
	if s.LastCompletedAt != nil {
		lastCompletedAt = s.LastCompletedAt.Format(time.RFC3339)
	}
	return structpb.NewStruct(map[string]any{
		"session_id":        s.SessionID,
		"phase":             s.Phase.String(),
		"state":             s.State.String(),
		"cursor":            s.Cursor,
		"total":             s.Total,
		"wpm":               s.WPM,
		"delay_ms":          s.Delay.Milliseconds(),
		"current_word":      s.CurrentWord,
		"remaining_ms":      s.Remaining.Milliseconds(),
		"document_name":     s.DocumentName,
		"mime_type":         s.MIMEType,
		"loaded_at":         loadedAt,
		"runs_started":      s.RunsStarted,
		"runs_completed":    s.RunsCompleted,
		"last_completed_at": lastCompletedAt,
		"subscriber_count":  s.SubscriberCount,
	})
}

func notificationToStruct(n *notification.Notification) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"sequence_no": n.SequenceNo,
		"type":        string(n.Type),
		"word":        n.Word,
		"index":       n.Index,
		"total":       n.Total,
		"state":       n.State,
		"message":     n.Message,
		"time":        n.Time.Format(time.RFC3339Nano),
	})
}

// decodeStruct decodes a Struct message into one of the reply types.
// Unknown fields are ignored so older clients keep working.
func decodeStruct(s *structpb.Struct, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(s.AsMap()); err != nil {
		return errors.Wrap(err, "failed to decode message")
	}
	return nil
}
