// Package codec translates channel records to and from domain values.
//
// Records are JSON documents on text transports and msgpack documents on
// binary ones. Both encodings share one schema: player events carry their
// event type in "type"; application messages use type "message" with a
// namespace and an action-tagged "data" object.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/bft-labs/subcast/internal/domain"
	"github.com/bft-labs/subcast/internal/ports"
)

// TypeMessage is the record type of application messages.
const TypeMessage = "message"

type wireRecord struct {
	Type             string       `json:"type" msgpack:"type"`
	Namespace        string       `json:"namespace,omitempty" msgpack:"namespace,omitempty"`
	SenderID         string       `json:"senderId,omitempty" msgpack:"senderId,omitempty"`
	IsBuffering      bool         `json:"isBuffering,omitempty" msgpack:"isBuffering,omitempty"`
	CurrentMediaTime *float64     `json:"currentMediaTime,omitempty" msgpack:"currentMediaTime,omitempty"`
	Data             *wireMessage `json:"data,omitempty" msgpack:"data,omitempty"`
}

type wireMessage struct {
	Action     string  `json:"action" msgpack:"action"`
	Session    *uint64 `json:"session,omitempty" msgpack:"session,omitempty"`
	Time       float64 `json:"time,omitempty" msgpack:"time,omitempty"`
	Count      float64 `json:"count,omitempty" msgpack:"count,omitempty"`
	X          float64 `json:"x,omitempty" msgpack:"x,omitempty"`
	Y          float64 `json:"y,omitempty" msgpack:"y,omitempty"`
	ResX       float64 `json:"resX,omitempty" msgpack:"resX,omitempty"`
	ResY       float64 `json:"resY,omitempty" msgpack:"resY,omitempty"`
	W          float64 `json:"w,omitempty" msgpack:"w,omitempty"`
	H          float64 `json:"h,omitempty" msgpack:"h,omitempty"`
	Data       string  `json:"data,omitempty" msgpack:"data,omitempty"`
	Chunked    bool    `json:"chunked,omitempty" msgpack:"chunked,omitempty"`
	Last       bool    `json:"last,omitempty" msgpack:"last,omitempty"`
	Done       bool    `json:"done,omitempty" msgpack:"done,omitempty"`
	Show       bool    `json:"show,omitempty" msgpack:"show,omitempty"`
	Percentage float64 `json:"percentage,omitempty" msgpack:"percentage,omitempty"`
}

type wireRequest struct {
	Action   string `json:"action" msgpack:"action"`
	Time     int64  `json:"time" msgpack:"time"`
	Session  uint64 `json:"session" msgpack:"session"`
	Seeking  bool   `json:"seeking" msgpack:"seeking"`
	Duration int64  `json:"duration" msgpack:"duration"`
}

type wireOutbound struct {
	Type      string      `json:"type" msgpack:"type"`
	Namespace string      `json:"namespace,omitempty" msgpack:"namespace,omitempty"`
	Data      wireRequest `json:"data" msgpack:"data"`
}

// Record is one decoded inbound record: either a player event or an
// application command.
type Record struct {
	Namespace string
	Command   domain.Command
	Event     *domain.PlayerEvent
}

// DetectFormat guesses the encoding of an untyped payload.
func DetectFormat(data []byte) ports.Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return ports.FormatJSON
	}
	return ports.FormatMsgpack
}

// Decode parses a record. Messages with an unknown action return a Record
// without a command and an error wrapping domain.ErrUnknownAction.
func Decode(data []byte, format ports.Format) (Record, error) {
	var w wireRecord
	if err := unmarshal(data, format, &w); err != nil {
		return Record{}, fmt.Errorf("decode %s record: %w", format, err)
	}

	if w.Type != TypeMessage {
		if w.Type == "" {
			return Record{}, fmt.Errorf("decode record: missing type")
		}
		return Record{Event: &domain.PlayerEvent{
			Type:             domain.EventType(w.Type),
			SenderID:         w.SenderID,
			IsBuffering:      w.IsBuffering,
			CurrentMediaTime: w.CurrentMediaTime,
		}}, nil
	}

	rec := Record{Namespace: w.Namespace}
	if w.Data == nil {
		return rec, fmt.Errorf("decode message: missing data")
	}
	cmd, err := toCommand(w.Data)
	if err != nil {
		return rec, err
	}
	rec.Command = cmd
	return rec, nil
}

func toCommand(m *wireMessage) (domain.Command, error) {
	switch m.Action {
	case domain.ActionPreload:
		if m.Done {
			var session uint64
			if m.Session != nil {
				session = *m.Session
			}
			return domain.Ack{Session: session, Done: true}, nil
		}
		return domain.CaptionFragment{
			Session: m.Session,
			Time:    round64(m.Time),
			Count:   round(m.Count),
			X:       round(m.X),
			Y:       round(m.Y),
			ResX:    round(m.ResX),
			ResY:    round(m.ResY),
			Data:    m.Data,
			Chunked: m.Chunked,
			Last:    m.Last,
		}, nil
	case domain.ActionClear:
		return domain.ClearCommand{
			Session: m.Session,
			Time:    round64(m.Time),
			Count:   round(m.Count),
			X:       round(m.X),
			Y:       round(m.Y),
			W:       round(m.W),
			H:       round(m.H),
		}, nil
	case domain.ActionVisibility:
		return domain.VisibilityChange{Show: m.Show}, nil
	case domain.ActionBufferStart:
		return domain.BufferStart{}, nil
	case domain.ActionBufferProgress:
		return domain.BufferProgress{Percentage: round(m.Percentage)}, nil
	case domain.ActionPreloadStream:
		return domain.PreloadStream{}, nil
	case domain.ActionPlayerHide:
		return domain.PlayerHide{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAction, m.Action)
	}
}

// EncodeRequest serializes an outbound data request.
func EncodeRequest(namespace string, req domain.DataRequest, format ports.Format) ([]byte, error) {
	out := wireOutbound{
		Type:      TypeMessage,
		Namespace: namespace,
		Data: wireRequest{
			Action:   domain.ActionRequest,
			Time:     req.TimeMs,
			Session:  req.Session,
			Seeking:  req.Seeking,
			Duration: req.DurationMs,
		},
	}
	switch format {
	case ports.FormatMsgpack:
		return msgpack.Marshal(&out)
	default:
		return json.Marshal(&out)
	}
}

func unmarshal(data []byte, format ports.Format, v any) error {
	switch format {
	case ports.FormatMsgpack:
		return msgpack.Unmarshal(data, v)
	case ports.FormatJSON:
		return json.Unmarshal(data, v)
	default:
		return fmt.Errorf("unsupported format %d", format)
	}
}

func round(f float64) int {
	return int(math.Round(f))
}

func round64(f float64) int64 {
	return int64(math.Round(f))
}
