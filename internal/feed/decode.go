package feed

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/vilaca/activity-dashboard/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// timestampLayouts are tried in order. Naive layouts are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC1123,
	time.RFC1123Z,
}

// wireEvent is the feed's record shape.
type wireEvent struct {
	RequestID  recordID `json:"request_id"`
	Action     string   `json:"action"`
	Author     string   `json:"author"`
	Timestamp  string   `json:"timestamp"`
	FromBranch string   `json:"from_branch"`
	ToBranch   string   `json:"to_branch"`
}

// recordID accepts both string and numeric request ids.
type recordID string

func (r *recordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = recordID(s)
		return nil
	}
	if len(data) == 0 || (data[0] != '-' && (data[0] < '0' || data[0] > '9')) {
		return fmt.Errorf("request_id: unsupported value %s", data)
	}
	var n jsoniter.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("request_id: %w", err)
	}
	*r = recordID(n.String())
	return nil
}

// decodeBatch decodes a feed body. The body as a whole must be a JSON array;
// records that fail to decode or validate are skipped and counted.
func decodeBatch(body []byte) ([]domain.Event, int, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, 0, decodeError(fmt.Errorf("expected a JSON array"))
	}

	var raws []jsoniter.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, 0, decodeError(err)
	}

	events := make([]domain.Event, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		event, err := decodeRecord(raw)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, event)
	}
	return events, skipped, nil
}

func decodeRecord(raw []byte) (domain.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.Event{}, fmt.Errorf("decode record: %w", err)
	}

	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return domain.Event{}, err
	}

	event := domain.Event{
		RequestID:  strings.TrimSpace(string(w.RequestID)),
		Action:     domain.ParseAction(w.Action),
		Author:     strings.TrimSpace(w.Author),
		Timestamp:  ts,
		FromBranch: w.FromBranch,
		ToBranch:   w.ToBranch,
	}
	if err := event.Validate(); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
