package phoenix

import (
	"encoding/json"
	"time"

	"waselni/internal/realtime"
	"waselni/internal/store"
)

const (
	eventJoin      = "phx_join"
	eventLeave     = "phx_leave"
	eventReply     = "phx_reply"
	eventError     = "phx_error"
	eventClose     = "phx_close"
	eventHeartbeat = "heartbeat"
	eventChanges   = "postgres_changes"

	heartbeatTopic = "phoenix"
)

// message is a Phoenix channel frame.
type message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
	JoinRef *string         `json:"join_ref,omitempty"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

type joinPayload struct {
	Config struct {
		PostgresChanges []changeFilter `json:"postgres_changes"`
	} `json:"config"`
	AccessToken string `json:"access_token,omitempty"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type changePayload struct {
	Data struct {
		Table           string          `json:"table"`
		Type            string          `json:"type"`
		Record          json.RawMessage `json:"record"`
		OldRecord       json.RawMessage `json:"old_record"`
		CommitTimestamp string          `json:"commit_timestamp"`
	} `json:"data"`
}

func strPtr(s string) *string {
	return &s
}

func joinMessage(topic, ref, schema, apiKey string, sub realtime.Subscription) (message, error) {
	var p joinPayload
	p.Config.PostgresChanges = []changeFilter{{
		Event:  "*",
		Schema: schema,
		Table:  string(sub.Collection),
		Filter: sub.Filter,
	}}
	p.AccessToken = apiKey

	raw, err := json.Marshal(p)
	if err != nil {
		return message{}, err
	}
	return message{Topic: topic, Event: eventJoin, Payload: raw, Ref: strPtr(ref), JoinRef: strPtr(ref)}, nil
}

func leaveMessage(topic, ref, joinRef string) message {
	return message{Topic: topic, Event: eventLeave, Payload: json.RawMessage(`{}`), Ref: strPtr(ref), JoinRef: strPtr(joinRef)}
}

func heartbeatMessage(ref string) message {
	return message{Topic: heartbeatTopic, Event: eventHeartbeat, Payload: json.RawMessage(`{}`), Ref: strPtr(ref)}
}

// decodeChange converts a postgres_changes frame into an event.
func decodeChange(raw json.RawMessage) (realtime.Event, error) {
	var p changePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return realtime.Event{}, err
	}

	e := realtime.Event{
		Kind:       realtime.Kind(p.Data.Type),
		Collection: store.Collection(p.Data.Table),
		New:        nullToEmpty(p.Data.Record),
		Old:        nullToEmpty(p.Data.OldRecord),
	}
	if p.Data.CommitTimestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, p.Data.CommitTimestamp); err == nil {
			e.CommitTime = ts
		}
	}
	return e, nil
}

func nullToEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" || string(raw) == "{}" {
		return nil
	}
	return raw
}
