package modules

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"marketledger/core/types"
	"marketledger/indexer"
)

// EventStore is the read side of the event indexer.
type EventStore interface {
	List(ctx context.Context, f indexer.Filter) ([]indexer.EventRecord, error)
}

// EventsModule serves committed ledger events from the indexer.
type EventsModule struct {
	store   EventStore
	timeout time.Duration
}

// NewEventsModule constructs the event query module.
func NewEventsModule(store EventStore) *EventsModule {
	return &EventsModule{store: store, timeout: 5 * time.Second}
}

type listEventsParams struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
	AfterID uint64 `json:"afterId"`
	Limit   int    `json:"limit"`
}

// EventResult is one indexed event.
type EventResult struct {
	ID         uint64            `json:"id"`
	EventID    string            `json:"eventId"`
	Type       string            `json:"type"`
	Subject    string            `json:"subject,omitempty"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  int64             `json:"createdAt"`
}

// ListEventsResult is a page of events plus the cursor for the next page.
type ListEventsResult struct {
	Events []EventResult `json:"events"`
	NextID uint64        `json:"nextId,omitempty"`
}

// ListEvents pages through indexed events. Params are optional.
func (m *EventsModule) ListEvents(_ types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if m == nil || m.store == nil {
		return nil, &ModuleError{HTTPStatus: http.StatusServiceUnavailable, Code: codeServerError, Message: "event indexer not configured"}
	}
	var params listEventsParams
	if len(raw) > 0 && string(raw) != "null" {
		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}
	}
	if params.Limit < 0 {
		return nil, invalidParams("limit must not be negative", params.Limit)
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	records, err := m.store.List(ctx, indexer.Filter{
		Type:    params.Type,
		Subject: params.Subject,
		AfterID: params.AfterID,
		Limit:   params.Limit,
	})
	if err != nil {
		return nil, &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "failed to list events", Data: err.Error()}
	}
	out := ListEventsResult{Events: make([]EventResult, 0, len(records))}
	for _, rec := range records {
		evt, err := rec.Event()
		if err != nil {
			return nil, &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "corrupt event record", Data: err.Error()}
		}
		out.Events = append(out.Events, EventResult{
			ID:         rec.ID,
			EventID:    rec.EventID.String(),
			Type:       evt.Type,
			Subject:    rec.Subject,
			Attributes: evt.Attributes,
			CreatedAt:  rec.CreatedAt.Unix(),
		})
		out.NextID = rec.ID
	}
	return out, nil
}
