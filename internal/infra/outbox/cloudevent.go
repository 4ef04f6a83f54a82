package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	appoutbox "hiddystays/internal/app/outbox"
)

const (
	specVersion        = "1.0"
	typeSuffix         = ".v1"
	contentTypeHeader  = "content-type"
	cloudEventsContent = "application/cloudevents+json"
)

var ErrMalformedEvent = errors.New("outbox: malformed cloud event")

// CloudEvent is the structured-mode envelope published for every outbox
// record. The id is the outbox record id so consumers can dedupe retries.
type CloudEvent struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`
	TraceParent     string          `json:"traceparent,omitempty"`
}

func Encode(rec appoutbox.EventRecord, source string) ([]byte, map[string]string, error) {
	if !json.Valid(rec.Payload) {
		return nil, nil, fmt.Errorf("%w: payload of %s is not json", ErrMalformedEvent, rec.ID)
	}
	evt := CloudEvent{
		SpecVersion:     specVersion,
		ID:              rec.ID,
		Type:            rec.Name + typeSuffix,
		Source:          source,
		Subject:         rec.Aggregate,
		Time:            rec.OccurredAt.UTC(),
		DataContentType: "application/json",
		Data:            rec.Payload,
		TraceParent:     rec.Headers["traceparent"],
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{contentTypeHeader: cloudEventsContent}
	for k, v := range rec.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// Decode turns a published envelope back into the record it was built from.
func Decode(payload []byte) (appoutbox.EventRecord, error) {
	var evt CloudEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return appoutbox.EventRecord{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.ID == "" || evt.Type == "" || evt.SpecVersion != specVersion {
		return appoutbox.EventRecord{}, ErrMalformedEvent
	}
	rec := appoutbox.EventRecord{
		ID:         evt.ID,
		Name:       strings.TrimSuffix(evt.Type, typeSuffix),
		Payload:    evt.Data,
		OccurredAt: evt.Time,
		Aggregate:  evt.Subject,
		Headers:    map[string]string{},
	}
	if evt.TraceParent != "" {
		rec.Headers["traceparent"] = evt.TraceParent
	}
	return rec, nil
}

// TopicFor maps "booking.confirmed" to "<prefix>booking.events.v1".
func TopicFor(prefix, name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return prefix + base + ".events.v1"
}
