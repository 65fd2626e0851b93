package outbox

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/gymassistant/internal/events"
)

func TestEncodeWireFormat(t *testing.T) {
	payload := []byte(`{"entry_id":"e1"}`)
	frame := encodeWireFormat(7, payload)

	require.Len(t, frame, 5+len(payload))
	require.Equal(t, byte(0), frame[0])
	require.Equal(t, uint32(7), binary.BigEndian.Uint32(frame[1:5]))
	require.Equal(t, payload, frame[5:])
}

func TestBuildRecordCarriesRoutingHeaders(t *testing.T) {
	now := time.Date(2025, time.March, 3, 18, 0, 0, 0, time.UTC)
	msg := Message{
		EventID:       1,
		TenantID:      "gym-a",
		AggregateType: "entry",
		AggregateID:   "e1",
		EventType:     events.TypeEntryRecorded,
		Topic:         events.TopicEntryEvents,
		SchemaSubject: "gym_entry_recorded-value",
		PartitionKey:  "gym-a:member-a",
		Payload:       []byte(`{"entry_id":"e1"}`),
	}

	record := buildRecord(msg, 12, now)
	require.Equal(t, []byte("gym-a:member-a"), record.Key)
	require.Equal(t, now, record.Time)
	require.Equal(t, uint32(12), binary.BigEndian.Uint32(record.Value[1:5]))

	headers := map[string]string{}
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, map[string]string{
		"event_type":     events.TypeEntryRecorded,
		"tenant_id":      "gym-a",
		"schema_subject": "gym_entry_recorded-value",
		"aggregate_type": "entry",
		"aggregate_id":   "e1",
	}, headers)
}

func TestBackoffDelay(t *testing.T) {
	m := NewDLQManager(nil, 5, time.Minute, nil)

	require.Equal(t, time.Minute, m.backoffDelay(0))
	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 2*time.Minute, m.backoffDelay(2))
	require.Equal(t, 16*time.Minute, m.backoffDelay(5))
	require.Equal(t, time.Hour, m.backoffDelay(7))
	require.Equal(t, time.Hour, m.backoffDelay(64))
}
