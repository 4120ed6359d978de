package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GenerateID generates a short prefixed unique ID, used for events and sessions
func GenerateID(prefix string) string {
	id := uuid.New().String()

	return fmt.Sprintf("%s-%s", prefix, id[:8])
}

// GetCurrentTime returns the current time in UTC with millisecond precision,
// the resolution the document store's consumers use for ISO-8601 dates.
func GetCurrentTime() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// OrderIDGenerator hands out timestamp-derived order ids. Two ids issued in the
// same millisecond are bumped forward so they stay unique within the process.
type OrderIDGenerator struct {
	mu   sync.Mutex
	last int64
}

// Next returns the id for an order placed at t
func (g *OrderIDGenerator) Next(t time.Time) DocumentID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := t.UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms

	return DocumentID(strconv.FormatInt(ms, 10))
}

// DocumentID is an identifier the document store may hold as a JSON string or number
type DocumentID string

// UnmarshalJSON accepts both "123" and 123
func (id *DocumentID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = DocumentID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("document id must be a string or number: %w", err)
	}
	*id = DocumentID(n.String())
	return nil
}

// String returns the id as text
func (id DocumentID) String() string {
	return string(id)
}
