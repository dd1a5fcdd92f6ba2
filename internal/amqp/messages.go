package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"

	"github.com/google/uuid"
)

// ReportRunMessage asks a worker to run the monthly batch for a period.
type ReportRunMessage struct {
	ID          string    `json:"id"`
	Month       int       `json:"month"`
	Year        int       `json:"year"`
	RequestedAt time.Time `json:"requested_at"`
	// RequestID is the HTTP request that queued the run, if any.
	RequestID string `json:"request_id,omitempty"`
}

// NewReportRunMessage creates a run request with a fresh id.
func NewReportRunMessage(period core.Period) *ReportRunMessage {
	return &ReportRunMessage{
		ID:          uuid.NewString(),
		Month:       period.Month,
		Year:        period.Year,
		RequestedAt: time.Now().UTC(),
	}
}

// Period returns the requested period.
func (m *ReportRunMessage) Period() core.Period {
	return core.Period{Month: m.Month, Year: m.Year}
}

func (m *ReportRunMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportRunMessageFromJSON decodes and validates a run request.
func ReportRunMessageFromJSON(data []byte) (*ReportRunMessage, error) {
	var msg ReportRunMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("report run message without id")
	}
	if err := msg.Period().Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
