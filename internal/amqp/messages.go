package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"rewards/internal/core"
)

// RoutingKeyReportGenerated is also used as the AMQP message type.
const RoutingKeyReportGenerated = "report.generated"

// ReportGeneratedMessage carries a full published report so consumers need no
// access to the source that produced it.
type ReportGeneratedMessage struct {
	Generation  uint64             `json:"generation"`
	Start       time.Time          `json:"start"`
	End         time.Time          `json:"end"`
	GeneratedAt time.Time          `json:"generated_at"`
	Report      core.AnalyticsData `json:"report"`
	Timestamp   time.Time          `json:"timestamp"`
}

func NewReportGeneratedMessage(s core.Snapshot) *ReportGeneratedMessage {
	return &ReportGeneratedMessage{
		Generation:  s.Generation,
		Start:       s.Range.Start,
		End:         s.Range.End,
		GeneratedAt: s.GeneratedAt,
		Report:      s.Data,
		Timestamp:   time.Now(),
	}
}

// Snapshot rebuilds the snapshot the message was created from.
func (m *ReportGeneratedMessage) Snapshot() core.Snapshot {
	return core.Snapshot{
		Generation:  m.Generation,
		Range:       core.DateRange{Start: m.Start, End: m.End},
		GeneratedAt: m.GeneratedAt,
		Data:        m.Report,
	}
}

func (m *ReportGeneratedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportGeneratedMessageFromJSON(data []byte) (*ReportGeneratedMessage, error) {
	var msg ReportGeneratedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Generation == 0 {
		return nil, errors.New("report message without generation")
	}
	return &msg, nil
}
