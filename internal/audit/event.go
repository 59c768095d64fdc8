package audit

import "time"

// TopicChanged is the topic change events are published to.
const TopicChanged = "associates.changed"

// Operation names the mutation that produced a change event.
type Operation string

const (
	OperationAdd    Operation = "add"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// ChangeEvent represents a successful mutation of the associates document.
type ChangeEvent struct {
	ID         string    `json:"id"`
	Operation  Operation `json:"operation"`
	Name       string    `json:"name"`
	Value      string    `json:"value,omitempty"`
	LikeCount  int64     `json:"likeCount"`
	ClientIP   string    `json:"clientIp"`
	UserAgent  string    `json:"userAgent"`
	RequestID  string    `json:"requestId"`
	OccurredAt time.Time `json:"occurredAt"`
}
