package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SheetChangedMessage announces a mutation of one sheet. It carries no
// record data; consumers re-read the sheet from the primary store.
type SheetChangedMessage struct {
	ID        uuid.UUID `json:"id"`
	Sheet     string    `json:"sheet"`
	Operation string    `json:"operation"`
	RowOffset int       `json:"row_offset,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSheetChangedMessage(sheet, operation string, rowOffset int) *SheetChangedMessage {
	return &SheetChangedMessage{
		ID:        uuid.New(),
		Sheet:     sheet,
		Operation: operation,
		RowOffset: rowOffset,
		Timestamp: time.Now().UTC(),
	}
}

func (m *SheetChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SheetChangedMessageFromJSON decodes and checks a message body.
func SheetChangedMessageFromJSON(data []byte) (*SheetChangedMessage, error) {
	var msg SheetChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Sheet == "" {
		return nil, errors.New("message has no sheet")
	}
	return &msg, nil
}
