package ros

import (
	"time"
)

// TimestampedMessage is one raw record out of a log: the channel it was
// recorded on, its serialized payload, and the record timestamp.
type TimestampedMessage struct {
	Channel string
	Data    []byte
	Time    time.Time
}

// A MessageIterator lazily yields raw messages in log order. It is not
// restartable; the consumer pulls until Next reports no more messages or
// stops early.
type MessageIterator interface {
	Next() (TimestampedMessage, bool)
}

// A Log is an ordered store of recorded messages.
type Log interface {
	// TimeBounds returns the timestamps of the first and last records.
	TimeBounds() (start, end time.Time, err error)

	// ReadMessages returns the records on the given channels in log order.
	// Records timestamped strictly after start are yielded; the zero time
	// disables the window and reads from the beginning.
	ReadMessages(channels []string, start time.Time) (MessageIterator, error)
}

// sliceIterator yields from an in-memory slice of records.
type sliceIterator struct {
	msgs []TimestampedMessage
	pos  int
}

func (it *sliceIterator) Next() (TimestampedMessage, bool) {
	if it.pos >= len(it.msgs) {
		return TimestampedMessage{}, false
	}
	msg := it.msgs[it.pos]
	it.pos++
	return msg, true
}
