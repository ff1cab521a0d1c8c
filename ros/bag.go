package ros

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"time"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// BagLog adapts a parsed rosbag into the Log contract. Records are parsed to
// JSON once at construction and held sorted by timestamp; the per-session
// iterators stay lazy on top of that.
type BagLog struct {
	msgs []TimestampedMessage
}

// ReadBagLog reads a rosbag file into a BagLog.
func ReadBagLog(filename string) (*BagLog, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	defer utils.UncheckedErrorFunc(f.Close)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}

	rb := rosbag.NewRosBag()
	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to read ros bag")
	}

	return NewBagLog(rb)
}

// NewBagLog builds a BagLog from an already-read rosbag.
func NewBagLog(rb *rosbag.RosBag) (*BagLog, error) {
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(string) bool { return true },
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	var msgs []TimestampedMessage
	for topic, buf := range rb.TopicsAsJSON {
		for {
			line, err := buf.ReadBytes('\n')
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, err
			}
			line = line[:len(line)-1]
			var record struct {
				Meta MessageMeta
			}
			if err := json.Unmarshal(line, &record); err != nil {
				return nil, errors.Wrapf(err, "invalid record on topic %s", topic)
			}
			msgs = append(msgs, TimestampedMessage{
				Channel: topic,
				Data:    line,
				Time:    stampTime(record.Meta.Secs, record.Meta.Nsecs),
			})
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Time.Before(msgs[j].Time)
	})

	return &BagLog{msgs: msgs}, nil
}

// TimeBounds returns the timestamps of the first and last records in the bag.
func (b *BagLog) TimeBounds() (time.Time, time.Time, error) {
	if len(b.msgs) == 0 {
		return time.Time{}, time.Time{}, errors.New("bag has no records")
	}
	return b.msgs[0].Time, b.msgs[len(b.msgs)-1].Time, nil
}

// ReadMessages returns the bag's records on the given channels in timestamp
// order, strictly after start unless start is the zero time.
func (b *BagLog) ReadMessages(channels []string, start time.Time) (MessageIterator, error) {
	wanted := make(map[string]bool, len(channels))
	for _, ch := range channels {
		wanted[ch] = true
	}
	var msgs []TimestampedMessage
	for _, msg := range b.msgs {
		if !wanted[msg.Channel] {
			continue
		}
		if !start.IsZero() && !msg.Time.After(start) {
			continue
		}
		msgs = append(msgs, msg)
	}
	return &sliceIterator{msgs: msgs}, nil
}
