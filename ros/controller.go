package ros

import (
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// Callback consumes one decoded value with its record timestamp. A non-nil
// error ends the replay.
type Callback func(t time.Time, value interface{}) error

// BagController binds channels to callbacks and drives a reader's replay,
// fanning each decoded frame out to its channel's callback. Replay is
// all-or-nothing: the first callback failure ends the session.
type BagController struct {
	reader    *BagReader
	callbacks map[string]Callback
	logger    golog.Logger
}

// NewBagController returns a controller over the given reader.
func NewBagController(reader *BagReader, logger golog.Logger) *BagController {
	if logger == nil {
		logger = golog.Global()
	}
	return &BagController{
		reader:    reader,
		callbacks: map[string]Callback{},
		logger:    logger,
	}
}

// Subscribe registers the callback for a channel, replacing any previous one.
func (c *BagController) Subscribe(channel string, callback Callback) {
	c.callbacks[channel] = callback
}

// EstablishTransforms resolves the requested static relations on the
// underlying reader.
func (c *BagController) EstablishTransforms(relations []Relation) error {
	return c.reader.EstablishTransforms(relations)
}

// CheckTransformRelations verifies channel-to-frame associations on the
// underlying reader.
func (c *BagController) CheckTransformRelations(expected map[string]string) error {
	return c.reader.CheckTransformRelations(expected)
}

// Run replays the log to completion, invoking the subscribed callback for
// every decoded frame. It fails up front when nothing is subscribed, and
// fails fatally on the first callback error.
func (c *BagController) Run() error {
	if len(c.callbacks) == 0 {
		return errors.New("no callbacks registered yet, subscribe to channels first")
	}
	frames, err := c.reader.Frames()
	if err != nil {
		return err
	}
	for {
		frame, ok := frames.Next()
		if !ok {
			return nil
		}
		callback, ok := c.callbacks[frame.Channel]
		if !ok {
			continue
		}
		if err := callback(frame.Time, frame.Value); err != nil {
			c.logger.Errorw("callback failed; ending replay",
				"channel", frame.Channel, "time", frame.Time, "error", err)
			return errors.Wrapf(err, "callback on channel %q failed", frame.Channel)
		}
	}
}
