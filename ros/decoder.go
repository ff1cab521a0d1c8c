// Package ros replays recorded robot logs: it decodes per-channel raw
// messages into structured values, resolves static coordinate-frame
// transforms, and dispatches decoded frames to subscribed callbacks.
package ros

import (
	"github.com/pkg/errors"
)

// A Decoder converts raw serialized messages from one log channel into
// structured values.
type Decoder interface {
	// Channel is the log channel this decoder consumes. Immutable.
	Channel() string

	// ShouldDecode reports whether the next message observed on the channel
	// is eligible for decoding. Every call counts one observed message;
	// eligibility comes up once per sample period. Call it exactly once per
	// message, before Decode.
	ShouldDecode() bool

	// Decode converts one raw message into a value. A nil value with a nil
	// error means the decoder had nothing to produce, which is not an error
	// (side-effect-only decoders rebroadcast and return nothing).
	Decode(data []byte) (interface{}, error)
}

// sampler implements the channel identity and sampling throttle shared by all
// decoders.
type sampler struct {
	channel      string
	samplePeriod int
	counter      int
}

func newSampler(channel string, samplePeriod int) (sampler, error) {
	if channel == "" {
		return sampler{}, errors.New("decoder needs a channel name")
	}
	if samplePeriod == 0 {
		samplePeriod = 1
	}
	if samplePeriod < 1 {
		return sampler{}, errors.Errorf(
			"sample period for channel %q must be a positive integer, got %d", channel, samplePeriod)
	}
	return sampler{channel: channel, samplePeriod: samplePeriod}, nil
}

func (s *sampler) Channel() string {
	return s.channel
}

func (s *sampler) ShouldDecode() bool {
	decode := s.counter%s.samplePeriod == 0
	s.counter++
	return decode
}
