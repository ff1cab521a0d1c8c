package ros

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/microcompunics/pybot/spatialmath"
)

// DefaultTFChannel is where logs record coordinate-frame transforms.
const DefaultTFChannel = "/tf"

// ErrTransformNotAvailable reports that a frame-pair transform cannot be
// served at the requested time yet. During a replay that is expected,
// transient state, not a failure: the caller retries after more of the
// transform stream has been ingested.
var ErrTransformNotAvailable = errors.New("transform not available at requested time")

// A TransformLookup serves frame-pair transforms at a point in time, fed by a
// replayed transform stream. Lookups that cannot be served yet fail with
// ErrTransformNotAvailable.
type TransformLookup interface {
	Lookup(fromFrame, toFrame string, at time.Time) (*spatialmath.RigidTransform, error)
}

// A TransformBroadcaster ingests one raw transform message into whatever
// holds the transform state for lookups.
type TransformBroadcaster interface {
	Broadcast(data []byte) error
}

// BroadcasterFunc lazily opens a TransformBroadcaster. The tf decoder calls
// it once, on the first message it decodes.
type BroadcasterFunc func() (TransformBroadcaster, error)

// TFDecoder rebroadcasts raw transform messages unchanged. It produces no
// value; it exists to keep a transform service's state current while a log
// replays.
type TFDecoder struct {
	sampler
	open        BroadcasterFunc
	broadcaster TransformBroadcaster
}

// NewTFDecoder returns a transform passthrough decoder for the given channel.
func NewTFDecoder(channel string, open BroadcasterFunc) (*TFDecoder, error) {
	s, err := newSampler(channel, 1)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, errors.Errorf("tf decoder on %q needs a broadcaster", channel)
	}
	return &TFDecoder{sampler: s, open: open}, nil
}

// Decode rebroadcasts one raw transform message and returns no value.
func (d *TFDecoder) Decode(data []byte) (interface{}, error) {
	if d.broadcaster == nil {
		b, err := d.open()
		if err != nil {
			return nil, errors.Wrapf(err, "cannot open transform broadcaster for %q", d.channel)
		}
		d.broadcaster = b
	}
	if err := d.broadcaster.Broadcast(data); err != nil {
		return nil, errors.Wrapf(err, "cannot rebroadcast transform on %q", d.channel)
	}
	return nil, nil
}

type framePair struct {
	parent string
	child  string
}

type stampedTransform struct {
	stamp time.Time
	pose  *spatialmath.RigidTransform
}

// TransformBuffer is an in-memory transform service: it ingests broadcast
// transform messages and serves direct or inverse single-hop lookups at or
// after each pair's latest stamp. It does not chain transforms across
// intermediate frames.
type TransformBuffer struct {
	mu    sync.Mutex
	pairs map[framePair]stampedTransform
}

// NewTransformBuffer returns an empty transform buffer.
func NewTransformBuffer() *TransformBuffer {
	return &TransformBuffer{pairs: map[framePair]stampedTransform{}}
}

// Broadcast parses one raw transform message and records every transform in it.
func (b *TransformBuffer) Broadcast(data []byte) error {
	var msg TFMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return errors.Wrap(err, "cannot parse transform message")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ts := range msg.Data.Transforms {
		pair := framePair{parent: ts.Header.FrameID, child: ts.ChildFrameID}
		b.pairs[pair] = stampedTransform{
			stamp: stampTime(ts.Header.Stamp.Secs, ts.Header.Stamp.Nsecs),
			pose: spatialmath.NewRigidTransformFromXYZW(
				vector3ToR3(ts.Transform.Translation),
				[4]float64{ts.Transform.Rotation.X, ts.Transform.Rotation.Y, ts.Transform.Rotation.Z, ts.Transform.Rotation.W},
			),
		}
	}
	return nil
}

// Lookup serves the transform between two frames at the given time, or
// ErrTransformNotAvailable if the pair is unknown or only known later than at.
func (b *TransformBuffer) Lookup(fromFrame, toFrame string, at time.Time) (*spatialmath.RigidTransform, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.pairs[framePair{parent: fromFrame, child: toFrame}]; ok && !st.stamp.After(at) {
		return st.pose, nil
	}
	if st, ok := b.pairs[framePair{parent: toFrame, child: fromFrame}]; ok && !st.stamp.After(at) {
		return st.pose.Invert(), nil
	}
	return nil, errors.Wrapf(ErrTransformNotAvailable, "%s => %s", fromFrame, toFrame)
}

func stampTime(secs, nsecs int) time.Time {
	return time.Unix(int64(secs), int64(nsecs)).UTC()
}
