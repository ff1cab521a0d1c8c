package ros

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/microcompunics/pybot/spatialmath"
)

// Relation is an ordered coordinate-frame pair whose static transform a
// session wants resolved.
type Relation struct {
	From string
	To   string
}

func (r Relation) String() string {
	return fmt.Sprintf("%s => %s", r.From, r.To)
}

// ResolutionError reports that the transform stream ran out before every
// requested relation resolved.
type ResolutionError struct {
	Unresolved []Relation
}

func (e *ResolutionError) Error() string {
	names := make([]string, 0, len(e.Unresolved))
	for _, rel := range e.Unresolved {
		names = append(names, rel.String())
	}
	return fmt.Sprintf("log exhausted before transforms resolved: %s", strings.Join(names, ", "))
}

// Frame is one decoded record out of a replay: the record timestamp, the
// channel it came from, and the decoder's structured output.
type Frame struct {
	Time    time.Time
	Channel string
	Value   interface{}
}

// BagReaderConfig configures a BagReader.
type BagReaderConfig struct {
	// StartOffsetPct positions playback as a percentage [0,100] into the
	// log's time span. 0 replays from the beginning.
	StartOffsetPct float64
	// TFChannel is the transform channel; DefaultTFChannel when empty.
	TFChannel string
	// Lookup serves transform queries during resolution. When nil, an
	// in-memory TransformBuffer is used and also installed as Broadcaster.
	Lookup TransformLookup
	// Broadcaster opens the sink transform messages are rebroadcast into.
	Broadcaster BroadcasterFunc
	Logger      golog.Logger
}

// BagReader replays a recorded log through a registry of per-channel
// decoders. It hands out lazy single-pass frame iterators, resolves requested
// static frame relations, and verifies channel-to-frame associations.
//
// A reader and its decoders are single-consumer; do not share them across
// concurrent replays.
type BagReader struct {
	log       Log
	decoders  map[string]Decoder
	startPct  float64
	tfChannel string

	lookup      TransformLookup
	broadcaster BroadcasterFunc
	relations   map[Relation]*spatialmath.RigidTransform

	logger golog.Logger
}

// NewBagReader returns a reader over the given log with one decoder per
// channel.
func NewBagReader(log Log, decoders []Decoder, cfg BagReaderConfig) (*BagReader, error) {
	if log == nil {
		return nil, errors.New("bag reader needs a log")
	}
	if cfg.StartOffsetPct < 0 || cfg.StartOffsetPct > 100 {
		return nil, errors.Errorf(
			"start offset expects a percentage [0,100], provided %v", cfg.StartOffsetPct)
	}
	registry := make(map[string]Decoder, len(decoders))
	for _, dec := range decoders {
		if _, ok := registry[dec.Channel()]; ok {
			return nil, errors.Errorf("duplicate decoder for channel %q", dec.Channel())
		}
		registry[dec.Channel()] = dec
	}

	tfChannel := cfg.TFChannel
	if tfChannel == "" {
		tfChannel = DefaultTFChannel
	}
	lookup := cfg.Lookup
	broadcaster := cfg.Broadcaster
	if lookup == nil {
		buffer := NewTransformBuffer()
		lookup = buffer
		if broadcaster == nil {
			broadcaster = func() (TransformBroadcaster, error) { return buffer, nil }
		}
	}
	if broadcaster == nil {
		return nil, errors.New("bag reader needs a transform broadcaster to go with the lookup")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = golog.Global()
	}

	return &BagReader{
		log:         log,
		decoders:    registry,
		startPct:    cfg.StartOffsetPct,
		tfChannel:   tfChannel,
		lookup:      lookup,
		broadcaster: broadcaster,
		relations:   map[Relation]*spatialmath.RigidTransform{},
		logger:      logger,
	}, nil
}

// Channels returns the registered channels.
func (r *BagReader) Channels() []string {
	channels := make([]string, 0, len(r.decoders))
	for ch := range r.decoders {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	return channels
}

// Frames returns a lazy, single-pass iterator over the decoded frames of the
// configured log window. Messages whose decoder is throttled, produces no
// value, or fails are skipped; decode failures are logged and do not end the
// replay.
func (r *BagReader) Frames() (*FrameIterator, error) {
	start, err := r.windowStart()
	if err != nil {
		return nil, err
	}
	if r.startPct > 0 {
		r.logger.Infof("reading log from %3.2f%% onwards", r.startPct)
	}
	msgs, err := r.log.ReadMessages(r.Channels(), start)
	if err != nil {
		return nil, err
	}
	return &FrameIterator{msgs: msgs, decoders: r.decoders, logger: r.logger}, nil
}

func (r *BagReader) windowStart() (time.Time, error) {
	if r.startPct == 0 {
		return time.Time{}, nil
	}
	start, end, err := r.log.TimeBounds()
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(time.Duration(float64(end.Sub(start)) * r.startPct / 100)), nil
}

// EstablishTransforms replays the transform channel until every requested
// relation has resolved, then stops without reading the rest of the log. Each
// raw transform message is rebroadcast so the lookup's state stays current,
// and every still-unresolved relation is retried at the message's timestamp.
// A lookup that is not yet servable is normal and retried later; running out
// of log first fails with a ResolutionError naming the unresolved relations.
func (r *BagReader) EstablishTransforms(relations []Relation) error {
	tfDec, err := NewTFDecoder(r.tfChannel, r.broadcaster)
	if err != nil {
		return err
	}
	msgs, err := r.log.ReadMessages([]string{r.tfChannel}, time.Time{})
	if err != nil {
		return err
	}

	unresolved := make(map[Relation]bool, len(relations))
	for _, rel := range relations {
		if _, ok := r.relations[rel]; ok {
			continue
		}
		unresolved[rel] = true
	}

	r.logger.Info("establishing transforms from log")
	for len(unresolved) > 0 {
		msg, ok := msgs.Next()
		if !ok {
			break
		}
		if _, err := tfDec.Decode(msg.Data); err != nil {
			return err
		}
		for rel := range unresolved {
			pose, err := r.lookup.Lookup(rel.From, rel.To, msg.Time)
			if err != nil {
				if errors.Is(err, ErrTransformNotAvailable) {
					continue
				}
				return errors.Wrapf(err, "transform lookup %s failed", rel)
			}
			r.relations[rel] = pose
			delete(unresolved, rel)
			r.logger.Infof("\testablished transform %s %s", rel, pose)
		}
	}

	if len(unresolved) > 0 {
		failed := make([]Relation, 0, len(unresolved))
		for rel := range unresolved {
			failed = append(failed, rel)
		}
		sort.Slice(failed, func(i, j int) bool { return failed[i].String() < failed[j].String() })
		return &ResolutionError{Unresolved: failed}
	}
	return nil
}

// Transform returns a previously established relation.
func (r *BagReader) Transform(fromFrame, toFrame string) (*spatialmath.RigidTransform, error) {
	rel := Relation{From: fromFrame, To: toFrame}
	pose, ok := r.relations[rel]
	if !ok {
		return nil, errors.Errorf("relations map does not contain %s transformation", rel)
	}
	return pose, nil
}

// CheckTransformRelations replays the registered non-transform channels and
// verifies each channel's messages carry the frame ID the expected mapping
// names. A differing frame ID fails immediately; an observed channel missing
// from the mapping, or an expected channel the log never delivers, is a
// configuration error. Checking stops as soon as every expected channel has
// been seen once.
func (r *BagReader) CheckTransformRelations(expected map[string]string) error {
	channels := make([]string, 0, len(r.decoders))
	for ch := range r.decoders {
		if ch == r.tfChannel {
			continue
		}
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	msgs, err := r.log.ReadMessages(channels, time.Time{})
	if err != nil {
		return err
	}

	r.logger.Info("checking transform relations in log")
	checked := make(map[string]bool, len(expected))
	for len(checked) < len(expected) {
		msg, ok := msgs.Next()
		if !ok {
			missing := make([]string, 0, len(expected))
			for ch := range expected {
				if !checked[ch] {
					missing = append(missing, ch)
				}
			}
			sort.Strings(missing)
			return errors.Errorf(
				"log ended before channels were checked: %s", strings.Join(missing, ", "))
		}
		frameID, want, err := r.observedFrameID(msg, expected)
		if err != nil {
			return err
		}
		if frameID != want {
			return errors.Errorf(
				"transform check failed: %s mapped to %s instead of %s", msg.Channel, frameID, want)
		}
		checked[msg.Channel] = true
	}
	r.logger.Infof("checked %d relations", len(checked))
	return nil
}

func (r *BagReader) observedFrameID(msg TimestampedMessage, expected map[string]string) (string, string, error) {
	want, ok := expected[msg.Channel]
	if !ok {
		return "", "", errors.Errorf(
			"wrongly defined expected relations: channel %s observed but not listed", msg.Channel)
	}
	var record headerOnlyMessage
	if err := json.Unmarshal(msg.Data, &record); err != nil {
		return "", "", errors.Wrapf(err, "cannot read frame ID on %s", msg.Channel)
	}
	return record.Data.Header.FrameID, want, nil
}

// GroundTruthPoses scans a model-states channel over the whole log and
// returns the pose trajectory of a named model.
func (r *BagReader) GroundTruthPoses(channel, modelName string) ([]*spatialmath.RigidTransform, error) {
	dec, err := NewGazeboDecoder(channel, modelName, 1)
	if err != nil {
		return nil, err
	}
	msgs, err := r.log.ReadMessages([]string{channel}, time.Time{})
	if err != nil {
		return nil, err
	}
	var poses []*spatialmath.RigidTransform
	for {
		msg, ok := msgs.Next()
		if !ok {
			return poses, nil
		}
		if !dec.ShouldDecode() {
			continue
		}
		value, err := dec.Decode(msg.Data)
		if err != nil {
			return nil, err
		}
		poses = append(poses, value.(*spatialmath.RigidTransform))
	}
}

// FrameIterator lazily decodes a windowed, channel-filtered pass over a log.
// It is single-pass and not restartable.
type FrameIterator struct {
	msgs     MessageIterator
	decoders map[string]Decoder
	logger   golog.Logger
}

// Next returns the next decoded frame, or false when the window is exhausted.
func (it *FrameIterator) Next() (Frame, bool) {
	for {
		msg, ok := it.msgs.Next()
		if !ok {
			return Frame{}, false
		}
		dec, ok := it.decoders[msg.Channel]
		if !ok {
			continue
		}
		if !dec.ShouldDecode() {
			continue
		}
		value, err := dec.Decode(msg.Data)
		if err != nil {
			it.logger.Warnw("failed to decode message; skipping",
				"channel", msg.Channel, "error", err)
			continue
		}
		if value == nil {
			continue
		}
		return Frame{Time: msg.Time, Channel: msg.Channel, Value: value}, true
	}
}
