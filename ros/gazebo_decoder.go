package ros

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// DefaultModelStatesChannel is where gazebo publishes simulated model states.
const DefaultModelStatesChannel = "/gazebo/model_states"

// GazeboDecoder extracts the pose of one named model out of gazebo
// model-state messages. The model's index within the state arrays is looked
// up on the first message and assumed stable for the rest of the log.
type GazeboDecoder struct {
	sampler
	modelName string
	index     int
	found     bool
}

// NewGazeboDecoder returns a model-state pose decoder for the given channel
// and model name.
func NewGazeboDecoder(channel, modelName string, samplePeriod int) (*GazeboDecoder, error) {
	s, err := newSampler(channel, samplePeriod)
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		return nil, errors.Errorf("gazebo decoder on %q needs a model name", channel)
	}
	return &GazeboDecoder{sampler: s, modelName: modelName}, nil
}

// Decode converts one model-states message into the named model's
// *spatialmath.RigidTransform.
func (d *GazeboDecoder) Decode(data []byte) (interface{}, error) {
	var msg ModelStatesMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrapf(err, "cannot parse model states on %q", d.channel)
	}
	if !d.found {
		for j, name := range msg.Data.Name {
			if name == d.modelName {
				d.index = j
				d.found = true
				break
			}
		}
		if !d.found {
			return nil, errors.Errorf("model %q not present in states on %q", d.modelName, d.channel)
		}
	}
	if d.index >= len(msg.Data.Pose) {
		return nil, errors.Errorf("model states on %q carry no pose at index %d", d.channel, d.index)
	}
	return poseFieldToTransform(msg.Data.Pose[d.index]), nil
}
