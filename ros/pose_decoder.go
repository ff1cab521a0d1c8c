package ros

import (
	"encoding/json"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/microcompunics/pybot/spatialmath"
)

// OdometryDecoder extracts the pose out of odometry messages.
type OdometryDecoder struct {
	sampler
}

// NewOdometryDecoder returns an odometry pose decoder for the given channel.
func NewOdometryDecoder(channel string, samplePeriod int) (*OdometryDecoder, error) {
	s, err := newSampler(channel, samplePeriod)
	if err != nil {
		return nil, err
	}
	return &OdometryDecoder{sampler: s}, nil
}

// Decode converts one odometry message into a *spatialmath.RigidTransform.
func (d *OdometryDecoder) Decode(data []byte) (interface{}, error) {
	var msg OdometryMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrapf(err, "cannot parse odometry on %q", d.channel)
	}
	return poseFieldToTransform(msg.Data.Pose.Pose), nil
}

func poseFieldToTransform(p PoseField) *spatialmath.RigidTransform {
	return spatialmath.NewRigidTransformFromXYZW(
		vector3ToR3(p.Position),
		[4]float64{p.Orientation.X, p.Orientation.Y, p.Orientation.Z, p.Orientation.W},
	)
}

func vector3ToR3(v Vector3) r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}
