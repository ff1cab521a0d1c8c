package ros

import (
	"encoding/json"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DefaultLaserScanChannel is where turtlebot-style logs record laser scans.
const DefaultLaserScanChannel = "/scan"

// LaserScanDecoder converts 1-D range readings plus angular parameters into
// Cartesian points in the scanner plane, with a zero Z column so the output
// slots directly into 3-D consumers.
//
// The cos/sin table over the sample angles is cached between scans and only
// rebuilt when the sample count or angular bounds change. Projection math
// follows ros-perception/laser_geometry.
type LaserScanDecoder struct {
	sampler

	angleMin  float64
	angleMax  float64
	cosSinMap *mat.Dense // 2xN, row 0 cos, row 1 sin
}

// NewLaserScanDecoder returns a laser scan decoder for the given channel.
func NewLaserScanDecoder(channel string, samplePeriod int) (*LaserScanDecoder, error) {
	s, err := newSampler(channel, samplePeriod)
	if err != nil {
		return nil, err
	}
	return &LaserScanDecoder{sampler: s}, nil
}

// Decode converts one laser scan message into []r3.Vector.
func (d *LaserScanDecoder) Decode(data []byte) (interface{}, error) {
	var msg LaserScanMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrapf(err, "cannot parse laser scan on %q", d.channel)
	}

	n := len(msg.Data.Ranges)
	if n == 0 {
		return []r3.Vector{}, nil
	}
	if d.cosSinMap == nil || d.cosSinMap.RawMatrix().Cols != n ||
		d.angleMin != msg.Data.AngleMin || d.angleMax != msg.Data.AngleMax {
		d.angleMin = msg.Data.AngleMin
		d.angleMax = msg.Data.AngleMax
		d.cosSinMap = mat.NewDense(2, n, nil)
		for i := 0; i < n; i++ {
			angle := msg.Data.AngleMin + float64(i)*msg.Data.AngleIncrement
			d.cosSinMap.Set(0, i, math.Cos(angle))
			d.cosSinMap.Set(1, i, math.Sin(angle))
		}
	}

	ranges := mat.NewDense(2, n, nil)
	for i := 0; i < n; i++ {
		ranges.Set(0, i, msg.Data.Ranges[i])
		ranges.Set(1, i, msg.Data.Ranges[i])
	}
	var xy mat.Dense
	xy.MulElem(ranges, d.cosSinMap)

	points := make([]r3.Vector, n)
	for i := 0; i < n; i++ {
		points[i] = r3.Vector{X: xy.At(0, i), Y: xy.At(1, i)}
	}
	return points, nil
}
