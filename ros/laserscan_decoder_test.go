package ros

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func scanPayload(t *testing.T, angleMin, angleIncrement float64, ranges []float64) []byte {
	t.Helper()
	var msg LaserScanMessage
	msg.Data.AngleMin = angleMin
	msg.Data.AngleMax = angleMin + float64(len(ranges)-1)*angleIncrement
	msg.Data.AngleIncrement = angleIncrement
	msg.Data.Ranges = ranges
	data, err := json.Marshal(msg)
	test.That(t, err, test.ShouldBeNil)
	return data
}

func TestLaserScanDecode(t *testing.T) {
	dec, err := NewLaserScanDecoder(DefaultLaserScanChannel, 1)
	test.That(t, err, test.ShouldBeNil)

	// samples at 0, 90 and 180 degrees
	value, err := dec.Decode(scanPayload(t, 0, math.Pi/2, []float64{1, 2, 3}))
	test.That(t, err, test.ShouldBeNil)
	points, ok := value.([]r3.Vector)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, points, test.ShouldHaveLength, 3)

	test.That(t, points[0].X, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, points[0].Y, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, points[1].X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, points[1].Y, test.ShouldAlmostEqual, 2, 1e-12)
	test.That(t, points[2].X, test.ShouldAlmostEqual, -3, 1e-12)
	test.That(t, points[2].Y, test.ShouldAlmostEqual, 0, 1e-12)
	for _, p := range points {
		test.That(t, p.Z, test.ShouldEqual, 0)
	}
}

func TestLaserScanCacheIsTransparent(t *testing.T) {
	payloadA := scanPayload(t, -1.5, 0.01, make([]float64, 300))
	payloadB := scanPayload(t, -1.5, 0.01, []float64{4, 5, 6})

	ranges := make([]float64, 300)
	for i := range ranges {
		ranges[i] = float64(i%17) + 0.5
	}
	payloadC := scanPayload(t, -1.5, 0.01, ranges)

	// cached reuses the table built for payloadA on payloadC; fresh computes
	// it from scratch. Output must be bit-identical.
	cached, err := NewLaserScanDecoder(DefaultLaserScanChannel, 1)
	test.That(t, err, test.ShouldBeNil)
	_, err = cached.Decode(payloadA)
	test.That(t, err, test.ShouldBeNil)
	tableBefore := cached.cosSinMap
	got, err := cached.Decode(payloadC)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cached.cosSinMap == tableBefore, test.ShouldBeTrue)

	fresh, err := NewLaserScanDecoder(DefaultLaserScanChannel, 1)
	test.That(t, err, test.ShouldBeNil)
	want, err := fresh.Decode(payloadC)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, want)

	// a different sample count rebuilds the table
	_, err = cached.Decode(payloadB)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cached.cosSinMap == tableBefore, test.ShouldBeFalse)
	test.That(t, cached.cosSinMap.RawMatrix().Cols, test.ShouldEqual, 3)
}
