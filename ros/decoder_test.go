package ros

import (
	"fmt"
	"testing"

	"go.viam.com/test"
)

func TestSamplerValidation(t *testing.T) {
	_, err := newSampler("", 1)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = newSampler("/scan", -2)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "positive")

	s, err := newSampler("/scan", 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.samplePeriod, test.ShouldEqual, 1)
}

func TestSamplerThrottle(t *testing.T) {
	for _, period := range []int{1, 2, 3, 5, 7} {
		t.Run(fmt.Sprintf("period %d", period), func(t *testing.T) {
			s, err := newSampler("/chan", period)
			test.That(t, err, test.ShouldBeNil)

			const total = 21
			var decoded int
			for i := 0; i < total; i++ {
				eligible := s.ShouldDecode()
				// counter advances on every observed message
				test.That(t, s.counter, test.ShouldEqual, i+1)
				test.That(t, eligible, test.ShouldEqual, i%period == 0)
				if eligible {
					decoded++
				}
			}
			test.That(t, decoded, test.ShouldEqual, (total+period-1)/period)
		})
	}
}
