package ros

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"testing"

	"go.viam.com/test"
)

func TestImageDecoderValidation(t *testing.T) {
	_, err := NewImageDecoder(DefaultImageChannel, ImageDecoderConfig{Encoding: "yuv422"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown image encoding")

	_, err = NewImageDecoder(DefaultImageChannel, ImageDecoderConfig{Scale: -0.5})
	test.That(t, err, test.ShouldNotBeNil)

	// encodings do not apply to compressed payloads
	_, err = NewImageDecoder(DefaultImageChannel, ImageDecoderConfig{Encoding: "whatever", Compressed: true})
	test.That(t, err, test.ShouldBeNil)
}

func rawImagePayload(t *testing.T, width, height int, pix []byte) []byte {
	t.Helper()
	var msg ImageMessage
	msg.Data.Width = width
	msg.Data.Height = height
	msg.Data.Step = width * 3
	msg.Data.Data = pix
	data, err := json.Marshal(msg)
	test.That(t, err, test.ShouldBeNil)
	return data
}

func TestImageDecodeRGB8(t *testing.T) {
	dec, err := NewImageDecoder(DefaultImageChannel, ImageDecoderConfig{Encoding: "rgb8"})
	test.That(t, err, test.ShouldBeNil)

	value, err := dec.Decode(rawImagePayload(t, 2, 1, []byte{255, 0, 0, 0, 0, 255}))
	test.That(t, err, test.ShouldBeNil)
	img, ok := value.(image.Image)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 2)
	test.That(t, img.Bounds().Dy(), test.ShouldEqual, 1)

	r, _, _, _ := img.At(0, 0).RGBA()
	test.That(t, r, test.ShouldEqual, 0xffff)
	_, _, b, _ := img.At(1, 0).RGBA()
	test.That(t, b, test.ShouldEqual, 0xffff)
}

func TestImageDecodeBGR8SwapsChannels(t *testing.T) {
	dec, err := NewImageDecoder(DefaultImageChannel, ImageDecoderConfig{Encoding: "bgr8"})
	test.That(t, err, test.ShouldBeNil)

	value, err := dec.Decode(rawImagePayload(t, 1, 1, []byte{255, 0, 0}))
	test.That(t, err, test.ShouldBeNil)
	img := value.(image.Image)
	r, _, b, _ := img.At(0, 0).RGBA()
	test.That(t, r, test.ShouldEqual, 0)
	test.That(t, b, test.ShouldEqual, 0xffff)
}

func TestImageDecodeScales(t *testing.T) {
	dec, err := NewImageDecoder(DefaultImageChannel, ImageDecoderConfig{Encoding: "rgb8", Scale: 0.5})
	test.That(t, err, test.ShouldBeNil)

	pix := make([]byte, 4*4*3)
	value, err := dec.Decode(rawImagePayload(t, 4, 4, pix))
	test.That(t, err, test.ShouldBeNil)
	img := value.(image.Image)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 2)
	test.That(t, img.Bounds().Dy(), test.ShouldEqual, 2)
}

func TestImageDecodeCompressed(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(1, 1, color.NRGBA{R: 200, G: 10, B: 30, A: 255})
	var buf bytes.Buffer
	test.That(t, png.Encode(&buf, src), test.ShouldBeNil)

	var msg CompressedImageMessage
	msg.Data.Format = "png"
	msg.Data.Data = buf.Bytes()
	payload, err := json.Marshal(msg)
	test.That(t, err, test.ShouldBeNil)

	dec, err := NewImageDecoder(DefaultImageChannel, ImageDecoderConfig{Compressed: true})
	test.That(t, err, test.ShouldBeNil)
	value, err := dec.Decode(payload)
	test.That(t, err, test.ShouldBeNil)
	img := value.(image.Image)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 3)
	test.That(t, img.Bounds().Dy(), test.ShouldEqual, 2)
}

func TestImageDecodeShortRowStep(t *testing.T) {
	// a declared row step shorter than the pixel row must be rejected as a
	// per-message decode error, never read past the payload
	var msg ImageMessage
	msg.Data.Width = 2
	msg.Data.Height = 1
	msg.Data.Step = 3
	msg.Data.Data = []byte{1, 2, 3}
	payload, err := json.Marshal(msg)
	test.That(t, err, test.ShouldBeNil)

	t.Run("rgb8", func(t *testing.T) {
		dec, err := NewImageDecoder(DefaultImageChannel, ImageDecoderConfig{Encoding: "rgb8"})
		test.That(t, err, test.ShouldBeNil)
		_, err = dec.Decode(payload)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "row step")
	})

	t.Run("mono8", func(t *testing.T) {
		var msg ImageMessage
		msg.Data.Width = 4
		msg.Data.Height = 2
		msg.Data.Step = 2
		msg.Data.Data = []byte{1, 2, 3, 4}
		payload, err := json.Marshal(msg)
		test.That(t, err, test.ShouldBeNil)

		dec, err := NewImageDecoder(DefaultImageChannel, ImageDecoderConfig{Encoding: "mono8"})
		test.That(t, err, test.ShouldBeNil)
		_, err = dec.Decode(payload)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "row step")
	})
}

func TestImageDecodeBadPayloadIsAnError(t *testing.T) {
	dec, err := NewImageDecoder(DefaultImageChannel, ImageDecoderConfig{Compressed: true})
	test.That(t, err, test.ShouldBeNil)

	var msg CompressedImageMessage
	msg.Data.Data = []byte("not an image")
	payload, err := json.Marshal(msg)
	test.That(t, err, test.ShouldBeNil)

	_, err = dec.Decode(payload)
	test.That(t, err, test.ShouldNotBeNil)
}
