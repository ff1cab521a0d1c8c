package ros

import (
	"bytes"
	"encoding/json"
	"image"

	// registered for decoding compressed image payloads.
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// DefaultImageChannel is where turtlebot-style logs record raw camera frames.
const DefaultImageChannel = "/camera/rgb/image_raw"

var imageEncodings = map[string]func(msg *ImageMessage) (image.Image, error){
	"rgb8":  decodeRGB8,
	"bgr8":  decodeBGR8,
	"mono8": decodeMono8,
}

// ImageDecoderConfig configures an ImageDecoder.
type ImageDecoderConfig struct {
	// SamplePeriod decodes every Nth message; 0 means every message.
	SamplePeriod int
	// Scale rescales decoded images; 0 means no rescale.
	Scale float64
	// Encoding is the pixel encoding of raw (uncompressed) payloads.
	Encoding string
	// Compressed marks the channel as carrying compressed payloads.
	Compressed bool
}

// ImageDecoder converts image messages into image.Image values, optionally
// rescaled. A message that fails to decode is reported as an error and the
// replay moves on; it never aborts the session.
type ImageDecoder struct {
	sampler
	scale      float64
	encoding   string
	compressed bool
}

// NewImageDecoder returns an image decoder for the given channel.
func NewImageDecoder(channel string, cfg ImageDecoderConfig) (*ImageDecoder, error) {
	s, err := newSampler(channel, cfg.SamplePeriod)
	if err != nil {
		return nil, err
	}
	if cfg.Scale < 0 {
		return nil, errors.Errorf("image scale for channel %q must be positive, got %f", channel, cfg.Scale)
	}
	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "bgr8"
	}
	if !cfg.Compressed {
		if _, ok := imageEncodings[encoding]; !ok {
			return nil, errors.Errorf("unknown image encoding %q for channel %q", encoding, channel)
		}
	}
	return &ImageDecoder{sampler: s, scale: cfg.Scale, encoding: encoding, compressed: cfg.Compressed}, nil
}

// Decode converts one image message into an image.Image.
func (d *ImageDecoder) Decode(data []byte) (interface{}, error) {
	var img image.Image
	if d.compressed {
		var msg CompressedImageMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, errors.Wrapf(err, "cannot parse compressed image on %q", d.channel)
		}
		var err error
		img, _, err = image.Decode(bytes.NewReader(msg.Data.Data))
		if err != nil {
			return nil, errors.Wrapf(err, "cannot decode compressed image on %q", d.channel)
		}
	} else {
		var msg ImageMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, errors.Wrapf(err, "cannot parse image on %q", d.channel)
		}
		decode := imageEncodings[d.encoding]
		var err error
		img, err = decode(&msg)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot decode image on %q", d.channel)
		}
	}

	if d.scale != 0 && d.scale != 1 {
		bounds := img.Bounds()
		width := int(float64(bounds.Dx()) * d.scale)
		height := int(float64(bounds.Dy()) * d.scale)
		img = imaging.Resize(img, width, height, imaging.Linear)
	}
	return img, nil
}

func decodeRGB8(msg *ImageMessage) (image.Image, error) {
	return decodeInterleaved(msg, 3, func(dst []uint8, src []byte) {
		dst[0], dst[1], dst[2], dst[3] = src[0], src[1], src[2], 0xff
	})
}

func decodeBGR8(msg *ImageMessage) (image.Image, error) {
	return decodeInterleaved(msg, 3, func(dst []uint8, src []byte) {
		dst[0], dst[1], dst[2], dst[3] = src[2], src[1], src[0], 0xff
	})
}

func decodeMono8(msg *ImageMessage) (image.Image, error) {
	width, height := msg.Data.Width, msg.Data.Height
	step := msg.Data.Step
	if step == 0 {
		step = width
	}
	if step < width {
		return nil, errors.Errorf("mono8 row step %d shorter than width %d", step, width)
	}
	if len(msg.Data.Data) < height*step {
		return nil, errors.Errorf("mono8 payload too short: %d bytes for %dx%d", len(msg.Data.Data), width, height)
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+width], msg.Data.Data[y*step:])
	}
	return img, nil
}

func decodeInterleaved(msg *ImageMessage, channels int, setPixel func(dst []uint8, src []byte)) (image.Image, error) {
	width, height := msg.Data.Width, msg.Data.Height
	step := msg.Data.Step
	if step == 0 {
		step = width * channels
	}
	if step < width*channels {
		return nil, errors.Errorf("image row step %d shorter than %d pixels of %d channels", step, width, channels)
	}
	if len(msg.Data.Data) < height*step {
		return nil, errors.Errorf("image payload too short: %d bytes for %dx%d step %d", len(msg.Data.Data), width, height, step)
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := msg.Data.Data[y*step:]
		for x := 0; x < width; x++ {
			setPixel(img.Pix[y*img.Stride+x*4:], row[x*channels:])
		}
	}
	return img, nil
}
