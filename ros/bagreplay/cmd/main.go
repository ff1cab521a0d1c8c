// Package main replays a recorded rosbag through the decoder pipeline,
// writing decoded camera frames to PNG and summarizing the rest.
package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/microcompunics/pybot/ros"
	"github.com/microcompunics/pybot/spatialmath"
)

var logger = golog.NewDevelopmentLogger("bagreplay")

func main() {
	err := realMain(os.Args[1:])
	if err != nil {
		logger.Fatal(err)
	}
}

// saveImageAsPng saves image as png in current directory
func saveImageAsPng(img image.Image, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	err = png.Encode(f, img)
	if err != nil {
		return err
	}
	err = f.Close()
	if err != nil {
		return err
	}
	return nil
}

func realMain(args []string) error {
	if len(args) == 0 {
		return errors.New("need to specify a rosbag file path")
	}
	filename := args[0]
	bag, err := ros.ReadBagLog(filename)
	if err != nil {
		return err
	}

	imageDec, err := ros.NewImageDecoder(ros.DefaultImageChannel, ros.ImageDecoderConfig{
		SamplePeriod: 10,
		Scale:        0.5,
		Encoding:     "rgb8",
	})
	if err != nil {
		return err
	}
	scanDec, err := ros.NewLaserScanDecoder(ros.DefaultLaserScanChannel, 1)
	if err != nil {
		return err
	}
	odomDec, err := ros.NewOdometryDecoder("/odom", 1)
	if err != nil {
		return err
	}

	reader, err := ros.NewBagReader(bag, []ros.Decoder{imageDec, scanDec, odomDec},
		ros.BagReaderConfig{Logger: logger})
	if err != nil {
		return err
	}

	controller := ros.NewBagController(reader, logger)

	var imgCount int
	controller.Subscribe(ros.DefaultImageChannel, func(_ time.Time, value interface{}) error {
		err := saveImageAsPng(value.(image.Image), "img_"+fmt.Sprint(imgCount)+".png")
		imgCount++
		return err
	})

	var pointCount int
	controller.Subscribe(ros.DefaultLaserScanChannel, func(_ time.Time, value interface{}) error {
		pointCount += len(value.([]r3.Vector))
		return nil
	})

	controller.Subscribe("/odom", func(t time.Time, value interface{}) error {
		logger.Debugw("odometry", "time", t, "pose", value.(*spatialmath.RigidTransform))
		return nil
	})

	if err := controller.Run(); err != nil {
		return err
	}
	logger.Infow("replay finished", "images", imgCount, "scan points", pointCount)
	return nil
}
