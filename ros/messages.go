package ros

// Message bodies as gobag's topic-to-JSON parsing emits them: every record is
// a JSON object with a Meta block carrying the record timestamp and a Data
// block carrying the ROS message fields.

// MessageMeta is the record timestamp attached to every parsed bag message.
type MessageMeta struct {
	Secs  int
	Nsecs int
}

// Header is the standard ROS message header.
type Header struct {
	Seq   int
	Stamp struct {
		Secs  int
		Nsecs int
	}
	FrameID string `json:"frame_id"`
}

// Vector3 is a 3-D vector message field.
type Vector3 struct {
	X float64
	Y float64
	Z float64
}

// Quaternion is a rotation message field in x, y, z, w order.
type Quaternion struct {
	X float64
	Y float64
	Z float64
	W float64
}

// PoseField is a position/orientation pair as carried by pose-bearing messages.
type PoseField struct {
	Position    Vector3
	Orientation Quaternion
}

// ImageMessage is sensor_msgs/Image.
type ImageMessage struct {
	Meta MessageMeta
	Data struct {
		Header      Header
		Height      int
		Width       int
		Encoding    string
		IsBigendian int `json:"is_bigendian"`
		Step        int
		Data        []byte
	}
}

// CompressedImageMessage is sensor_msgs/CompressedImage.
type CompressedImageMessage struct {
	Meta MessageMeta
	Data struct {
		Header Header
		Format string
		Data   []byte
	}
}

// LaserScanMessage is sensor_msgs/LaserScan.
type LaserScanMessage struct {
	Meta MessageMeta
	Data struct {
		Header         Header
		AngleMin       float64   `json:"angle_min"`
		AngleMax       float64   `json:"angle_max"`
		AngleIncrement float64   `json:"angle_increment"`
		TimeIncrement  float64   `json:"time_increment"`
		ScanTime       float64   `json:"scan_time"`
		RangeMin       float64   `json:"range_min"`
		RangeMax       float64   `json:"range_max"`
		Ranges         []float64 `json:"ranges"`
		Intensities    []float64 `json:"intensities"`
	}
}

// OdometryMessage is nav_msgs/Odometry.
type OdometryMessage struct {
	Meta MessageMeta
	Data struct {
		Header       Header
		ChildFrameID string `json:"child_frame_id"`
		Pose         struct {
			Pose       PoseField
			Covariance []float64
		}
	}
}

// ModelStatesMessage is gazebo_msgs/ModelStates.
type ModelStatesMessage struct {
	Meta MessageMeta
	Data struct {
		Name []string
		Pose []PoseField
	}
}

// TransformStamped is one transform out of a tf message.
type TransformStamped struct {
	Header       Header
	ChildFrameID string `json:"child_frame_id"`
	Transform    struct {
		Translation Vector3
		Rotation    Quaternion
	}
}

// TFMessage is tf2_msgs/TFMessage.
type TFMessage struct {
	Meta MessageMeta
	Data struct {
		Transforms []TransformStamped
	}
}

// headerOnlyMessage picks out just the header of any stamped message; the
// relation checker uses it to read frame IDs without knowing message types.
type headerOnlyMessage struct {
	Data struct {
		Header Header
	}
}
