package mission

import "time"

// NavSample is one timestamped navigation/attitude/depth reading. The
// per-mission, time-ordered NavSample set forms the reference timeline
// every frame and sample is aligned against. CorrectedDepthM is the
// only field ever mutated after creation; tide correction writes it.
type NavSample struct {
	ID              int64
	MissionID       int64
	Timestamp       time.Time
	RollDeg         *float64
	PitchDeg        *float64
	YawDeg          *float64
	DepthM          *float64
	CorrectedDepthM *float64
}

// ImuSample is a raw gyroscope/accelerometer reading. Append-only.
type ImuSample struct {
	ID           int64
	LogFileID    int64
	DeploymentID int64
	Timestamp    time.Time
	GxRadS       float64
	GyRadS       float64
	GzRadS       float64
	AxMS2        float64
	AyMS2        float64
	AzMS2        float64
}

// CompassSample is a raw magnetometer reading in microtesla. Append-only.
type CompassSample struct {
	ID           int64
	LogFileID    int64
	DeploymentID int64
	Timestamp    time.Time
	MxUT         float64
	MyUT         float64
	MzUT         float64
}

// PressureSample is a raw barometer reading. Temperature may be absent
// on sensors that do not report it. Append-only.
type PressureSample struct {
	ID           int64
	LogFileID    int64
	DeploymentID int64
	Timestamp    time.Time
	PressurePa   float64
	TemperatureC *float64
}

// TideLevel is one discrete high or low tide event at a port. Tide
// sequences are append-only reference data, sorted by time per port.
type TideLevel struct {
	ID      int64
	Port    string
	Time    time.Time
	HeightM float64
}
