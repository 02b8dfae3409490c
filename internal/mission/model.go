package mission

import "time"

// SensorKind identifies the class of sensor carried by a deployment.
// The binary log router uses it, together with the instance number,
// to attribute decoded samples to the right deployment.
type SensorKind string

const (
	SensorIMU      SensorKind = "imu"
	SensorCompass  SensorKind = "compass"
	SensorPressure SensorKind = "pressure"
	SensorCamera   SensorKind = "camera"
	SensorSonar    SensorKind = "sonar"
)

// Mission is one bounded ROV deployment. EndTime is nil for a mission
// that has not been closed out yet; such missions cannot be used for
// log filtering but still match open-ended auto-detection windows.
type Mission struct {
	ID        int64
	StartTime time.Time
	EndTime   *time.Time
	Location  string
}

// Covers reports whether t falls inside the mission window. A nil
// EndTime makes the window open-ended on the right.
func (m *Mission) Covers(t time.Time) bool {
	if t.Before(m.StartTime) {
		return false
	}
	return m.EndTime == nil || !t.After(*m.EndTime)
}

// SensorDeployment records one physical sensor's presence on one
// mission. Instance disambiguates duplicate sensor models; the triple
// (mission, sensor name, instance) is unique.
type SensorDeployment struct {
	ID         int64
	MissionID  int64
	SensorName string
	Kind       SensorKind
	Instance   int
}

// LogFile is a raw binary autopilot log attached to a mission.
// CreatedAt is the baseline for resolving boot-relative message clocks
// to absolute timestamps. AlreadyParsed guards against duplicate
// ingestion unless the operator forces a re-run.
type LogFile struct {
	ID            int64
	MissionID     int64
	Path          string
	CreatedAt     time.Time
	AlreadyParsed bool
}
