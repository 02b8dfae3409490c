package ingest

import "github.com/hidrolab/rovsurvey/internal/mission"

type sensorKey struct {
	kind     mission.SensorKind
	instance int
}

// DeploymentTable resolves a (sensor kind, instance) pair to the
// deployment it belongs to. It is built once per mission from the
// stored deployments and read-only from there on.
type DeploymentTable struct {
	byKey map[sensorKey]int64
}

// NewDeploymentTable indexes the given deployments by kind and
// instance. Later duplicates win, matching insertion order in the
// database.
func NewDeploymentTable(deployments []mission.SensorDeployment) *DeploymentTable {
	t := &DeploymentTable{byKey: make(map[sensorKey]int64, len(deployments))}
	for _, d := range deployments {
		t.byKey[sensorKey{kind: d.Kind, instance: d.Instance}] = d.ID
	}
	return t
}

// Lookup returns the deployment ID for the sensor kind and instance.
func (t *DeploymentTable) Lookup(kind mission.SensorKind, instance int) (int64, bool) {
	id, ok := t.byKey[sensorKey{kind: kind, instance: instance}]
	return id, ok
}
