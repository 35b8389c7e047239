package models

import (
	"encoding/json"
	"fmt"
)

// Field names of the task records consumed and produced by the pipeline.
const (
	FieldRepo       = "repo"
	FieldBaseCommit = "base_commit"
	FieldInstanceID = "instance_id"
	FieldVersion    = "version"
	FieldPullNumber = "pull_number"
)

// Task is a benchmark task whose version is to be determined. The core
// fields are decoded from Fields, which keeps the complete original record.
type Task struct {
	Repo       string `json:"repo" validate:"required"`
	BaseCommit string `json:"base_commit" validate:"required"`
	InstanceID string `json:"instance_id" validate:"required"`

	Fields Record `json:"-"`
}

// TaskFromRecord decodes the core fields of rec. It does not check that
// they are present; see task.Validate.
func TaskFromRecord(rec Record) (Task, error) {
	t := Task{Fields: rec}
	for key, dst := range map[string]*string{
		FieldRepo:       &t.Repo,
		FieldBaseCommit: &t.BaseCommit,
		FieldInstanceID: &t.InstanceID,
	} {
		raw, ok := rec[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return t, fmt.Errorf("field %q: %w", key, err)
		}
	}
	return t, nil
}

// WithVersion returns the task's original fields plus version.
func (t Task) WithVersion(version string) (Record, error) {
	return t.Fields.With(FieldVersion, version)
}
