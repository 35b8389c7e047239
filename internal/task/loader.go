package task

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spachava753/taskver/internal/dataset"
	"github.com/spachava753/taskver/internal/models"
)

// Loader loads tasks from a task file.
type Loader struct {
	validate *validator.Validate
}

// NewLoader creates a new task loader.
func NewLoader() *Loader {
	return &Loader{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Load reads every record of the task file at path and decodes it into a
// Task. Any record that is not a valid task fails the whole load.
func (l *Loader) Load(path string) ([]models.Task, error) {
	records, err := dataset.LoadFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}

	tasks := make([]models.Task, 0, len(records))
	var errs []error
	for i, rec := range records {
		t, err := models.TaskFromRecord(rec)
		if err == nil {
			err = l.ValidateTask(t)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("task %d: %w", i, err))
			continue
		}
		tasks = append(tasks, t)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid tasks in %s: %w", path, errors.Join(errs...))
	}
	return tasks, nil
}

// ValidateTask checks that the core fields of t are present.
func (l *Loader) ValidateTask(t models.Task) error {
	err := l.validate.Struct(t)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, jsonName(fe.Field()))
	}
	if t.InstanceID != "" {
		return fmt.Errorf("%s: missing %s", t.InstanceID, strings.Join(missing, ", "))
	}
	return fmt.Errorf("missing %s", strings.Join(missing, ", "))
}

func jsonName(field string) string {
	switch field {
	case "Repo":
		return models.FieldRepo
	case "BaseCommit":
		return models.FieldBaseCommit
	case "InstanceID":
		return models.FieldInstanceID
	}
	return field
}
