// Package benchmark runs extraction variants over a labelled document set,
// scores every (document, variant) pair against its reference record and keeps
// the results in resumable CSV files.
package benchmark

import (
	"fmt"

	"github.com/joseph-ayodele/invoice-bench/constants"
)

// Key identifies a task. It is unique across the task matrix and is the unit of
// resumability.
type Key struct {
	Document string
	Variant  string
}

func (k Key) String() string {
	return k.Document + "/" + k.Variant
}

// Task is one (document, variant) unit of work.
type Task struct {
	Key
	DocumentPath string
	Status       constants.TaskStatus
}

func (t *Task) advance(to constants.TaskStatus) error {
	if !constants.CanTransition(t.Status, to) {
		return fmt.Errorf("task %s: illegal transition %s -> %s", t.Key, t.Status, to)
	}
	t.Status = to
	return nil
}
