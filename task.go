package kaonavi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// TaskStatus is the state of a server-side job started by a mutating call.
// Jobs move from TaskWaiting to TaskRunning and end in TaskOK, TaskNG or TaskError.
type TaskStatus string

const (
	TaskWaiting TaskStatus = "WAITING"
	TaskRunning TaskStatus = "RUNNING"
	TaskOK      TaskStatus = "OK"
	TaskNG      TaskStatus = "NG"
	TaskError   TaskStatus = "ERROR"
)

// IsTerminal reports whether the job has finished.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskOK, TaskNG, TaskError:
		return true
	default:
		return false
	}
}

func (s TaskStatus) valid() bool {
	switch s {
	case TaskWaiting, TaskRunning, TaskOK, TaskNG, TaskError:
		return true
	default:
		return false
	}
}

func (s TaskStatus) String() string {
	return string(s)
}

// UnmarshalJSON rejects values outside the known statuses.
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status := TaskStatus(raw)
	if !status.valid() {
		return fmt.Errorf("kaonavi: unknown task status %q", raw)
	}
	*s = status
	return nil
}

// TaskProgress is the current state of a job. Messages is only populated for
// TaskNG and TaskError.
type TaskProgress struct {
	ID       int        `json:"id"`
	Status   TaskStatus `json:"status"`
	Messages []string   `json:"messages,omitempty"`
}

// ReadTaskProgress fetches the state of the job identified by id. It does not
// wait for completion; poll until Status.IsTerminal().
func (c *Client) ReadTaskProgress(ctx context.Context, id int) (*TaskProgress, error) {
	if id < 0 {
		return nil, argumentError("id", "task id must not be negative")
	}

	progress, err := Do(ctx, c, Request{
		Method: http.MethodGet,
		Path:   "/tasks/" + strconv.Itoa(id),
	}, JSONDecoder[*TaskProgress]())
	if err != nil {
		return nil, err
	}
	if progress == nil {
		return nil, fmt.Errorf("%w for task %d", ErrEmptyTaskProgress, id)
	}
	return progress, nil
}

// ReadTask is ReadTaskProgress for a handle returned by DoMutating.
func (c *Client) ReadTask(ctx context.Context, handle TaskHandle) (*TaskProgress, error) {
	return c.ReadTaskProgress(ctx, int(handle))
}
