package out

// Task types handled by the background worker.
const (
	TaskRemoteEventDelete = "remote_event_delete"
)

// Task is a unit of background work queued after the local transaction
// commits. The worker owns retry and failure logging.
type Task struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id"`
	CalendarID string `json:"calendar_id"`
	EventID    string `json:"event_id"`
	Attempt    int    `json:"attempt"`
}

// TaskQueue decouples fire-and-forget remote cleanup from request handlers.
type TaskQueue interface {
	// Enqueue submits a task; false means the queue rejected it (shutting
	// down or full) and the caller should log and move on.
	Enqueue(task *Task) bool
}
