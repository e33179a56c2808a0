package job

import (
	"encoding/json"
	"time"
)

// HandlerGeneration names the worker that records failed generation tasks.
const HandlerGeneration = "generation-worker"

// Job is a generation task that failed in the worker and can be retried.
type Job struct {
	ID           string          `json:"id"`
	GenerationID string          `json:"generation_id"`
	Handler      string          `json:"handler"`
	Payload      json.RawMessage `json:"payload"`
	Error        string          `json:"error"`
	Retries      int             `json:"retries"`
	CreatedAt    time.Time       `json:"created_at"`
}
