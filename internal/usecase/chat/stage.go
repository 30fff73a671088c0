package chat

import "fmt"

// Stage is a step of the turn state machine.
type Stage string

// Turn states. A turn starts and ends in StageIdle.
const (
	StageIdle              Stage = "idle"
	StageAwaitingEmbedding Stage = "awaiting_embedding"
	StageAwaitingSearch    Stage = "awaiting_search"
	StageContextEmpty      Stage = "context_empty"
	StageAwaitingAnswer    Stage = "awaiting_answer"
	StageAwaitingLogWrite  Stage = "awaiting_log_write"
)

// StageError records the step at which a turn failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
