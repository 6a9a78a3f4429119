package job

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Trigger string

const (
	TriggerPeriodic Trigger = "periodic"
	TriggerManual   Trigger = "manual"
)

// RunContext identifies one run. StartedAt is the collection time used for
// the due check and for lease timestamps.
type RunContext struct {
	ID        string
	StartedAt time.Time
	Trigger   Trigger
}

func NewRunContext(trigger Trigger, now time.Time) (RunContext, error) {
	id, err := gonanoid.New(12)
	if err != nil {
		return RunContext{}, fmt.Errorf("failed to generate run id: %w", err)
	}
	return RunContext{ID: id, StartedAt: now.UTC(), Trigger: trigger}, nil
}
