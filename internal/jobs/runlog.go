package job

import (
	"strings"
	"sync"

	"github.com/maheshrc27/content-publisher/internal/models"
	log "github.com/sirupsen/logrus"
)

// transcriptHook keeps a copy of every line logged during a run.
type transcriptHook struct {
	mu        sync.Mutex
	formatter log.Formatter
	lines     []string
}

func (h *transcriptHook) Levels() []log.Level {
	return log.AllLevels
}

func (h *transcriptHook) Fire(entry *log.Entry) error {
	b, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.lines = append(h.lines, strings.TrimRight(string(b), "\n"))
	h.mu.Unlock()
	return nil
}

// RunLog writes to the operational log and records the same lines for the
// manual trigger's response.
type RunLog struct {
	entry *log.Entry
	hook  *transcriptHook
}

// NewRunLog derives a per-run logger from base so the transcript hook does
// not leak into other runs.
func NewRunLog(base *log.Logger, rc RunContext) *RunLog {
	hook := &transcriptHook{
		formatter: &log.TextFormatter{DisableColors: true, DisableTimestamp: true},
	}

	logger := log.New()
	logger.SetOutput(base.Out)
	logger.SetFormatter(base.Formatter)
	logger.SetLevel(base.GetLevel())
	logger.AddHook(hook)

	return &RunLog{
		entry: logger.WithFields(log.Fields{"run_id": rc.ID, "trigger": rc.Trigger}),
		hook:  hook,
	}
}

func (l *RunLog) Entry() *log.Entry {
	return l.entry
}

func (l *RunLog) Item(item *models.ScheduledContent) *log.Entry {
	return l.entry.WithFields(log.Fields{
		"item_id":    item.ID,
		"project_id": item.ProjectID,
		"platform":   item.Platform,
	})
}

func (l *RunLog) Lines() []string {
	l.hook.mu.Lock()
	defer l.hook.mu.Unlock()
	return append([]string(nil), l.hook.lines...)
}
