package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	job "github.com/maheshrc27/content-publisher/internal/jobs"
	log "github.com/sirupsen/logrus"
)

type Runner interface {
	Run(ctx context.Context, trigger job.Trigger) (*job.RunReport, error)
}

type TriggerHandler struct {
	r Runner
}

func NewTriggerHandler(runner Runner) *TriggerHandler {
	return &TriggerHandler{r: runner}
}

// PublishScheduled runs the publish job synchronously and answers with its
// log transcript.
func (h *TriggerHandler) PublishScheduled(c *fiber.Ctx) error {
	log.WithField("operator", GetOperator(c)).Info("Manual publish run requested")

	report, err := h.r.Run(c.Context(), job.TriggerManual)

	transcript := ""
	if report != nil {
		transcript = report.TranscriptText()
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	if err != nil {
		log.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).SendString("error: " + err.Error() + "\n" + transcript)
	}

	return c.Status(fiber.StatusOK).SendString(transcript)
}
