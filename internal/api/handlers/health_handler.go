package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	p Pinger
}

func NewHealthHandler(p Pinger) *HealthHandler {
	return &HealthHandler{p: p}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	if err := h.p.Ping(c.Context()); err != nil {
		log.Info(err.Error())
		return c.Status(fiber.StatusServiceUnavailable).SendString("store unavailable")
	}
	return c.SendString("ok")
}
