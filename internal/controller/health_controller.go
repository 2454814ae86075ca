package controller

import (
	"context"
	"time"

	"ai-helpdesk-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
)

// ReadinessCheck reports whether one dependency is usable
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
}

type healthController struct {
	checks []ReadinessCheck
}

func NewHealthController(checks ...ReadinessCheck) IHealthController {
	return &healthController{checks: checks}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
	r.Get("/ready", c.Ready)
}

func (c *healthController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("healthy", fiber.Map{"status": "healthy"}))
}

func (c *healthController) Ready(ctx *fiber.Ctx) error {
	checkCtx, cancel := context.WithTimeout(ctx.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.Map{}
	ready := true
	for _, check := range c.checks {
		if err := check.Check(checkCtx); err != nil {
			status[check.Name] = err.Error()
			ready = false
			continue
		}
		status[check.Name] = "ok"
	}

	if !ready {
		return ctx.Status(fiber.StatusServiceUnavailable).
			JSON(serverutils.BaseResponse{Success: false, Code: fiber.StatusServiceUnavailable, Message: "not ready", Data: status})
	}
	return ctx.JSON(serverutils.SuccessResponse("ready", status))
}
