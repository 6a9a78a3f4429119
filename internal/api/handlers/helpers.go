package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// GetOperator returns the subject the auth middleware stored, or
// "anonymous" when the route is open.
func GetOperator(c *fiber.Ctx) string {
	operator, _ := c.Locals("operator").(string)
	if operator == "" {
		return "anonymous"
	}
	return operator
}
