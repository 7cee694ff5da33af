package httpapi

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/wildfire-risk-assessment/internal/assessment"
	"github.com/i474232898/wildfire-risk-assessment/internal/store"
)

var validate = validator.New()

// Observer imports measured conditions for a location.
type Observer interface {
	Observe(ctx context.Context, city, country string) (assessment.Observation, error)
}

// History gives access to recorded assessment cycles.
type History interface {
	Latest() (assessment.Assessment, error)
	Range(from, to time.Time) ([]assessment.Assessment, error)
}

// Deps are the collaborators the routes read from.
type Deps struct {
	Orchestrator *assessment.Orchestrator
	Trend        assessment.TrendSource
	History      History  // optional
	Observer     Observer // optional
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")
	o := deps.Orchestrator

	v1.Get("/assessment", func(c *fiber.Ctx) error {
		return c.JSON(o.State())
	})

	// Runs one cycle synchronously. A request that arrives while another
	// cycle is in flight is dropped and answered with the current state.
	v1.Post("/assessment", func(c *fiber.Ctx) error {
		if _, ok := o.Trigger(c.UserContext()); !ok {
			return c.Status(fiber.StatusAccepted).JSON(o.State())
		}
		return c.JSON(o.State())
	})

	v1.Get("/parameters", func(c *fiber.Ctx) error {
		return c.JSON(o.Parameters())
	})

	v1.Get("/parameters/domains", func(c *fiber.Ctx) error {
		return c.JSON(assessment.Domains())
	})

	v1.Put("/parameters/:field", func(c *fiber.Ctx) error {
		field, err := assessment.ParseField(c.Params("field"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var req parameterUpdate
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		params, err := o.UpdateParameter(field, *req.Value)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(params)
	})

	v1.Post("/parameters/observe", func(c *fiber.Ctx) error {
		if deps.Observer == nil {
			return fiber.NewError(fiber.StatusNotFound, "live observations are not configured")
		}

		q := observeQuery{City: c.Query("city"), Country: c.Query("country")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		obs, err := deps.Observer.Observe(c.UserContext(), q.City, q.Country)
		if err != nil {
			log.Printf("ERROR: observation import for %s,%s failed: %v", q.City, q.Country, err)
			return fiber.NewError(fiber.StatusBadGateway, "failed to fetch observed conditions")
		}

		params, err := o.ApplyObservation(obs)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to apply observation")
		}
		return c.JSON(fiber.Map{
			"observation": obs,
			"parameters":  params,
		})
	})

	v1.Get("/assessments/latest", func(c *fiber.Ctx) error {
		if deps.History == nil {
			return fiber.NewError(fiber.StatusNotFound, "assessment history is not configured")
		}
		a, err := deps.History.Latest()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no assessments recorded yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch latest assessment")
		}
		return c.JSON(a)
	})

	v1.Get("/assessments", func(c *fiber.Ctx) error {
		if deps.History == nil {
			return fiber.NewError(fiber.StatusNotFound, "assessment history is not configured")
		}

		var req rangeQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		assessments, err := deps.History.Range(req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no assessments for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch assessments")
		}

		return c.JSON(fiber.Map{
			"from":        req.From,
			"to":          req.To,
			"assessments": assessments,
		})
	})

	v1.Get("/history", func(c *fiber.Ctx) error {
		if deps.Trend == nil {
			return c.JSON([]assessment.HistoricalDataPoint{})
		}
		points, err := deps.Trend.Trend(c.UserContext())
		if err != nil {
			log.Printf("ERROR: loading risk history failed: %v", err)
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load risk history")
		}
		return c.JSON(points)
	})
}

// parameterUpdate is the body of a single-field edit. Out-of-range values are
// accepted and clamped by the store.
type parameterUpdate struct {
	Value *float64 `json:"value" validate:"required"`
}

// observeQuery holds query parameters for the observation import.
type observeQuery struct {
	City    string `validate:"required"`
	Country string
}


// rangeQuery holds query parameters for the assessment range endpoint.
type rangeQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (r *rangeQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	r.From = from
	r.To = to
	return nil
}

// parseTime accepts RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
