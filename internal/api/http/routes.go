package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/area-weather-forecast/internal/session"
	"github.com/i474232898/area-weather-forecast/internal/store"
	"github.com/i474232898/area-weather-forecast/internal/weather"
)

var validate = validator.New()

// SessionGauge is notified when the number of live sessions changes.
type SessionGauge interface {
	SetActiveSessions(n int)
}

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Sessions *store.Sessions
	Actions  *session.Actions

	DefaultDays int
	MaxDays     int

	// Gauge is optional.
	Gauge SessionGauge
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.MaxDays <= 0 {
		deps.MaxDays = 365
	}
	if deps.DefaultDays <= 0 || deps.DefaultDays > deps.MaxDays {
		deps.DefaultDays = min(90, deps.MaxDays)
	}
	h := &handlers{deps: deps}

	v1 := app.Group("/api/v1")
	sessions := v1.Group("/sessions")

	sessions.Post("/", h.createSession)
	sessions.Delete("/:id", h.deleteSession)
	sessions.Post("/:id/fetch", h.fetch)
	sessions.Get("/:id/historical", h.historical)
	sessions.Post("/:id/forecast", h.forecast)
	sessions.Get("/:id/forecast/:variable", h.getForecast)
	sessions.Get("/:id/summary", h.summary)
	sessions.Post("/:id/ask", h.ask)
}

type handlers struct {
	deps Deps
}

func (h *handlers) createSession(c *fiber.Ctx) error {
	id, _, err := h.deps.Sessions.Create()
	if err != nil {
		return toHTTPError(err)
	}
	h.updateGauge()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (h *handlers) deleteSession(c *fiber.Ctx) error {
	if err := h.deps.Sessions.Delete(c.Params("id")); err != nil {
		return toHTTPError(err)
	}
	h.updateGauge()
	return c.SendStatus(fiber.StatusNoContent)
}

// fetchBody is the fetch request. Exactly one of the coordinate pair, area
// or city must be given.
type fetchBody struct {
	Latitude  *float64        `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64        `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Area      json.RawMessage `json:"area"`
	Mode      string          `json:"mode" validate:"omitempty,oneof=centroid grid"`
	City      string          `json:"city" validate:"omitempty,max=200"`
	Country   string          `json:"country" validate:"omitempty,max=200"`
	StartDate string          `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string          `json:"end_date" validate:"required,datetime=2006-01-02"`
	Variables []string        `json:"variables"`
}

func (b fetchBody) toRequest() (session.FetchRequest, error) {
	var req session.FetchRequest

	start, err := civil.ParseDate(b.StartDate)
	if err != nil {
		return req, err
	}
	end, err := civil.ParseDate(b.EndDate)
	if err != nil {
		return req, err
	}
	if end.Before(start) {
		return req, errors.New("end_date must not be before start_date")
	}
	req.Start, req.End = start, end

	if req.Variables, err = parseVariables(b.Variables); err != nil {
		return req, err
	}

	targets := 0
	if b.Latitude != nil || b.Longitude != nil {
		if b.Latitude == nil || b.Longitude == nil {
			return req, errors.New("latitude and longitude must be given together")
		}
		req.Location = &weather.Location{Latitude: *b.Latitude, Longitude: *b.Longitude}
		targets++
	}
	if len(b.Area) > 0 && string(b.Area) != "null" {
		area, err := weather.ParseArea(b.Area)
		if err != nil {
			return req, err
		}
		req.Area = &area
		req.Mode = session.AreaMode(b.Mode)
		targets++
	}
	if strings.TrimSpace(b.City) != "" {
		req.City, req.Country = b.City, b.Country
		targets++
	}
	if targets != 1 {
		return req, errors.New("exactly one of latitude/longitude, area or city is required")
	}
	return req, nil
}

func (h *handlers) fetch(c *fiber.Ctx) error {
	st, err := h.deps.Sessions.Get(c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	var body fetchBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	req, err := body.toRequest()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	series, err := h.deps.Actions.OnFetch(c.UserContext(), st, req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(series)
}

func (h *handlers) historical(c *fiber.Ctx) error {
	st, err := h.deps.Sessions.Get(c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}
	series, ok := st.Historical()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no historical data loaded")
	}

	if c.Query("format") == "csv" {
		out, err := historicalCSV(series)
		if err != nil {
			return err
		}
		return sendCSV(c, "historical.csv", out)
	}
	return c.JSON(series)
}

type forecastBody struct {
	Variable  string   `json:"variable"`
	Variables []string `json:"variables"`
	Days      *int     `json:"days"`
}

func (h *handlers) forecast(c *fiber.Ctx) error {
	st, err := h.deps.Sessions.Get(c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	var body forecastBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	days := h.deps.DefaultDays
	if body.Days != nil {
		days = *body.Days
	}
	if err := validate.Var(days, fmt.Sprintf("min=1,max=%d", h.deps.MaxDays)); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("days must be between 1 and %d", h.deps.MaxDays))
	}

	names := body.Variables
	if body.Variable != "" {
		names = append([]string{body.Variable}, names...)
	}
	if len(names) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "variable or variables is required")
	}
	vars, err := parseVariables(names)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	result, err := h.deps.Actions.OnForecast(c.UserContext(), st, vars, days)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(fiber.Map{
		"days":      days,
		"forecasts": result,
	})
}

func (h *handlers) getForecast(c *fiber.Ctx) error {
	st, err := h.deps.Sessions.Get(c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}
	v, err := weather.ParseVariable(c.Params("variable"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	fs, ok := st.Forecast(v)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("no forecast computed for %s", v))
	}

	if c.Query("format") == "csv" {
		out, err := forecastCSV(fs)
		if err != nil {
			return err
		}
		return sendCSV(c, fmt.Sprintf("forecast_%s.csv", v), out)
	}
	return c.JSON(fs)
}

func (h *handlers) summary(c *fiber.Ctx) error {
	st, err := h.deps.Sessions.Get(c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(fiber.Map{"summary": h.deps.Actions.Summary(st)})
}

type askBody struct {
	Question string `json:"question" validate:"required,max=1000"`
}

func (h *handlers) ask(c *fiber.Ctx) error {
	st, err := h.deps.Sessions.Get(c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	var body askBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	res, err := h.deps.Actions.OnAsk(c.UserContext(), st, body.Question)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(res)
}

func (h *handlers) updateGauge() {
	if h.deps.Gauge != nil {
		h.deps.Gauge.SetActiveSessions(h.deps.Sessions.Len())
	}
}

func parseVariables(names []string) ([]weather.Variable, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]weather.Variable, 0, len(names))
	for _, n := range names {
		v, err := weather.ParseVariable(strings.TrimSpace(n))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// toHTTPError maps domain errors to HTTP status codes.
func toHTTPError(err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return err
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrTooManySessions):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, weather.ErrInvalidInput):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, weather.ErrInsufficientData):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, weather.ErrPreconditionFailed):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, weather.ErrFetchFailed):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, weather.ErrNumericalFailure):
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	default:
		log.Printf("ERROR: unhandled error: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
