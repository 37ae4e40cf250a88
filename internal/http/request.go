package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cashflow/internal/core"
)

const maxBodyBytes = 1 << 20

// Period is the (month, year, type) key read from query parameters.
type Period struct {
	Year  int
	Month int
	Type  core.BudgetType
}

// parsePeriod reads year, month and type. Missing values fall back to
// def; malformed ones are rejected.
func parsePeriod(q url.Values, def Period) (Period, error) {
	p := def
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return Period{}, badRequest("year must be a number")
		}
		p.Year = y
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return Period{}, badRequest("month must be a number")
		}
		p.Month = m
	}
	if v := strings.TrimSpace(q.Get("type")); v != "" {
		p.Type = core.BudgetType(strings.ToUpper(v))
	}
	if p.Type == "" {
		p.Type = core.Personal
	}
	return p, core.ValidatePeriod(p.Month, p.Year, p.Type)
}

// currentPeriod is the PERSONAL period containing now.
func currentPeriod(now time.Time) Period {
	return Period{Year: now.Year(), Month: int(now.Month()), Type: core.Personal}
}

// decodeJSON reads one JSON object from the body into dst, rejecting
// unknown fields, trailing data and bodies over maxBodyBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var (
			syntaxErr *json.SyntaxError
			typeErr   *json.UnmarshalTypeError
			sizeErr   *http.MaxBytesError
			valErr    *core.ValidationError
		)
		switch {
		case errors.As(err, &valErr):
			return valErr
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return badRequest("request body is not valid JSON")
		case errors.As(err, &typeErr):
			return badRequest("field %q has the wrong type", typeErr.Field)
		case errors.As(err, &sizeErr):
			return badRequest("request body is too large")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return badRequest("unknown field %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		}
		return badRequest("invalid request body: %v", err)
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

func parseMode(q url.Values) (core.UpdateMode, error) {
	return core.ParseUpdateMode(strings.TrimSpace(q.Get("mode")))
}

func parseBool(q url.Values, key string) (bool, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest("%s must be true or false", key)
	}
	return b, nil
}
