// This file implements utilities for parsing and validating request data:
// JSON bodies, path ids, deletion policies and date parameters.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/filter"
)

// maxBodyBytes bounds request bodies. Imports are the largest payloads.
const maxBodyBytes = 16 << 20

// errBadRequest marks malformed requests that never reached the services.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// decodeJSON reads a single JSON document into dst, rejecting unknown
// fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("empty body")
		}
		return badRequest("invalid JSON: %v", err)
	}
	if dec.More() {
		return badRequest("invalid JSON: trailing data")
	}
	return nil
}

// pathID parses the {name} route variable as an id.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, badRequest("invalid %s %q", name, raw)
	}
	return id, nil
}

// parseDeletePolicy reads ?mode= and ?target=. The mode is required so a
// client never cascades by accident.
func parseDeletePolicy(q url.Values) (core.DeletePolicy, error) {
	p := core.DeletePolicy{Mode: core.DeleteMode(strings.ToLower(strings.TrimSpace(q.Get("mode"))))}
	if p.Mode == "" {
		return p, fmt.Errorf("%w: mode is required (reassign, cascade or detach)", core.ErrInvalidPolicy)
	}
	if t := strings.TrimSpace(q.Get("target")); t != "" {
		id, err := uuid.Parse(t)
		if err != nil {
			return p, badRequest("invalid target %q", t)
		}
		p.Target = id
	}
	return p, nil
}

// parseDate parses a YYYY-MM-DD date in loc. Empty input yields the zero
// time.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(filter.DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q, want YYYY-MM-DD", core.ErrInvalidDate, s)
	}
	return t, nil
}

// parseRange reads the from/to query parameters. to is exclusive.
func parseRange(q url.Values, loc *time.Location) (time.Time, time.Time, error) {
	from, err := parseDate(q.Get("from"), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("from: %w", err)
	}
	to, err := parseDate(q.Get("to"), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("to: %w", err)
	}
	return from, to, nil
}

// parseOptionalID parses an optional id field of a request body.
func parseOptionalID(field, s string) (*uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q", core.ErrInvalidInput, field, s)
	}
	return &id, nil
}

func parseRequiredID(field, s string) (uuid.UUID, error) {
	id, err := parseOptionalID(field, s)
	if err != nil {
		return uuid.Nil, err
	}
	if id == nil {
		return uuid.Nil, nil
	}
	return *id, nil
}

func parseIDList(field string, values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := parseRequiredID(field, v)
		if err != nil {
			return nil, err
		}
		if id != uuid.Nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// parseOptionalRate parses an exchange rate. Empty means unset.
func parseOptionalRate(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q", core.ErrInvalidRate, s)
	}
	return d, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
