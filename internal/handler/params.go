package handler

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/drink-tracker/internal/apperror"
	"github.com/sakif/drink-tracker/internal/auth"
	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/query"
)

// queryParams reads optional filter fields from a URL query. Absent or blank
// fields come back nil; a field that is present but malformed records the
// first error, which Err reports once all fields have been read.
type queryParams struct {
	values url.Values
	err    error
}

func newQueryParams(r *http.Request) *queryParams {
	return &queryParams{values: r.URL.Query()}
}

func (p *queryParams) Err() error {
	return p.err
}

func (p *queryParams) invalid(key string) {
	if p.err == nil {
		p.err = apperror.ValidationFailed(key, fmt.Sprintf("Invalid value for %s", key))
	}
}

func (p *queryParams) raw(key string) (string, bool) {
	v := strings.TrimSpace(p.values.Get(key))
	return v, v != ""
}

func (p *queryParams) String(key string) *string {
	v, ok := p.raw(key)
	if !ok {
		return nil
	}
	return &v
}

func (p *queryParams) Float(key string) *float64 {
	v, ok := p.raw(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		p.invalid(key)
		return nil
	}
	return &f
}

func (p *queryParams) Int(key string) *int64 {
	v, ok := p.raw(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.invalid(key)
		return nil
	}
	return &n
}

// Time accepts the API timestamp format, RFC 3339, or a bare date.
func (p *queryParams) Time(key string) *time.Time {
	v, ok := p.raw(key)
	if !ok {
		return nil
	}
	ts, err := model.ParseTimestamp(v)
	if err != nil {
		p.invalid(key)
		return nil
	}
	return &ts.Time
}

// IDs collects ids from every given key, comma lists and repeated keys alike.
func (p *queryParams) IDs(keys ...string) []int64 {
	var raw []string
	for _, k := range keys {
		raw = append(raw, p.values[k]...)
	}
	return query.ParseIDs(raw...)
}

// Flag is true only for the literal "true".
func (p *queryParams) Flag(key string) bool {
	return p.values.Get(key) == "true"
}

// Viewer builds the visibility scope for a listing from the caller's identity
// and the include_public flag.
func (p *queryParams) Viewer(id auth.Identity) query.Viewer {
	if id.Anonymous() {
		return query.Anonymous()
	}
	return query.AsUser(id.ID(), p.Flag("include_public"))
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, key string) (int64, error) {
	raw := chi.URLParam(r, key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed(key, fmt.Sprintf("Missing or invalid %s", key))
	}
	return id, nil
}
