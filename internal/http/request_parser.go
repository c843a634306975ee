// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"finanzas/internal/core"
)

// maxBodyBytes caps request bodies; records are a handful of short fields.
const maxBodyBytes = 64 << 10

// TokenHeader carries the snapshot token as an alternative to ?token=.
const TokenHeader = "X-Snapshot-Token"

// PeriodParams holds a parsed year and optional "YYYY-MM" month period.
type PeriodParams struct {
	Year   int
	Period string
}

// ParsePeriodParams reads year and month from the query. A missing year is
// returned as 0 so the ledger can pick one.
func ParsePeriodParams(query url.Values) (PeriodParams, error) {
	var p PeriodParams
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1900 || y > 9999 {
			return p, fmt.Errorf("invalid year %q", v)
		}
		p.Year = y
	}
	month := query.Get("month")
	if month == "" {
		return p, nil
	}
	if p.Year == 0 {
		// "YYYY-MM" carries its own year.
		if y, _, ok := strings.Cut(month, "-"); ok {
			if n, err := strconv.Atoi(y); err == nil {
				p.Year = n
			}
		}
		if p.Year == 0 {
			return p, fmt.Errorf("month %q needs a year", month)
		}
	}
	period, err := core.ParsePeriod(p.Year, month)
	if err != nil {
		return p, err
	}
	p.Period = period
	return p, nil
}

// ParseIndex reads the {index} path segment.
func ParseIndex(r *http.Request) (int, error) {
	raw := r.PathValue("index")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid index %q", raw)
	}
	return n, nil
}

// SnapshotToken returns the token from the query or the header.
func SnapshotToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	return strings.TrimSpace(r.Header.Get(TokenHeader))
}

// RequestBodyParser handles JSON and form-encoded bodies.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("malformed JSON body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a sanitized string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// fieldError names the offending field of a malformed body.
type fieldError struct {
	Field string
	Err   error
}

func (e *fieldError) Error() string { return fmt.Sprintf("%s: %v", e.Field, e.Err) }
func (e *fieldError) Unwrap() error { return e.Err }

func parseDateField(p *RequestBodyParser, field string) (core.Date, error) {
	v := p.Get(field)
	if v == "" {
		return core.Date{}, nil // left for validation
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, &fieldError{Field: field, Err: err}
	}
	return d, nil
}

func parseAmountField(p *RequestBodyParser, field string) (int64, error) {
	v := p.Get(field)
	if v == "" {
		return 0, &fieldError{Field: field, Err: core.ErrInvalidAmount}
	}
	n, err := core.ParseAmount(v)
	if err != nil {
		return 0, &fieldError{Field: field, Err: err}
	}
	return n, nil
}

// ParseTransaction reads date, name, amount and category.
func ParseTransaction(p *RequestBodyParser) (core.Transaction, error) {
	date, err := parseDateField(p, "date")
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := parseAmountField(p, "amount")
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		Date:     date,
		Name:     p.Get("name"),
		Amount:   amount,
		Category: p.Get("category"),
	}, nil
}

// ParseSavingsEntry reads date, amount and description.
func ParseSavingsEntry(p *RequestBodyParser) (core.SavingsEntry, error) {
	date, err := parseDateField(p, "date")
	if err != nil {
		return core.SavingsEntry{}, err
	}
	amount, err := parseAmountField(p, "amount")
	if err != nil {
		return core.SavingsEntry{}, err
	}
	return core.SavingsEntry{Date: date, Amount: amount, Description: p.Get("description")}, nil
}

// ParseGoal reads name, target_amount, target_date and description.
func ParseGoal(p *RequestBodyParser) (core.SavingsGoal, error) {
	date, err := parseDateField(p, "target_date")
	if err != nil {
		return core.SavingsGoal{}, err
	}
	amount, err := parseAmountField(p, "target_amount")
	if err != nil {
		return core.SavingsGoal{}, err
	}
	return core.SavingsGoal{
		Name:         p.Get("name"),
		TargetAmount: amount,
		TargetDate:   date,
		Description:  p.Get("description"),
	}, nil
}
