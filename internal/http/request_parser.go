package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"caja/internal/core"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object into v. Unknown fields and trailing
// data are rejected as invalid input.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty request body", core.ErrInvalidInput)
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body over %d bytes", core.ErrInvalidInput, maxErr.Limit)
		case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidInput):
			return err
		default:
			return fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", core.ErrInvalidInput)
	}
	return nil
}

// queryInt reads an optional positive integer, clamped to max.
func queryInt(q url.Values, key string, def, max int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", core.ErrInvalidInput, key)
	}
	if n > max {
		n = max
	}
	return n, nil
}

// queryTime reads an optional RFC 3339 timestamp or YYYY-MM-DD date.
func queryTime(q url.Values, key string) (time.Time, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return d.Time, nil
}

// Request bodies. Identifiers that appear in the route are not repeated here.
type (
	groupRequest struct {
		Name         string          `json:"name"`
		InterestRate decimal.Decimal `json:"interest_rate"`
		FinePolicy   core.FinePolicy `json:"fine_policy"`
		Rules        string          `json:"rules"`
		Frequency    core.Frequency  `json:"frequency"`
	}

	memberRequest struct {
		Name       string `json:"name"`
		ExternalID string `json:"external_id"`
	}

	depositRequest struct {
		MemberID   int64            `json:"member_id"`
		Amount     core.Money       `json:"amount"`
		Kind       core.SavingsKind `json:"kind"`
		SessionRef string           `json:"session_ref"`
	}

	loanRequest struct {
		MemberID     int64               `json:"member_id"`
		Principal    core.Money          `json:"principal"`
		InterestRate decimal.NullDecimal `json:"interest_rate"`
		Term         int                 `json:"term"`
		OriginatedOn core.Date           `json:"originated_on"`
	}

	paymentRequest struct {
		Capital  core.Money `json:"capital"`
		Interest core.Money `json:"interest"`
		PaidOn   core.Date  `json:"paid_on"`
	}

	attendanceRequest struct {
		MemberID int64        `json:"member_id"`
		Outcome  core.Outcome `json:"outcome"`
	}

	fineRequest struct {
		MemberID int64      `json:"member_id"`
		Amount   core.Money `json:"amount"`
		Note     string     `json:"note"`
	}

	cycleRequest struct {
		StartDate core.Date `json:"start_date"`
		EndDate   core.Date `json:"end_date"`
	}
)

func (g groupRequest) toGroup() core.Group {
	return core.Group{
		Name:         sanitizeInput(g.Name),
		InterestRate: g.InterestRate,
		FinePolicy:   g.FinePolicy,
		Rules:        sanitizeInput(g.Rules),
		Frequency:    g.Frequency,
	}
}
