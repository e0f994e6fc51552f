package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// Date layouts accepted on input, tried in order. Layouts without an offset
// are read in the server's configured location.
var localDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

var (
	errMalformedBody = errors.New("malformed JSON body")
	errBodyTooLarge  = fmt.Errorf("request body exceeds %d bytes", MaxBodyBytes)
)

// transactionRequest is the wire shape of POST and PUT bodies. Date stays a
// string so that offset-less values can be placed in the server location.
// Amount is a JSON number or a string such as "12,34".
type transactionRequest struct {
	ID          int64                `json:"id"`
	Description string               `json:"description"`
	Amount      json.RawMessage      `json:"amount"`
	Date        string               `json:"date"`
	Category    string               `json:"category"`
	Type        core.TransactionType `json:"type"`
}

// toTransaction converts the request into a domain value. A malformed date
// fails here, as does an amount that is not a non-negative decimal
// (core.ErrInvalidAmount); everything else is left to core validation.
func (req transactionRequest) toTransaction(loc *time.Location) (core.Transaction, error) {
	amount, err := parseAmountField(req.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		ID:          req.ID,
		Description: strings.TrimSpace(req.Description),
		Amount:      amount,
		Category:    strings.TrimSpace(req.Category),
		Type:        req.Type,
	}
	if strings.TrimSpace(req.Date) != "" {
		date, err := ParseDate(req.Date, loc)
		if err != nil {
			return core.Transaction{}, err
		}
		tx.Date = date
	}
	return tx, nil
}

// parseAmountField reads a JSON number or string through core.ParseAmount.
// An absent or null amount is zero.
func parseAmountField(raw json.RawMessage) (decimal.Decimal, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return decimal.Zero, nil
	}
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, fmt.Errorf("%w: %v", core.ErrInvalidAmount, err)
		}
	}
	amount, err := core.ParseAmount(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w %q", err, text)
	}
	return amount, nil
}

// ParseDate accepts RFC 3339 timestamps and the local layouts above.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range localDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use RFC 3339 or YYYY-MM-DD", s)
}

// ParseID reads the {id} path value as a positive integer.
func ParseID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid transaction id %q", raw)
	}
	return id, nil
}

// decodeJSON reads exactly one JSON value from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return fmt.Errorf("%w: %w", errMalformedBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON value", errMalformedBody)
	}
	return nil
}
