package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fd1az/swap-quoter/internal/apperror"
)

// OutcomeKind tags a SourceOutcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	if k == OutcomeSuccess {
		return "success"
	}
	return "failure"
}

// SourceOutcome is what one adapter produced in one round: a result or a
// failure, never both.
type SourceOutcome struct {
	Adapter string

	kind    OutcomeKind
	result  QuoteResult
	code    apperror.Code
	message string
}

// Success wraps a result.
func Success(adapter string, result QuoteResult) SourceOutcome {
	return SourceOutcome{Adapter: adapter, kind: OutcomeSuccess, result: result.Clone()}
}

// Failure wraps an adapter error, keeping its code when it is an AppError.
func Failure(adapter string, err error) SourceOutcome {
	o := SourceOutcome{Adapter: adapter, kind: OutcomeFailure, code: apperror.CodeUnknownError}
	if err == nil {
		return o
	}
	o.message = err.Error()

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		o.code = appErr.Code
		o.message = appErr.Message
		if appErr.Context != "" {
			o.message += ": " + appErr.Context
		}
	}
	return o
}

// Kind returns OutcomeSuccess or OutcomeFailure.
func (o SourceOutcome) Kind() OutcomeKind { return o.kind }

// IsSuccess reports whether the adapter produced a quote.
func (o SourceOutcome) IsSuccess() bool { return o.kind == OutcomeSuccess }

// Result returns the quote of a Success.
func (o SourceOutcome) Result() (QuoteResult, bool) {
	if o.kind != OutcomeSuccess {
		return QuoteResult{}, false
	}
	return o.result.Clone(), true
}

// Code returns the error code of a Failure.
func (o SourceOutcome) Code() apperror.Code { return o.code }

// Message returns the error message of a Failure.
func (o SourceOutcome) Message() string { return o.message }

type outcomeJSON struct {
	Adapter string        `json:"adapter"`
	Kind    string        `json:"kind"`
	Result  *QuoteResult  `json:"result,omitempty"`
	Code    apperror.Code `json:"code,omitempty"`
	Message string        `json:"message,omitempty"`
}

// MarshalJSON encodes the outcome as a tagged object.
func (o SourceOutcome) MarshalJSON() ([]byte, error) {
	w := outcomeJSON{Adapter: o.Adapter, Kind: o.kind.String()}
	if o.kind == OutcomeSuccess {
		r := o.result
		w.Result = &r
	} else {
		w.Code = o.code
		w.Message = o.message
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes an outcome written by MarshalJSON.
func (o *SourceOutcome) UnmarshalJSON(data []byte) error {
	var w outcomeJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "success":
		if w.Result == nil {
			return fmt.Errorf("success outcome for %s without result", w.Adapter)
		}
		*o = SourceOutcome{Adapter: w.Adapter, kind: OutcomeSuccess, result: *w.Result}
	case "failure":
		*o = SourceOutcome{Adapter: w.Adapter, kind: OutcomeFailure, code: w.Code, message: w.Message}
	default:
		return fmt.Errorf("unknown outcome kind %q", w.Kind)
	}
	return nil
}
