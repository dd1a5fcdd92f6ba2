package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/services"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// ErrInvalidRequest marks a request body or query that failed validation.
var ErrInvalidRequest = errors.New("invalid request")

// requestError carries one message per rejected field.
type requestError struct {
	messages []string
}

func (e *requestError) Error() string { return strings.Join(e.messages, "; ") }
func (e *requestError) Unwrap() error { return ErrInvalidRequest }

func newRequestError(messages ...string) *requestError {
	return &requestError{messages: messages}
}

type reportRequest struct {
	Ledger int64  `json:"ledger" validate:"required,gt=0"`
	Month  int    `json:"month" validate:"required,min=1,max=12"`
	Year   int    `json:"year" validate:"required,min=1,max=9999"`
	Locale string `json:"locale" validate:"omitempty,locale"`
}

// RequestParser decodes and validates request payloads.
type RequestParser struct {
	validate *validator.Validate
}

func NewRequestParser() *RequestParser {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("locale", func(fl validator.FieldLevel) bool {
		_, err := core.ParseLocale(fl.Field().String())
		return err == nil
	})
	return &RequestParser{validate: v}
}

// ParseReportRequest reads a report request body for the given user.
func (p *RequestParser) ParseReportRequest(r *http.Request, userID string) (services.ReportRequest, error) {
	var body reportRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return services.ReportRequest{}, newRequestError("request body is required")
		}
		return services.ReportRequest{}, newRequestError("request body must be valid JSON")
	}
	if err := p.validate.Struct(body); err != nil {
		return services.ReportRequest{}, validationMessages(err)
	}
	locale := body.Locale
	if locale == "" {
		locale = core.DefaultLocale
	}
	return services.ReportRequest{
		UserID:   userID,
		LedgerID: body.Ledger,
		Period:   core.Period{Month: body.Month, Year: body.Year},
		Locale:   locale,
	}, nil
}

// ParsePeriodQuery reads the optional ?month=&year= pair. Both must be
// given together; when neither is, fallback is returned.
func (p *RequestParser) ParsePeriodQuery(r *http.Request, fallback core.Period) (core.Period, error) {
	q := r.URL.Query()
	month, year := strings.TrimSpace(q.Get("month")), strings.TrimSpace(q.Get("year"))
	if month == "" && year == "" {
		return fallback, nil
	}
	if month == "" || year == "" {
		return core.Period{}, newRequestError("month and year must be given together")
	}
	m, errM := strconv.Atoi(month)
	y, errY := strconv.Atoi(year)
	if errM != nil || errY != nil {
		return core.Period{}, newRequestError("month and year must be integers")
	}
	period := core.Period{Month: m, Year: y}
	if err := period.Validate(); err != nil {
		return core.Period{}, newRequestError(err.Error())
	}
	return period, nil
}

func validationMessages(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return newRequestError(err.Error())
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fieldMessage(fe))
	}
	return newRequestError(messages...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "max":
		if fe.Field() == "month" {
			return "month must be between 1 and 12"
		}
		return fmt.Sprintf("%s is out of range", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be a positive id", fe.Field())
	case "locale":
		return "locale must be in the format xx-xx"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
