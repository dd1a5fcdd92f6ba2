package core

import "errors"

// Error taxonomy shared by every layer. Wrap with fmt.Errorf("...: %w", err)
// and compare with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidLocale     = errors.New("invalid locale")
	ErrInvalidPeriod     = errors.New("invalid period")
	ErrIncompleteProfile = errors.New("incomplete profile")
	ErrRenderFailed      = errors.New("render failed")
	ErrDeliveryFailed    = errors.New("delivery failed")
	ErrPeriodNotDefined  = errors.New("period not defined")
	ErrNoEntries         = errors.New("no transaction records available for the given period and ledger")
)

// Kind returns the taxonomy name of err, or "internal" when err does not
// wrap one of the sentinel errors above.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidLocale):
		return "invalid_locale"
	case errors.Is(err, ErrInvalidPeriod), errors.Is(err, ErrPeriodNotDefined):
		return "invalid_period"
	case errors.Is(err, ErrIncompleteProfile):
		return "incomplete_profile"
	case errors.Is(err, ErrNoEntries):
		return "no_entries"
	case errors.Is(err, ErrRenderFailed):
		return "render_failed"
	case errors.Is(err, ErrDeliveryFailed):
		return "delivery_failed"
	default:
		return "internal"
	}
}
