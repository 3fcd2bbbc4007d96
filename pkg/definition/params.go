package definition

import (
	"fmt"
	"math"
	"time"
)

// maxSeconds is the largest whole number of seconds a time.Duration holds
const maxSeconds = math.MaxInt64 / int64(time.Second)

// Params holds the free-form parameters of a state declaration
type Params map[string]any

// String returns the string parameter key. A missing key yields fallback.
func (p Params) String(key, fallback string) (string, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return fallback, nil
	}

	value, ok := raw.(string)
	if !ok {
		return "", invalid(ErrInvalidParam, "%s: expected string, got %T", key, raw)
	}
	return value, nil
}

// RequireString is String without a fallback
func (p Params) RequireString(key string) (string, error) {
	value, err := p.String(key, "")
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", invalid(ErrInvalidParam, "%s: required", key)
	}
	return value, nil
}

// Duration accepts Go duration strings ("1.5s", "250ms") or a plain number
// of seconds
func (p Params) Duration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return fallback, nil
	}

	switch v := raw.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, invalid(fmt.Errorf("%w: %w", ErrInvalidParam, err), "%s", key)
		}
		return d, nil
	case int:
		if int64(v) > maxSeconds || int64(v) < -maxSeconds {
			return 0, invalid(ErrInvalidParam, "%s: %d seconds is out of range", key, v)
		}
		return time.Duration(v) * time.Second, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, invalid(ErrInvalidParam, "%s: not a finite number", key)
		}
		nanos := v * float64(time.Second)
		if nanos >= math.MaxInt64 || nanos <= math.MinInt64 {
			return 0, invalid(ErrInvalidParam, "%s: %v seconds is out of range", key, v)
		}
		return time.Duration(nanos), nil
	default:
		return 0, invalid(ErrInvalidParam, "%s: expected duration, got %T", key, raw)
	}
}

// Int returns the integer parameter key
func (p Params) Int(key string, fallback int) (int, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return fallback, nil
	}

	switch v := raw.(type) {
	case int:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, invalid(ErrInvalidParam, "%s: expected integer, got %v", key, v)
		}
		return int(v), nil
	default:
		return 0, invalid(ErrInvalidParam, "%s: expected integer, got %T", key, raw)
	}
}

// Bool returns the boolean parameter key
func (p Params) Bool(key string, fallback bool) (bool, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return fallback, nil
	}

	value, ok := raw.(bool)
	if !ok {
		return false, invalid(ErrInvalidParam, "%s: expected bool, got %T", key, raw)
	}
	return value, nil
}
