package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ConserveLee/cookie-idle/internal/constants"
)

// ErrInvalidSettings is wrapped by every settings rejection
var ErrInvalidSettings = errors.New("invalid settings")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	_ = v.RegisterValidation("fkey", func(fl validator.FieldLevel) bool {
		_, err := ParseToggleKey(fl.Field().String())
		return err == nil
	})

	return v
}

// ValidationError describes why user supplied settings were rejected
type ValidationError struct {
	Mode     Mode
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s settings: %s", e.Mode, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidSettings
}

// ParseToggleKey accepts "f8", "F8" or "8" and returns the canonical "f8".
// Only function keys F1-F24 are accepted.
func ParseToggleKey(raw string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.TrimPrefix(value, "f")
	if value == "" {
		return "", fmt.Errorf("toggle key is empty")
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return "", fmt.Errorf("toggle key %q is not a function key", raw)
	}
	if n < constants.MinFunctionKey || n > constants.MaxFunctionKey {
		return "", fmt.Errorf("toggle key F%d out of range F%d-F%d", n, constants.MinFunctionKey, constants.MaxFunctionKey)
	}
	return "f" + strconv.Itoa(n), nil
}

func canonicalKey(raw string) string {
	if key, err := ParseToggleKey(raw); err == nil {
		return key
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

// Validate checks s against the settings bounds
func Validate(m Mode, s ModeSettings) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Mode: m, Problems: []string{err.Error()}}
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return &ValidationError{Mode: m, Problems: problems}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be >= %s (got %v)", fe.Field(), fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be <= %s (got %v)", fe.Field(), fe.Param(), fe.Value())
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "fkey":
		return fmt.Sprintf("%s must be F%d-F%d (got %q)", fe.Field(), constants.MinFunctionKey, constants.MaxFunctionKey, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// Input is the raw text of a settings form, as typed by the user
type Input struct {
	ToggleKey       string
	IntervalSeconds string
	IntervalMillis  string
	Confidence      string
	Template        string // Empty keeps the current template
}

// InputFrom renders s as form text
func InputFrom(s ModeSettings) Input {
	return Input{
		ToggleKey:       strings.ToUpper(s.ToggleKey),
		IntervalSeconds: strconv.Itoa(s.IntervalSeconds),
		IntervalMillis:  strconv.Itoa(s.IntervalMillis),
		Confidence:      strconv.FormatFloat(s.Confidence, 'f', 2, 64),
		Template:        s.Template,
	}
}

// Parse converts in into settings for m, starting from current. Nothing is
// returned unless every field parses and the result validates.
func (in Input) Parse(m Mode, current ModeSettings) (ModeSettings, error) {
	next := current
	var problems []string

	if key, err := ParseToggleKey(in.ToggleKey); err != nil {
		problems = append(problems, err.Error())
	} else {
		next.ToggleKey = key
	}

	parseInt := func(name, raw string, dst *int) {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s %q is not a whole number", name, raw))
			return
		}
		*dst = v
	}
	parseInt("interval_sec", in.IntervalSeconds, &next.IntervalSeconds)
	parseInt("interval_ms", in.IntervalMillis, &next.IntervalMillis)

	if v, err := strconv.ParseFloat(strings.TrimSpace(in.Confidence), 64); err != nil {
		problems = append(problems, fmt.Sprintf("confidence %q is not a number", in.Confidence))
	} else {
		next.Confidence = v
	}

	if t := strings.TrimSpace(in.Template); t != "" {
		next.Template = t
	}

	if len(problems) > 0 {
		return current, &ValidationError{Mode: m, Problems: problems}
	}
	if err := Validate(m, next); err != nil {
		return current, err
	}
	return next, nil
}
