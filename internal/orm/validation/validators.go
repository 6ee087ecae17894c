package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Pre-compiled regex patterns for validators
var (
	e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
)

// absent is implemented by reference values that can be unset
type absent interface {
	IsAbsent() bool
}

// IsBlank reports whether value counts as missing: nil, an absent
// reference or an empty list.
func IsBlank(value any) bool {
	if value == nil {
		return true
	}
	if a, ok := value.(absent); ok {
		return a.IsAbsent()
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice:
		return rv.IsNil() || rv.Len() == 0
	case reflect.Ptr, reflect.Map:
		return rv.IsNil()
	}
	return false
}

// Required rejects missing values
func Required() schema.Constraint { return &RequiredValidator{} }

// Min sets a lower bound on numbers and on string length
func Min(n float64) schema.Constraint { return &MinValidator{Min: n} }

// Max sets an upper bound on numbers and on string length
func Max(n float64) schema.Constraint { return &MaxValidator{Max: n} }

// Pattern requires strings to match expr. It panics if expr does not compile.
func Pattern(expr string) schema.Constraint {
	return &PatternValidator{Pattern: regexp.MustCompile(expr)}
}

// Enum restricts values to the given set
func Enum(values ...any) schema.Constraint { return &EnumValidator{Values: values} }

// Email requires a valid email address
func Email() schema.Constraint { return &EmailValidator{} }

// URL requires an absolute URL
func URL() schema.Constraint { return &URLValidator{} }

// Phone requires an E.164 phone number
func Phone() schema.Constraint { return &PhoneValidator{} }

// MinItems sets a lower bound on list length
func MinItems(n int) schema.Constraint { return &MinLengthValidator{MinLength: n} }

// MaxItems sets an upper bound on list length
func MaxItems(n int) schema.Constraint { return &MaxLengthValidator{MaxLength: n} }

// Custom wraps a function as a named constraint. fn is not called for
// missing values.
func Custom(name string, fn func(value any) error) schema.Constraint {
	return &CustomValidator{RuleName: name, Fn: fn}
}

// RequiredValidator rejects missing values
type RequiredValidator struct{}

func (v *RequiredValidator) Name() string { return "required" }

// Check implements schema.Constraint
func (v *RequiredValidator) Check(value any) error {
	if IsBlank(value) {
		return fmt.Errorf("is required")
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return fmt.Errorf("is required")
	}
	return nil
}

// MinValidator validates minimum values for numbers and string lengths
type MinValidator struct {
	Min float64
}

func (v *MinValidator) Name() string { return "min" }

// Check implements schema.Constraint
func (v *MinValidator) Check(value any) error {
	if s, ok := value.(string); ok {
		if float64(utf8.RuneCountInString(s)) < v.Min {
			return fmt.Errorf("must be at least %v characters", v.Min)
		}
		return nil
	}
	n, ok := toFloat64(value)
	if !ok {
		return fmt.Errorf("expected numeric value")
	}
	if n < v.Min {
		return fmt.Errorf("must be at least %v", v.Min)
	}
	return nil
}

// MaxValidator validates maximum values for numbers and string lengths
type MaxValidator struct {
	Max float64
}

func (v *MaxValidator) Name() string { return "max" }

// Check implements schema.Constraint
func (v *MaxValidator) Check(value any) error {
	if s, ok := value.(string); ok {
		if float64(utf8.RuneCountInString(s)) > v.Max {
			return fmt.Errorf("must be at most %v characters", v.Max)
		}
		return nil
	}
	n, ok := toFloat64(value)
	if !ok {
		return fmt.Errorf("expected numeric value")
	}
	if n > v.Max {
		return fmt.Errorf("must be at most %v", v.Max)
	}
	return nil
}

// PatternValidator validates string values against a regex pattern
type PatternValidator struct {
	Pattern *regexp.Regexp
}

func (v *PatternValidator) Name() string { return "pattern" }

// Check implements schema.Constraint
func (v *PatternValidator) Check(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("pattern validation requires string value")
	}
	if !v.Pattern.MatchString(s) {
		return fmt.Errorf("does not match required pattern")
	}
	return nil
}

// EnumValidator restricts values to a fixed set
type EnumValidator struct {
	Values []any
}

func (v *EnumValidator) Name() string { return "enum" }

// Check implements schema.Constraint
func (v *EnumValidator) Check(value any) error {
	for _, allowed := range v.Values {
		if reflect.DeepEqual(allowed, value) {
			return nil
		}
		if a, ok := toFloat64(allowed); ok {
			if b, ok := toFloat64(value); ok && a == b {
				return nil
			}
		}
	}
	return fmt.Errorf("must be one of %v", v.Values)
}

// EmailValidator validates email addresses
type EmailValidator struct{}

func (v *EmailValidator) Name() string { return "email" }

// Check implements schema.Constraint
func (v *EmailValidator) Check(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("email validation requires string value")
	}
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("email address cannot be empty")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("must be a valid email address")
	}
	return nil
}

// URLValidator validates URLs
type URLValidator struct{}

func (v *URLValidator) Name() string { return "url" }

// Check implements schema.Constraint
func (v *URLValidator) Check(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("URL validation requires string value")
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("must be a valid URL")
	}
	if u.Scheme == "" {
		return fmt.Errorf("URL must include a scheme (http, https, etc.)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}

// PhoneValidator validates phone numbers in E.164 format
type PhoneValidator struct{}

func (v *PhoneValidator) Name() string { return "phone" }

// Check implements schema.Constraint
func (v *PhoneValidator) Check(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("phone validation requires string value")
	}
	if !e164Pattern.MatchString(s) {
		return fmt.Errorf("must be a valid phone number in E.164 format (+[country code][number])")
	}
	return nil
}

// MinLengthValidator validates minimum length for lists
type MinLengthValidator struct {
	MinLength int
}

func (v *MinLengthValidator) Name() string { return "min_items" }

// Check implements schema.Constraint
func (v *MinLengthValidator) Check(value any) error {
	n, ok := listLen(value)
	if !ok {
		return fmt.Errorf("min_items validation requires a list")
	}
	if n < v.MinLength {
		return fmt.Errorf("must contain at least %d items", v.MinLength)
	}
	return nil
}

// MaxLengthValidator validates maximum length for lists
type MaxLengthValidator struct {
	MaxLength int
}

func (v *MaxLengthValidator) Name() string { return "max_items" }

// Check implements schema.Constraint
func (v *MaxLengthValidator) Check(value any) error {
	n, ok := listLen(value)
	if !ok {
		return fmt.Errorf("max_items validation requires a list")
	}
	if n > v.MaxLength {
		return fmt.Errorf("must contain at most %d items", v.MaxLength)
	}
	return nil
}

// CustomValidator runs a user-supplied check
type CustomValidator struct {
	RuleName string
	Fn       func(value any) error
}

func (v *CustomValidator) Name() string { return v.RuleName }

// Check implements schema.Constraint
func (v *CustomValidator) Check(value any) error {
	return v.Fn(value)
}

func listLen(value any) (int, bool) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0, false
	}
	return rv.Len(), true
}

func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
