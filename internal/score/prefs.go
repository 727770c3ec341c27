package score

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Flag is a recognized dietary preference token.
type Flag string

const (
	LowCarb       Flag = "low_carb"
	GlutenMindful Flag = "gluten_mindful"
	DairyMindful  Flag = "dairy_mindful"
	NoFried       Flag = "no_fried"
)

// KnownFlags lists the recognized flags in evaluation order.
var KnownFlags = []Flag{LowCarb, GlutenMindful, DairyMindful, NoFried}

// DefaultCalorieTarget is used when no target is given.
const DefaultCalorieTarget = 600

// Preferences describe what the diner is optimizing for.
type Preferences struct {
	CalorieTarget     int    `json:"calorie_target" yaml:"calorie_target" validate:"gt=0,lte=10000"`
	PrioritizeProtein bool   `json:"prioritize_protein" yaml:"prioritize_protein"`
	Flags             []Flag `json:"flags" yaml:"flags"`
}

// DefaultPreferences returns the 600 kcal protein-first defaults.
func DefaultPreferences() Preferences {
	return Preferences{CalorieTarget: DefaultCalorieTarget, PrioritizeProtein: true}
}

// ValidationError reports a preferences value the scorer cannot accept.
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return "invalid preferences: " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Cause }

var validate = validator.New()

// Validate checks p, returning a *ValidationError for a non-positive or
// absurd calorie target. Unknown flags are not an error.
func (p Preferences) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{
			Field:   "calorie_target",
			Message: fmt.Sprintf("must satisfy %s=%s, got %v", fe.Tag(), fe.Param(), fe.Value()),
			Cause:   err,
		}
	}
	return &ValidationError{Message: err.Error(), Cause: err}
}

// ParseFlags normalizes free-form tokens into known flags, dropping unknown
// tokens and duplicates while keeping first-seen order.
func ParseFlags(tokens []string) []Flag {
	var out []Flag
	seen := map[Flag]bool{}
	for _, tok := range tokens {
		f := Flag(strings.ToLower(strings.TrimSpace(tok)))
		if !isKnown(f) || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// SplitFlags parses a comma separated flag list.
func SplitFlags(csv string) []Flag {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	return ParseFlags(strings.Split(csv, ","))
}

func isKnown(f Flag) bool {
	for _, k := range KnownFlags {
		if k == f {
			return true
		}
	}
	return false
}

// Has reports whether the known flag f is active.
func (p Preferences) Has(f Flag) bool {
	for _, x := range p.Flags {
		if x == f {
			return true
		}
	}
	return false
}
