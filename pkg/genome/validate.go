package genome

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// validatorInstance returns the shared validator, reporting fields by their
// JSON names.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// servable is the subset of a version the serving path needs.
type servable struct {
	Config    *ModelConfig `json:"config" validate:"required"`
	Brain     *Brain       `json:"brain" validate:"required"`
	Resources *Resources   `json:"resources" validate:"required"`
}

// brainShape is the structural minimum of a promotable brain.
type brainShape struct {
	Persona               *Persona `json:"persona" validate:"required"`
	OperationalGuidelines []string `json:"operational_guidelines" validate:"required"`
}

// ValidateServable checks that v carries the config, brain and resources
// sections and that config names a model, temperature and max_tokens.
func ValidateServable(v *Version) error {
	if v == nil {
		return NewValidationError("", "genome is nil")
	}
	return toValidationError(validatorInstance().Struct(servable{
		Config:    v.Config,
		Brain:     v.Brain,
		Resources: v.Resources,
	}))
}

// ValidateStructure checks that a brain carries a persona and an
// operational_guidelines list. An empty list is present; a nil one is not.
func ValidateStructure(b *Brain) error {
	if b == nil {
		return NewValidationError("brain", "brain is missing")
	}
	err := validatorInstance().Struct(brainShape{
		Persona:               b.Persona,
		OperationalGuidelines: b.OperationalGuidelines,
	})
	if err != nil {
		verr := toValidationError(err)
		var ve *ValidationError
		if errors.As(verr, &ve) {
			ve.Field = "brain." + ve.Field
		}
		return verr
	}
	return nil
}

// ValidateVersion checks a complete version before it is imported: it must
// be servable and carry a known deployment state.
func ValidateVersion(v *Version) error {
	if err := ValidateServable(v); err != nil {
		return err
	}
	return toValidationError(validatorInstance().Struct(v.Metadata))
}

// toValidationError converts the first validator failure into a
// ValidationError with a dotted JSON path.
func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewValidationError("", err.Error())
	}

	fe := verrs[0]
	field := fe.Namespace()
	// Drop the root struct name.
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required":
		return NewValidationError(field, "is required")
	case "oneof":
		return NewValidationError(field, "must be one of "+fe.Param())
	default:
		return NewValidationError(field, "failed "+fe.Tag()+" check")
	}
}
