package genome

import (
	"errors"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func servableVersion() *Version {
	return &Version{
		Metadata: Metadata{Name: "v1", DeploymentState: StateActive},
		Config: &ModelConfig{
			ModelID:     "us.amazon.nova-pro-v1:0",
			Temperature: ptr(0.0),
			MaxTokens:   ptr(512),
		},
		Brain:     &Brain{Persona: &Persona{Role: "r"}, OperationalGuidelines: []string{}},
		Resources: &Resources{},
	}
}

func TestValidateServable(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(v *Version)
		wantField string
	}{
		{name: "valid", mutate: func(*Version) {}},
		{name: "missing config", mutate: func(v *Version) { v.Config = nil }, wantField: "config"},
		{name: "missing brain", mutate: func(v *Version) { v.Brain = nil }, wantField: "brain"},
		{name: "missing resources", mutate: func(v *Version) { v.Resources = nil }, wantField: "resources"},
		{name: "missing model id", mutate: func(v *Version) { v.Config.ModelID = "" }, wantField: "config.model_id"},
		{name: "missing temperature", mutate: func(v *Version) { v.Config.Temperature = nil }, wantField: "config.temperature"},
		{name: "missing max tokens", mutate: func(v *Version) { v.Config.MaxTokens = nil }, wantField: "config.max_tokens"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := servableVersion()
			tt.mutate(v)
			err := ValidateServable(v)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
			if !errors.Is(err, ErrValidation) {
				t.Error("expected errors.Is(err, ErrValidation)")
			}
		})
	}
}

func TestValidateServable_Nil(t *testing.T) {
	if err := ValidateServable(nil); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestValidateStructure(t *testing.T) {
	tests := []struct {
		name      string
		brain     *Brain
		wantField string
	}{
		{name: "nil brain", brain: nil, wantField: "brain"},
		{name: "missing persona", brain: &Brain{OperationalGuidelines: []string{"x"}}, wantField: "brain.persona"},
		{name: "missing guidelines", brain: &Brain{Persona: &Persona{}}, wantField: "brain.operational_guidelines"},
		{name: "empty guidelines allowed", brain: &Brain{Persona: &Persona{}, OperationalGuidelines: []string{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStructure(tt.brain)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}

func TestValidateVersion_DeploymentState(t *testing.T) {
	v := servableVersion()
	v.Metadata.DeploymentState = "RETIRED"

	err := ValidateVersion(v)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if ve.Field != "deployment_state" {
		t.Errorf("Field = %q, want deployment_state", ve.Field)
	}

	v.Metadata.DeploymentState = StatePendingApproval
	if err := ValidateVersion(v); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
