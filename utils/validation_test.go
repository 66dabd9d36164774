package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testQuery struct {
	Prompt    string   `json:"prompt" validate:"required"`
	UserID    string   `json:"userId" validate:"required"`
	Priority  string   `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Providers []string `json:"providers,omitempty" validate:"omitempty,max=4,dive,required"`
	Internal  string   `json:"-" validate:"omitempty,min=3"`
	NoTag     int      `validate:"gte=0,lte=10"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name       string
		input      testQuery
		wantFields []string
	}{
		{
			name:  "valid",
			input: testQuery{Prompt: "best CRM", UserID: "u1", Priority: "high", Providers: []string{"openai"}},
		},
		{
			name:       "missing required fields use json names",
			input:      testQuery{},
			wantFields: []string{"prompt", "userId"},
		},
		{
			name:       "priority outside enum",
			input:      testQuery{Prompt: "p", UserID: "u", Priority: "urgent"},
			wantFields: []string{"priority"},
		},
		{
			name:       "empty provider id",
			input:      testQuery{Prompt: "p", UserID: "u", Providers: []string{"openai", ""}},
			wantFields: []string{"providers[1]"},
		},
		{
			name:       "untagged field uses struct name",
			input:      testQuery{Prompt: "p", UserID: "u", NoTag: 11},
			wantFields: []string{"NoTag"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			fields := GetValidationFields(err)
			assert.Len(t, fields, len(tt.wantFields))
			for _, f := range tt.wantFields {
				assert.Contains(t, fields, f)
			}
		})
	}
}

func TestNewValidationError_Messages(t *testing.T) {
	err := ValidateStruct(&testQuery{UserID: "u", Priority: "urgent"})
	fields := GetValidationFields(err)

	assert.Equal(t, "prompt is required", fields["prompt"])
	assert.Equal(t, "priority must be one of: low medium high", fields["priority"])
	assert.Equal(t, "Validation failed", err.Error())
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(&ValidationError{Message: "x"}))
	assert.False(t, IsValidationError(errors.New("x")))
	assert.Nil(t, GetValidationFields(errors.New("x")))
}

func TestValidateUUID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "0b9c2f3e-5c1a-4b8e-9f3d-2a1e4c6b8d0f", false},
		{"empty", "", true},
		{"not a uuid", "query-1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUUID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
