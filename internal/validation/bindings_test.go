package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slotInput struct {
	Date string `validate:"required,isodate"`
	Time string `validate:"required,hhmm"`
}

func TestCustomTags(t *testing.T) {
	v := validator.New()
	require.NoError(t, Register(v))

	assert.NoError(t, v.Struct(slotInput{Date: "2025-01-10", Time: "07:30"}))

	cases := []slotInput{
		{Date: "2025-1-10", Time: "07:30"},
		{Date: "2025-02-30", Time: "07:30"},
		{Date: "10/01/2025", Time: "07:30"},
		{Date: "2025-01-10", Time: "7:30"},
		{Date: "2025-01-10", Time: "24:00"},
		{Date: "2025-01-10", Time: "07:30:00"},
	}
	for _, c := range cases {
		err := v.Struct(c)
		assert.Error(t, err, "%+v", c)
	}

	fields := FieldErrors(v.Struct(slotInput{Date: "x", Time: "07:30"}))
	assert.Equal(t, map[string]string{"Date": "isodate"}, fields)
}

func TestRegisterBindings(t *testing.T) {
	assert.NoError(t, RegisterBindings())
}
