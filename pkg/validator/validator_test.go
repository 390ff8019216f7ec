package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	FullName    string `form:"fullName" validate:"required"`
	ClassOption string `form:"classOption" validate:"required,classoption"`
	Status      string `json:"status" validate:"omitempty,regstatus"`
	Quota       int    `json:"quota" validate:"gte=0"`
}

func TestValidate_OK(t *testing.T) {
	err := Validate(context.Background(), sample{FullName: "Budi", ClassOption: "B", Status: "approved"})
	require.NoError(t, err)
}

func TestValidate_MissingField(t *testing.T) {
	err := Validate(context.Background(), sample{ClassOption: "A"})
	require.Error(t, err)
	assert.True(t, IsMissingField(err))
	assert.Equal(t, "Field is required: fullName", err.Error())
}

func TestValidate_ClassOption(t *testing.T) {
	err := Validate(context.Background(), sample{FullName: "Budi", ClassOption: "D"})
	require.Error(t, err)
	assert.False(t, IsMissingField(err))
	assert.Contains(t, err.Error(), "classOption")
}

func TestValidate_Status(t *testing.T) {
	err := Validate(context.Background(), sample{FullName: "Budi", ClassOption: "C", Status: "done"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Status must be one of")
}

func TestValidate_NegativeQuota(t *testing.T) {
	err := Validate(context.Background(), sample{FullName: "Budi", ClassOption: "C", Quota: -1})
	require.Error(t, err)
	assert.Equal(t, ErrFieldBelowMinVal+": quota", err.Error())
}

func TestEnumHelpers(t *testing.T) {
	assert.True(t, IsClassOption("A"))
	assert.False(t, IsClassOption("a"))
	assert.True(t, IsRegistrationStatus("rejected"))
	assert.False(t, IsRegistrationStatus(""))
}
