package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	Name   string          `json:"name" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"gt=0,money"`
}

type request struct {
	Method string `json:"payment_method" validate:"required,oneof=cash mobile_money"`
	Lines  []line `json:"lines" validate:"required,min=1,dive"`
}

func TestStruct(t *testing.T) {
	ok := request{Method: "cash", Lines: []line{{Name: "Tuition", Amount: decimal.RequireFromString("10.50")}}}
	require.NoError(t, Struct(ok))

	bad := request{Method: "barter", Lines: []line{{Amount: decimal.RequireFromString("10.555")}}}
	err := Struct(bad)
	var v Violations
	require.ErrorAs(t, err, &v)
	assert.Contains(t, v, "payment_method")
	assert.Contains(t, v, "lines[0].name")
	assert.Equal(t, "amount must have at most 2 decimal places", v["lines[0].amount"])

	neg := request{Method: "cash", Lines: []line{{Name: "x", Amount: decimal.NewFromInt(-1)}}}
	require.ErrorAs(t, Struct(neg), &v)
	assert.Contains(t, v["lines[0].amount"], "greater than 0")
}

func TestMoneyPlaces(t *testing.T) {
	t.Cleanup(func() { SetMoneyPlaces(2) })
	thousandths := line{Name: "Tuition", Amount: decimal.RequireFromString("10.555")}

	SetMoneyPlaces(3)
	assert.NoError(t, Struct(thousandths))

	SetMoneyPlaces(0)
	var v Violations
	require.ErrorAs(t, Struct(line{Name: "Tuition", Amount: decimal.RequireFromString("10.5")}), &v)
	assert.Equal(t, "amount must have at most 0 decimal places", v["amount"])
	assert.NoError(t, Struct(line{Name: "Tuition", Amount: decimal.NewFromInt(10)}))
}
