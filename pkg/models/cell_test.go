package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell_Text(t *testing.T) {
	tests := []struct {
		name string
		cell Cell
		want string
	}{
		{"null", NullCell(), ""},
		{"zero value is null", Cell{}, ""},
		{"text", TextCell("abc"), "abc"},
		{"integer number", NumberCell(3), "3"},
		{"fractional number", NumberCell(1.5), "1.5"},
		{"negative number", NumberCell(-2), "-2"},
		{"true", BoolCell(true), "true"},
		{"false", BoolCell(false), "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cell.Text())
		})
	}
}

func TestCell_IsEmpty(t *testing.T) {
	assert.True(t, NullCell().IsEmpty())
	assert.True(t, TextCell("").IsEmpty())
	assert.True(t, TextCell("   ").IsEmpty())
	assert.False(t, TextCell("x").IsEmpty())
	assert.False(t, NumberCell(0).IsEmpty(), "zero is a value, not a missing cell")
	assert.False(t, BoolCell(false).IsEmpty())
}

func TestCell_Number(t *testing.T) {
	tests := []struct {
		name   string
		cell   Cell
		want   float64
		wantOK bool
	}{
		{"number", NumberCell(4), 4, true},
		{"numeric text", TextCell("12"), 12, true},
		{"padded text", TextCell("  7.5 "), 7.5, true},
		{"exponent", TextCell("1e3"), 1000, true},
		{"empty text", TextCell(""), 0, false},
		{"word", TextCell("abc"), 0, false},
		{"NaN text", TextCell("NaN"), 0, false},
		{"infinity text", TextCell("Inf"), 0, false},
		{"hex text", TextCell("0x10"), 0, false},
		{"true", BoolCell(true), 1, true},
		{"false", BoolCell(false), 0, true},
		{"null", NullCell(), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.cell.Number()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCell_Equal(t *testing.T) {
	assert.True(t, TextCell("3").Equal(TextCell("3")))
	assert.False(t, TextCell("3").Equal(NumberCell(3)))
	assert.True(t, NullCell().Equal(Cell{}))
}

func TestCell_UnmarshalJSON(t *testing.T) {
	var row map[string]Cell
	err := json.Unmarshal([]byte(`{"a":"x","b":2,"c":true,"d":null,"e":{"k":1},"f":[1,2]}`), &row)
	require.NoError(t, err)

	assert.Equal(t, TextCell("x"), row["a"])
	assert.Equal(t, NumberCell(2), row["b"])
	assert.Equal(t, BoolCell(true), row["c"])
	assert.Equal(t, NullCell(), row["d"])
	assert.Equal(t, TextCell(`{"k":1}`), row["e"])
	assert.Equal(t, TextCell("[1,2]"), row["f"])
}

func TestCell_MarshalJSON(t *testing.T) {
	out, err := json.Marshal([]Cell{NullCell(), TextCell("a"), NumberCell(1.5), BoolCell(false)})
	require.NoError(t, err)
	assert.JSONEq(t, `[null,"a",1.5,false]`, string(out))
}

func TestCellFromAny(t *testing.T) {
	assert.Equal(t, NullCell(), CellFromAny(nil))
	assert.Equal(t, TextCell("x"), CellFromAny("x"))
	assert.Equal(t, NumberCell(3), CellFromAny(3))
	assert.Equal(t, NumberCell(2.5), CellFromAny(json.Number("2.5")))
	assert.Equal(t, BoolCell(true), CellFromAny(true))
	assert.Equal(t, TextCell(`["a"]`), CellFromAny([]string{"a"}))
}
