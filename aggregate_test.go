package main

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aggRows(pairs ...[2]string) Grid {
	rows := Grid{}
	for _, p := range pairs {
		rows = append(rows, []Value{Normalize(p[0]), Normalize(p[1])})
	}
	return rows
}

func TestAggregateCount(t *testing.T) {
	rows := aggRows(
		[2]string{"Widget", "10"},
		[2]string{"Widget", "20"},
		[2]string{"Gadget", "5"},
		[2]string{"", "99"},
		[2]string{"N/A", "99"},
	)
	series := Aggregate(rows, 0, 1, AggCount)
	require.Equal(t, 2, len(series))
	assert.Equal(t, "Widget", series[0].Key)
	assert.Equal(t, 2.0, series[0].Value)
	assert.Equal(t, "Gadget", series[1].Key)
	assert.Equal(t, 1.0, series[1].Value)
}

func TestAggregateCountTotalMatchesQualifyingRows(t *testing.T) {
	rows := Grid{}
	for i := 0; i < 30; i++ {
		rows = append(rows, []Value{TextValue(fmt.Sprintf("cat%d", i%5))})
	}
	series := Aggregate(rows, 0, 1, AggCount)
	total := 0.0
	for _, b := range series {
		total += b.Value
	}
	assert.Equal(t, 30.0, total)
}

func TestAggregateSumSkipsZeroAndNonNumeric(t *testing.T) {
	rows := aggRows(
		[2]string{"A", "100"},
		[2]string{"A", "0"},
		[2]string{"A", "not a number"},
		[2]string{"A", "50.5"},
		[2]string{"B", "-10"},
	)
	series := Aggregate(rows, 0, 1, AggSum)
	require.Equal(t, 2, len(series))
	assert.Equal(t, "A", series[0].Key)
	assert.InDelta(t, 150.5, series[0].Value, 1e-9)
	assert.Equal(t, -10.0, series[1].Value)
}

func TestAggregateTopEightPlusOthers(t *testing.T) {
	rows := Grid{}
	// eight heavy categories and four light stragglers
	for i := 0; i < 8; i++ {
		for j := 0; j < 10; j++ {
			rows = append(rows, []Value{TextValue(fmt.Sprintf("big%d", i))})
		}
	}
	for i := 0; i < 4; i++ {
		rows = append(rows, []Value{TextValue(fmt.Sprintf("small%d", i))})
	}

	series := Aggregate(rows, 0, 1, AggCount)
	require.Equal(t, 9, len(series))
	last := series[len(series)-1]
	assert.Equal(t, "Others", last.Key)
	assert.Equal(t, 4.0, last.Value)
}

func TestAggregateDropsOversizedOthers(t *testing.T) {
	rows := Grid{}
	// eight singleton leaders and a long tail holding most of the data
	for i := 0; i < 8; i++ {
		rows = append(rows, []Value{TextValue(fmt.Sprintf("lead%d", i))}, []Value{TextValue(fmt.Sprintf("lead%d", i))})
	}
	for i := 0; i < 20; i++ {
		rows = append(rows, []Value{TextValue(fmt.Sprintf("tail%d", i))})
	}

	series := Aggregate(rows, 0, 1, AggCount)
	require.Equal(t, topCategories, len(series))
	for _, b := range series {
		assert.NotEqual(t, "Others", b.Key)
	}
}

func TestAggregateSortsByValueThenKey(t *testing.T) {
	rows := aggRows(
		[2]string{"b", "1"},
		[2]string{"a", "1"},
		[2]string{"c", "1"},
		[2]string{"c", "1"},
	)
	series := Aggregate(rows, 0, 1, AggCount)
	require.Equal(t, 3, len(series))
	assert.Equal(t, "c", series[0].Key)
	assert.Equal(t, "a", series[1].Key)
	assert.Equal(t, "b", series[2].Key)
}

func TestAggregateEmptyInput(t *testing.T) {
	series := Aggregate(Grid{}, 0, 1, AggCount)
	assert.NotNil(t, series)
	assert.Empty(t, series)
}

func TestNumericValue(t *testing.T) {
	assert.Equal(t, 42.5, NumericValue(NumberValue(42.5)))
	assert.Equal(t, 1.0, NumericValue(BoolValue(true)))
	assert.Equal(t, 0.0, NumericValue(BoolValue(false)))
	assert.Equal(t, 0.0, NumericValue(Value{}))

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, float64(ts.UnixMilli()), NumericValue(TimeValue(ts)))

	assert.Equal(t, 1000.5, NumericValue(TextValue("$1,000.50")))
}

func TestParseNumeric(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1234.56", 1234.56},
		{"1,234.56", 1234.56},
		{"1.234,56", 1234.56},
		{"1,234", 1234},
		{"1,23", 1.23},
		{"1.234.567", 1234567},
		{"€ 99,90", 99.90},
		{"-5", -5},
		{"3-4", 34},
		{"abc", 0},
		{"", 0},
		{"  42  ", 42},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.InDelta(t, tc.want, ParseNumeric(tc.in), 1e-9)
		})
	}
}

func TestDisplayLabel(t *testing.T) {
	assert.Equal(t, "short", DisplayLabel("short"))
	assert.Equal(t, "", DisplayLabel("   "))

	// long digit runs keep only the last five
	assert.Equal(t, "…67890", DisplayLabel("1234567890"))
	assert.Equal(t, "…54321", DisplayLabel("998877665544332154321"))

	// nine digits is below the ID threshold
	assert.Equal(t, "123456789", DisplayLabel("123456789"))

	long := "abcdefghijklmnopqrstuvwxyz"
	assert.Equal(t, "abcdefghijklmnopq…", DisplayLabel(long))

	// exactly 20 runes is untouched
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaa", DisplayLabel("aaaaaaaaaaaaaaaaaaaa"))
}

func TestAggregateLabelsFilled(t *testing.T) {
	rows := aggRows([2]string{"supercalifragilisticexpialidocious", "1"})
	series := Aggregate(rows, 0, 1, AggCount)
	require.Equal(t, 1, len(series))
	assert.Equal(t, "supercalifragilisticexpialidocious", series[0].Full)
	assert.Equal(t, "supercalifragilis…", series[0].Display)
}
