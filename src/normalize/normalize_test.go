package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/username/finboard/backend/src/models"
)

func TestExtractNumber(t *testing.T) {
	t.Run("case-insensitive match", func(t *testing.T) {
		row := models.RawRow{"Amount": "150.00", "Memo": "rent"}
		assert.Equal(t, 150.0, ExtractNumber(row, []string{"amount", "txn_amount"}))
	})

	t.Run("blank primary alias falls through", func(t *testing.T) {
		row := models.RawRow{"Amount": "", "txn_amount": "75"}
		assert.Equal(t, 75.0, ExtractNumber(row, []string{"amount", "txn_amount"}))
	})

	t.Run("unresolved yields NaN", func(t *testing.T) {
		row := models.RawRow{"Memo": "rent"}
		assert.True(t, math.IsNaN(ExtractNumber(row, []string{"amount"})))
	})

	t.Run("non-numeric value counts as missing", func(t *testing.T) {
		row := models.RawRow{"amount": "a lot"}
		assert.True(t, math.IsNaN(ExtractNumber(row, []string{"amount"})))
	})

	t.Run("json-decoded float", func(t *testing.T) {
		row := models.RawRow{"Amount": 42.5}
		assert.Equal(t, 42.5, ExtractNumber(row, []string{"amount"}))
	})
}

func TestExtractString(t *testing.T) {
	t.Run("resolves and trims", func(t *testing.T) {
		row := models.RawRow{"Category": " groceries "}
		assert.Equal(t, "groceries", ExtractString(row, []string{"category", "cat"}))
	})

	t.Run("unresolved yields empty string", func(t *testing.T) {
		row := models.RawRow{"Amount": "150.00", "Memo": "rent"}
		assert.Equal(t, "", ExtractString(row, []string{"category", "cat"}))
	})

	t.Run("nil value is absent", func(t *testing.T) {
		row := models.RawRow{"category": nil, "cat": "food"}
		assert.Equal(t, "food", ExtractString(row, []string{"category", "cat"}))
	})
}

func TestExtractBoolean(t *testing.T) {
	for _, v := range []any{"true", "TRUE", "YES", "1", "t", "y", " Yes ", true, 1} {
		assert.True(t, ExtractBoolean(v), "expected truthy: %v", v)
	}
	for _, v := range []any{"", "no", "false", "0", "n", nil, "maybe", 0} {
		assert.False(t, ExtractBoolean(v), "expected falsy: %v", v)
	}
}

func TestComputeIssues(t *testing.T) {
	fields := []models.FieldSpec{
		{Name: "amount", Kind: models.FieldNumber, Aliases: []string{"amount", "txn_amount"}, Required: true},
		{Name: "category", Kind: models.FieldString, Aliases: []string{"category", "cat"}, Required: true},
		{Name: "region", Kind: models.FieldString, Aliases: []string{"region"}, Required: true},
		{Name: "memo", Kind: models.FieldString, Aliases: []string{"memo"}}, // optional, never reported
	}

	t.Run("fully missing field", func(t *testing.T) {
		rows := []models.RawRow{{"Amount": "150.00", "Memo": "rent", "region": "EU"}}
		issues := ComputeIssues(rows, fields)
		assert.Contains(t, issues.Missing, "category")
		assert.NotContains(t, issues.Detected, "category")
	})

	t.Run("partially missing field appears in both lists", func(t *testing.T) {
		rows := []models.RawRow{
			{"amount": "1", "cat": "a", "region": "EU"},
			{"amount": "2", "cat": "b", "region": "US"},
			{"amount": "3", "cat": "c"},
		}
		issues := ComputeIssues(rows, fields)
		assert.Contains(t, issues.Detected, "region")
		assert.Contains(t, issues.Missing, "region")
		assert.NotContains(t, issues.Missing, "amount")
		assert.NotContains(t, issues.Missing, "category")
	})

	t.Run("non-numeric amount counts as missing", func(t *testing.T) {
		rows := []models.RawRow{{"amount": "oops", "cat": "a", "region": "EU"}}
		issues := ComputeIssues(rows, fields)
		assert.Contains(t, issues.Missing, "amount")
		assert.NotContains(t, issues.Detected, "amount")
	})

	t.Run("optional fields never reported", func(t *testing.T) {
		rows := []models.RawRow{{"amount": "1", "cat": "a", "region": "EU"}}
		issues := ComputeIssues(rows, fields)
		assert.NotContains(t, issues.Missing, "memo")
		assert.NotContains(t, issues.Detected, "memo")
	})
}

func TestNormalizeRows(t *testing.T) {
	fields := []models.FieldSpec{
		{Name: "amount", Kind: models.FieldNumber, Aliases: []string{"amount"}},
		{Name: "category", Kind: models.FieldString, Aliases: []string{"category"}},
		{Name: "recurring", Kind: models.FieldBool, Aliases: []string{"recurring"}},
	}
	rows := []models.RawRow{
		{"Amount": "10.50", "Category": "rent", "Recurring": "yes"},
		{"Memo": "malformed row"},
	}

	records := NormalizeRows(rows, fields)
	assert.Len(t, records, 2)

	assert.Equal(t, 10.5, records[0]["amount"])
	assert.Equal(t, "rent", records[0]["category"])
	assert.Equal(t, true, records[0]["recurring"])

	// Malformed row degrades to sentinels, never an error.
	assert.True(t, math.IsNaN(records[1]["amount"].(float64)))
	assert.Equal(t, "", records[1]["category"])
	assert.Equal(t, false, records[1]["recurring"])
}

func TestNormalizedRecordJSONSentinels(t *testing.T) {
	rec := models.NormalizedRecord{"amount": math.NaN(), "category": "rent"}
	data, err := rec.MarshalJSON()
	assert.NoError(t, err)
	assert.JSONEq(t, `{"amount": null, "category": "rent"}`, string(data))
}
