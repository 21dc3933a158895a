package extract

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pledgescope/models"
	"github.com/ysmood/gson"
)

func captured(t *testing.T, url, body string) models.CapturedResponse {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return models.CapturedResponse{URL: url, Body: gson.New(v)}
}

func TestScanNetwork_DataArrayWithDeclaredTotal(t *testing.T) {
	out := scanNetwork([]models.CapturedResponse{
		captured(t, "https://x/api/contributions", `{
			"data": [{"name": "Alice", "amount": "25"}, {"name": "Anonyme", "amount": "10"}],
			"total": 12
		}`),
	})

	require.Len(t, out.Records, 2)
	assert.Equal(t, Record{Name: "Alice", AmountText: "25"}, out.Records[0])
	assert.Equal(t, Record{Name: "Anonyme", AmountText: "10"}, out.Records[1])
	require.NotNil(t, out.TotalCount)
	assert.Equal(t, 12, *out.TotalCount)
}

func TestScanNetwork_FirstValidPayloadWins(t *testing.T) {
	out := scanNetwork([]models.CapturedResponse{
		captured(t, "https://x/api/config", `{"feature": true, "items": [{"id": 1}]}`),
		captured(t, "https://x/api/first", `[{"donorName": "Bob", "amountFormatted": "1.234,56 €"}]`),
		captured(t, "https://x/api/second", `{"results": [{"name": "Carol", "value": 5}, {"name": "Dan", "value": 6}]}`),
	})

	require.Len(t, out.Records, 1)
	assert.Equal(t, "Bob", out.Records[0].Name)
	assert.Equal(t, "1.234,56 €", out.Records[0].AmountText)
	require.NotNil(t, out.TotalCount)
	assert.Equal(t, 1, *out.TotalCount, "falls back to the record count")
}

func TestScanNetwork_KeyPriority(t *testing.T) {
	// "items" comes before "rows" in the candidate order.
	out := scanNetwork([]models.CapturedResponse{
		captured(t, "u", `{"rows": [{"name": "R", "amount": 1}], "items": [{"name": "I", "amount": 2}]}`),
	})
	require.Len(t, out.Records, 1)
	assert.Equal(t, "I", out.Records[0].Name)
}

func TestScanNetwork_OnlyFirstArrayKeyIsConsidered(t *testing.T) {
	// "items" is an array but holds nothing valid; "data" is never looked at.
	out := scanNetwork([]models.CapturedResponse{
		captured(t, "u", `{"items": [{"id": 1}], "data": [{"name": "D", "amount": 2}]}`),
	})
	assert.True(t, out.Empty())
}

func TestScanNetwork_AliasesAndValidation(t *testing.T) {
	out := scanNetwork([]models.CapturedResponse{
		captured(t, "u", `{"contributions": [
			{"contributorName": "  Eve  ", "amount_label": "50 €"},
			{"contributor": "Frank", "amount": 0},
			{"name": "", "amount": "5"},
			{"name": "NoAmount"},
			{"name": "Blank", "amount": "   "},
			{"name": "NullAmount", "amount": null, "value": "7"},
			"not an object"
		], "totalCount": 40}`),
	})

	require.Len(t, out.Records, 3)
	assert.Equal(t, Record{Name: "Eve", AmountText: "50 €"}, out.Records[0])
	assert.Equal(t, Record{Name: "Frank", AmountText: "0"}, out.Records[1])
	assert.Equal(t, Record{Name: "NullAmount", AmountText: "7"}, out.Records[2])
	assert.Equal(t, 40, *out.TotalCount)
}

func TestScanNetwork_TotalKeyPriority(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"total first", `{"list": [{"name": "A", "amount": 1}], "count": 3, "total": 9}`, 9},
		{"count before totalCount", `{"list": [{"name": "A", "amount": 1}], "totalCount": 4, "count": 3}`, 3},
		{"contributionsCount", `{"list": [{"name": "A", "amount": 1}], "contributionsCount": 8}`, 8},
		{"numeric string", `{"list": [{"name": "A", "amount": 1}], "total": "15"}`, 15},
		{"null skipped", `{"list": [{"name": "A", "amount": 1}], "total": null, "count": 2}`, 2},
		{"negative ignored", `{"list": [{"name": "A", "amount": 1}], "total": -3}`, 1},
		{"fraction ignored", `{"list": [{"name": "A", "amount": 1}], "total": 2.5}`, 1},
		{"zero is present", `{"list": [{"name": "A", "amount": 1}], "total": 0}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := scanNetwork([]models.CapturedResponse{captured(t, "u", tt.body)})
			require.False(t, out.Empty())
			assert.Equal(t, tt.want, *out.TotalCount)
		})
	}
}

func TestScanNetwork_NestedArray(t *testing.T) {
	out := scanNetwork([]models.CapturedResponse{
		captured(t, "u", `{"data": {"items": [{"name": "Gina", "amount": "30"}], "total": 77}}`),
	})
	require.Len(t, out.Records, 1)
	assert.Equal(t, "Gina", out.Records[0].Name)
	assert.Equal(t, 77, *out.TotalCount)
}

func TestScanNetwork_Nothing(t *testing.T) {
	assert.True(t, scanNetwork(nil).Empty())
	assert.True(t, scanNetwork([]models.CapturedResponse{
		captured(t, "u", `{"status": "ok"}`),
		captured(t, "u", `"just a string"`),
		captured(t, "u", `[]`),
	}).Empty())
}
