package extract

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/use-agent/pledgescope/models"
	"github.com/ysmood/gson"
)

// Keys under which a payload may carry its list of records, in priority order.
var arrayKeys = []string{"items", "results", "data", "contributions", "list", "rows"}

// Aliases for a record's contributor name, in priority order.
var nameKeys = []string{"name", "donorName", "contributorName", "contributor"}

// Aliases for a record's amount label, in priority order.
var amountKeys = []string{"amountFormatted", "amount_label", "amount", "value"}

// Keys that may carry the page's own contribution count, in priority order.
var totalKeys = []string{"total", "count", "totalCount", "contributionsCount"}

// scanNetwork walks the captured payloads in the order they were observed
// and returns the records of the first one holding at least one valid
// record. No cross-checking between payloads is done.
func scanNetwork(responses []models.CapturedResponse) Outcome {
	for _, resp := range responses {
		arr, owner, ok := candidateArray(resp.Body)
		if !ok {
			continue
		}

		var records []Record
		for _, item := range arr {
			if rec, valid := recordFrom(item); valid {
				records = append(records, rec)
			}
		}
		if len(records) == 0 {
			continue
		}

		total, found := declaredTotal(resp.Body.Val())
		if !found && owner != nil {
			total, found = declaredTotal(owner)
		}
		if !found {
			total = len(records)
		}

		return Outcome{
			Records:    records,
			TotalCount: intPtr(total),
			Strategy:   StrategyNetwork,
		}
	}
	return Outcome{}
}

// candidateArray returns the record list of a payload: the payload itself
// when it is an array, else the first array-valued candidate key. When no
// top-level candidate key holds an array, object-valued candidate keys are
// searched one level down (e.g. {"data": {"items": [...]}}); owner is then
// that nested object.
func candidateArray(body gson.JSON) (arr []any, owner map[string]any, ok bool) {
	switch v := body.Val().(type) {
	case []any:
		return v, nil, true
	case map[string]any:
		if arr, ok := firstArray(v); ok {
			return arr, nil, true
		}
		for _, k := range arrayKeys {
			nested, isObj := v[k].(map[string]any)
			if !isObj {
				continue
			}
			if arr, ok := firstArray(nested); ok {
				return arr, nested, true
			}
		}
	}
	return nil, nil, false
}

func firstArray(obj map[string]any) ([]any, bool) {
	for _, k := range arrayKeys {
		if arr, ok := obj[k].([]any); ok {
			return arr, true
		}
	}
	return nil, false
}

// recordFrom validates one candidate: it needs both a non-empty name and a
// non-empty amount.
func recordFrom(item any) (Record, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return Record{}, false
	}
	name := firstText(obj, nameKeys)
	amountText := firstText(obj, amountKeys)
	if name == "" || amountText == "" {
		return Record{}, false
	}
	return Record{Name: name, AmountText: amountText}, true
}

func firstText(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s := scalarText(obj[k]); s != "" {
			return s
		}
	}
	return ""
}

// scalarText renders a JSON scalar as trimmed text. Objects, arrays and
// null render as "".
func scalarText(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// declaredTotal reads the first present total key holding a non-negative
// integer (number or numeric string).
func declaredTotal(v any) (int, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return 0, false
	}
	for _, k := range totalKeys {
		raw, present := obj[k]
		if !present || raw == nil {
			continue
		}
		if n, ok := asCount(raw); ok {
			return n, true
		}
	}
	return 0, false
}

func asCount(v any) (int, bool) {
	var f float64
	switch x := v.(type) {
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = x
	case int:
		f = float64(x)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		f = float64(parsed)
	default:
		return 0, false
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
