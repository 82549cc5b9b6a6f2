package analytics

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mfarias/fudo-analytics/internal/domain"
)

// DefaultTimezone is the display timezone used when none is configured.
// Fudo timestamps arrive in UTC and are converted before any bucketing.
const DefaultTimezone = "America/Argentina/Buenos_Aires"

// Field alias tables, in resolution priority order. The Fudo API nests the
// canonical names under "attributes"; the tail entries cover older payload
// shapes and other POS exports. Adding an alias means appending here, not
// touching the resolution logic.
var (
	timestampAliases = []string{"createdAt", "datetime", "date", "created_at", "created"}
	amountAliases    = []string{"total", "totalAmount", "amount", "total_amount", "price", "value"}
	partySizeAliases = []string{"people", "pax", "guests", "customers", "numberOfPeople", "num_people"}
	idAliases        = []string{"id", "saleId", "orderId"}
)

// timestampLayouts are tried in order. Layouts without zone information are
// interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalizer converts heterogeneous raw sale records into domain.Sale values.
// Malformed individual fields degrade to defaults and are logged; only a
// structurally invalid batch (not a list of objects) is an error.
type Normalizer struct {
	loc *time.Location
	now func() time.Time
	log zerolog.Logger
}

// NewNormalizer builds a normalizer for the given IANA timezone name. An
// empty name selects DefaultTimezone.
func NewNormalizer(timezone string, log zerolog.Logger) (*Normalizer, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("NewNormalizer: load timezone %q: %w", timezone, err)
	}
	return &Normalizer{loc: loc, now: time.Now, log: log}, nil
}

// Location returns the normalizer's display timezone.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Normalize converts a batch of raw records into sales. The input must be a
// list of objects ([]map[string]interface{} or []interface{} holding maps);
// anything else fails fast. nil input yields an empty, valid batch.
func (n *Normalizer) Normalize(input interface{}) ([]domain.Sale, error) {
	records, err := coerceRecords(input)
	if err != nil {
		return nil, fmt.Errorf("Normalize: %w", err)
	}

	flat := make([]map[string]interface{}, len(records))
	for i, rec := range records {
		flat[i] = flattenRecord(rec)
	}

	// The timestamp fallback is a batch-level decision: only when no record
	// in the batch carries any timestamp field does every sale get "now" in
	// the display timezone. A batch that has the field but fails to parse it
	// on some records leaves those sales without a timestamp instead.
	hasTimestampField := false
	for _, f := range flat {
		if _, ok := firstPresent(f, timestampAliases); ok {
			hasTimestampField = true
			break
		}
	}

	var missingTimestamps, coercedAmounts int
	sales := make([]domain.Sale, 0, len(records))
	for i, f := range flat {
		var sale domain.Sale

		if raw, ok := firstPresent(f, idAliases); ok {
			sale.ID = stringifyID(raw)
		}
		if sale.ID == "" {
			sale.ID = strconv.Itoa(i + 1)
		}

		if !hasTimestampField {
			sale.Timestamp = n.now().In(n.loc)
		} else if raw, ok := firstPresent(f, timestampAliases); ok {
			if ts, ok := parseTimestamp(raw); ok {
				sale.Timestamp = ts.In(n.loc)
			} else {
				missingTimestamps++
			}
		} else {
			missingTimestamps++
		}

		if raw, ok := firstPresent(f, amountAliases); ok {
			amount, ok := parseAmount(raw)
			if !ok {
				coercedAmounts++
			}
			sale.Amount = amount
		} else {
			sale.Amount = decimal.Zero
		}

		if raw, ok := firstPresent(f, partySizeAliases); ok {
			sale.PartySize = parseCount(raw)
		}

		sale.ItemRefs = extractItemRefs(records[i])
		sales = append(sales, sale)
	}

	if !hasTimestampField && len(sales) > 0 {
		n.log.Warn().Int("sales", len(sales)).Msg("Batch has no timestamp field, falling back to current time")
	}
	if missingTimestamps > 0 {
		n.log.Warn().Int("sales", missingTimestamps).Msg("Sales with unparseable timestamps excluded from time buckets")
	}
	if coercedAmounts > 0 {
		n.log.Warn().Int("sales", coercedAmounts).Msg("Sales with non-numeric amounts coerced to zero")
	}

	return sales, nil
}

// coerceRecords validates the batch shape. This is the only place the
// normalizer fails: everything past it degrades per field.
func coerceRecords(input interface{}) ([]map[string]interface{}, error) {
	switch v := input.(type) {
	case nil:
		return nil, nil
	case []map[string]interface{}:
		return v, nil
	case []interface{}:
		records := make([]map[string]interface{}, 0, len(v))
		for i, item := range v {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("record %d is %T, want object", i, item)
			}
			records = append(records, obj)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("input is %T, want a list of objects", input)
	}
}

// flattenRecord merges the JSON:API "attributes" envelope into a flat view of
// the record. Top-level keys win over attribute keys of the same name; nested
// objects inside attributes are flattened with "_" joins so lookups stay flat.
func flattenRecord(rec map[string]interface{}) map[string]interface{} {
	flat := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		flat[k] = v
	}
	attrs, ok := rec["attributes"].(map[string]interface{})
	if !ok {
		return flat
	}
	mergeFlattened(flat, "", attrs)
	return flat
}

func mergeFlattened(dst map[string]interface{}, prefix string, src map[string]interface{}) {
	for k, v := range src {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			mergeFlattened(dst, key, nested)
			continue
		}
		if _, exists := dst[key]; !exists {
			dst[key] = v
		}
	}
}

// firstPresent returns the value of the first alias present in the record.
func firstPresent(rec map[string]interface{}, aliases []string) (interface{}, bool) {
	for _, alias := range aliases {
		if v, ok := rec[alias]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func parseTimestamp(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			ts, err := time.ParseInLocation(layout, s, time.UTC)
			if err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// parseAmount coerces a raw amount to decimal. The second return reports
// whether the coercion succeeded; on failure the amount is zero, matching the
// "never missing" contract. A nested {"value": ...} object (some POS exports
// wrap the total with a currency) resolves through its value field.
func parseAmount(v interface{}) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case map[string]interface{}:
		if inner, ok := val["value"]; ok {
			return parseAmount(inner)
		}
	}
	return decimal.Zero, false
}

func parseCount(v interface{}) int {
	switch val := v.(type) {
	case float64:
		if val < 0 {
			return 0
		}
		return int(val)
	case int:
		if val < 0 {
			return 0
		}
		return val
	case int64:
		if val < 0 {
			return 0
		}
		return int(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil || f < 0 {
			return 0
		}
		return int(f)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || i < 0 {
			return 0
		}
		return i
	}
	return 0
}

func stringifyID(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	}
	return ""
}

// extractItemRefs reads the ids of the sale's line items from the JSON:API
// relationships block. The refs point into the "included" side-table and are
// resolved later by the entity graph.
func extractItemRefs(rec map[string]interface{}) []string {
	rels, ok := rec["relationships"].(map[string]interface{})
	if !ok {
		return nil
	}
	items, ok := rels["items"].(map[string]interface{})
	if !ok {
		return nil
	}
	data, ok := items["data"].([]interface{})
	if !ok {
		return nil
	}
	refs := make([]string, 0, len(data))
	for _, item := range data {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if id := stringifyID(obj["id"]); id != "" {
			refs = append(refs, id)
		}
	}
	return refs
}
