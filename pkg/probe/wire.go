package probe

import "encoding/json"

// queryResponse mirrors the provider's JSON result shape:
// {"results":[{"series":[{"columns":[...],"values":[[...],...]}]}]}.
type queryResponse struct {
	Results []struct {
		Series []struct {
			Columns []string        `json:"columns"`
			Values  [][]interface{} `json:"values"`
		} `json:"series"`
		Error string `json:"error"`
	} `json:"results"`
}

// decodedRow is one strongly-typed row decoded from a provider series,
// tolerant of unknown/missing columns (spec.md §9).
type decodedRow struct {
	Time        string
	URL         string
	ResultCode  *float64
	PacketLoss  *float64
	hasTime     bool
	hasURL      bool
	hasResult   bool
	hasPktLoss  bool
}

// decodeSeries converts one series' column/value arrays into rows, looking
// up each expected column by name rather than assuming positional order.
func decodeSeries(columns []string, values [][]interface{}) []decodedRow {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}

	rows := make([]decodedRow, 0, len(values))
	for _, v := range values {
		var row decodedRow
		if i, ok := idx["time"]; ok && i < len(v) {
			if s, ok := v[i].(string); ok {
				row.Time = s
				row.hasTime = true
			}
		}
		if i, ok := idx["url"]; ok && i < len(v) {
			if s, ok := v[i].(string); ok {
				row.URL = s
				row.hasURL = true
			}
		}
		if i, ok := idx["result_code"]; ok && i < len(v) {
			if f, ok := asFloat(v[i]); ok {
				row.ResultCode = &f
				row.hasResult = true
			}
		}
		if i, ok := idx["packet_loss"]; ok && i < len(v) {
			if f, ok := asFloat(v[i]); ok {
				row.PacketLoss = &f
				row.hasPktLoss = true
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// successful reports whether a decoded row represents a successful ping:
// result_code == 0 AND packet_loss < 100 (spec.md §4.1).
func (r decodedRow) successful() bool {
	if !r.hasResult || !r.hasPktLoss {
		return false
	}
	return *r.ResultCode == 0 && *r.PacketLoss < 100
}
