package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// arabicIndicDigits maps Arabic-Indic and Extended Arabic-Indic digits to
// their ASCII equivalents. Waybills printed in Iraq routinely mix both.
var arabicIndicDigits = map[rune]rune{
	'٠': '0', '١': '1', '٢': '2', '٣': '3', '٤': '4',
	'٥': '5', '٦': '6', '٧': '7', '٨': '8', '٩': '9',
	'۰': '0', '۱': '1', '۲': '2', '۳': '3', '۴': '4',
	'۵': '5', '۶': '6', '۷': '7', '۸': '8', '۹': '9',
}

// foldDigits rewrites Arabic-Indic digits to ASCII, leaving everything else
// untouched.
func foldDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if d, ok := arabicIndicDigits[r]; ok {
			return d
		}
		return r
	}, s)
}

// normalizePhone folds digits and strips everything that is not a digit.
// Iraqi mobile numbers are 11 digits starting with 07; shorter or longer
// results are kept as-is since presence, not validity, is what downstream
// ranking looks at.
func normalizePhone(raw string) string {
	folded := foldDigits(raw)
	var b strings.Builder
	for _, r := range folded {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseWaybillJSON parses the JSON response from a vision model
func parseWaybillJSON(text string) (*WaybillData, error) {
	// Remove markdown code blocks if present
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var data WaybillData
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	// Clean up text fields; the model sometimes pads values with whitespace
	// or echoes field labels
	data.Code = strings.TrimSpace(foldDigits(data.Code))
	data.SenderName = strings.TrimSpace(data.SenderName)
	data.Province = strings.TrimSpace(data.Province)
	data.Company = strings.TrimSpace(data.Company)
	data.Phone = normalizePhone(data.Phone)

	if data.Price < 0 {
		data.Price = 0
	}

	return &data, nil
}
