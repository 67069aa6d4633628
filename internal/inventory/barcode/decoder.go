// Package barcode decodes raw scanner input into structured label data.
//
// Three encodings are supported, tried in order: the vendor "3PR" format
// with ** separators, bracketed GS1 with parenthesised application
// identifiers, and flattened GS1 with no separators at all. The first
// format that matches wins; anything else is unrecognized.
package barcode

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Format identifies which encoding a label was decoded from.
type Format string

const (
	FormatThreePR Format = "3PR"
	FormatGS1     Format = "GS1"
	FormatGS1Flat Format = "GS1_FLAT"
)

// Label is the structured result of a successful decode. ExpiryDate is a
// display string: GS1 expiries are normalized to DD.MM.20YY, 3PR expiries
// are passed through verbatim.
type Label struct {
	ProductCode string `json:"product_code"`
	LotNumber   string `json:"lot_number"`
	ExpiryDate  string `json:"expiry_date"`
	Format      Format `json:"format"`
}

var (
	threePRCode = regexp.MustCompile(`3PR[0-9A-Za-z]+`)

	gs1ProductCode = regexp.MustCompile(`\(01\)(\d{14})`)
	gs1Expiry      = regexp.MustCompile(`\(17\)(\d{6})`)
	gs1Lot         = regexp.MustCompile(`\(10\)([^(]+)`)

	// Flattened labels are stripped of separators before matching, so a
	// group-separator control character never reaches these patterns.
	flatStrip       = regexp.MustCompile(`[^0-9A-Za-z]`)
	flatProductCode = regexp.MustCompile(`^01(\d{14})`)
	flatExpiry      = regexp.MustCompile(`17(\d{6})`)

	// The lot value is captured non-greedily and terminated by the next
	// known AI code followed by a digit, or by the end of the string.
	// Without the terminator the lot would swallow a following AI payload.
	flatLot = regexp.MustCompile(`10([0-9A-Za-z]+?)(?:(?:01|17|21|15|11|30|37)[0-9]|$)`)
)

// Decode parses a raw scanned string. It reports ok=false for any input
// that matches none of the known formats; malformed labels and non-barcode
// input are indistinguishable to the caller.
func Decode(raw string) (Label, bool) {
	if strings.Contains(raw, "**") && strings.Contains(raw, "3PR") {
		return decodeThreePR(raw)
	}

	if label, ok := decodeGS1(raw); ok {
		return label, true
	}

	return decodeGS1Flat(raw)
}

func decodeThreePR(raw string) (Label, bool) {
	segments := strings.Split(raw, "**")

	label := Label{Format: FormatThreePR}
	label.ProductCode = threePRCode.FindString(segments[0])
	if len(segments) > 1 {
		label.LotNumber = segments[1]
	}
	if len(segments) > 2 {
		label.ExpiryDate = segments[2]
	}

	if label.ProductCode == "" {
		return Label{}, false
	}
	return label, true
}

func decodeGS1(raw string) (Label, bool) {
	code := gs1ProductCode.FindStringSubmatch(raw)
	if code == nil {
		return Label{}, false
	}

	label := Label{Format: FormatGS1, ProductCode: code[1]}
	if m := gs1Expiry.FindStringSubmatch(raw); m != nil {
		label.ExpiryDate = formatGS1Expiry(m[1])
	}
	if m := gs1Lot.FindStringSubmatch(raw); m != nil {
		label.LotNumber = m[1]
	}
	return label, true
}

func decodeGS1Flat(raw string) (Label, bool) {
	stripped := flatStrip.ReplaceAllString(raw, "")

	code := flatProductCode.FindStringSubmatch(stripped)
	if code == nil {
		return Label{}, false
	}

	label := Label{Format: FormatGS1Flat, ProductCode: code[1]}

	rest := stripped[16:]
	if m := flatExpiry.FindStringSubmatch(rest); m != nil {
		label.ExpiryDate = formatGS1Expiry(m[1])
	}
	if m := flatLot.FindStringSubmatch(rest); m != nil {
		label.LotNumber = m[1]
	}
	return label, true
}

// formatGS1Expiry renders a 6-digit YYMMDD expiry as DD.MM.20YY. Two-digit
// years are always read as 20xx.
func formatGS1Expiry(raw string) string {
	if len(raw) != 6 {
		return ""
	}
	return fmt.Sprintf("%s.%s.20%s", raw[4:6], raw[2:4], raw[0:2])
}

// NormalizeProductCode strips leading zeros from purely numeric codes so
// that padded GTINs resolve to the same catalog entry as their short form.
// Non-numeric codes are returned unchanged.
func NormalizeProductCode(code string) string {
	if code == "" || !isDigits(code) {
		return code
	}
	trimmed := strings.TrimLeft(code, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var expiryLayouts = []string{"02.01.2006", "2006-01-02", "02.01.06"}

// ParseExpiry converts a decoded expiry string into a calendar date. It
// accepts the normalized DD.MM.YYYY form, ISO dates from manual entry, and
// raw 6-digit YYMMDD values from 3PR labels.
func ParseExpiry(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty expiry date")
	}

	if len(raw) == 6 && isDigits(raw) {
		raw = formatGS1Expiry(raw)
	}

	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported expiry date format: %q", raw)
}
