package inventory

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxLotCodeLength bounds lot codes, including derived suffixes
	MaxLotCodeLength = 64

	// LotSuffixReserve is kept free on received lot codes for the "-<n>"
	// suffixes that splits append
	LotSuffixReserve = 16

	// MaxReceivedLotCodeLength bounds lot codes entered at receipt
	MaxReceivedLotCodeLength = MaxLotCodeLength - LotSuffixReserve
)

var lotCaser = cases.Upper(language.Und)

// NormalizeLotCode canonicalises an operator-entered lot code:
// surrounding space trimmed, Unicode NFC, upper case.
// "lo-01 " and "LO-01" therefore address the same batch.
func NormalizeLotCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	return lotCaser.String(norm.NFC.String(code))
}

// DeriveLotCode builds the lot code for a batch split off parent.
// seq comes from the per-parent-lot sequence and starts at 1.
func DeriveLotCode(parent string, seq int) string {
	return fmt.Sprintf("%s-%d", parent, seq)
}

// ValidateLotCode checks a normalised lot code
func ValidateLotCode(code string) error {
	if code == "" {
		return validationErrorf("lot code is required")
	}
	if len(code) > MaxLotCodeLength {
		return validationErrorf("lot code %q exceeds %d characters", code, MaxLotCodeLength)
	}
	return nil
}

// ValidateReceivedLotCode checks a normalised lot code entered at receipt.
// It must leave room for the suffixes later splits derive from it.
func ValidateReceivedLotCode(code string) error {
	if err := ValidateLotCode(code); err != nil {
		return err
	}
	if len(code) > MaxReceivedLotCodeLength {
		return validationErrorf("lot code %q exceeds %d characters, %d are kept for split suffixes",
			code, MaxReceivedLotCodeLength, LotSuffixReserve)
	}
	return nil
}
