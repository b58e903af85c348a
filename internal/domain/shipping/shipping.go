// Package shipping classifies destination regions into freight zones and
// computes the freight surcharge.
package shipping

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrUnrecognizedRegion is the errors.Is target for UnrecognizedRegionError.
var ErrUnrecognizedRegion = errors.New("unrecognized region")

// UnrecognizedRegionError indicates a region code outside the known domain.
type UnrecognizedRegionError struct {
	Code string
}

func (e *UnrecognizedRegionError) Error() string {
	return fmt.Sprintf("unrecognized region %q", e.Code)
}

// Is reports whether target is ErrUnrecognizedRegion.
func (e *UnrecognizedRegionError) Is(target error) bool {
	return target == ErrUnrecognizedRegion
}

// Zone is a freight bucket.
type Zone string

const (
	// ZoneZero ships without surcharge.
	ZoneZero Zone = "ZERO"
	// ZoneMid covers the rest of the home macro-region.
	ZoneMid Zone = "MID"
	// ZoneOther covers every other known region.
	ZoneOther Zone = "OTHER"
)

var rates = map[Zone]decimal.Decimal{
	ZoneZero:  decimal.Zero,
	ZoneMid:   decimal.RequireFromString("0.05"),
	ZoneOther: decimal.RequireFromString("0.08"),
}

// regions maps every Brazilian federative unit code to its zone.
var regions = map[string]Zone{
	"SP": ZoneZero,

	"RJ": ZoneMid,
	"MG": ZoneMid,
	"ES": ZoneMid,

	"AC": ZoneOther,
	"AL": ZoneOther,
	"AP": ZoneOther,
	"AM": ZoneOther,
	"BA": ZoneOther,
	"CE": ZoneOther,
	"DF": ZoneOther,
	"GO": ZoneOther,
	"MA": ZoneOther,
	"MT": ZoneOther,
	"MS": ZoneOther,
	"PA": ZoneOther,
	"PB": ZoneOther,
	"PR": ZoneOther,
	"PE": ZoneOther,
	"PI": ZoneOther,
	"RN": ZoneOther,
	"RS": ZoneOther,
	"RO": ZoneOther,
	"RR": ZoneOther,
	"SC": ZoneOther,
	"SE": ZoneOther,
	"TO": ZoneOther,
}

// NormalizeRegion trims and upper-cases a region code.
func NormalizeRegion(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ClassifyRegion validates the code against the known domain and returns its
// zone. Codes outside the domain fail with *UnrecognizedRegionError and are
// never defaulted to ZoneOther.
func ClassifyRegion(code string) (Zone, error) {
	zone, ok := regions[NormalizeRegion(code)]
	if !ok {
		return "", &UnrecognizedRegionError{Code: code}
	}
	return zone, nil
}

// Regions returns the sorted list of known region codes.
func Regions() []string {
	codes := make([]string, 0, len(regions))
	for code := range regions {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// Rate returns the freight rate of the zone as a fraction.
func (z Zone) Rate() decimal.Decimal {
	return rates[z]
}

func (z Zone) String() string {
	return string(z)
}

// Freight returns amount multiplied by the zone rate. The amount is the
// order total after the loyalty discount.
func Freight(z Zone, amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(z.Rate())
}
