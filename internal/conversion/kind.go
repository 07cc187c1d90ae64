package conversion

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind selects the scalar function applied to every value.
type Kind int

const (
	Log2 Kind = iota
	ArcSin
)

const (
	DefaultFactor float32 = 5.0
	MinFactor     float32 = 1.0
	MaxFactor     float32 = 100.0
)

// Kinds lists every supported transform in trigger-action order.
var Kinds = []Kind{Log2, ArcSin}

func (k Kind) String() string {
	switch k {
	case Log2:
		return "Log2"
	case ArcSin:
		return "Arcsin"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Valid reports whether k is a member of the enumeration.
func (k Kind) Valid() bool { return k == Log2 || k == ArcSin }

// Formula renders the transform the way task descriptions show it,
// e.g. "log2(value+1)" or "arcsin(value/5.0)".
func (k Kind) Formula(factor float32) string {
	switch k {
	case Log2:
		return "log2(value+1)"
	case ArcSin:
		return "arcsin(value/" + formatFactor(factor) + ")"
	default:
		return k.String()
	}
}

// formatFactor prints the shortest exact form, with at least one decimal.
func formatFactor(f float32) string {
	s := strconv.FormatFloat(float64(f), 'f', -1, 32)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// ParseKind accepts the display names plus a few aliases, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "log2":
		return Log2, nil
	case "arcsin", "asinh", "arcsinh":
		return ArcSin, nil
	}
	return 0, fmt.Errorf("conversion: unknown kind %q", s)
}
