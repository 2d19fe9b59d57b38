package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ViewpointType is the framing applied to one perspective call.
type ViewpointType int

// The closed set of viewpoints, in their canonical order.
const (
	Informative ViewpointType = iota + 1
	Contrarian
	Complementary
)

// AllViewpoints lists every viewpoint in canonical order.
func AllViewpoints() []ViewpointType {
	return []ViewpointType{Informative, Contrarian, Complementary}
}

func (v ViewpointType) String() string {
	switch v {
	case Informative:
		return "Informative"
	case Contrarian:
		return "Contrarian"
	case Complementary:
		return "Complementary"
	default:
		return "Unknown"
	}
}

// Valid reports whether v is one of the defined viewpoints.
func (v ViewpointType) Valid() bool {
	switch v {
	case Informative, Contrarian, Complementary:
		return true
	default:
		return false
	}
}

// ParseViewpoint accepts a viewpoint name in any case.
func ParseViewpoint(s string) (ViewpointType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "informative":
		return Informative, nil
	case "contrarian":
		return Contrarian, nil
	case "complementary":
		return Complementary, nil
	default:
		return 0, eris.Errorf("model: unknown viewpoint %q", s)
	}
}

// MarshalText encodes the viewpoint by name.
func (v ViewpointType) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, eris.Errorf("model: invalid viewpoint %d", int(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText decodes a viewpoint name.
func (v *ViewpointType) UnmarshalText(b []byte) error {
	parsed, err := ParseViewpoint(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
