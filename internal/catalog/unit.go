package catalog

import (
	"errors"
	"strings"
)

var (
	// ErrUnitProvinceRequired indicates a unit row without the province
	// segment.
	ErrUnitProvinceRequired = errors.New("unit province segment is required")
	// ErrUnitNameRequired indicates a unit row without a name.
	ErrUnitNameRequired = errors.New("unit name is required")
)

// UnitLevel is the tier of an administrative unit, implied by the
// length of its code.
type UnitLevel int

const (
	// LevelProvince is the top tier (2-digit code).
	LevelProvince UnitLevel = iota + 1
	// LevelCounty is the mid tier (4-digit code).
	LevelCounty
	// LevelCommune is the base tier (6- or 7-digit code).
	LevelCommune
)

// unitKindLabels maps the 1-digit commune kind segment to its label.
var unitKindLabels = map[string]string{
	"1": "gmina miejska",
	"2": "gmina wiejska",
	"3": "gmina miejsko-wiejska",
	"4": "miasto w gminie miejsko-wiejskiej",
	"5": "obszar wiejski w gminie miejsko-wiejskiej",
	"8": "dzielnica m.st. Warszawa",
	"9": "delegatury w gminach miejskich",
}

// Unit is an administrative unit from the TERC catalog. Its code is
// the concatenation of the populated segments: a 2-digit province,
// an optional 2-digit county, and an optional 2-digit commune followed
// by a 1-digit kind.
type Unit struct {
	Province  string `json:"woj"`
	County    string `json:"pow,omitempty"`
	Commune   string `json:"gmi,omitempty"`
	Kind      string `json:"rodz,omitempty"`
	Name      string `json:"nazwa"`
	ExtraName string `json:"nazwadod,omitempty"`
}

// UnitFromRow builds a unit from registry row fields.
func UnitFromRow(row map[string]string) (Unit, error) {
	u := Unit{
		Province:  row["woj"],
		County:    row["pow"],
		Commune:   row["gmi"],
		Kind:      row["rodz"],
		Name:      row["nazwa"],
		ExtraName: row["nazwadod"],
	}
	if u.Province == "" {
		return Unit{}, ErrUnitProvinceRequired
	}
	if u.Name == "" {
		return Unit{}, ErrUnitNameRequired
	}
	return u, nil
}

// UnitCodeFromRow derives the unit code directly from row fields. It
// is used to locate an existing record from the "before" field set of
// a change record.
func UnitCodeFromRow(row map[string]string) string {
	u := Unit{Province: row["woj"], County: row["pow"], Commune: row["gmi"], Kind: row["rodz"]}
	return u.Code()
}

// ApplyRow overlays the non-empty row fields onto the unit.
func (u Unit) ApplyRow(row map[string]string) Unit {
	if v := row["woj"]; v != "" {
		u.Province = v
	}
	if v := row["pow"]; v != "" {
		u.County = v
	}
	if v := row["gmi"]; v != "" {
		u.Commune = v
	}
	if v := row["rodz"]; v != "" {
		u.Kind = v
	}
	if v := row["nazwa"]; v != "" {
		u.Name = v
	}
	if v := row["nazwadod"]; v != "" {
		u.ExtraName = v
	}
	return u
}

// Code is the business key of the unit. The kind segment is part of
// the code only for commune-level units.
func (u Unit) Code() string {
	var b strings.Builder
	b.WriteString(u.Province)
	if u.County != "" {
		b.WriteString(u.County)
	}
	if u.Commune != "" {
		b.WriteString(u.Commune)
		b.WriteString(u.Kind)
	}
	return b.String()
}

// ParentCode is the code of the enclosing unit, or empty for a
// province.
func (u Unit) ParentCode() string {
	switch {
	case u.Commune != "":
		return u.Province + u.County
	case u.County != "":
		return u.Province
	default:
		return ""
	}
}

// Level reports the tier implied by the populated segments.
func (u Unit) Level() UnitLevel {
	switch {
	case u.Commune != "":
		return LevelCommune
	case u.County != "":
		return LevelCounty
	default:
		return LevelProvince
	}
}

// KindLabel is the display label of the unit kind. Province- and
// county-level units have synthetic labels; commune-level units map
// their kind segment.
func (u Unit) KindLabel() string {
	switch u.Level() {
	case LevelProvince:
		return "województwo"
	case LevelCounty:
		return "powiat"
	default:
		return unitKindLabels[u.Kind]
	}
}

// DisplayName joins the supplemental and proper names.
func (u Unit) DisplayName() string {
	return strings.TrimSpace(u.ExtraName + " " + u.Name)
}
