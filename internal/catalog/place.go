package catalog

import "errors"

var (
	// ErrPlaceSymRequired indicates a locality row without a symbol.
	ErrPlaceSymRequired = errors.New("locality symbol is required")
	// ErrPlaceNameRequired indicates a locality row without a name.
	ErrPlaceNameRequired = errors.New("locality name is required")
)

// Place is a locality from the SIMC catalog, keyed by its fixed-width
// numeric symbol.
//
// ParentSym is set only when the locality is subordinate to another
// locality rather than directly to its commune; ancestry resolution
// prefers it over CommuneCode when present.
type Place struct {
	Sym         string `json:"sym"`
	Name        string `json:"nazwa"`
	KindID      string `json:"rm,omitempty"`
	CommuneCode string `json:"terc"`
	ParentSym   string `json:"parent,omitempty"`
}

// PlaceFromRow builds a locality from registry snapshot row fields.
// The commune code is assembled from the four administrative segments,
// and the parent symbol is kept only when it differs from the
// locality's own symbol.
func PlaceFromRow(row map[string]string) (Place, error) {
	p := Place{
		Sym:         row["sym"],
		Name:        row["nazwa"],
		KindID:      row["rm"],
		CommuneCode: row["woj"] + row["pow"] + row["gmi"] + row["rodz_gmi"],
	}
	if parent := row["sympod"]; parent != "" && parent != p.Sym {
		p.ParentSym = parent
	}
	if p.Sym == "" {
		return Place{}, ErrPlaceSymRequired
	}
	if p.Name == "" {
		return Place{}, ErrPlaceNameRequired
	}
	return p, nil
}

// PlaceFromChange builds a locality from change-record fields, which
// carry the commune code preassembled.
func PlaceFromChange(fields map[string]string) (Place, error) {
	p := Place{
		Sym:         fields["sym"],
		Name:        fields["nazwa"],
		KindID:      fields["rm"],
		CommuneCode: fields["terc"],
		ParentSym:   fields["parent"],
	}
	if p.Sym == "" {
		return Place{}, ErrPlaceSymRequired
	}
	return p, nil
}

// ApplyChange overlays the non-empty change fields onto the locality.
func (p Place) ApplyChange(fields map[string]string) Place {
	if v := fields["terc"]; v != "" {
		p.CommuneCode = v
	}
	if v := fields["rm"]; v != "" {
		p.KindID = v
	}
	if v := fields["nazwa"]; v != "" {
		p.Name = v
	}
	if v := fields["sym"]; v != "" {
		p.Sym = v
	}
	if v := fields["parent"]; v != "" {
		p.ParentSym = v
	}
	return p
}

// ParentKey reports the ancestry reference of the locality: the parent
// locality symbol when set, otherwise the commune code.
func (p Place) ParentKey() (key string, isPlace bool) {
	if p.ParentSym != "" {
		return p.ParentSym, true
	}
	return p.CommuneCode, false
}

// ProvinceCode is the 2-digit province prefix of the commune code.
func (p Place) ProvinceCode() string {
	if len(p.CommuneCode) < 2 {
		return ""
	}
	return p.CommuneCode[:2]
}

// CountyCode is the 4-digit county prefix of the commune code.
func (p Place) CountyCode() string {
	if len(p.CommuneCode) < 4 {
		return ""
	}
	return p.CommuneCode[:4]
}
