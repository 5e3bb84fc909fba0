package catalog

import (
	"errors"
	"fmt"
	"log"
	"strings"
)

var (
	// ErrStreetSymRequired indicates a street row without a street
	// symbol.
	ErrStreetSymRequired = errors.New("street symbol is required")
	// ErrStreetPlaceRequired indicates a street row without a locality
	// symbol.
	ErrStreetPlaceRequired = errors.New("street locality symbol is required")
	// ErrStreetGroupEmpty indicates a street group built from no rows.
	ErrStreetGroupEmpty = errors.New("street group needs at least one member")
)

// qualifierLabels maps the raw registry qualifier code (cecha) to its
// display label.
var qualifierLabels = map[string]string{
	"UL.":   "Ulica",
	"AL.":   "Aleja",
	"PL.":   "Plac",
	"SKWER": "Skwer",
	"BULW.": "Bulwar",
	"RONDO": "Rondo",
	"PARK":  "Park",
	"RYNEK": "Rynek",
	"SZOSA": "Szosa",
	"DROGA": "Droga",
	"OS.":   "Osiedle",
	"OGRÓD": "Ogród",
	"WYSPA": "Wyspa",
	"WYB.":  "Wybrzeże",
	"INNE":  "",
}

// streetChangeFields maps change-record field names to snapshot row
// field names. Change records use the registry's long element names.
var streetChangeFields = map[string]string{
	"identyfikatormiejscowosci": "sym",
	"identyfikatornazwyulicy":   "sym_ul",
	"cecha":                     "cecha",
	"nazwa1":                    "nazwa_1",
	"nazwa2":                    "nazwa_2",
	"stan":                      "stan_na",
	"woj":                       "woj",
	"pow":                       "pow",
	"gmi":                       "gmi",
	"rodz":                      "rodz_gmi",
}

// Street is a single per-locality street record from the ULIC catalog.
type Street struct {
	PlaceSym    string `json:"sym"`
	StreetSym   string `json:"symul"`
	Qualifier   string `json:"cecha"`
	Name1       string `json:"nazwa_1"`
	Name2       string `json:"nazwa_2,omitempty"`
	CommuneCode string `json:"terc"`
}

// StreetFromRow builds a street record from registry snapshot row
// fields.
func StreetFromRow(row map[string]string) (Street, error) {
	s := Street{
		PlaceSym:    row["sym"],
		StreetSym:   row["sym_ul"],
		Qualifier:   row["cecha"],
		Name1:       row["nazwa_1"],
		Name2:       row["nazwa_2"],
		CommuneCode: row["woj"] + row["pow"] + row["gmi"] + row["rodz_gmi"],
	}
	if s.StreetSym == "" {
		return Street{}, ErrStreetSymRequired
	}
	if s.PlaceSym == "" {
		return Street{}, ErrStreetPlaceRequired
	}
	return s, nil
}

// StreetFromChange builds a street record from change-record fields,
// translating the registry's long element names to row names.
func StreetFromChange(fields map[string]string) (Street, error) {
	return StreetFromRow(translateStreetFields(fields))
}

// StreetKeysFromChange extracts the street and locality symbols from a
// change-record field set without validating the full record. It is
// used to locate an existing member from "before" fields.
func StreetKeysFromChange(fields map[string]string) (streetSym, placeSym string) {
	row := translateStreetFields(fields)
	return row["sym_ul"], row["sym"]
}

func translateStreetFields(fields map[string]string) map[string]string {
	row := make(map[string]string, len(fields))
	for k, v := range fields {
		if mapped, ok := streetChangeFields[k]; ok {
			row[mapped] = v
			continue
		}
		row[k] = v
	}
	return row
}

// ApplyChange overlays the non-empty change fields onto the street
// record. The commune code is rebuilt only when every administrative
// segment is present in the change.
func (s Street) ApplyChange(fields map[string]string) Street {
	row := translateStreetFields(fields)
	if v := row["sym"]; v != "" {
		s.PlaceSym = v
	}
	if v := row["sym_ul"]; v != "" {
		s.StreetSym = v
	}
	if v := row["cecha"]; v != "" {
		s.Qualifier = v
	}
	if v := row["nazwa_1"]; v != "" {
		s.Name1 = v
	}
	if v := row["nazwa_2"]; v != "" {
		s.Name2 = v
	}
	if row["woj"] != "" && row["pow"] != "" && row["gmi"] != "" && row["rodz_gmi"] != "" {
		s.CommuneCode = row["woj"] + row["pow"] + row["gmi"] + row["rodz_gmi"]
	}
	return s
}

// QualifierLabel maps the raw qualifier code to its display label.
func (s Street) QualifierLabel() string {
	return qualifierLabels[strings.ToUpper(s.Qualifier)]
}

// CanonicalName strips a duplicated qualifier prefix from the name
// parts and prepends the qualifier label. The second name part comes
// first: the registry stores "gen. Józefa Bema" as nazwa_1="Bema",
// nazwa_2="gen. Józefa".
func (s Street) CanonicalName() string {
	label := s.QualifierLabel()
	first := stripQualifierPrefix(s.Name2, s.Qualifier, label)
	second := stripQualifierPrefix(s.Name1, s.Qualifier, label)
	if first == "" && second == "" {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, part := range []string{label, first, second} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

func stripQualifierPrefix(name, raw, label string) string {
	if name == "" {
		return ""
	}
	folded := strings.ToLower(name)
	if raw != "" && strings.HasPrefix(folded, strings.ToLower(raw)) {
		return strings.TrimSpace(name[len(raw):])
	}
	if label != "" && strings.HasPrefix(folded, strings.ToLower(label)) {
		return strings.TrimSpace(name[len(label):])
	}
	return strings.TrimSpace(name)
}

// StreetGroup aggregates every per-locality variant of one street
// under its shared street symbol. Members keep insertion order and are
// unique per locality symbol.
type StreetGroup struct {
	StreetSym string   `json:"symul"`
	Qualifier string   `json:"cecha"`
	Name      string   `json:"nazwa"`
	Members   []Street `json:"entries"`
}

// NewStreetGroup creates a group seeded with its first member; the
// shared qualifier label and canonical name are derived from it.
func NewStreetGroup(first Street) StreetGroup {
	return StreetGroup{
		StreetSym: first.StreetSym,
		Qualifier: first.QualifierLabel(),
		Name:      first.CanonicalName(),
		Members:   []Street{first},
	}
}

// Member returns the member for the given locality symbol.
func (g *StreetGroup) Member(placeSym string) (Street, bool) {
	for _, m := range g.Members {
		if m.PlaceSym == placeSym {
			return m, true
		}
	}
	return Street{}, false
}

// Add inserts the street as a member, replacing any previous member
// for the same locality. A member whose qualifier or name disagrees
// with the group is kept with the group's shared fields untouched; the
// registry data contains such inconsistencies and they are logged, not
// rejected.
func (g *StreetGroup) Add(s Street) error {
	if s.StreetSym != g.StreetSym {
		return fmt.Errorf("street symbol %s does not match group %s", s.StreetSym, g.StreetSym)
	}
	if label := s.QualifierLabel(); label != g.Qualifier {
		log.Printf("street %s: member %s qualifier %q differs from group %q", g.StreetSym, s.PlaceSym, label, g.Qualifier)
	}
	if name := s.CanonicalName(); name != g.Name {
		log.Printf("street %s: member %s name %q differs from group %q", g.StreetSym, s.PlaceSym, name, g.Name)
	}
	for i, m := range g.Members {
		if m.PlaceSym == s.PlaceSym {
			g.Members[i] = s
			return nil
		}
	}
	g.Members = append(g.Members, s)
	return nil
}

// Remove deletes the member for the given locality symbol and reports
// whether it was present.
func (g *StreetGroup) Remove(placeSym string) bool {
	for i, m := range g.Members {
		if m.PlaceSym == placeSym {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			return true
		}
	}
	return false
}

// Len reports the number of members.
func (g *StreetGroup) Len() int { return len(g.Members) }

// Validate checks that every member shares the group's street symbol.
// The invariant may be violated transiently while a change record is
// applied, but never in a stored group.
func (g *StreetGroup) Validate() error {
	if len(g.Members) == 0 {
		return ErrStreetGroupEmpty
	}
	for _, m := range g.Members {
		if m.StreetSym != g.StreetSym {
			return fmt.Errorf("member %s carries street symbol %s, group is %s", m.PlaceSym, m.StreetSym, g.StreetSym)
		}
	}
	return nil
}

// BuildStreetGroups groups snapshot street records by street symbol,
// preserving row order within each group.
func BuildStreetGroups(streets []Street) map[string]StreetGroup {
	groups := make(map[string]StreetGroup)
	for _, s := range streets {
		group, ok := groups[s.StreetSym]
		if !ok {
			groups[s.StreetSym] = NewStreetGroup(s)
			continue
		}
		if err := group.Add(s); err != nil {
			// Unreachable: records are grouped by the same symbol.
			continue
		}
		groups[s.StreetSym] = group
	}
	return groups
}
