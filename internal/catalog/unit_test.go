package catalog

import (
	"errors"
	"testing"
)

func TestUnitCodeConcatenatesPopulatedSegments(t *testing.T) {
	cases := []struct {
		name string
		unit Unit
		code string
	}{
		{"province", Unit{Province: "02", Name: "dolnośląskie"}, "02"},
		{"county", Unit{Province: "02", County: "14", Name: "oławski"}, "0214"},
		{"commune", Unit{Province: "02", County: "14", Commune: "01", Kind: "1", Name: "Oława"}, "0214011"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.unit.Code(); got != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, got)
			}
		})
	}
}

func TestUnitParentCode(t *testing.T) {
	commune := Unit{Province: "02", County: "14", Commune: "01", Kind: "1", Name: "Oława"}
	if got := commune.ParentCode(); got != "0214" {
		t.Fatalf("expected commune parent 0214, got %q", got)
	}
	county := Unit{Province: "02", County: "14", Name: "oławski"}
	if got := county.ParentCode(); got != "02" {
		t.Fatalf("expected county parent 02, got %q", got)
	}
	province := Unit{Province: "02", Name: "dolnośląskie"}
	if got := province.ParentCode(); got != "" {
		t.Fatalf("expected empty province parent, got %q", got)
	}
}

func TestUnitLevelAndKindLabel(t *testing.T) {
	province := Unit{Province: "02"}
	if province.Level() != LevelProvince {
		t.Fatalf("expected province level, got %v", province.Level())
	}
	if got := province.KindLabel(); got != "województwo" {
		t.Fatalf("expected synthetic province label, got %q", got)
	}
	county := Unit{Province: "02", County: "14"}
	if got := county.KindLabel(); got != "powiat" {
		t.Fatalf("expected synthetic county label, got %q", got)
	}
	commune := Unit{Province: "02", County: "14", Commune: "01", Kind: "2"}
	if got := commune.KindLabel(); got != "gmina wiejska" {
		t.Fatalf("expected commune kind label, got %q", got)
	}
}

func TestUnitFromRowValidation(t *testing.T) {
	if _, err := UnitFromRow(map[string]string{"nazwa": "Oława"}); !errors.Is(err, ErrUnitProvinceRequired) {
		t.Fatalf("expected province error, got %v", err)
	}
	if _, err := UnitFromRow(map[string]string{"woj": "02"}); !errors.Is(err, ErrUnitNameRequired) {
		t.Fatalf("expected name error, got %v", err)
	}
}

func TestUnitApplyRowOverlaysOnlyPresentFields(t *testing.T) {
	unit := Unit{Province: "02", County: "14", Commune: "01", Kind: "1", Name: "Oława"}
	updated := unit.ApplyRow(map[string]string{"nazwa": "Nowy"})
	if updated.Name != "Nowy" {
		t.Fatalf("expected renamed unit, got %q", updated.Name)
	}
	if updated.Code() != unit.Code() {
		t.Fatalf("expected code unchanged, got %q", updated.Code())
	}

	moved := unit.ApplyRow(map[string]string{"gmi": "02"})
	if moved.Code() != "0214021" {
		t.Fatalf("expected rekeyed code 0214021, got %q", moved.Code())
	}
}

func TestUnitDisplayName(t *testing.T) {
	unit := Unit{Province: "14", Name: "Warszawa", ExtraName: "m. st."}
	if got := unit.DisplayName(); got != "m. st. Warszawa" {
		t.Fatalf("expected joined display name, got %q", got)
	}
	plain := Unit{Province: "02", Name: "Oława"}
	if got := plain.DisplayName(); got != "Oława" {
		t.Fatalf("expected plain name, got %q", got)
	}
}
