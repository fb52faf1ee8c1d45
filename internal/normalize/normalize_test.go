package normalize

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"offerwatch/internal/model"
)

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func TestSplitPrice(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantPrice *model.Money
		wantRent  *model.Money
	}{
		{
			name:      "price plus rent",
			raw:       "1200 + 300 zł",
			wantPrice: &model.Money{Amount: 1200, Currency: "zł"},
			wantRent:  &model.Money{Amount: 300, Currency: "zł/miesiac"},
		},
		{
			name:      "price only",
			raw:       "2500 zł",
			wantPrice: &model.Money{Amount: 2500, Currency: "zł"},
		},
		{
			name:      "price only takes first token",
			raw:       "2500 zł 12 m",
			wantPrice: &model.Money{Amount: 2500, Currency: "zł"},
		},
		{
			name:      "plus without rent token",
			raw:       "3100 zł + czynsz",
			wantPrice: &model.Money{Amount: 3100, Currency: "zł"},
		},
		{
			name: "no digits",
			raw:  "Zapytaj o cenę",
		},
		{
			name: "empty",
			raw:  "",
		},
		{
			name:      "rent with monthly suffix",
			raw:       "2800 zł + 450 zł/miesiąc",
			wantPrice: &model.Money{Amount: 2800, Currency: "zł"},
			wantRent:  &model.Money{Amount: 450, Currency: "zł/miesiac"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, rent := SplitPrice(tt.raw)
			if diff := cmp.Diff(tt.wantPrice, price); diff != "" {
				t.Errorf("price mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantRent, rent); diff != "" {
				t.Errorf("rent mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCleanNumber(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *int
	}{
		{name: "plain integer", in: "3", want: intPtr(3)},
		{name: "area with unit", in: "48 m²", want: intPtr(48)},
		{name: "decimal separator dropped", in: "38,5 m²", want: intPtr(385)},
		{name: "floor fraction", in: "4/10", want: intPtr(410)},
		{name: "empty", in: "", want: nil},
		{name: "currency only", in: "zł", want: nil},
		{name: "parter", in: "parter", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanNumber(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("CleanNumber(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestCleanNumberIdempotent(t *testing.T) {
	for _, in := range []string{"0", "7", "1200", "48 m²", "38,5", "pokoje: 3"} {
		first := CleanNumber(in)
		if first == nil {
			t.Fatalf("CleanNumber(%q) = nil", in)
		}
		second := CleanNumber(strconv.Itoa(*first))
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("not idempotent for %q (-first +second):\n%s", in, diff)
		}
	}
}

func TestSplitLocation(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    *model.Location
	}{
		{
			name:    "full address",
			address: "Mickiewicza 5, Śródmieście, Kraków, małopolskie",
			want:    &model.Location{City: strPtr("Kraków"), Region: "małopolskie"},
		},
		{
			name:    "lower-case candidate rejected",
			address: "Mickiewicza 5, śródmieście, małopolskie",
			want:    &model.Location{Region: "małopolskie"},
		},
		{
			name:    "city and region only",
			address: "Gdańsk, pomorskie",
			want:    &model.Location{City: strPtr("Gdańsk"), Region: "pomorskie"},
		},
		{
			name:    "region only",
			address: "mazowieckie",
			want:    &model.Location{Region: "mazowieckie"},
		},
		{
			name:    "empty",
			address: "",
			want:    nil,
		},
		{
			name:    "trailing comma",
			address: "Warszawa, ",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitLocation(tt.address)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SplitLocation(%q) mismatch (-want +got):\n%s", tt.address, diff)
			}
		})
	}
}

func TestParamValue(t *testing.T) {
	params := []Param{
		{Key: "Powierzchnia", Value: "48 m²"},
		{Key: "Liczba pokoi", Value: "2 pokoje"},
		{Key: "Piętro", Value: "3/4"},
		{Key: "Powierzchnia działki", Value: "900 m²"},
	}

	tests := []struct {
		name   string
		label  string
		want   string
		wantOK bool
	}{
		{name: "exact key", label: "Liczba pokoi", want: "2 pokoje", wantOK: true},
		{name: "first substring match wins", label: "Powierzchnia", want: "48 m²", wantOK: true},
		{name: "substring of key", label: "działki", want: "900 m²", wantOK: true},
		{name: "missing", label: "Winda", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParamValue(params, tt.label)
			if diff := cmp.Diff(tt.wantOK, ok); diff != "" {
				t.Errorf("ok mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParamNumber(t *testing.T) {
	params := []Param{{Key: "Piętro", Value: "parter"}, {Key: "Liczba pokoi", Value: "3"}}

	if got := ParamNumber(params, "Piętro"); got != nil {
		t.Errorf("expected nil for non-numeric floor, got %d", *got)
	}
	if diff := cmp.Diff(intPtr(3), ParamNumber(params, "Liczba pokoi")); diff != "" {
		t.Errorf("rooms mismatch (-want +got):\n%s", diff)
	}
	if got := ParamNumber(nil, "Powierzchnia"); got != nil {
		t.Errorf("expected nil for empty table, got %d", *got)
	}
}
