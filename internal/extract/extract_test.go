package extract

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"offerwatch/internal/model"
)

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New("https://www.otodom.pl")
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	return e
}

func ptr[T any](v T) *T { return &v }

func TestExtractResultsPage(t *testing.T) {
	html := loadFixture(t, "../../testdata/results_page.html")
	e := newTestExtractor(t)

	got, err := e.Extract(html, "mieszkanie", "wynajem")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// dt/dd pairs are page-wide, so every offer on the page shares them.
	want := Result{
		HasNext: true,
		Skipped: 1,
		Offers: []model.Offer{
			{
				URL:         "https://www.otodom.pl/pl/oferta/mieszkanie-2-pokoje-krakow-ID4abc1",
				Title:       "Przestronne 2 pokoje przy Rynku",
				Category:    "mieszkanie",
				SubCategory: "wynajem",
				Location:    &model.Location{City: ptr("Kraków"), Region: "małopolskie"},
				Photos:      []string{"https://img.example.com/a1.jpg", "https://img.example.com/a2.jpg"},
				Price:       &model.Money{Amount: 2800, Currency: model.CurrencyPLN},
				Rent:        &model.Money{Amount: 450, Currency: model.CurrencyPLNMonthly},
				Area:        ptr(48.0),
				RoomCount:   ptr(2),
				Floor:       ptr(34),
			},
			{
				URL:         "https://www.otodom.pl/pl/oferta/kawalerka-gdansk-ID4abc2",
				Title:       "Kawalerka blisko morza",
				Category:    "mieszkanie",
				SubCategory: "wynajem",
				Location:    &model.Location{Region: "pomorskie"},
				Photos:      []string{},
				Price:       &model.Money{Amount: 2100, Currency: model.CurrencyPLN},
				Area:        ptr(48.0),
				RoomCount:   ptr(2),
				Floor:       ptr(34),
			},
			{
				URL:         "https://www.otodom.pl/pl/oferta/mieszkanie-bez-ceny-ID4abc3",
				Title:       "Mieszkanie bez ceny i adresu",
				Category:    "mieszkanie",
				SubCategory: "wynajem",
				Photos:      []string{},
				Area:        ptr(48.0),
				RoomCount:   ptr(2),
				Floor:       ptr(34),
			},
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractLastPage(t *testing.T) {
	html := loadFixture(t, "../../testdata/last_page.html")
	e := newTestExtractor(t)

	got, err := e.Extract(html, "dom", "sprzedaz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Result{
		Offers: []model.Offer{
			{
				URL:         "https://www.otodom.pl/pl/oferta/dom-wroclaw-ID4zzz9",
				Title:       "Dom z ogrodem",
				Category:    "dom",
				SubCategory: "sprzedaz",
				Location:    &model.Location{City: ptr("Wrocław"), Region: "dolnośląskie"},
				Photos:      []string{},
				Price:       &model.Money{Amount: 990000, Currency: model.CurrencyPLN},
				Area:        ptr(1565.0),
				RoomCount:   ptr(5),
			},
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractEmptyAndMalformed(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantOffers  int
		wantSkipped int
	}{
		{
			name:    "page without listings",
			content: loadFixture(t, "../../testdata/empty_page.html"),
		},
		{
			name:    "empty document",
			content: "",
		},
		{
			name:        "listing with title but no link",
			content:     `<article><p data-cy="listing-item-title">x</p></article>`,
			wantSkipped: 1,
		},
		{
			name:        "listing with link but no title",
			content:     `<article><a data-testid="listing-item-link" href="/a">a</a></article>`,
			wantSkipped: 1,
		},
		{
			name:       "listing with broken price block",
			content:    `<article><a data-testid="listing-item-link" href="/a">a</a><p data-cy="listing-item-title">t</p><span class="css-1uwck7i ewvgbgo0"></span><p data-testid="advert-card-address"></p></article>`,
			wantOffers: 1,
		},
	}

	e := newTestExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Extract(tt.content, "dom", "wynajem")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantOffers, len(got.Offers)); diff != "" {
				t.Errorf("offer count mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantSkipped, got.Skipped); diff != "" {
				t.Errorf("skipped mismatch (-want +got):\n%s", diff)
			}
			for _, o := range got.Offers {
				if o.Price != nil || o.Rent != nil || o.Location != nil {
					t.Errorf("expected absent price/rent/location, got %+v", o)
				}
			}
		})
	}
}

func TestHasNextPage(t *testing.T) {
	tests := []struct {
		name    string
		fixture string
		want    bool
	}{
		{name: "next control present", fixture: "../../testdata/results_page.html", want: true},
		{name: "last page", fixture: "../../testdata/last_page.html", want: false},
		{name: "no pagination", fixture: "../../testdata/empty_page.html", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HasNextPage(loadFixture(t, tt.fixture))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("HasNextPage mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
