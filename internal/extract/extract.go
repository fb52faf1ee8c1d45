// Package extract turns a fetched results page into canonical offers.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"offerwatch/internal/model"
	"offerwatch/internal/normalize"
)

// Page markup selectors.
const (
	selListing  = "article"
	selLink     = `a[data-testid="listing-item-link"]`
	selTitle    = `p[data-cy="listing-item-title"]`
	selPrice    = "span.css-1uwck7i.ewvgbgo0"
	selAddress  = `p[data-testid="advert-card-address"]`
	selGallery  = "div.css-7wsc2v img"
	selNextPage = `li[aria-label="Go to next Page"]`
)

// Parameter table labels.
const (
	LabelArea  = "Powierzchnia"
	LabelRooms = "Liczba pokoi"
	LabelFloor = "Piętro"
)

// Result holds the offers found on one page.
type Result struct {
	Offers []model.Offer
	// Skipped counts listing containers without a link or title.
	Skipped int
	HasNext bool
}

// Extractor parses results pages. It is stateless and safe for concurrent use.
type Extractor struct {
	base *url.URL
}

// New creates an Extractor that resolves relative links against baseURL.
func New(baseURL string) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Extractor{base: base}, nil
}

// Extract parses page content into offers. Malformed listings never fail the
// page: a listing without link or title is skipped, any other missing field
// is left nil. An error is returned only when the document itself cannot be read.
func (e *Extractor) Extract(content, category, subCategory string) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}

	// The parameter table is read once for the whole page, pairing the i-th
	// dt with the i-th dd. Co-located listings therefore share values.
	params := pageParams(doc)

	res := Result{HasNext: hasNextPage(doc)}
	doc.Find(selListing).Each(func(_ int, s *goquery.Selection) {
		offer, ok := e.extractOffer(s, params, category, subCategory)
		if !ok {
			res.Skipped++
			return
		}
		res.Offers = append(res.Offers, offer)
	})
	return res, nil
}

func (e *Extractor) extractOffer(s *goquery.Selection, params []normalize.Param, category, subCategory string) (model.Offer, bool) {
	link := s.Find(selLink).First()
	title := s.Find(selTitle).First()
	if link.Length() == 0 || title.Length() == 0 {
		return model.Offer{}, false
	}

	offer := model.Offer{
		URL:         e.resolve(link),
		Title:       strings.TrimSpace(title.Text()),
		Category:    category,
		SubCategory: subCategory,
		Photos:      []string{},
	}

	if price := s.Find(selPrice).First(); price.Length() > 0 {
		offer.Price, offer.Rent = normalize.SplitPrice(price.Text())
	}
	if addr := s.Find(selAddress).First(); addr.Length() > 0 {
		offer.Location = normalize.SplitLocation(addr.Text())
	}

	s.Find(selGallery).Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && src != "" {
			offer.Photos = append(offer.Photos, src)
		}
	})

	if area := normalize.ParamNumber(params, LabelArea); area != nil {
		v := float64(*area)
		offer.Area = &v
	}
	offer.RoomCount = normalize.ParamNumber(params, LabelRooms)
	offer.Floor = normalize.ParamNumber(params, LabelFloor)

	return offer, true
}

// resolve prefers the href attribute and falls back to the anchor text.
func (e *Extractor) resolve(link *goquery.Selection) string {
	href := strings.TrimSpace(link.AttrOr("href", ""))
	if href == "" {
		return strings.TrimSpace(link.Text())
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return e.base.ResolveReference(ref).String()
}

func pageParams(doc *goquery.Document) []normalize.Param {
	terms := doc.Find("dt")
	defs := doc.Find("dd")
	n := min(terms.Length(), defs.Length())

	params := make([]normalize.Param, 0, n)
	for i := range n {
		params = append(params, normalize.Param{
			Key:   strings.TrimSpace(terms.Eq(i).Text()),
			Value: strings.TrimSpace(defs.Eq(i).Text()),
		})
	}
	return params
}

func hasNextPage(doc *goquery.Document) bool {
	return doc.Find(selNextPage).Length() > 0
}

// HasNextPage reports whether the page shows a "next page" control.
func HasNextPage(content string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return false
	}
	return hasNextPage(doc)
}
