// Package profile bundles everything retailer-specific: the product-node
// selector cascade, the field-extraction mode, the challenge markers, and the
// cookie file a trusted session is persisted to. One scraping engine serves
// every retailer by being parameterized with one of these bundles.
package profile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pricelab/catalog-scraper/internal/extract"
)

var ErrUnknownRetailer = errors.New("unknown retailer")

// Mode selects how product fields are recovered from a matched node.
type Mode string

const (
	// ModeFreeText scans the node's visible text with the heuristic parser.
	ModeFreeText Mode = "freetext"
	// ModeStructured reads designated child selectors of the node.
	ModeStructured Mode = "structured"
)

// Profile is one retailer's extraction bundle.
type Profile struct {
	// Retailer is the stable tag a run is submitted under.
	Retailer string
	// ListFile is the URL-list file name this profile is dispatched for.
	ListFile string
	// ProductSelectors are tried in priority order; the first selector with
	// at least one match wins the page.
	ProductSelectors []string
	Mode             Mode
	// Structured designates the child selectors read in ModeStructured.
	Structured extract.StructuredSelectors
	// ChallengeMarkers are DOM selectors identifying challenge widgets,
	// ChallengePhrases substrings of the interstitial body text. Empty slices
	// fall back to the shared defaults at detection time.
	ChallengeMarkers []string
	ChallengePhrases []string
	// CookieFile is the per-retailer cookie store name under the cookie dir.
	CookieFile string
}

// Registry resolves profiles by retailer tag or by URL-list file name.
type Registry struct {
	byRetailer map[string]Profile
	byListFile map[string]Profile
	order      []string
}

func NewRegistry(profiles ...Profile) *Registry {
	r := &Registry{
		byRetailer: make(map[string]Profile),
		byListFile: make(map[string]Profile),
	}
	for _, p := range profiles {
		r.byRetailer[p.Retailer] = p
		if p.ListFile != "" {
			r.byListFile[p.ListFile] = p
		}
		r.order = append(r.order, p.Retailer)
	}
	return r
}

func (r *Registry) ByRetailer(tag string) (Profile, error) {
	p, ok := r.byRetailer[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownRetailer, tag)
	}
	return p, nil
}

// ByListFile maps an input file name (base name of a URL list) to the profile
// that scrapes it.
func (r *Registry) ByListFile(name string) (Profile, error) {
	p, ok := r.byListFile[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w for list file %q", ErrUnknownRetailer, name)
	}
	return p, nil
}

// All returns the registered profiles in registration order.
func (r *Registry) All() []Profile {
	out := make([]Profile, 0, len(r.order))
	for _, tag := range r.order {
		out = append(out, r.byRetailer[tag])
	}
	return out
}

// Default returns the built-in retailer profiles.
func Default() *Registry {
	return NewRegistry(
		// ATB catalog cards are loosely structured: price, old price,
		// discount badge and name all land in the card text, so the free-text
		// heuristic recovers them. Markup classes rotate every few months,
		// hence the cascade.
		Profile{
			Retailer: "atb",
			ListFile: "atb.txt",
			ProductSelectors: []string{
				"article.catalog-item",
				".catalog-item",
				".b-product",
			},
			Mode: ModeFreeText,
			ChallengeMarkers: []string{
				`iframe[src*="challenges.cloudflare.com"]`,
				`#challenge-form`,
				`[class*="challenge"]`,
				`[id*="challenge"]`,
			},
			CookieFile: "atb_cookies.json",
		},
		// Silpo exposes named sub-fields per card, including the
		// quantity-conditioned bulk price.
		Profile{
			Retailer: "silpo",
			ListFile: "silpo.txt",
			ProductSelectors: []string{
				".product-card",
				".products-list__item",
			},
			Mode: ModeStructured,
			Structured: extract.StructuredSelectors{
				Name:      ".product-card__title",
				Price:     ".product-card__price-current",
				OldPrice:  ".product-card__price-old",
				BulkPrice: ".product-card__price-bulk",
				Discount:  ".product-card__badge",
			},
			ChallengeMarkers: []string{
				`iframe[src*="challenges.cloudflare.com"]`,
				`iframe[title*="challenge"]`,
				`[class*="challenge"]`,
			},
			CookieFile: "silpo_cookies.json",
		},
	)
}
