package pipeline

import (
	"strings"

	"github.com/raine/photo-lister/internal/analysis"
	"github.com/raine/photo-lister/internal/storage"
)

// Reconcile computes the suggestions that may be written into a listing:
// only fields still holding a placeholder value, and only when the analysis
// produced a real value for them. The store re-checks each field when
// writing.
func Reconcile(listing storage.Listing, fields analysis.Fields) storage.ListingUpdate {
	var u storage.ListingUpdate

	if title := strings.TrimSpace(fields.Title); storage.IsUnsetTitle(listing.Title) && !storage.IsUnsetTitle(title) {
		u.Title = &title
	}
	if desc := strings.TrimSpace(fields.Description); storage.IsUnsetDescription(listing.Description) && !storage.IsUnsetDescription(desc) {
		u.Description = &desc
	}
	if cat := strings.TrimSpace(fields.Category); storage.IsUnsetCategory(listing.Category) && !storage.IsUnsetCategory(cat) {
		u.Category = &cat
	}
	if price := fields.EstimatedPrice; storage.IsUnsetPrice(listing.Price) && price > 0 {
		u.Price = &price
	}
	return u
}
