package notify

import (
	"fmt"

	"github.com/opencompute/supersea/internal/eth"
	"github.com/opencompute/supersea/internal/model"
)

// ForListing builds the notification for a matched listing. The click-through
// URL points at the asset page on the marketplace.
func ForListing(event model.FeedEvent, marketplaceURL string) Notification {
	body := event.Name
	if wei, err := eth.ParseWei(event.Price); err == nil {
		body = fmt.Sprintf("%s (%s %s)", event.Name, eth.ReadableEth(wei), event.Currency)
	}
	return Notification{
		ID:                 event.ListingID,
		URL:                fmt.Sprintf("%s/assets/%s/%s", marketplaceURL, event.ContractAddress, event.TokenID),
		Title:              "New Listing",
		Body:               body,
		IconURL:            event.Image,
		RequireInteraction: true,
		Silent:             true,
	}
}
