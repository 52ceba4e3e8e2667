package page

import "github.com/tomtev/page.fun/internal/models"

// ResolveOwnership reports whether any verified wallet owns rec. Only wallets
// proven by the identity provider may be passed here.
func ResolveOwnership(rec *models.PageRecord, verifiedWallets []string) bool {
	if rec == nil {
		return false
	}
	for _, w := range verifiedWallets {
		if rec.OwnedBy(w) {
			return true
		}
	}
	return false
}

// ProjectForViewer returns rec as the viewer may see it. Owners get the record
// unchanged; everyone else gets a copy with the url of each token-gated item
// withheld.
func ProjectForViewer(rec *models.PageRecord, isOwner bool) *models.PageRecord {
	if rec == nil || isOwner {
		return rec
	}
	out := rec.Clone()
	for i := range out.Items {
		if out.Items[i].TokenGated {
			out.Items[i].URL = nil
		}
	}
	return out
}
