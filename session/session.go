package session

// Session is the cached record of who is logged in. It is only meaningful
// alongside a live access token; the manager never reports Authenticated
// from a cached record whose tokens are gone.
type Session struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Role         string `json:"role"`
	BusinessID   string `json:"businessId"`
	BusinessName string `json:"businessName"`
}
