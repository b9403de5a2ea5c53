package domain

// Preferences are a user's per-category mail preferences. A false flag
// opts the user out of that category.
type Preferences struct {
	Marketing     bool `json:"marketing" db:"pref_marketing"`
	Newsletter    bool `json:"newsletter" db:"pref_newsletter"`
	Events        bool `json:"events" db:"pref_events"`
	Promotional   bool `json:"promotional" db:"pref_promotional"`
	Transactional bool `json:"transactional" db:"pref_transactional"`
}

// Allows reports whether the preferences permit mail of the given category.
// Transactional mail is never blocked by preferences.
func (p Preferences) Allows(c CampaignCategory) bool {
	switch c {
	case CategoryTransactional:
		return true
	case CategoryNewsletter:
		return p.Newsletter
	case CategoryEvents:
		return p.Events
	case CategoryPromotional:
		return p.Promotional
	default:
		return p.Marketing
	}
}

// User is the projection of an internal user record the engine needs.
type User struct {
	ID          string      `json:"id" db:"id"`
	Email       string      `json:"email" db:"email"`
	FirstName   string      `json:"first_name" db:"first_name"`
	LastName    string      `json:"last_name" db:"last_name"`
	Status      string      `json:"status" db:"status"`
	Role        string      `json:"role" db:"role"`
	Preferences Preferences `json:"preferences"`
}
