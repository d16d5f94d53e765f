package flyover

// Navigator performs the navigation a tile asks for once its flyover settles.
type Navigator interface {
	// Navigate routes to an in-app path.
	Navigate(path string)
	// Redirect leaves the site for an absolute URL.
	Redirect(url string)
}

// Focus tracks keyboard focus by element id.
type Focus interface {
	Current() string
	Move(id string)
}

// DialogID is the element id of the flyover dialog for a tile key.
func DialogID(key string) string {
	return "tile-flyover-" + key
}

type noFocus struct{}

func (noFocus) Current() string { return "" }
func (noFocus) Move(string)     {}
