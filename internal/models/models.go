package models

// Session is the authenticated-identity artifact issued by a successful
// login. Token is opaque to every component except the service itself.
type Session struct {
	Token  string
	UserID string
}

// Active reports whether the session carries a usable token.
func (s Session) Active() bool {
	return s.Token != ""
}

// VideoRecord describes one entry of the user's video library. Identity is
// ID; records are immutable once produced by a library refresh.
type VideoRecord struct {
	ID          string
	DisplayName string
	MediaType   string
}
