package relay

import (
	"net/url"
	"strings"

	"github.com/pscheid92/relay/internal/message"
)

const senderPath = "/sender"

// linkIssuer mints StreamLink replies. Session ids are opaque and never
// looked up again.
type linkIssuer struct {
	baseURL string
	newID   func() string
}

func newLinkIssuer(baseURL string, newID func() string) linkIssuer {
	return linkIssuer{baseURL: strings.TrimRight(baseURL, "/"), newID: newID}
}

func (l linkIssuer) issue() message.StreamLink {
	sessionID := l.newID()
	return message.StreamLink{
		URL:       l.baseURL + senderPath + "?session=" + url.QueryEscape(sessionID),
		SessionID: sessionID,
	}
}
