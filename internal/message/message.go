package message

// Kind is the value of the "type" discriminator on the wire.
type Kind string

const (
	KindGenerateStream Kind = "GenerateStream"
	KindStreamLink     Kind = "StreamLink"
	KindVideo          Kind = "Video"
	KindChat           Kind = "Chat"
	KindLocation       Kind = "Location"
)

// Message is one of StreamRequest, StreamLink, Video, Chat or Location.
type Message interface {
	Kind() Kind
}

// StreamRequest asks the relay for a fresh stream link.
type StreamRequest struct{}

// StreamLink is the relay's reply to a StreamRequest.
type StreamLink struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// Video is a chunk of encoded video sent as a text frame.
type Video struct {
	Data Bytes `json:"data"`
}

// Chat is a plain text chat line.
type Chat struct {
	Text string `json:"text"`
}

// Location is a geolocation fix.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (StreamRequest) Kind() Kind { return KindGenerateStream }
func (StreamLink) Kind() Kind    { return KindStreamLink }
func (Video) Kind() Kind         { return KindVideo }
func (Chat) Kind() Kind          { return KindChat }
func (Location) Kind() Kind      { return KindLocation }
