package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrDecode is returned (wrapped) for any text frame that is not a valid Message.
var ErrDecode = errors.New("decode message")

// Bytes is a byte payload encoded as a JSON array of numbers. Base64 strings
// are accepted on input as well.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("[]"), nil
	}
	buf := make([]byte, 0, len(b)*4+2)
	buf = append(buf, '[')
	for i, v := range b {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendUint(buf, uint64(v), 10)
	}
	return append(buf, ']'), nil
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return errors.New("byte payload must not be null")
	}
	var raw []byte
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		raw = []byte{}
	}
	*b = raw
	return nil
}

type envelope struct {
	Type Kind `json:"type"`
}

// frame holds a text frame's top-level members by exact key. Lookups are
// case-sensitive, unlike decoding into a struct.
type frame map[string]json.RawMessage

// Decode parses one text frame. Keys match exactly. Unknown fields are
// ignored; a missing or unknown type and missing required fields are errors
// wrapping ErrDecode.
func Decode(data []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var kind Kind
	if raw, ok := f["type"]; ok {
		if err := json.Unmarshal(raw, &kind); err != nil {
			return nil, fmt.Errorf("%w: type: %v", ErrDecode, err)
		}
	}

	switch kind {
	case KindGenerateStream:
		return StreamRequest{}, nil

	case KindStreamLink:
		var m StreamLink
		if err := f.require(kind, "url", &m.URL); err != nil {
			return nil, err
		}
		if err := f.require(kind, "session_id", &m.SessionID); err != nil {
			return nil, err
		}
		return m, nil

	case KindVideo:
		var m Video
		if err := f.require(kind, "data", &m.Data); err != nil {
			return nil, err
		}
		return m, nil

	case KindChat:
		var m Chat
		if err := f.require(kind, "text", &m.Text); err != nil {
			return nil, err
		}
		return m, nil

	case KindLocation:
		var m Location
		if err := f.require(kind, "latitude", &m.Latitude); err != nil {
			return nil, err
		}
		if err := f.require(kind, "longitude", &m.Longitude); err != nil {
			return nil, err
		}
		return m, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrDecode)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrDecode, kind)
	}
}

// require decodes the member named key into v. Absent and null members are
// both missing.
func (f frame) require(kind Kind, key string, v any) error {
	raw, ok := f[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("%w: %s requires %q", ErrDecode, kind, key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s.%s: %v", ErrDecode, kind, key, err)
	}
	return nil
}

// Encode renders m as a text frame payload.
func Encode(m Message) ([]byte, error) {
	var body any
	switch v := m.(type) {
	case StreamRequest:
		body = envelope{Type: KindGenerateStream}
	case StreamLink:
		body = struct {
			Type Kind `json:"type"`
			StreamLink
		}{KindStreamLink, v}
	case Video:
		body = struct {
			Type Kind `json:"type"`
			Video
		}{KindVideo, v}
	case Chat:
		body = struct {
			Type Kind `json:"type"`
			Chat
		}{KindChat, v}
	case Location:
		body = struct {
			Type Kind `json:"type"`
			Location
		}{KindLocation, v}
	default:
		return nil, fmt.Errorf("encode message: unsupported type %T", m)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	return data, nil
}
