package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Variants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Message
	}{
		{"generate stream", `{"type":"GenerateStream"}`, StreamRequest{}},
		{"generate stream ignores extra fields", `{"type":"GenerateStream","foo":1}`, StreamRequest{}},
		{"stream link", `{"type":"StreamLink","url":"/sender?session=abc","session_id":"abc"}`, StreamLink{URL: "/sender?session=abc", SessionID: "abc"}},
		{"video as byte array", `{"type":"Video","data":[0,1,255]}`, Video{Data: Bytes{0, 1, 255}}},
		{"video as base64", `{"type":"Video","data":"AAH/"}`, Video{Data: Bytes{0, 1, 255}}},
		{"empty video", `{"type":"Video","data":[]}`, Video{Data: Bytes{}}},
		{"chat", `{"type":"Chat","text":"hi"}`, Chat{Text: "hi"}},
		{"empty chat", `{"type":"Chat","text":""}`, Chat{Text: ""}},
		{"case-folded extra key ignored", `{"type":"Chat","text":"hi","TEXT":"other","Type":"Video"}`, Chat{Text: "hi"}},
		{"location", `{"type":"Location","latitude":52.52,"longitude":13.405}`, Location{Latitude: 52.52, Longitude: 13.405}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `hello`},
		{"truncated", `{"type":"Chat","text":"hi"`},
		{"json array", `[1,2,3]`},
		{"missing type", `{"text":"hi"}`},
		{"unknown type", `{"type":"Teleport"}`},
		{"wrong case type", `{"type":"chat","text":"hi"}`},
		{"chat without text", `{"type":"Chat"}`},
		{"chat with number", `{"type":"Chat","text":42}`},
		{"video without data", `{"type":"Video"}`},
		{"video null data", `{"type":"Video","data":null}`},
		{"video byte out of range", `{"type":"Video","data":[256]}`},
		{"location missing longitude", `{"type":"Location","latitude":1.5}`},
		{"location string coordinates", `{"type":"Location","latitude":"1","longitude":"2"}`},
		{"stream link missing session", `{"type":"StreamLink","url":"/x"}`},
		{"null type", `{"type":null,"text":"hi"}`},
		{"numeric type", `{"type":7}`},
		{"json null", `null`},
		{"upper-case keys", `{"TYPE":"Chat","TEXT":"hi"}`},
		{"capitalised type key", `{"Type":"Chat","text":"hi"}`},
		{"case-folded chat field", `{"type":"Chat","Text":"hi"}`},
		{"case-folded stream link fields", `{"type":"StreamLink","URL":"/x","Session_ID":"s"}`},
		{"case-folded location field", `{"type":"Location","latitude":1,"LONGITUDE":2}`},
		{"case-folded video field", `{"type":"Video","DATA":[1]}`},
		{"mixed-case duplicate type", `{"type":"Chat","Type":"Video","data":[1]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.input))
			require.ErrorIs(t, err, ErrDecode)
			assert.Nil(t, msg)
		})
	}
}

func TestEncode_WireShape(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"generate stream", StreamRequest{}, `{"type":"GenerateStream"}`},
		{"stream link", StreamLink{URL: "/sender?session=s1", SessionID: "s1"}, `{"type":"StreamLink","url":"/sender?session=s1","session_id":"s1"}`},
		{"video", Video{Data: Bytes{7, 8, 9}}, `{"type":"Video","data":[7,8,9]}`},
		{"nil video", Video{}, `{"type":"Video","data":[]}`},
		{"chat", Chat{Text: "hi"}, `{"type":"Chat","text":"hi"}`},
		{"location", Location{Latitude: -33.9, Longitude: 151.2}, `{"type":"Location","latitude":-33.9,"longitude":151.2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestEncode_Unsupported(t *testing.T) {
	_, err := Encode(nil)
	assert.Error(t, err)
}

func TestEncodeDecode_VideoPreservesBytes(t *testing.T) {
	payload := make(Bytes, 256)
	for i := range payload {
		payload[i] = byte(i)
	}

	data, err := Encode(Video{Data: payload})
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Video{Data: payload}, got)
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindGenerateStream, StreamRequest{}.Kind())
	assert.Equal(t, KindStreamLink, StreamLink{}.Kind())
	assert.Equal(t, KindVideo, Video{}.Kind())
	assert.Equal(t, KindChat, Chat{}.Kind())
	assert.Equal(t, KindLocation, Location{}.Kind())
}
