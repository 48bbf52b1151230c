// Package message defines the relay's wire vocabulary and its JSON codec.
//
// Text frames carry a JSON object discriminated by a "type" field. Binary
// frames are never decoded here; the relay forwards them untouched.
package message
