// Package conversation models the records returned by the Mi AI
// conversation-history endpoint.
//
// The wire format is awkward in one specific way: each answer is a flat JSON
// object whose field set depends on the value of its "type" field. The tag
// and the payload fields are siblings, not nested under a type-named key, so
// the object has to be read twice: once for the discriminant, once for the
// payload shape it selects. Discriminants the client has never seen before
// are expected to appear server-side without a client update, so decoding
// falls back to capturing the whole object instead of failing or dropping
// fields.
package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedAnswer reports an answer object whose "type" discriminant is
// missing, not a string, or inconsistent with the shape that discriminant
// promises.
var ErrMalformedAnswer = errors.New("malformed answer")

// Millis is a time.Time that travels as epoch milliseconds.
type Millis time.Time

// Time returns the underlying time.Time.
func (m Millis) Time() time.Time {
	return time.Time(m)
}

func (m Millis) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(time.Time(m).UnixMilli(), 10)), nil
}

func (m *Millis) UnmarshalJSON(data []byte) error {
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp is not epoch milliseconds: %w", err)
	}
	*m = Millis(time.UnixMilli(ms))
	return nil
}

// Data is the value of the "data" field of the conversation-history
// response.
type Data struct {
	Records []Record `json:"records"`
}

// Record is one exchange with the assistant. It does not mirror the raw
// response object; it extracts the fields the client cares about.
type Record struct {
	// Answers holds the assistant's replies, usually exactly one.
	Answers []Answer `json:"answers"`

	// Query is the user's spoken or typed question.
	Query string `json:"query"`

	// RequestID is the server-assigned identifier of the exchange.
	RequestID string `json:"requestId"`

	// Time is when the exchange happened.
	Time Millis `json:"time"`
}

// Payload is the typed content of an answer. Exactly one of TTS, LLM or
// Unknown.
type Payload interface {
	payload()
}

// TTS is a synthesized-speech reply.
type TTS struct {
	Text string `json:"text"`
}

// LLM is a language-model reply.
type LLM struct {
	Text string `json:"text"`
}

// Unknown captures every field of an answer whose discriminant the client
// does not recognize, the "type" field included, so the answer survives a
// re-encode without data loss.
type Unknown map[string]json.RawMessage

func (TTS) payload()     {}
func (LLM) payload()     {}
func (Unknown) payload() {}

// Answer is one assistant reply: the raw discriminant plus its typed
// payload.
type Answer struct {
	Kind    string
	Payload Payload
}

// knownPayloads maps a lowercased discriminant to a decoder for its payload
// shape. A discriminant listed here must come with the fields the decoder
// demands; anything missing means the server contract changed and decoding
// fails rather than silently degrading.
var knownPayloads = map[string]func(fields map[string]json.RawMessage) (Payload, error){
	"tts": func(fields map[string]json.RawMessage) (Payload, error) {
		text, err := requireText(fields)
		if err != nil {
			return nil, err
		}
		return TTS{Text: text}, nil
	},
	"llm": func(fields map[string]json.RawMessage) (Payload, error) {
		text, err := requireText(fields)
		if err != nil {
			return nil, err
		}
		return LLM{Text: text}, nil
	},
}

func requireText(fields map[string]json.RawMessage) (string, error) {
	raw, ok := fields["text"]
	if !ok {
		return "", errors.New(`missing "text" field`)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", fmt.Errorf(`"text" is not a string: %w`, err)
	}
	return text, nil
}

// UnmarshalJSON decodes the flat answer object. The "type" field selects the
// payload shape; matching is case-insensitive against the known table, and
// any other discriminant lands in Unknown with all fields intact.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	raw, ok := fields["type"]
	if !ok {
		return fmt.Errorf(`%w: no "type" field`, ErrMalformedAnswer)
	}
	var kind string
	if err := json.Unmarshal(raw, &kind); err != nil {
		return fmt.Errorf(`%w: "type" is not a string`, ErrMalformedAnswer)
	}

	decode, known := knownPayloads[strings.ToLower(kind)]
	if !known {
		a.Kind = kind
		a.Payload = Unknown(fields)
		return nil
	}

	payload, err := decode(fields)
	if err != nil {
		return fmt.Errorf("%w: %q answer: %v", ErrMalformedAnswer, kind, err)
	}
	a.Kind = kind
	a.Payload = payload
	return nil
}

// MarshalJSON re-encodes the answer in the flattened wire shape: the
// discriminant and the payload fields as siblings of one object.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch p := a.Payload.(type) {
	case TTS:
		return json.Marshal(flatText{Type: a.Kind, Text: p.Text})
	case LLM:
		return json.Marshal(flatText{Type: a.Kind, Text: p.Text})
	case Unknown:
		if _, ok := p["type"]; ok || a.Kind == "" {
			return json.Marshal(map[string]json.RawMessage(p))
		}
		// Payload built by hand without a discriminant: inject Kind.
		out := make(map[string]json.RawMessage, len(p)+1)
		for k, v := range p {
			out[k] = v
		}
		kind, err := json.Marshal(a.Kind)
		if err != nil {
			return nil, err
		}
		out["type"] = kind
		return json.Marshal(out)
	case nil:
		return nil, fmt.Errorf("answer %q has no payload", a.Kind)
	default:
		return nil, fmt.Errorf("answer %q has unsupported payload type %T", a.Kind, a.Payload)
	}
}

type flatText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Text returns the reply text of a TTS or LLM answer, or "" for anything
// else.
func (a Answer) Text() (string, bool) {
	switch p := a.Payload.(type) {
	case TTS:
		return p.Text, true
	case LLM:
		return p.Text, true
	}
	return "", false
}

// DecodeRecords parses a raw records array one record at a time. A record
// that fails to decode is reported in the returned error slice and never
// aborts its siblings.
func DecodeRecords(raw []json.RawMessage) ([]Record, []error) {
	records := make([]Record, 0, len(raw))
	var errs []error
	for i, r := range raw {
		var rec Record
		if err := json.Unmarshal(r, &rec); err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		records = append(records, rec)
	}
	return records, errs
}

// DecodeData parses the conversation-history "data" payload with the same
// per-record fault isolation as DecodeRecords.
func DecodeData(data []byte) (Data, []error) {
	var envelope struct {
		Records []json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Data{}, []error{fmt.Errorf("conversation data: %w", err)}
	}
	records, errs := DecodeRecords(envelope.Records)
	return Data{Records: records}, errs
}
