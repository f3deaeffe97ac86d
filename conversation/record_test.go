package conversation

import (
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"
)

func TestAnswerDecodeKnownKinds(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind string
		want Payload
	}{
		{"tts", `{"type":"TTS","text":"hello"}`, "TTS", TTS{Text: "hello"}},
		{"llm", `{"type":"LLM","text":"*hi*"}`, "LLM", LLM{Text: "*hi*"}},
		{"tts lowercase", `{"type":"tts","text":"hey"}`, "tts", TTS{Text: "hey"}},
		{"llm mixed case", `{"type":"Llm","text":"x"}`, "Llm", LLM{Text: "x"}},
		{"tts extra fields", `{"type":"TTS","text":"hi","bitSet":[1,2]}`, "TTS", TTS{Text: "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Answer
			if err := json.Unmarshal([]byte(tt.in), &a); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if a.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", a.Kind, tt.kind)
			}
			if !reflect.DeepEqual(a.Payload, tt.want) {
				t.Errorf("Payload = %#v, want %#v", a.Payload, tt.want)
			}
		})
	}
}

func TestAnswerDecodeUnknownKind(t *testing.T) {
	in := `{"type":"NEWFEATURE","foo":1,"bar":"x"}`

	var a Answer
	if err := json.Unmarshal([]byte(in), &a); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if a.Kind != "NEWFEATURE" {
		t.Errorf("Kind = %q, want NEWFEATURE", a.Kind)
	}

	payload, ok := a.Payload.(Unknown)
	if !ok {
		t.Fatalf("Payload = %T, want Unknown", a.Payload)
	}

	// Every field of the input must survive, the discriminant included.
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	want := []string{"bar", "foo", "type"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("Unknown keys = %v, want %v", keys, want)
	}
}

func TestAnswerDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing type", `{"text":"hello"}`},
		{"non-string type", `{"type":42,"text":"hello"}`},
		{"tts without text", `{"type":"TTS","bitSet":[1]}`},
		{"llm with non-string text", `{"type":"LLM","text":7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Answer
			err := json.Unmarshal([]byte(tt.in), &a)
			if !errors.Is(err, ErrMalformedAnswer) {
				t.Errorf("Unmarshal() error = %v, want ErrMalformedAnswer", err)
			}
		})
	}
}

func TestAnswerRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"tts", `{"type":"TTS","text":"hello"}`},
		{"llm", `{"type":"LLM","text":"line"}`},
		{"unknown", `{"type":"NEWFEATURE","foo":1,"bar":"x","nested":{"a":[true,null]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Answer
			if err := json.Unmarshal([]byte(tt.in), &a); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			out, err := json.Marshal(a)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			var got, want map[string]any
			if err := json.Unmarshal(out, &got); err != nil {
				t.Fatalf("re-decode output: %v", err)
			}
			if err := json.Unmarshal([]byte(tt.in), &want); err != nil {
				t.Fatalf("re-decode input: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("round trip = %v, want %v", got, want)
			}
		})
	}
}

func TestAnswerMarshalUnknownWithoutDiscriminant(t *testing.T) {
	a := Answer{
		Kind:    "CUSTOM",
		Payload: Unknown{"foo": json.RawMessage(`1`)},
	}
	out, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("re-decode output: %v", err)
	}
	if got["type"] != "CUSTOM" {
		t.Errorf(`type = %v, want "CUSTOM"`, got["type"])
	}
	if got["foo"] != float64(1) {
		t.Errorf("foo = %v, want 1", got["foo"])
	}
}

func TestMillisRoundTrip(t *testing.T) {
	var m Millis
	if err := json.Unmarshal([]byte("1700000000123"), &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	want := time.UnixMilli(1700000000123)
	if !m.Time().Equal(want) {
		t.Errorf("Time() = %v, want %v", m.Time(), want)
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != "1700000000123" {
		t.Errorf("Marshal() = %s, want 1700000000123", out)
	}
}

func TestDecodeRecordsIsolatesFailures(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"answers":[{"type":"TTS","text":"one"}],"query":"q1","requestId":"r1","time":1700000000000}`),
		json.RawMessage(`{"answers":[{"text":"no type"}],"query":"q2","requestId":"r2","time":1700000000001}`),
		json.RawMessage(`{"answers":[{"type":"LLM","text":"three"}],"query":"q3","requestId":"r3","time":1700000000002}`),
	}

	records, errs := DecodeRecords(raw)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if !errors.Is(errs[0], ErrMalformedAnswer) {
		t.Errorf("error = %v, want ErrMalformedAnswer", errs[0])
	}
	if records[0].RequestID != "r1" || records[1].RequestID != "r3" {
		t.Errorf("surviving records = %q, %q; want r1, r3", records[0].RequestID, records[1].RequestID)
	}
}

func TestDecodeData(t *testing.T) {
	data := []byte(`{"records":[{"answers":[{"type":"TTS","text":"hi"}],"query":"hello","requestId":"abc","time":1700000000000}]}`)

	got, errs := DecodeData(data)
	if len(errs) != 0 {
		t.Fatalf("DecodeData() errors = %v", errs)
	}
	if len(got.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(got.Records))
	}

	rec := got.Records[0]
	if rec.Query != "hello" || rec.RequestID != "abc" {
		t.Errorf("record = %+v", rec)
	}
	text, ok := rec.Answers[0].Text()
	if !ok || text != "hi" {
		t.Errorf("Text() = %q, %v; want \"hi\", true", text, ok)
	}
}

func TestDecodeDataBadEnvelope(t *testing.T) {
	_, errs := DecodeData([]byte(`"not an object"`))
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
}
