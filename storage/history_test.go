package storage

import (
	"encoding/json"
	"testing"
	"time"

	"micli/conversation"
)

func openTestArchive(t *testing.T) *HistoryArchive {
	t.Helper()
	archive, err := OpenHistoryArchive(t.TempDir())
	if err != nil {
		t.Fatalf("OpenHistoryArchive() error = %v", err)
	}
	t.Cleanup(func() { archive.Close() })
	return archive
}

func record(id, query string, ms int64, answers ...conversation.Answer) conversation.Record {
	return conversation.Record{
		RequestID: id,
		Query:     query,
		Time:      conversation.Millis(time.UnixMilli(ms)),
		Answers:   answers,
	}
}

func TestHistoryArchiveSaveAndRecent(t *testing.T) {
	archive := openTestArchive(t)

	records := []conversation.Record{
		record("r1", "older", 1000, conversation.Answer{Kind: "TTS", Payload: conversation.TTS{Text: "one"}}),
		record("r2", "newer", 2000, conversation.Answer{Kind: "LLM", Payload: conversation.LLM{Text: "two"}}),
	}
	if err := archive.Save("dev-1", records); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := archive.Recent("dev-1", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	// Newest first.
	if got[0].RequestID != "r2" || got[1].RequestID != "r1" {
		t.Errorf("order = %q, %q; want r2, r1", got[0].RequestID, got[1].RequestID)
	}
	text, ok := got[0].Answers[0].Text()
	if !ok || text != "two" {
		t.Errorf("answer text = %q, %v", text, ok)
	}
	if got[0].Time.Time().UnixMilli() != 2000 {
		t.Errorf("time = %d, want 2000", got[0].Time.Time().UnixMilli())
	}
}

func TestHistoryArchiveUpsert(t *testing.T) {
	archive := openTestArchive(t)

	first := record("r1", "q", 1000, conversation.Answer{Kind: "TTS", Payload: conversation.TTS{Text: "old"}})
	if err := archive.Save("dev-1", []conversation.Record{first}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	// A second fetch overlapping the first must not duplicate.
	updated := record("r1", "q", 1000, conversation.Answer{Kind: "TTS", Payload: conversation.TTS{Text: "new"}})
	if err := archive.Save("dev-1", []conversation.Record{updated}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	n, err := archive.Count("dev-1")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}

	got, err := archive.Recent("dev-1", 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	text, _ := got[0].Answers[0].Text()
	if text != "new" {
		t.Errorf("text = %q, want \"new\"", text)
	}
}

func TestHistoryArchivePreservesUnknownPayloads(t *testing.T) {
	archive := openTestArchive(t)

	rec := record("r1", "q", 1000, conversation.Answer{
		Kind: "NEWFEATURE",
		Payload: conversation.Unknown{
			"type": json.RawMessage(`"NEWFEATURE"`),
			"foo":  json.RawMessage(`1`),
		},
	})
	if err := archive.Save("dev-1", []conversation.Record{rec}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := archive.Recent("dev-1", 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	payload, ok := got[0].Answers[0].Payload.(conversation.Unknown)
	if !ok {
		t.Fatalf("payload = %T, want Unknown", got[0].Answers[0].Payload)
	}
	if string(payload["foo"]) != "1" {
		t.Errorf("foo = %s, want 1", payload["foo"])
	}
}

func TestHistoryArchiveScopedByDevice(t *testing.T) {
	archive := openTestArchive(t)

	if err := archive.Save("dev-1", []conversation.Record{
		record("r1", "q", 1000, conversation.Answer{Kind: "TTS", Payload: conversation.TTS{Text: "x"}}),
	}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := archive.Recent("dev-2", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d records for an unrelated device, want 0", len(got))
	}
}
