package connectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"polecheck/internal"
	"polecheck/internal/storage"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
	err      error
}

func (f fakeConnector) FetchInbox(_ context.Context, _ string, max int) ([]internal.FetchedMailMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.messages) > max {
		return f.messages[:max], nil
	}
	return f.messages, nil
}

func TestFetchAndStore(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	msgs := []internal.FetchedMailMessage{
		{Provider: "imap", MessageID: "<a@x>", Subject: "feeder 1", Raw: []byte("raw a")},
		{Provider: "imap", MessageID: "<b@x>", Subject: "feeder 2", Raw: []byte("raw b")},
	}
	rawDir := filepath.Join(tmp, "raw")
	svc := NewFetchService(db, rawDir, fakeConnector{messages: msgs})

	res, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fetched != 2 || res.Stored != 2 || res.Skipped != 0 {
		t.Fatalf("res=%+v", res)
	}

	row, err := db.MustEmailByProviderMessageID("imap", "<a@x>")
	if err != nil {
		t.Fatal(err)
	}
	blob, err := os.ReadFile(row.RawRef)
	if err != nil {
		t.Fatal(err)
	}
	if string(blob) != "raw a" || filepath.Dir(row.RawRef) != rawDir {
		t.Fatalf("raw=%q ref=%s", blob, row.RawRef)
	}

	if err := db.UpdateEmailStatus(row.ID, "processed"); err != nil {
		t.Fatal(err)
	}
	res, err = svc.FetchAndStore(context.Background(), "INBOX", 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stored != 1 || res.Skipped != 1 {
		t.Fatalf("res=%+v", res)
	}
	row, err = db.MustEmailByProviderMessageID("imap", "<a@x>")
	if err != nil {
		t.Fatal(err)
	}
	if row.Status != "processed" {
		t.Fatalf("status=%s", row.Status)
	}
}

func TestFetchAndStoreConnectorError(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	boom := errors.New("mailbox offline")
	svc := NewFetchService(db, t.TempDir(), fakeConnector{err: boom})
	if _, err := svc.FetchAndStore(context.Background(), "INBOX", 5); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
}

func TestIsMapAttachment(t *testing.T) {
	cases := map[string]bool{
		"survey.kml":      true,
		"Survey.KMZ":      true,
		" poles.xlsx ":    true,
		"poles.xls":       false,
		"readme.txt":      false,
		"":                false,
		"archive.kml.zip": false,
	}
	for name, want := range cases {
		if got := IsMapAttachment(name); got != want {
			t.Fatalf("IsMapAttachment(%q)=%v want %v", name, got, want)
		}
	}
}
