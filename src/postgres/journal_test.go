package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/onemorebsmith/psychcoins/src/model"
)

func TestMain(m *testing.M) {
	if conn := os.Getenv("PSYCHCOINS_PG"); conn != "" {
		ConfigurePostgres(conn)
		if err := EnsureSchema(context.Background()); err != nil {
			panic(err)
		}
	}
	os.Exit(m.Run())
}

func TestJournalRoundTrip(t *testing.T) {
	if !Configured() {
		t.Skip("PSYCHCOINS_PG not set")
	}
	ctx := context.Background()
	account := "0xABC00000000000000000000000000000000000C1"
	if err := DoExec(ctx, "DELETE FROM action_journal WHERE account = '0xabc00000000000000000000000000000000000c1'"); err != nil {
		t.Fatal(err)
	}

	entry := model.NewJournalEntry(account, "startup-0", model.WriteComplete, 5)
	if err := PutJournalEntry(ctx, entry); err != nil {
		t.Fatal(err)
	}
	if err := UpdateJournalEntry(ctx, entry.Id, model.JournalStatusConfirmed, "0xdead", ""); err != nil {
		t.Fatal(err)
	}

	fetched, err := GetJournalForAccount(ctx, account, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(fetched) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(fetched))
	}
	expected := *entry
	expected.Account = "0xabc00000000000000000000000000000000000c1"
	expected.Status = model.JournalStatusConfirmed
	expected.TxHash = "0xdead"
	if d := cmp.Diff(expected, *fetched[0], cmpopts.IgnoreFields(model.JournalEntry{}, "Created", "Updated")); d != "" {
		t.Errorf("unexpected journal entry: %s", d)
	}
}

func TestUpdateMissingEntry(t *testing.T) {
	if !Configured() {
		t.Skip("PSYCHCOINS_PG not set")
	}
	entry := model.NewJournalEntry("0x0", "startup-0", model.WriteComplete, 5)
	if err := UpdateJournalEntry(context.Background(), entry.Id, model.JournalStatusError, "", "boom"); err == nil {
		t.Error("expected error updating a missing entry")
	}
}
