package postgres

import (
	"context"
	_ "embed"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schema string

func EnsureSchema(ctx context.Context) error {
	if err := DoExec(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to create action_journal schema")
	}
	return nil
}

func PutJournalEntry(ctx context.Context, entry *model.JournalEntry) error {
	return DoQuery(ctx, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx,
			`INSERT into action_journal(id, account, action_id, kind, status, tx_hash, error, reward, created, updated)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			entry.Id, strings.ToLower(entry.Account), string(entry.ActionId), string(entry.Kind),
			string(entry.Status), entry.TxHash, entry.Error, int64(entry.Reward), entry.Created, entry.Updated)
		if err != nil {
			return errors.Wrapf(err, "failed to record journal entry %s", entry.Id)
		}
		return nil
	})
}

func UpdateJournalEntry(ctx context.Context, id uuid.UUID, status model.JournalStatus, txHash string, cause string) error {
	return DoQuery(ctx, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx,
			`UPDATE action_journal SET status = $2, tx_hash = COALESCE(NULLIF($3, ''), tx_hash), error = $4, updated = $5
				WHERE id = $1`,
			id, string(status), txHash, cause, time.Now().UTC())
		if err != nil {
			return errors.Wrapf(err, "failed to update journal entry %s", id)
		}
		if tag.RowsAffected() == 0 {
			return errors.Errorf("journal entry %s not found", id)
		}
		return nil
	})
}

func GetJournalForAccount(ctx context.Context, account string, limit int) ([]*model.JournalEntry, error) {
	var fetched []*model.JournalEntry
	return fetched, DoQuery(ctx, func(conn *pgx.Conn) error {
		cur, err := conn.Query(ctx,
			`SELECT id, account, action_id, kind, status, tx_hash, error, reward, created, updated
			 FROM action_journal WHERE account = $1
			 ORDER BY created DESC LIMIT $2`, strings.ToLower(account), limit)
		if err != nil {
			return errors.Wrap(err, "failed to fetch journal from database")
		}
		defer cur.Close()

		for cur.Next() {
			var actionId, kind, status string
			var reward int64
			entry := &model.JournalEntry{}
			if err := cur.Scan(&entry.Id, &entry.Account, &actionId, &kind, &status,
				&entry.TxHash, &entry.Error, &reward, &entry.Created, &entry.Updated); err != nil {
				return errors.Wrap(err, "failed to scan journal entry")
			}
			entry.ActionId = model.ActionId(actionId)
			entry.Kind = model.WriteKind(kind)
			entry.Status = model.JournalStatus(status)
			entry.Reward = uint64(reward)
			fetched = append(fetched, entry)
		}
		return cur.Err()
	})
}

// Journal adapts the package level helpers to the reconciler's journal hook
type Journal struct{}

func (Journal) Submitted(ctx context.Context, entry *model.JournalEntry) error {
	return PutJournalEntry(ctx, entry)
}

func (Journal) Resolved(ctx context.Context, entry *model.JournalEntry) error {
	return UpdateJournalEntry(ctx, entry.Id, entry.Status, entry.TxHash, entry.Error)
}

func (Journal) Entries(ctx context.Context, account string, limit int) ([]*model.JournalEntry, error) {
	return GetJournalForAccount(ctx, account, limit)
}
