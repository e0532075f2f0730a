/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package sqlite

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ortuman/civet/model"
)

type sqliteHistory struct {
	db *sql.DB
}

func (h *sqliteHistory) AppendHistoryEntry(ctx context.Context, entry *model.HistoryEntry) error {
	q := sq.Insert("history").
		Columns("jid", "ts", "incoming", "body").
		Values(entry.JID, entry.Timestamp.UnixNano(), entry.Incoming, entry.Body)

	_, err := q.RunWith(h.db).ExecContext(ctx)
	return err
}

func (h *sqliteHistory) FetchHistory(ctx context.Context, jid string, limit int) ([]model.HistoryEntry, error) {
	q := sq.Select("jid", "ts", "incoming", "body").
		From("history").
		Where(sq.Eq{"jid": jid}).
		OrderBy("ts DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	rows, err := q.RunWith(h.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ret []model.HistoryEntry
	for rows.Next() {
		var entry model.HistoryEntry
		var ts int64
		if err := rows.Scan(&entry.JID, &ts, &entry.Incoming, &entry.Body); err != nil {
			return nil, err
		}
		entry.Timestamp = time.Unix(0, ts)
		ret = append(ret, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse into chronological order
	for i, j := 0, len(ret)-1; i < j; i, j = i+1, j-1 {
		ret[i], ret[j] = ret[j], ret[i]
	}
	return ret, nil
}
