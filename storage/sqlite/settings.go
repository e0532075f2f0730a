/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package sqlite

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

type sqliteSettings struct {
	db *sql.DB
}

func (s *sqliteSettings) UpsertSetting(ctx context.Context, namespace, key, value string) error {
	q := sq.Insert("settings").
		Columns("namespace", "key", "value").
		Values(namespace, key, value).
		Suffix("ON CONFLICT (namespace, key) DO UPDATE SET value = ?", value)

	_, err := q.RunWith(s.db).ExecContext(ctx)
	return err
}

func (s *sqliteSettings) FetchSetting(ctx context.Context, namespace, key string) (string, bool, error) {
	q := sq.Select("value").
		From("settings").
		Where(sq.And{sq.Eq{"namespace": namespace}, sq.Eq{"key": key}})

	var value string
	err := q.RunWith(s.db).QueryRowContext(ctx).Scan(&value)
	switch err {
	case nil:
		return value, true, nil
	case sql.ErrNoRows:
		return "", false, nil
	default:
		return "", false, err
	}
}

func (s *sqliteSettings) FetchSettings(ctx context.Context, namespace string) (map[string]string, error) {
	q := sq.Select("key", "value").
		From("settings").
		Where(sq.Eq{"namespace": namespace})

	rows, err := q.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		ret[k] = v
	}
	return ret, rows.Err()
}

func (s *sqliteSettings) DeleteSetting(ctx context.Context, namespace, key string) error {
	q := sq.Delete("settings").
		Where(sq.And{sq.Eq{"namespace": namespace}, sq.Eq{"key": key}})

	_, err := q.RunWith(s.db).ExecContext(ctx)
	return err
}
