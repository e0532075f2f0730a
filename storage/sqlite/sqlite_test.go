/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ortuman/civet/model"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sqliteContainer, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.Nil(t, err)
	return newContainer(db).(*sqliteContainer), mock
}

func TestSQLiteUpsertSetting(t *testing.T) {
	c, mock := newMock(t)
	mock.ExpectExec("INSERT INTO settings (.+) ON CONFLICT (.+) DO UPDATE SET value = ?").
		WithArgs("option", "logging", "1", "1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := c.Settings().UpsertSetting(context.Background(), "option", "logging", "1")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
}

func TestSQLiteFetchSetting(t *testing.T) {
	c, mock := newMock(t)
	mock.ExpectQuery("SELECT value FROM settings (.+)").
		WithArgs("option", "logging").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("1"))

	v, ok, err := c.Settings().FetchSetting(context.Background(), "option", "logging")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)

	mock.ExpectQuery("SELECT value FROM settings (.+)").
		WithArgs("option", "beep").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, ok, err = c.Settings().FetchSetting(context.Background(), "option", "beep")
	require.Nil(t, err)
	require.False(t, ok)
}

func TestSQLiteFetchSettings(t *testing.T) {
	c, mock := newMock(t)
	mock.ExpectQuery("SELECT key, value FROM settings (.+)").
		WithArgs("alias").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow("me", "ortuman@jackal.im").
			AddRow("room", "coven@muc.jackal.im"))

	all, err := c.Settings().FetchSettings(context.Background(), "alias")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "ortuman@jackal.im", all["me"])
}

func TestSQLiteDeleteSetting(t *testing.T) {
	c, mock := newMock(t)
	mock.ExpectExec("DELETE FROM settings (.+)").
		WithArgs("option", "logging").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := c.Settings().DeleteSetting(context.Background(), "option", "logging")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
}

func TestSQLiteHistory(t *testing.T) {
	c, mock := newMock(t)
	now := time.Now()

	mock.ExpectExec("INSERT INTO history (.+)").
		WithArgs("noelia@jackal.im", now.UnixNano(), true, "hey").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := c.History().AppendHistoryEntry(context.Background(), &model.HistoryEntry{
		JID:       "noelia@jackal.im",
		Timestamp: now,
		Incoming:  true,
		Body:      "hey",
	})
	require.Nil(t, err)

	mock.ExpectQuery("SELECT jid, ts, incoming, body FROM history (.+)").
		WithArgs("noelia@jackal.im").
		WillReturnRows(sqlmock.NewRows([]string{"jid", "ts", "incoming", "body"}).
			AddRow("noelia@jackal.im", now.UnixNano(), true, "hey").
			AddRow("noelia@jackal.im", now.Add(-time.Minute).UnixNano(), false, "hi"))

	entries, err := c.History().FetchHistory(context.Background(), "noelia@jackal.im", 10)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "hi", entries[0].Body)
	require.Equal(t, "hey", entries[1].Body)
}
