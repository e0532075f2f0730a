/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package badgerdb

import (
	"context"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/ortuman/civet/model"
	"github.com/ortuman/civet/storage/repository"
	"github.com/pborman/uuid"
	"github.com/stretchr/testify/require"
)

type testBadgerDBHelper struct {
	c       repository.Container
	dataDir string
}

func tUtilBadgerDBSetup(t *testing.T) *testBadgerDBHelper {
	h := &testBadgerDBHelper{}
	dir, _ := ioutil.TempDir("", "")
	h.dataDir = dir + "/com.civet.tests.badgerdb." + uuid.New()
	c, err := New(&Config{DataDir: h.dataDir})
	require.Nil(t, err)
	h.c = c
	return h
}

func tUtilBadgerDBTeardown(h *testBadgerDBHelper) {
	_ = h.c.Close(context.Background())
	_ = os.RemoveAll(h.dataDir)
}

func TestBadgerDBSettings(t *testing.T) {
	h := tUtilBadgerDBSetup(t)
	defer tUtilBadgerDBTeardown(h)

	ctx := context.Background()
	s := h.c.Settings()

	_, ok, err := s.FetchSetting(ctx, repository.OptionNamespace, "logging")
	require.Nil(t, err)
	require.False(t, ok)

	require.Nil(t, s.UpsertSetting(ctx, repository.OptionNamespace, "logging", "1"))
	require.Nil(t, s.UpsertSetting(ctx, repository.OptionNamespace, "beep", "0"))
	require.Nil(t, s.UpsertSetting(ctx, repository.BindingNamespace, "265", "roster_up"))

	v, ok, err := s.FetchSetting(ctx, repository.OptionNamespace, "logging")
	require.Nil(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)

	all, err := s.FetchSettings(ctx, repository.OptionNamespace)
	require.Nil(t, err)
	require.Equal(t, map[string]string{"logging": "1", "beep": "0"}, all)

	require.Nil(t, s.DeleteSetting(ctx, repository.OptionNamespace, "beep"))
	_, ok, _ = s.FetchSetting(ctx, repository.OptionNamespace, "beep")
	require.False(t, ok)
}

func TestBadgerDBHistory(t *testing.T) {
	h := tUtilBadgerDBSetup(t)
	defer tUtilBadgerDBTeardown(h)

	ctx := context.Background()
	hist := h.c.History()

	now := time.Now()
	for i := 0; i < 4; i++ {
		err := hist.AppendHistoryEntry(ctx, &model.HistoryEntry{
			JID:       "noelia@jackal.im",
			Timestamp: now.Add(time.Duration(i) * time.Second),
			Incoming:  i%2 == 0,
			Body:      "hey",
		})
		require.Nil(t, err)
	}
	entries, err := hist.FetchHistory(ctx, "noelia@jackal.im", 2)
	require.Nil(t, err)
	require.Len(t, entries, 2)
	require.True(t, entries[0].Timestamp.Before(entries[1].Timestamp))

	entries, err = hist.FetchHistory(ctx, "romeo@jackal.im", 0)
	require.Nil(t, err)
	require.Len(t, entries, 0)
}
