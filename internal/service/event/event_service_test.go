package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/testutil"
)

func TestEventCRUD(t *testing.T) {
	svc := NewEventService(testutil.OpenDB(t))
	ctx := context.Background()

	older, err := svc.Create(ctx, &CreateRequest{Title: "入职", Date: "2021-07-01"})
	require.NoError(t, err)
	newer, err := svc.Create(ctx, &CreateRequest{Title: "马拉松", Date: "2024-04-14T08:00:00+08:00", Mood: "😄"})
	require.NoError(t, err)

	t.Run("按日期倒序", func(t *testing.T) {
		list, err := svc.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)
		assert.Equal(t, older.ID, list[1].ID)
	})

	t.Run("日期必填", func(t *testing.T) {
		_, err := svc.Create(ctx, &CreateRequest{Title: "t"})
		assert.Equal(t, errors.ErrInvalidParams, testutil.ErrCode(t, err))
		_, err = svc.Create(ctx, &CreateRequest{Title: "t", Date: "yesterday"})
		assert.Equal(t, errors.ErrInvalidParams, testutil.ErrCode(t, err))
	})

	t.Run("部分更新", func(t *testing.T) {
		date := "2021-08-01"
		updated, err := svc.Update(ctx, older.ID, &UpdateRequest{Date: &date})
		require.NoError(t, err)
		assert.Equal(t, "入职", updated.Title)
		assert.True(t, updated.Date.Equal(time.Date(2021, 8, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("批量删除", func(t *testing.T) {
		count, err := svc.BatchDelete(ctx, []string{older.ID, newer.ID, "missing"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
		assert.Equal(t, errors.ErrRecordNotFound, testutil.ErrCode(t, svc.Delete(ctx, older.ID)))

		_, err = svc.BatchDelete(ctx, []string{})
		assert.Equal(t, errors.ErrInvalidParams, testutil.ErrCode(t, err))
	})
}
