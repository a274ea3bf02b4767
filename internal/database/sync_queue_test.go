package database

import (
	"context"
	"testing"
	"time"

	"fishcharter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueueCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{
		TaskType:  "upsert",
		BookingID: "b-100",
		Payload:   `{"id":"b-100"}`,
	}

	require.NoError(t, db.CreateSyncTask(ctx, task))
	assert.Equal(t, models.SyncPending, task.Status)

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "b-100", tasks[0].BookingID)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, tasks[0].ID, models.SyncCompleted, "", nil))

	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	errMsg := "sheet unavailable"
	require.NoError(t, db.CreateSyncTask(ctx, &models.SyncTask{TaskType: "delete", BookingID: "b-101", Status: models.SyncFailed, LastError: &errMsg}))
	failed, err := db.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "sheet unavailable", *failed[0].LastError)

	task2 := &models.SyncTask{TaskType: "upsert", BookingID: "b-102"}
	require.NoError(t, db.CreateSyncTask(ctx, task2))

	nextRetry := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task2.ID, models.SyncRetry, "temporary error", &nextRetry))

	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	for _, tk := range tasks {
		if tk.ID == task2.ID {
			t.Fatal("task with future retry should not be pending")
		}
	}

	pastRetry := time.Now().Add(-time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task2.ID, models.SyncRetry, "temporary error", &pastRetry))
	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	found := false
	for _, tk := range tasks {
		if tk.ID == task2.ID {
			found = true
			assert.Equal(t, 2, tk.RetryCount)
		}
	}
	assert.True(t, found)
}
