package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todozen/internal/backup"
	"todozen/internal/model"
)

func TestStatus(t *testing.T) {
	now := time.Date(2025, 10, 14, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		task model.Task
		want string
	}{
		{"done wins", model.Task{Done: true, Due: now.Add(-time.Hour)}, "done"},
		{"past due", model.Task{Due: now.Add(-time.Minute)}, "overdue"},
		{"notified", model.Task{Due: now.Add(time.Minute), Notified: true}, "notified"},
		{"open", model.Task{Due: now.Add(time.Hour)}, "open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status(tt.task, now))
		})
	}
}

func TestBackupFormat(t *testing.T) {
	f, err := backupFormat("", "tasks.yml")
	require.NoError(t, err)
	assert.Equal(t, backup.FormatYAML, f)

	f, err = backupFormat("", "")
	require.NoError(t, err)
	assert.Equal(t, backup.FormatJSON, f)

	f, err = backupFormat("json", "tasks.yaml")
	require.NoError(t, err)
	assert.Equal(t, backup.FormatJSON, f)

	_, err = backupFormat("xml", "")
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	registerCommands()
	for _, name := range []string{"add", "list", "show", "done", "edit", "snooze", "delete",
		"categories", "summary", "register", "login", "profile", "export", "import", "sync", "run"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
