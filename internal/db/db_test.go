package db

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type note struct {
	ID   uint64 `gorm:"primaryKey"`
	Body string
}

type missingTable struct {
	ID uint64 `gorm:"primaryKey"`
}

func TestConnect_LogsErrorsButNotMisses(t *testing.T) {
	var buf bytes.Buffer
	name := strings.ReplaceAll(t.Name(), "/", "_")
	gdb, err := connect(fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared", name), &buf)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, Migrate(gdb, &note{}))

	var n note
	err = gdb.Where("id = ?", 42).First(&n).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	var m missingTable
	require.Error(t, gdb.First(&m).Error)
	assert.Contains(t, buf.String(), "missing_tables")
}
