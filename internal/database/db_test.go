package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, gormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, gormLogLevel("ERROR"))
	assert.Equal(t, gormlogger.Info, gormLogLevel("info"))
	assert.Equal(t, gormlogger.Warn, gormLogLevel(""))
}

func TestModels_CoversEveryTable(t *testing.T) {
	assert.Len(t, Models(), 13)
}

func TestClose_WithoutInit(t *testing.T) {
	DB = nil
	assert.NoError(t, Close())
}
