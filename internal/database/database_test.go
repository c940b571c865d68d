package database

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WCArena/pudscan/internal/config"
	"github.com/WCArena/pudscan/internal/model"
	"github.com/WCArena/pudscan/internal/model/convert"
	"github.com/WCArena/pudscan/internal/testutil"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DBConfig{
		Host:     "db.local",
		Port:     "5433",
		Username: "scan",
		Password: "secret",
		Database: "maps",
	})
	assert.Equal(t, "host=db.local port=5433 user=scan password=secret dbname=maps sslmode=disable", dsn)
}

func TestGetSqliteDB_FileAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans.db")
	db, err := GetSqliteDB(path)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))
	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m))
	}

	scan, err := convert.CoreToMapScan(testutil.SampleRecord("db-1"))
	require.NoError(t, err)
	require.NoError(t, db.Create(&scan).Error)

	var loaded model.MapScan
	require.NoError(t, db.Preload("Goldmines").Preload("StartLocations").
		Where("scan_id = ?", "db-1").First(&loaded).Error)
	assert.Equal(t, "Garden of War", loaded.Name)
	require.Len(t, loaded.Goldmines, 2)
	require.Len(t, loaded.StartLocations, 2)

	rec, err := convert.MapScanToCore(loaded)
	require.NoError(t, err)
	assert.Equal(t, uint16(26), rec.Document.Goldmines[1].X)
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, Migrate(db))

	rej := convert.CoreToRejection(testutil.SampleRejection("dump-1"))
	require.NoError(t, db.Create(&rej).Error)

	out := filepath.Join(t.TempDir(), "nested", "dump.db")
	require.NoError(t, DumpMemoryDBToDisk(db, out))
	// second dump replaces the first
	require.NoError(t, DumpMemoryDBToDisk(db, out))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	disk, err := GetSqliteDB(out)
	require.NoError(t, err)
	diskSQL, err := disk.DB()
	require.NoError(t, err)
	t.Cleanup(func() { diskSQL.Close() })

	var count int64
	require.NoError(t, disk.Model(&model.Rejection{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDumpMemoryDBToDisk_Errors(t *testing.T) {
	assert.ErrorContains(t, DumpMemoryDBToDisk(nil, ""), "path not set")
	assert.ErrorContains(t, DumpMemoryDBToDisk(nil, "it's.db"), "contains a quote")
}

func TestGetBackupDBPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.db", "b.db", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.db"), 0o755))

	paths, err := GetBackupDBPaths(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")}, paths)

	_, err = GetBackupDBPaths(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestManager_ConnectFallsBackToSqlite(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(zerolog.New(&buf))

	err := m.Connect(config.DBConfig{Host: "127.0.0.1", Port: "1", Database: "pudscan"})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)
	assert.Equal(t, "sqlite", m.DB.Dialector.Name())
	assert.Contains(t, buf.String(), "trying SQLite")

	require.NoError(t, m.Setup())
	assert.True(t, m.DB.Migrator().HasTable(&model.MapScan{}))
}

func TestManager_SetupWithoutConnect(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.Error(t, m.Setup())
	assert.NoError(t, m.Close())
}
