package db

import (
	"io/fs"
	"strings"
	"testing"

	"sitesignal/packages/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeList(t *testing.T) {
	assert.Equal(t, "[]", encodeList(nil))
	assert.Equal(t, `["No page title","Minimal content"]`, encodeList([]string{"No page title", "Minimal content"}))

	assert.Equal(t, []string{"a", "b"}, decodeList(`["a","b"]`))
	assert.Equal(t, []string{}, decodeList(""))
	assert.Equal(t, []string{}, decodeList("not json"))
}

func TestScoreArgs(t *testing.T) {
	unscored := scoreArgs(nil)
	require.Len(t, unscored, 17)
	assert.Nil(t, unscored[0])
	assert.Equal(t, "[]", unscored[10])

	year := "2015"
	args := scoreArgs(&domain.WebsiteScore{
		Overall:        35,
		Design:         10,
		BadnessScore:   80,
		CriticalIssues: []string{"No page title"},
		LastUpdated:    &year,
	})
	require.Len(t, args, 17)
	assert.Equal(t, 35, args[0])
	assert.Equal(t, 10, args[5])
	assert.Equal(t, 80, args[8])
	assert.Equal(t, 65, args[9])
	assert.Equal(t, `["No page title"]`, args[11])
	assert.Equal(t, &year, args[15])
	assert.Nil(t, args[16])
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := fs.ReadFile(migrations, "migrations/00001_create_leads.sql")
	require.NoError(t, err)
	sql := string(data)
	assert.True(t, strings.HasPrefix(sql, "-- +goose Up"))
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS leads")
	assert.Contains(t, sql, "-- +goose Down")
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	require.NotNil(t, nullable("eng"))
	assert.Equal(t, "eng", *nullable("eng"))
}
