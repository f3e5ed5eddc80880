package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"sitesignal/packages/domain"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key = "leads:v1:abc"

func sampleLeads() []domain.Lead {
	return []domain.Lead{{
		ID:       "6f1c9f5e-0000-4000-8000-000000000001",
		Business: domain.Business{Name: "Acme Plumbing", Website: "https://acme.example"},
		WebsiteScore: &domain.WebsiteScore{
			Overall:              35,
			Issues:               []string{"Missing meta description"},
			CriticalIssues:       []string{},
			OutdatedTechnologies: []string{},
			EmailsFound:          []string{},
			PhonesFound:          []string{},
			BadnessScore:         65,
			URL:                  "https://acme.example",
		},
		Status: domain.Scored,
	}}
}

func TestGetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet(key).RedisNil()

	leads, ok, err := NewRedis(db, time.Hour).Get(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, leads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	data, err := json.Marshal(sampleLeads())
	require.NoError(t, err)
	mock.ExpectGet(key).SetVal(string(data))

	leads, ok, err := NewRedis(db, time.Hour).Get(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, sampleLeads(), leads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet(key).SetErr(errors.New("connection refused"))

	_, ok, err := NewRedis(db, time.Hour).Get(context.Background(), key)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestGetCorruptPayload(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet(key).SetVal("{not json")

	_, ok, err := NewRedis(db, time.Hour).Get(context.Background(), key)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	data, err := json.Marshal(sampleLeads())
	require.NoError(t, err)
	mock.ExpectSet(key, string(data), 30*time.Minute).SetVal("OK")

	err = NewRedis(db, 30*time.Minute).Set(context.Background(), key, sampleLeads())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
