package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/muniwatch/muniwatch/internal/monitor"
)

func TestSaveMentionsReplacesSnapshot(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	mentions := []monitor.Mention{
		{ID: "1", URL: "https://example.com/a", Status: monitor.StatusPending},
		{ID: "2", URL: "https://example.com/b", Status: monitor.StatusApproved},
	}
	docA, err := json.Marshal(mentions[0])
	require.NoError(t, err)
	docB, err := json.Marshal(mentions[1])
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("TRUNCATE mentions").
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectExec("INSERT INTO mentions").
		WithArgs(0, docA).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO mentions").
		WithArgs(1, docB).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveMentions(context.Background(), mentions))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadMentionsPreservesOrder(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"doc"}).
		AddRow([]byte(`{"id":"1","url":"https://a","status":"pending","score":7}`)).
		AddRow([]byte(`{"id":"2","url":"https://b","status":"approved"}`))
	mock.ExpectQuery("SELECT doc FROM mentions ORDER BY position").
		WillReturnRows(rows)

	mentions, err := store.LoadMentions(context.Background())
	require.NoError(t, err)
	require.Len(t, mentions, 2)
	require.Equal(t, "1", mentions[0].ID)
	require.Equal(t, "2", mentions[1].ID)

	score, ok := mentions[0].Extra("score")
	require.True(t, ok, "jsonb round trip keeps unknown fields")
	require.JSONEq(t, `7`, string(score))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendCrawlLogTrims(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	entry := monitor.CrawlLogEntry{
		Timestamp:  time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		Queries:    []string{"municipal utility"},
		TotalFound: 4,
		NewUnique:  3,
		Duplicates: 1,
	}
	doc, err := json.Marshal(entry)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO crawl_log").
		WithArgs(doc).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM crawl_log").
		WithArgs(100).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	require.NoError(t, store.AppendCrawlLog(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMentionsRollsBackOnInsertFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("TRUNCATE mentions").
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectExec("INSERT INTO mentions").
		WithArgs(0, pgxmock.AnyArg()).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err = store.SaveMentions(context.Background(), []monitor.Mention{{ID: "1", URL: "https://a"}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS mentions").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS crawl_log").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil)
	require.Error(t, err)
}
