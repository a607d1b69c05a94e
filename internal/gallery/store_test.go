package gallery

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	recordedExec struct {
		query string
		args  []any
	}

	// recordingQueryable stands in for a transaction: it records every
	// write and answers the existing-pic lookup from a canned URL set.
	recordingQueryable struct {
		existingPicURLs []string
		execs           []recordedExec
	}

	picInsert struct {
		docID int32
		url   string
		seq   int32
	}
)

func (q *recordingQueryable) Exec(query string, args ...any) (sql.Result, error) {
	q.execs = append(q.execs, recordedExec{query: query, args: args})
	return driver.RowsAffected(1), nil
}

func (q *recordingQueryable) Select(dest any, query string, args ...any) error {
	urls, ok := dest.(*[]string)
	if !ok || !strings.Contains(query, "FROM pic") {
		return errors.New("unexpected select")
	}

	*urls = append(*urls, q.existingPicURLs...)
	return nil
}

func (q *recordingQueryable) Get(dest any, query string, args ...any) error {
	return errors.New("unexpected get")
}

func (q *recordingQueryable) Rebind(query string) string { return query }

func (q *recordingQueryable) picInserts(t *testing.T) []picInsert {
	t.Helper()

	var inserts []picInsert
	for _, exec := range q.execs {
		if !strings.Contains(exec.query, "INSERT INTO pic") {
			continue
		}

		require.Len(t, exec.args, 3)
		inserts = append(inserts, picInsert{
			docID: exec.args[0].(int32),
			url:   exec.args[1].(string),
			seq:   exec.args[2].(int32),
		})
	}

	return inserts
}

func (q *recordingQueryable) docUpdate(t *testing.T) recordedExec {
	t.Helper()

	for _, exec := range q.execs {
		if strings.Contains(exec.query, "UPDATE doc") {
			return exec
		}
	}

	t.Fatal("no doc update was recorded")
	return recordedExec{}
}

func Test_ApplyManifest_AssignsAscendingSeqsFromZero(t *testing.T) {
	db := &recordingQueryable{}
	manifest := &AlbumManifest{
		Title:     "X",
		Date:      "2024-01-02T00:00:00Z",
		ImageURLs: []string{"https://a/1.jpg", "https://a/2.jpg"},
	}

	require.NoError(t, NewStore().ApplyManifest(db, 1, manifest))

	assert.Equal(t, []picInsert{
		{docID: 1, url: "https://a/1.jpg", seq: 0},
		{docID: 1, url: "https://a/2.jpg", seq: 1},
	}, db.picInserts(t))

	update := db.docUpdate(t)
	require.Len(t, update.args, 5)
	assert.Equal(t, "X", update.args[0])
	assert.Equal(t, "2", update.args[2])
	assert.Equal(t, DocParsed, update.args[3])
	assert.Equal(t, int32(1), update.args[4])
}

func Test_ApplyManifest_SkipsKnownURLsAndContinuesSeq(t *testing.T) {
	db := &recordingQueryable{existingPicURLs: []string{"https://a/1.jpg"}}
	manifest := &AlbumManifest{
		Title:     "X",
		ImageURLs: []string{"https://a/1.jpg", "https://a/2.jpg", "https://a/3.jpg"},
	}

	require.NoError(t, NewStore().ApplyManifest(db, 7, manifest))

	assert.Equal(t, []picInsert{
		{docID: 7, url: "https://a/2.jpg", seq: 1},
		{docID: 7, url: "https://a/3.jpg", seq: 2},
	}, db.picInserts(t), "a re-parse must not duplicate rows or restart the sequence")
}

func Test_ApplyManifest_PageDate(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		expected *time.Time
	}{
		{
			name: "RFC3339 date is parsed",
			date: "2024-01-02T03:04:05Z",
			expected: func() *time.Time {
				parsed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
				return &parsed
			}(),
		},
		{name: "unparseable date is stored as null", date: "yesterday-ish", expected: nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			db := &recordingQueryable{}
			manifest := &AlbumManifest{Title: "X", Date: test.date}
			require.NoError(t, NewStore().ApplyManifest(db, 1, manifest))

			pageDate := db.docUpdate(t).args[1].(*time.Time)
			if test.expected == nil {
				assert.Nil(t, pageDate)
			} else {
				require.NotNil(t, pageDate)
				assert.True(t, test.expected.Equal(*pageDate))
			}
		})
	}
}
