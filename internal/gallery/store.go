package gallery

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/telegrab/telegrab/internal/database"
)

var (
	ErrDocNotFound = errors.New("doc does not exist")
	ErrPicNotFound = errors.New("pic does not exist")
	ErrCbzNotFound = errors.New("cbz does not exist")
)

// ListParams is the pagination contract shared by the list endpoints.
// Sort must name a column from the resource's sortable set; anything
// else falls back to the default ordering (id descending).
type ListParams struct {
	Limit  int
	Offset int
	Sort   string
	Order  string
}

func (params *ListParams) limit() uint64 {
	if params.Limit <= 0 || params.Limit > 100 {
		return 10
	}

	return uint64(params.Limit)
}

func (params *ListParams) offset() uint64 {
	if params.Offset < 0 {
		return 0
	}

	return uint64(params.Offset)
}

func (params *ListParams) orderBy(table string, sortable map[string]bool) string {
	if sortable[params.Sort] {
		order := "ASC"
		if strings.EqualFold(params.Order, "desc") {
			order = "DESC"
		}

		return fmt.Sprintf("%s.%s %s", table, params.Sort, order)
	}

	return table + ".id DESC"
}

type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// --- Docs ---

var docSortable = map[string]bool{
	"id": true, "status": true, "url": true, "page_title": true,
	"title": true, "writer": true, "created_at": true, "updated_at": true,
}

func (store *Store) CreateDoc(db database.Queryable, url string) (*Doc, error) {
	var doc Doc
	if err := db.Get(&doc, `INSERT INTO doc(url) VALUES ($1) RETURNING *`, url); err != nil {
		return nil, fmt.Errorf("failed to insert new doc: %w", err)
	}

	return &doc, nil
}

func (store *Store) GetDoc(db database.Queryable, id int32) (*Doc, error) {
	var doc Doc
	if err := db.Get(&doc, `SELECT * FROM doc WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocNotFound
		}

		return nil, err
	}

	return &doc, nil
}

func (store *Store) GetDocsByIds(db database.Queryable, ids []int32) ([]*Doc, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM doc WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}

	var docs []*Doc
	if err := db.Select(&docs, db.Rebind(query), args...); err != nil {
		return nil, err
	}

	return docs, nil
}

func (store *Store) GetUnparsedDocs(db database.Queryable) ([]*Doc, error) {
	var docs []*Doc
	if err := db.Select(&docs, `SELECT * FROM doc WHERE status = $1 ORDER BY id`, DocUnparsed); err != nil {
		return nil, err
	}

	return docs, nil
}

func (store *Store) ListDocs(db database.Queryable, params ListParams) ([]*Doc, int64, error) {
	return listPage[Doc](db, "doc", params, docSortable)
}

func (store *Store) UpdateDocStatus(db database.Queryable, id int32, status DocStatus) error {
	result, err := db.Exec(`UPDATE doc SET status = $1, updated_at = current_timestamp WHERE id = $2`, status, id)
	if err != nil {
		return err
	}

	return expectOneRow(result, ErrDocNotFound)
}

func (store *Store) SetDocPageCount(db database.Queryable, id int32, pageCount int) error {
	result, err := db.Exec(
		`UPDATE doc SET page_count = $1, updated_at = current_timestamp WHERE id = $2`,
		fmt.Sprintf("%d", pageCount), id,
	)
	if err != nil {
		return err
	}

	return expectOneRow(result, ErrDocNotFound)
}

func (store *Store) DeleteDoc(db database.Queryable, id int32) error {
	result, err := db.Exec(`DELETE FROM doc WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return expectOneRow(result, ErrDocNotFound)
}

// ApplyManifest applies a parsed album manifest to a doc: the doc's
// page title, page date, page count and status are updated, and a pic
// row is inserted for every manifest image URL not already recorded
// against the doc, with ascending seq continuing after any existing
// rows. Callers must run it inside a transaction (WrapTx) so a partial
// manifest is never persisted.
func (store *Store) ApplyManifest(db database.Queryable, docID int32, manifest *AlbumManifest) error {
	var pageDate *time.Time
	if parsed, err := time.Parse(time.RFC3339, manifest.Date); err == nil {
		pageDate = &parsed
	}

	_, err := db.Exec(`
		UPDATE doc
		SET page_title = $1, page_date = $2, page_count = $3, status = $4, updated_at = current_timestamp
		WHERE id = $5
	`, manifest.Title, pageDate, fmt.Sprintf("%d", len(manifest.ImageURLs)), DocParsed, docID)
	if err != nil {
		return fmt.Errorf("failed to update doc %d from manifest: %w", docID, err)
	}

	var existing []string
	if err := db.Select(&existing, `SELECT url FROM pic WHERE doc_id = $1`, docID); err != nil {
		return err
	}

	known := make(map[string]bool, len(existing))
	for _, url := range existing {
		known[url] = true
	}

	seq := int32(len(existing))
	for _, url := range manifest.ImageURLs {
		if known[url] {
			continue
		}
		known[url] = true

		if _, err := db.Exec(`INSERT INTO pic(doc_id, url, seq) VALUES ($1, $2, $3)`, docID, url, seq); err != nil {
			return fmt.Errorf("failed to insert pic (doc %d, seq %d): %w", docID, seq, err)
		}
		seq++
	}

	return nil
}

// --- Pics ---

func (store *Store) GetPic(db database.Queryable, id int32) (*Pic, error) {
	var pic Pic
	if err := db.Get(&pic, `SELECT * FROM pic WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPicNotFound
		}

		return nil, err
	}

	return &pic, nil
}

func (store *Store) GetPicsByDocID(db database.Queryable, docID int32) ([]*Pic, error) {
	var pics []*Pic
	if err := db.Select(&pics, `SELECT * FROM pic WHERE doc_id = $1 ORDER BY seq`, docID); err != nil {
		return nil, err
	}

	return pics, nil
}

func (store *Store) GetPicsByIds(db database.Queryable, ids []int32) ([]*Pic, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM pic WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}

	var pics []*Pic
	if err := db.Select(&pics, db.Rebind(query), args...); err != nil {
		return nil, err
	}

	return pics, nil
}

// --- Cbz ---

var cbzSortable = map[string]bool{
	"id": true, "doc_id": true, "path": true, "created_at": true, "updated_at": true,
}

func (store *Store) GetCbzById(db database.Queryable, id int32) (*Cbz, error) {
	var cbz Cbz
	if err := db.Get(&cbz, `SELECT * FROM cbz WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCbzNotFound
		}

		return nil, err
	}

	return &cbz, nil
}

// GetCbzByPath returns nil (with no error) when no row has the path.
func (store *Store) GetCbzByPath(db database.Queryable, path string) (*Cbz, error) {
	var cbz Cbz
	if err := db.Get(&cbz, `SELECT * FROM cbz WHERE path = $1`, path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &cbz, nil
}

func (store *Store) CreateCbz(db database.Queryable, path string) (*Cbz, error) {
	var cbz Cbz
	if err := db.Get(&cbz, `INSERT INTO cbz(path) VALUES ($1) RETURNING *`, path); err != nil {
		return nil, fmt.Errorf("failed to insert new cbz: %w", err)
	}

	return &cbz, nil
}

func (store *Store) CreateCbzLinked(db database.Queryable, docID int32, path string) (*Cbz, error) {
	var cbz Cbz
	if err := db.Get(&cbz, `INSERT INTO cbz(doc_id, path) VALUES ($1, $2) RETURNING *`, docID, path); err != nil {
		return nil, fmt.Errorf("failed to insert new cbz: %w", err)
	}

	return &cbz, nil
}

func (store *Store) UpdateCbzLink(db database.Queryable, id int32, docID *int32) error {
	result, err := db.Exec(`UPDATE cbz SET doc_id = $1, updated_at = current_timestamp WHERE id = $2`, docID, id)
	if err != nil {
		return err
	}

	return expectOneRow(result, ErrCbzNotFound)
}

func (store *Store) DeleteCbz(db database.Queryable, id int32) error {
	result, err := db.Exec(`DELETE FROM cbz WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return expectOneRow(result, ErrCbzNotFound)
}

func (store *Store) ListCbz(db database.Queryable, params ListParams) ([]*Cbz, int64, error) {
	return listPage[Cbz](db, "cbz", params, cbzSortable)
}

// listPage runs the shared list query shape: a paginated SELECT * over
// the table plus a total row count for the pagination response.
func listPage[T any](db database.Queryable, table string, params ListParams, sortable map[string]bool) ([]*T, int64, error) {
	query, args, err := squirrel.
		Select("*").
		From(table).
		OrderBy(params.orderBy(table, sortable)).
		Limit(params.limit()).
		Offset(params.offset()).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to construct %s list query: %w", table, err)
	}

	var rows []*T
	if err := db.Select(&rows, query, args...); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := db.Get(&total, "SELECT COUNT(*) FROM "+table); err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

func expectOneRow(result sql.Result, missing error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return missing
	}

	return nil
}
