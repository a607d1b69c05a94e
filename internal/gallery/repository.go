package gallery

import (
	"github.com/jmoiron/sqlx"
	"github.com/telegrab/telegrab/internal/database"
)

// Repository binds the store to a live database connection, offering
// the call surface the task handlers and API controllers consume. The
// store itself stays connection-agnostic (everything goes through a
// Queryable) so the repository decides when a transaction is needed.
type Repository struct {
	db    database.Manager
	store *Store
}

func NewRepository(db database.Manager) *Repository {
	return &Repository{db: db, store: NewStore()}
}

func (repo *Repository) CreateDoc(url string) (*Doc, error) {
	return repo.store.CreateDoc(repo.db.GetSqlxDb(), url)
}

func (repo *Repository) GetDoc(id int32) (*Doc, error) {
	return repo.store.GetDoc(repo.db.GetSqlxDb(), id)
}

func (repo *Repository) GetDocsByIds(ids []int32) ([]*Doc, error) {
	return repo.store.GetDocsByIds(repo.db.GetSqlxDb(), ids)
}

func (repo *Repository) GetUnparsedDocs() ([]*Doc, error) {
	return repo.store.GetUnparsedDocs(repo.db.GetSqlxDb())
}

func (repo *Repository) ListDocs(params ListParams) ([]*Doc, int64, error) {
	return repo.store.ListDocs(repo.db.GetSqlxDb(), params)
}

func (repo *Repository) UpdateDocStatus(id int32, status DocStatus) error {
	return repo.store.UpdateDocStatus(repo.db.GetSqlxDb(), id, status)
}

func (repo *Repository) SetDocPageCount(id int32, pageCount int) error {
	return repo.store.SetDocPageCount(repo.db.GetSqlxDb(), id, pageCount)
}

func (repo *Repository) DeleteDoc(id int32) error {
	return repo.store.DeleteDoc(repo.db.GetSqlxDb(), id)
}

// ApplyManifest runs inside a transaction so a doc is never left with
// a partial pic set.
func (repo *Repository) ApplyManifest(docID int32, manifest *AlbumManifest) error {
	return repo.db.WrapTx(func(tx *sqlx.Tx) error {
		return repo.store.ApplyManifest(tx, docID, manifest)
	})
}

func (repo *Repository) GetPic(id int32) (*Pic, error) {
	return repo.store.GetPic(repo.db.GetSqlxDb(), id)
}

func (repo *Repository) GetPicsByDocID(docID int32) ([]*Pic, error) {
	return repo.store.GetPicsByDocID(repo.db.GetSqlxDb(), docID)
}

func (repo *Repository) GetPicsByIds(ids []int32) ([]*Pic, error) {
	return repo.store.GetPicsByIds(repo.db.GetSqlxDb(), ids)
}

func (repo *Repository) GetCbzById(id int32) (*Cbz, error) {
	return repo.store.GetCbzById(repo.db.GetSqlxDb(), id)
}

func (repo *Repository) GetCbzByPath(path string) (*Cbz, error) {
	return repo.store.GetCbzByPath(repo.db.GetSqlxDb(), path)
}

func (repo *Repository) CreateCbz(path string) (*Cbz, error) {
	return repo.store.CreateCbz(repo.db.GetSqlxDb(), path)
}

func (repo *Repository) CreateCbzLinked(docID int32, path string) (*Cbz, error) {
	return repo.store.CreateCbzLinked(repo.db.GetSqlxDb(), docID, path)
}

func (repo *Repository) UpdateCbzLink(id int32, docID *int32) error {
	return repo.store.UpdateCbzLink(repo.db.GetSqlxDb(), id, docID)
}

func (repo *Repository) DeleteCbz(id int32) error {
	return repo.store.DeleteCbz(repo.db.GetSqlxDb(), id)
}

func (repo *Repository) ListCbz(params ListParams) ([]*Cbz, int64, error) {
	return repo.store.ListCbz(repo.db.GetSqlxDb(), params)
}
