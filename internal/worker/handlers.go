package worker

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/telegrab/telegrab/internal/fetcher"
	"github.com/telegrab/telegrab/internal/gallery"
	"github.com/telegrab/telegrab/internal/queue"
)

type (
	// Repository is the slice of persistence behaviour the handlers
	// depend on, satisfied by gallery.Repository.
	Repository interface {
		GetDoc(id int32) (*gallery.Doc, error)
		GetUnparsedDocs() ([]*gallery.Doc, error)
		UpdateDocStatus(id int32, status gallery.DocStatus) error
		SetDocPageCount(id int32, pageCount int) error
		ApplyManifest(docID int32, manifest *gallery.AlbumManifest) error
		GetPicsByDocID(docID int32) ([]*gallery.Pic, error)
		GetCbzById(id int32) (*gallery.Cbz, error)
		GetCbzByPath(path string) (*gallery.Cbz, error)
		CreateCbz(path string) (*gallery.Cbz, error)
		CreateCbzLinked(docID int32, path string) (*gallery.Cbz, error)
		UpdateCbzLink(id int32, docID *int32) error
		DeleteCbz(id int32) error
	}

	// ProgressFn reports advisory completion (0..1) for the task
	// currently being handled.
	ProgressFn func(progress float64)

	// TaskHandlers dispatches queue tasks to their kind-specific
	// behaviour. Every handler is idempotent against repository state
	// so a re-enqueued task converges rather than duplicates.
	TaskHandlers struct {
		repo    Repository
		fetcher fetcher.Fetcher
		picDir  string
		cbzDir  string
	}
)

func NewTaskHandlers(repo Repository, fetcher fetcher.Fetcher, picDir string, cbzDir string) *TaskHandlers {
	return &TaskHandlers{repo: repo, fetcher: fetcher, picDir: picDir, cbzDir: cbzDir}
}

// Handle runs the handler matching the task's kind and returns the
// task's final result string. Any error marks the task failed.
func (handlers *TaskHandlers) Handle(ctx context.Context, task *queue.Task, report ProgressFn) (string, error) {
	switch task.Kind {
	case queue.HtmlParse:
		return handlers.htmlParse(ctx, task.DocID)
	case queue.HtmlParseAll:
		return handlers.htmlParseAll(ctx)
	case queue.PicDownload:
		return handlers.picDownload(ctx, task.DocID, report)
	case queue.CbzArchive:
		return handlers.cbzArchive(task.DocID)
	case queue.ScanDir:
		return handlers.scanDir()
	case queue.RemoveCbz:
		return handlers.removeCbz(task.CbzID)
	case queue.FsCbzAdded:
		return handlers.fsCbzAdded(task.Path)
	case queue.FsCbzRemoved:
		return handlers.fsCbzRemoved(task.Path)
	case queue.DocDownload:
		return "", fmt.Errorf("no handler is registered for %s tasks", task.Kind)
	}

	return "", fmt.Errorf("unknown task kind %q", task.Kind)
}

// htmlParse fetches and parses the doc's album page, persisting the
// manifest. A doc which is already parsed short-circuits with its
// existing page title.
func (handlers *TaskHandlers) htmlParse(ctx context.Context, docID int32) (string, error) {
	doc, err := handlers.repo.GetDoc(docID)
	if err != nil {
		return "", err
	}

	if doc.Status == gallery.DocParsed && doc.PageTitle != nil && *doc.PageTitle != "" {
		log.Debugf("Doc %d already parsed as %q, skipping\n", docID, *doc.PageTitle)
		return *doc.PageTitle, nil
	}

	manifest, err := handlers.fetcher.ParseAlbum(ctx, doc.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse album %s: %w", doc.URL, err)
	}

	if err := handlers.repo.ApplyManifest(docID, manifest); err != nil {
		return "", err
	}

	log.Infof("Parsed doc %d: %q with %d image(s)\n", docID, manifest.Title, len(manifest.ImageURLs))
	return manifest.Title, nil
}

func (handlers *TaskHandlers) htmlParseAll(ctx context.Context) (string, error) {
	docs, err := handlers.repo.GetUnparsedDocs()
	if err != nil {
		return "", err
	}

	for i, doc := range docs {
		if _, err := handlers.htmlParse(ctx, doc.ID); err != nil {
			return "", fmt.Errorf("parse-all stopped at doc %d (%d/%d done): %w", doc.ID, i, len(docs), err)
		}
	}

	return fmt.Sprintf("parsed %d doc(s)", len(docs)), nil
}

// picDownload fetches every pic of the doc into the doc's own
// directory under picDir. Already-present files count as successes, so
// a retried task only fetches what is missing. The doc only advances
// to Downloaded when every page made it to disk.
func (handlers *TaskHandlers) picDownload(ctx context.Context, docID int32, report ProgressFn) (string, error) {
	doc, err := handlers.repo.GetDoc(docID)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(handlers.picDir, gallery.LastPathSegment(doc.URL))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create pic directory %s: %w", dir, err)
	}

	pics, err := handlers.repo.GetPicsByDocID(docID)
	if err != nil {
		return "", err
	}

	total := len(pics)
	succeeded := 0
	for i, pic := range pics {
		savePath := filepath.Join(dir, gallery.PageFilename(pic.Seq, total, pic.URL))
		if _, err := os.Stat(savePath); err == nil {
			succeeded++
		} else if _, err := handlers.fetcher.Download(ctx, pic.URL, savePath); err != nil {
			log.Warnf("Failed to download pic %d of doc %d: %s\n", pic.Seq, docID, err.Error())
		} else {
			succeeded++
		}

		if report != nil {
			report(float64(i+1) / float64(total))
		}
	}

	if succeeded == total {
		if err := handlers.repo.UpdateDocStatus(docID, gallery.DocDownloaded); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("%s,%d/%d", dir, succeeded, total), nil
}

// cbzArchive packages the doc's downloaded pages into a .cbz archive:
// ComicInfo.xml first, then the image files in directory-read order.
func (handlers *TaskHandlers) cbzArchive(docID int32) (string, error) {
	doc, err := handlers.repo.GetDoc(docID)
	if err != nil {
		return "", err
	}

	pics, err := handlers.repo.GetPicsByDocID(docID)
	if err != nil {
		return "", err
	}

	if err := handlers.repo.SetDocPageCount(docID, len(pics)); err != nil {
		return "", err
	}

	comicInfo, err := gallery.NewComicInfo(doc, len(pics)).Marshal()
	if err != nil {
		return "", err
	}

	filename := gallery.ArchiveFilename(doc)
	picDir := filepath.Join(handlers.picDir, gallery.LastPathSegment(doc.URL))
	if err := writeArchive(filepath.Join(handlers.cbzDir, filename), comicInfo, picDir); err != nil {
		return "", err
	}

	if err := handlers.repo.UpdateDocStatus(docID, gallery.DocArchived); err != nil {
		return "", err
	}

	if existing, err := handlers.repo.GetCbzByPath(filename); err != nil {
		return "", err
	} else if existing != nil {
		if err := handlers.repo.UpdateCbzLink(existing.ID, &docID); err != nil {
			return "", err
		}
	} else if _, err := handlers.repo.CreateCbzLinked(docID, filename); err != nil {
		return "", err
	}

	log.Infof("Archived doc %d as %s (%d page(s))\n", docID, filename, len(pics))
	return filename, nil
}

func writeArchive(archivePath string, comicInfo []byte, picDir string) error {
	file, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", archivePath, err)
	}
	defer file.Close()

	archive := zip.NewWriter(file)
	infoEntry, err := archive.Create("ComicInfo.xml")
	if err != nil {
		return err
	}
	if _, err := infoEntry.Write(comicInfo); err != nil {
		return err
	}

	entries, err := os.ReadDir(picDir)
	if err != nil {
		return fmt.Errorf("failed to read pic directory %s: %w", picDir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if err := addFileEntry(archive, filepath.Join(picDir, entry.Name()), entry.Name()); err != nil {
			return err
		}
	}

	return archive.Close()
}

func addFileEntry(archive *zip.Writer, sourcePath string, entryName string) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer source.Close()

	entry, err := archive.Create(entryName)
	if err != nil {
		return err
	}

	_, err = io.Copy(entry, source)
	return err
}

// scanDir reconciles the cbz table with the archives actually present
// under cbzDir, inserting a row for any archive not yet recorded.
func (handlers *TaskHandlers) scanDir() (string, error) {
	inserted := 0
	err := filepath.WalkDir(handlers.cbzDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".cbz") {
			return nil
		}

		existing, err := handlers.repo.GetCbzByPath(entry.Name())
		if err != nil {
			return err
		}
		if existing == nil {
			if _, err := handlers.repo.CreateCbz(entry.Name()); err != nil {
				return err
			}
			inserted++
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", handlers.cbzDir, err)
	}

	return fmt.Sprintf("inserted %d cbz row(s)", inserted), nil
}

// removeCbz deletes the archive from disk (best-effort) and removes
// its row.
func (handlers *TaskHandlers) removeCbz(cbzID int32) (string, error) {
	cbz, err := handlers.repo.GetCbzById(cbzID)
	if err != nil {
		return "", err
	}

	if err := os.Remove(filepath.Join(handlers.cbzDir, cbz.Path)); err != nil {
		log.Warnf("Failed to delete archive %s from disk: %s\n", cbz.Path, err.Error())
	}

	if err := handlers.repo.DeleteCbz(cbzID); err != nil {
		return "", err
	}

	return cbz.Path, nil
}

func (handlers *TaskHandlers) fsCbzAdded(path string) (string, error) {
	existing, err := handlers.repo.GetCbzByPath(path)
	if err != nil {
		return "", err
	}

	if existing == nil {
		if _, err := handlers.repo.CreateCbz(path); err != nil {
			return "", err
		}
	}

	return path, nil
}

func (handlers *TaskHandlers) fsCbzRemoved(path string) (string, error) {
	existing, err := handlers.repo.GetCbzByPath(path)
	if err != nil {
		return "", err
	}

	if existing != nil {
		if err := handlers.repo.DeleteCbz(existing.ID); err != nil {
			return "", err
		}
	}

	return path, nil
}
