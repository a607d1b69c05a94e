package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type (
	// TaskKind is the closed set of operations the task engine knows how
	// to execute. The payload a kind carries lives directly on the Task;
	// which fields are meaningful is dictated by the kind.
	TaskKind string

	TaskStatus string

	// Task is a single unit of work owned by the queue. The ID and Kind
	// are fixed at construction; everything else advances as workers
	// drive the task to a terminal status.
	Task struct {
		ID          string     `json:"id"`
		Kind        TaskKind   `json:"kind"`
		DocID       int32      `json:"docId,omitempty"`
		CbzID       int32      `json:"cbzId,omitempty"`
		Path        string     `json:"path,omitempty"`
		Status      TaskStatus `json:"status"`
		CreatedAt   time.Time  `json:"createdAt"`
		StartedAt   *time.Time `json:"startedAt,omitempty"`
		CompletedAt *time.Time `json:"completedAt,omitempty"`
		Result      string     `json:"result,omitempty"`
		Error       string     `json:"error,omitempty"`
	}

	// ActiveTaskInfo is a projection of a task which is currently being
	// executed by a worker. DurationSecs is recomputed from StartedAt
	// whenever the projection is handed out.
	ActiveTaskInfo struct {
		TaskID       string    `json:"taskId"`
		Kind         TaskKind  `json:"kind"`
		Description  string    `json:"description"`
		WorkerID     int       `json:"workerId"`
		StartedAt    time.Time `json:"startedAt"`
		DurationSecs float64   `json:"durationSecs"`
		Progress     *float64  `json:"progress,omitempty"`
	}
)

const (
	HtmlParse    TaskKind = "HtmlParse"
	DocDownload  TaskKind = "DocDownload"
	PicDownload  TaskKind = "PicDownload"
	CbzArchive   TaskKind = "CbzArchive"
	ScanDir      TaskKind = "ScanDir"
	RemoveCbz    TaskKind = "RemoveCbz"
	FsCbzAdded   TaskKind = "FsCbzAdded"
	FsCbzRemoved TaskKind = "FsCbzRemoved"
	HtmlParseAll TaskKind = "HtmlParseAll"
)

const (
	Pending    TaskStatus = "Pending"
	Processing TaskStatus = "Processing"
	Completed  TaskStatus = "Completed"
	Failed     TaskStatus = "Failed"
)

func newTask(kind TaskKind) Task {
	return Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    Pending,
		CreatedAt: time.Now(),
	}
}

func NewHtmlParseTask(docID int32) Task {
	task := newTask(HtmlParse)
	task.DocID = docID
	return task
}

func NewDocDownloadTask(docID int32) Task {
	task := newTask(DocDownload)
	task.DocID = docID
	return task
}

// NewPicDownloadTask carries the ID of the *doc* whose pictures should
// be fetched; the handler downloads every pic row belonging to it.
func NewPicDownloadTask(docID int32) Task {
	task := newTask(PicDownload)
	task.DocID = docID
	return task
}

func NewCbzArchiveTask(docID int32) Task {
	task := newTask(CbzArchive)
	task.DocID = docID
	return task
}

func NewScanDirTask() Task {
	return newTask(ScanDir)
}

func NewRemoveCbzTask(cbzID int32) Task {
	task := newTask(RemoveCbz)
	task.CbzID = cbzID
	return task
}

func NewFsCbzAddedTask(path string) Task {
	task := newTask(FsCbzAdded)
	task.Path = path
	return task
}

func NewFsCbzRemovedTask(path string) Task {
	task := newTask(FsCbzRemoved)
	task.Path = path
	return task
}

func NewHtmlParseAllTask() Task {
	return newTask(HtmlParseAll)
}

func (task *Task) MarkProcessing() {
	now := time.Now()
	task.Status = Processing
	task.StartedAt = &now
}

func (task *Task) MarkCompleted(result string) {
	now := time.Now()
	task.Status = Completed
	task.CompletedAt = &now
	task.Result = result
	task.Error = ""
}

func (task *Task) MarkFailed(reason string) {
	now := time.Now()
	task.Status = Failed
	task.CompletedAt = &now
	task.Error = reason
}

// Description renders a short human-readable label for the task, used
// by the active task projections surfaced over the API.
func (task *Task) Description() string {
	switch task.Kind {
	case HtmlParse:
		return fmt.Sprintf("Parse doc %d", task.DocID)
	case DocDownload:
		return fmt.Sprintf("Download doc %d", task.DocID)
	case PicDownload:
		return fmt.Sprintf("Download pics for doc %d", task.DocID)
	case CbzArchive:
		return fmt.Sprintf("Archive doc %d", task.DocID)
	case ScanDir:
		return "Scan cbz dir"
	case RemoveCbz:
		return fmt.Sprintf("Remove cbz %d", task.CbzID)
	case FsCbzAdded:
		return fmt.Sprintf("Cbz appeared on disk: %s", task.Path)
	case FsCbzRemoved:
		return fmt.Sprintf("Cbz vanished from disk: %s", task.Path)
	case HtmlParseAll:
		return "Parse all unparsed docs"
	}

	return string(task.Kind)
}
