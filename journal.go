package sdc

import (
	"os"

	"github.com/spf13/afero"
)

// Journal receives a record around the mutating write. Intent must be
// durable before it returns: the write that follows may take the process
// down.
type Journal interface {
	Intent(rec *Record) error
	Outcome(rec *Record) error
}

const finishedMarker = "Application finished\n"

// FileJournal appends records to a human readable log file. Every append
// opens, syncs and closes the file.
type FileJournal struct {
	fs       afero.Fs
	path     string
	snapshot Snapshot
}

func NewFileJournal(fs afero.Fs, path string, snapshot Snapshot) *FileJournal {
	return &FileJournal{fs: fs, path: path, snapshot: snapshot}
}

func (j *FileJournal) Intent(rec *Record) error {
	return j.appendTo(os.O_CREATE, func(f afero.File) error {
		return writeIntent(f, j.snapshot, rec)
	})
}

func (j *FileJournal) Outcome(rec *Record) error {
	return j.appendTo(os.O_CREATE, func(f afero.File) error {
		return writeOutcome(f, rec)
	})
}

// Finish marks a normal end of the host process. Nothing is written unless
// the log already exists.
func (j *FileJournal) Finish() error {
	exists, err := afero.Exists(j.fs, j.path)
	if err != nil || !exists {
		return err
	}
	return j.appendTo(0, func(f afero.File) error {
		_, err := f.WriteString(finishedMarker)
		return err
	})
}

func (j *FileJournal) appendTo(extraFlags int, write func(afero.File) error) (err error) {
	f, err := j.fs.OpenFile(j.path, os.O_WRONLY|os.O_APPEND|extraFlags, 0644)
	if err != nil {
		return
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	if err = write(f); err != nil {
		return
	}
	return f.Sync()
}

type nopJournal struct{}

func (nopJournal) Intent(*Record) error  { return nil }
func (nopJournal) Outcome(*Record) error { return nil }
