package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
)

// FileStore keeps records as a JSON array in one file. The file is read and
// rewritten whole on every call. All calls run on a single goroutine, which
// makes read-modify-write appends atomic within the process.
type FileStore struct {
	path string
	ops  chan func()
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewFileStore opens a store backed by path. A missing file is an empty
// store; it is created on the first append.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, mcperrors.StorageError("open", errors.New("path is required"))
	}
	if _, err := readRecords(path); err != nil {
		return nil, err
	}

	s := &FileStore{
		path: path,
		ops:  make(chan func()),
		done: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s, nil
}

func (s *FileStore) loop() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.done:
			return
		}
	}
}

// do runs fn on the writer goroutine and waits for it.
func (s *FileStore) do(ctx context.Context, operation string, fn func()) error {
	finished := make(chan struct{})
	op := func() {
		defer close(finished)
		fn()
	}

	select {
	case s.ops <- op:
	case <-s.done:
		return mcperrors.StorageError(operation, errors.New("store closed"))
	case <-ctx.Done():
		return mcperrors.OperationCancelled("store "+operation, ctx.Err())
	}
	<-finished
	return nil
}

// List returns every record in file order.
func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	var (
		records []Record
		err     error
	)
	if doErr := s.do(ctx, "list", func() {
		records, err = readRecords(s.path)
	}); doErr != nil {
		return nil, doErr
	}
	return records, err
}

// Append assigns the next id, one past the largest on file.
func (s *FileStore) Append(ctx context.Context, fields map[string]interface{}) (int, error) {
	var (
		id  int
		err error
	)
	if doErr := s.do(ctx, "append", func() {
		var records []Record
		records, err = readRecords(s.path)
		if err != nil {
			return
		}
		for _, r := range records {
			if r.ID > id {
				id = r.ID
			}
		}
		id++
		records = append(records, Record{ID: id, Fields: copyFields(fields)})
		err = writeRecords(s.path, records)
	}); doErr != nil {
		return 0, doErr
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Get scans the file for id.
func (s *FileStore) Get(ctx context.Context, id int) (Record, error) {
	records, err := s.List(ctx)
	if err != nil {
		return Record{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, mcperrors.RecordNotFound(id)
}

// Close stops the writer goroutine after the call in progress finishes.
func (s *FileStore) Close() error {
	s.once.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	return nil
}

func readRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, mcperrors.StorageError("read", err)
	}
	if len(data) == 0 {
		return []Record{}, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, mcperrors.StorageError("decode", err)
	}
	return records, nil
}

// writeRecords replaces the file through a rename, so readers never see a
// half-written array.
func writeRecords(path string, records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return mcperrors.StorageError("encode", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return mcperrors.StorageError("write", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return mcperrors.StorageError("write", err)
	}
	if err := tmp.Close(); err != nil {
		return mcperrors.StorageError("write", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return mcperrors.StorageError("rename", err)
	}
	return nil
}
