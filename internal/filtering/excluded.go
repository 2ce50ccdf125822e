package filtering

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/spigell/job-matcher/internal/jobs"
)

// ExcludedJobs is the content of an exclude file: jobs the user dismissed.
type ExcludedJobs struct {
	Items []*ExcludedJob
}

type ExcludedJob struct {
	ID         string
	URL        string
	Company    string
	ExcludedAt time.Time
}

// ToExcluded converts records into exclude file entries.
func ToExcluded(records jobs.Records, now time.Time) *ExcludedJobs {
	excluded := &ExcludedJobs{}
	for _, record := range records {
		excluded.Items = append(excluded.Items, &ExcludedJob{
			ID:         record.ID,
			URL:        record.ApplicationURL,
			Company:    record.Company,
			ExcludedAt: now.UTC(),
		})
	}
	return excluded
}

// LoadExcluded reads an exclude file. A missing or empty file is an empty list.
func LoadExcluded(path string) (*ExcludedJobs, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &ExcludedJobs{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedJobs{}, nil
	}

	var excluded ExcludedJobs
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

// Append adds entries whose ids are not present yet.
func (e *ExcludedJobs) Append(s *ExcludedJobs) {
	known := make(map[string]bool, len(e.Items))
	for _, item := range e.Items {
		known[item.ID] = true
	}
	for _, item := range s.Items {
		if known[item.ID] {
			continue
		}
		known[item.ID] = true
		e.Items = append(e.Items, item)
	}
}

func (e *ExcludedJobs) IDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (e *ExcludedJobs) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	return e.writeTo(file)
}

// writeTo encodes e into w and closes it. A failed close is returned.
func (e *ExcludedJobs) writeTo(w io.WriteCloser) (err error) {
	defer func() {
		if closeErr := w.Close(); err == nil {
			err = closeErr
		}
	}()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// AppendToFile merges s into the exclude file at path while holding a lock
// on path + ".lock", so concurrent runs do not lose each other's entries.
func AppendToFile(path string, s *ExcludedJobs) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock exclude file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	current, err := LoadExcluded(path)
	if err != nil {
		return fmt.Errorf("read exclude file: %w", err)
	}
	current.Append(s)

	if err := current.ToFile(path); err != nil {
		return fmt.Errorf("write exclude file: %w", err)
	}
	return nil
}
