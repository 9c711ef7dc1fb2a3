package biometric

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/google/uuid"
)

var safeExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,8}$`)

// SampleInput is an uploaded image or recording.
type SampleInput struct {
	Filename string
	Data     io.Reader
}

// sample is a temporary file holding one in-flight upload. The file name is
// unique per request; Release deletes it and is safe to call more than once.
type sample struct {
	path string
	once sync.Once
	err  error
}

func acquireSample(dir string, in SampleInput, maxBytes int64) (*sample, error) {
	if in.Data == nil {
		return nil, fmt.Errorf("%w: sample file is required", ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	ext := filepath.Ext(in.Filename)
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	path := filepath.Join(dir, uuid.NewString()+ext)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create sample file: %w", err)
	}
	s := &sample{path: path}

	n, copyErr := io.Copy(f, io.LimitReader(in.Data, maxBytes+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		err = fmt.Errorf("write sample file: %w", copyErr)
	case closeErr != nil:
		err = fmt.Errorf("close sample file: %w", closeErr)
	case n == 0:
		err = fmt.Errorf("%w: sample file is empty", ErrInvalidInput)
	case n > maxBytes:
		err = fmt.Errorf("%w: sample file exceeds %d bytes", ErrInvalidInput, maxBytes)
	}
	if err != nil {
		_ = s.Release()
		return nil, err
	}
	return s, nil
}

func (s *sample) Path() string { return s.path }

func (s *sample) Release() error {
	s.once.Do(func() {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.err = err
		}
	})
	return s.err
}
