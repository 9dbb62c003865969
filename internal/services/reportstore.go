package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/northstar-audit/northstar-backend/internal/pkg/errors"
	"github.com/northstar-audit/northstar-backend/internal/logger"
)

// ReportStore persists generated report PDFs on local disk and serves
// them back by filename.
type ReportStore interface {
	Save(filename string, data []byte) error
	Open(filename string) ([]byte, error)
	Remove(filename string) error
}

type localReportStore struct {
	dir string
	log *logger.Logger
}

func NewLocalReportStore(baseLog *logger.Logger, dir string) (ReportStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating reports dir %s: %w", dir, err)
	}
	return &localReportStore{
		dir: dir,
		log: baseLog.With("service", "ReportStore"),
	}, nil
}

// validFilename rejects anything that could escape the reports
// directory.
func validFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
		return false
	}
	return true
}

func (s *localReportStore) Save(filename string, data []byte) error {
	if !validFilename(filename) {
		return fmt.Errorf("%w: invalid report filename %q", apperrors.ErrInvalidArgument, filename)
	}
	path := filepath.Join(s.dir, filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", filename, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing report %s: %w", filename, err)
	}
	s.log.Debug("Saved report", "filename", filename, "bytes", len(data))
	return nil
}

func (s *localReportStore) Open(filename string) ([]byte, error) {
	if !validFilename(filename) {
		return nil, fmt.Errorf("%w: invalid report filename %q", apperrors.ErrInvalidArgument, filename)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: report %s", apperrors.ErrNotFound, filename)
		}
		return nil, fmt.Errorf("reading report %s: %w", filename, err)
	}
	return data, nil
}

func (s *localReportStore) Remove(filename string) error {
	if !validFilename(filename) {
		return fmt.Errorf("%w: invalid report filename %q", apperrors.ErrInvalidArgument, filename)
	}
	if err := os.Remove(filepath.Join(s.dir, filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing report %s: %w", filename, err)
	}
	return nil
}
