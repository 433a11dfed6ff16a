// Package storage writes exported reports to the local filesystem
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// ExportStore keeps exported workbooks below baseDir, one folder per session
type ExportStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewExportStore creates a new ExportStore
func NewExportStore(baseDir string, logger *zap.Logger) *ExportStore {
	return &ExportStore{
		baseDir: baseDir,
		logger:  logger,
	}
}

// BaseDir returns the directory every export is written below
func (s *ExportStore) BaseDir() string {
	return s.baseDir
}

// SaveReport writes content to {baseDir}/{sessionID}/{name} and returns
// the path written
func (s *ExportStore) SaveReport(sessionID, name string, content []byte) (string, error) {
	folder := SanitizeName(sessionID)
	file := SanitizeName(name)
	if folder == "" || file == "" {
		return "", fmt.Errorf("cannot save report: empty session or file name")
	}

	fullPath := filepath.Join(s.baseDir, folder, file)
	if err := s.SaveFile(fullPath, content); err != nil {
		return "", err
	}
	return fullPath, nil
}

// SaveFile writes content to the specified full path
// Creates parent directories if needed
func (s *ExportStore) SaveFile(fullPath string, content []byte) error {
	if err := s.ValidatePath(fullPath); err != nil {
		return err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("File saved successfully",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))

	return nil
}

// DeleteSession removes a session's export folder and all contents.
// A folder that does not exist is not an error.
func (s *ExportStore) DeleteSession(sessionID string) error {
	folder := SanitizeName(sessionID)
	if folder == "" {
		return nil
	}
	folderPath := filepath.Join(s.baseDir, folder)

	if _, err := os.Stat(folderPath); os.IsNotExist(err) {
		return nil
	}

	if err := os.RemoveAll(folderPath); err != nil {
		s.logger.Error("Failed to delete export folder",
			zap.String("session_id", sessionID),
			zap.String("folder_path", folderPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete folder: %w", err)
	}

	s.logger.Debug("Deleted export folder",
		zap.String("session_id", sessionID),
		zap.String("folder_path", folderPath))

	return nil
}

// ValidatePath checks that the path is safe and within baseDir
func (s *ExportStore) ValidatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	// base + separator, so /tmp/exports_evil does not pass for /tmp/exports
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}

// SanitizeName returns a filesystem-safe version of name: no separators,
// no parent references, only letters, digits, '-', '_' and '.'
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.TrimLeft(name, ".")
}
