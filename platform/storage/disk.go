package storage

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// DiskStorage keeps project upload trees and annotation documents under a
// single base directory on the local filesystem.
type DiskStorage struct {
	basepath string
}

func NewDisk(basepath string) Storage {
	slog.Info("creating new disk storage", "basepath", basepath)
	return &DiskStorage{basepath: basepath}
}

func (s *DiskStorage) fullpath(path string) string {
	return filepath.Join(s.basepath, path)
}

func (s *DiskStorage) Read(path string) (io.ReadCloser, error) {
	file, err := os.Open(s.fullpath(path))
	if err != nil {
		return nil, fmt.Errorf("error reading file %v: %w", path, err)
	}
	return file, nil
}

func (s *DiskStorage) Write(path string, data io.Reader) error {
	fullpath := s.fullpath(path)

	if err := os.MkdirAll(filepath.Dir(fullpath), 0777); err != nil {
		slog.Error("error creating parent directory", "path", fullpath, "error", err)
		return fmt.Errorf("error creating parent directory for %v: %w", path, err)
	}

	file, err := os.Create(fullpath)
	if err != nil {
		slog.Error("error creating file", "path", fullpath, "error", err)
		return fmt.Errorf("error creating file %v: %w", path, err)
	}

	_, err = io.Copy(file, data)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		slog.Error("error writing file", "path", fullpath, "error", err)
		return fmt.Errorf("error writing file %v: %w", path, err)
	}

	return nil
}

func (s *DiskStorage) Delete(path string) error {
	fullpath := s.fullpath(path)
	if err := os.RemoveAll(fullpath); err != nil {
		slog.Error("error deleting path", "path", fullpath, "error", err)
		return fmt.Errorf("error deleting %v: %w", path, err)
	}
	return nil
}

func (s *DiskStorage) List(path string) ([]Entry, error) {
	fullpath := s.fullpath(path)
	dirEntries, err := os.ReadDir(fullpath)
	if err != nil {
		slog.Error("error listing directory", "path", fullpath, "error", err)
		return nil, fmt.Errorf("error listing directory %v: %w", path, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, entry := range dirEntries {
		entries = append(entries, Entry{Name: entry.Name(), Dir: entry.IsDir()})
	}

	return entries, nil
}

func (s *DiskStorage) Exists(path string) (bool, error) {
	_, err := os.Stat(s.fullpath(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("error checking if %v exists: %w", path, err)
}

// Unzip expands the archive at path into a sibling directory named after the
// archive. Entries that would land outside that directory are rejected, the
// archive contents come from uploaders.
func (s *DiskStorage) Unzip(path string) error {
	reader, err := zip.OpenReader(s.fullpath(path))
	if err != nil {
		slog.Error("error opening archive", "path", path, "error", err)
		return fmt.Errorf("error opening archive %v: %w", path, err)
	}
	defer reader.Close()

	destination := strings.TrimSuffix(path, ".zip")

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		if !filepath.IsLocal(file.Name) {
			return fmt.Errorf("archive entry '%v' has an invalid path", file.Name)
		}

		data, err := file.Open()
		if err != nil {
			return fmt.Errorf("error reading archive entry '%v': %w", file.Name, err)
		}

		err = s.Write(filepath.Join(destination, file.Name), data)
		data.Close()
		if err != nil {
			return fmt.Errorf("error extracting archive entry '%v': %w", file.Name, err)
		}
	}

	return nil
}

// Zip writes the directory at path into a new <path>.zip archive.
func (s *DiskStorage) Zip(path string) error {
	fullpath := s.fullpath(path)

	zipfile, err := os.Create(fullpath + ".zip")
	if err != nil {
		slog.Error("error creating archive file", "path", fullpath, "error", err)
		return fmt.Errorf("error creating archive for %v: %w", path, err)
	}
	defer zipfile.Close()

	archive := zip.NewWriter(zipfile)
	if err := archive.AddFS(os.DirFS(fullpath)); err != nil {
		archive.Close()
		slog.Error("error archiving directory", "path", fullpath, "error", err)
		return fmt.Errorf("error archiving directory %v: %w", path, err)
	}

	return archive.Close()
}

func (s *DiskStorage) Usage() (UsageStats, error) {
	var stat unix.Statfs_t

	if err := unix.Statfs(s.basepath, &stat); err != nil {
		slog.Error("error getting disk usage for storage", "path", s.basepath, "error", err)
		return UsageStats{}, fmt.Errorf("error getting disk usage stats: %w", err)
	}

	return UsageStats{
		TotalBytes: stat.Blocks * uint64(stat.Bsize),
		FreeBytes:  stat.Bfree * uint64(stat.Bsize),
	}, nil
}
