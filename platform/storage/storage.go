package storage

import "io"

type UsageStats struct {
	TotalBytes uint64
	FreeBytes  uint64
}

// Entry is a single name within a storage directory.
type Entry struct {
	Name string
	Dir  bool
}

type Storage interface {
	Read(path string) (io.ReadCloser, error)

	Write(path string, data io.Reader) error

	Delete(path string) error

	List(path string) ([]Entry, error)

	Exists(path string) (bool, error)

	Unzip(path string) error

	Zip(path string) error

	Usage() (UsageStats, error)
}
