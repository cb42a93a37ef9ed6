package ports

import (
	"io"
	"io/fs"
)

// FileHandle is an open file returned by FileSystem.OpenFile.
type FileHandle interface {
	io.Writer
	io.Closer

	// Name returns the path the file was opened with.
	Name() string
}

// FileSystem abstracts file operations for testing.
type FileSystem interface {
	// ReadFile reads the named file and returns its contents.
	ReadFile(name string) ([]byte, error)

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// OpenFile opens the named file for writing with the given flags.
	OpenFile(name string, flag int, perm fs.FileMode) (FileHandle, error)

	// Stat returns file info for the named file.
	Stat(name string) (fs.FileInfo, error)

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm fs.FileMode) error

	// Remove removes the named file or empty directory.
	Remove(name string) error

	// UserHomeDir returns the current user's home directory.
	UserHomeDir() (string, error)

	// Getenv retrieves the value of the environment variable named by the key.
	Getenv(key string) string

	// Getwd returns the current working directory.
	Getwd() (string, error)
}
