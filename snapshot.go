// Package vfs contains the core domain types and interfaces for the virtual
// file system snapshot cache
package vfs

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hanwen/go-fuse/v2/fuse"
)

var (
	// ErrRootNotVisitable is returned when a traversal is started on the bare
	// root node. Traversals must start at a child or at the root's path proxy.
	ErrRootNotVisitable = errors.New("cannot visit root node")

	// ErrNotFound is returned when no snapshot is known for a path
	ErrNotFound = errors.New("snapshot not found")
)

// FileType tags how a node's snapshot may be interpreted
type FileType int

const (
	// Unknown is the type of nodes that have not been observed yet
	Unknown FileType = iota
	Directory
	RegularFile
	// Missing records that the path was observed and did not exist
	Missing
)

func (t FileType) String() string {
	switch t {
	case Directory:
		return "dir"
	case RegularFile:
		return "file"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

// Snapshot is the immutable record of a filesystem entry observed at a point
// in time. Values are shared by reference and must not be modified once
// handed to the hierarchy.
type Snapshot struct {
	ID          uuid.UUID
	Path        string
	Type        FileType
	Attr        fuse.Attr // Observed metadata; zero for Missing
	Fingerprint uint64    // Content digest (files) or entry listing digest (dirs)
	ETag        string    // Remote version identifier, if any
	CapturedAt  time.Time
}

// NewSnapshot returns a snapshot with a fresh ID captured now
func NewSnapshot(path string, typ FileType, attr fuse.Attr, fingerprint uint64) *Snapshot {
	return &Snapshot{
		ID:          uuid.New(),
		Path:        path,
		Type:        typ,
		Attr:        attr,
		Fingerprint: fingerprint,
		CapturedAt:  time.Now(),
	}
}

// Size returns the observed size in bytes
func (s *Snapshot) Size() uint64 {
	return s.Attr.Size
}

// ModTime returns the observed modification time
func (s *Snapshot) ModTime() time.Time {
	return s.Attr.ModTime()
}

// SameContent reports whether both snapshots describe the same content.
// The identity and capture time are ignored.
func (s *Snapshot) SameContent(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Type == other.Type &&
		s.Fingerprint == other.Fingerprint &&
		s.Attr.Size == other.Attr.Size &&
		s.ETag == other.ETag
}

func (s *Snapshot) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s size=%d fp=%016x", s.Type, s.Path, s.Attr.Size, s.Fingerprint)
}
