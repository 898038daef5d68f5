package domain

import "time"

// Identity names the thing a ReviewUnit covers: a commit (hash + message)
// or a file group (synthetic key + description).
type Identity struct {
	Key   string
	Label string
}

// ReviewUnit is one independent input to the pipeline. Content is an opaque
// text blob, optionally carrying per-file boundary markers the chunker can
// split on. Units are built once and never mutated.
type ReviewUnit struct {
	Content   string
	Identity  Identity
	SizeBytes int
}

// NewReviewUnit constructs a unit with its size recorded up front.
func NewReviewUnit(content string, identity Identity) ReviewUnit {
	return ReviewUnit{
		Content:   content,
		Identity:  identity,
		SizeBytes: len(content),
	}
}

// SourceFile is a file captured for whole-repository review.
type SourceFile struct {
	Path    string
	Size    int64
	ModTime time.Time
	Content string
}

// CommitInfo is the metadata for a single commit, used to label batch-mode
// review units.
type CommitInfo struct {
	Hash    string
	Author  string
	Date    time.Time
	Message string
}

// Subject returns the first line of the commit message.
func (c CommitInfo) Subject() string {
	for i := 0; i < len(c.Message); i++ {
		if c.Message[i] == '\n' {
			return c.Message[:i]
		}
	}
	return c.Message
}
