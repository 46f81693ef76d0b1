// Package batch partitions listed objects into bounded archive batches.
package batch

import (
	"VelArchiver/internal/listing"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusCompressed Status = "compressed"
	StatusUploaded   Status = "uploaded"
	StatusVerified   Status = "verified"
	StatusDeleted    Status = "deleted"
	StatusFailed     Status = "failed"
	StatusDeferred   Status = "deferred"
)

// Batch is one group of objects headed for a single archive.
type Batch struct {
	Index      int
	Objects    []listing.SourceObject
	TotalBytes int64
	ArchiveKey string
	Status     Status
}

// Partition walks objects in order and closes a batch when adding the next
// object would exceed maxCount objects or maxBytes bytes. An object larger
// than maxBytes on its own becomes a batch of one.
func Partition(objects []listing.SourceObject, maxCount int, maxBytes int64) []*Batch {
	if maxCount < 1 {
		maxCount = 1
	}
	var batches []*Batch
	var cur *Batch
	for _, obj := range objects {
		if cur != nil && (len(cur.Objects)+1 > maxCount || (maxBytes > 0 && cur.TotalBytes+obj.Size > maxBytes)) {
			cur = nil
		}
		if cur == nil {
			cur = &Batch{Index: len(batches), Status: StatusPending}
			batches = append(batches, cur)
		}
		cur.Objects = append(cur.Objects, obj)
		cur.TotalBytes += obj.Size
	}
	return batches
}
