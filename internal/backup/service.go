// Package backup is the driver that feeds the metadata indices. It pushes
// a data stream through chunking, hashing and blob storage, records every
// chunk in the chunk index and the resulting content-tree root in the
// snapshot index, and owns the checkpoint discipline that makes the whole
// thing crash-consistent.
package backup

import (
	"fmt"
	"io"

	"hoard/internal/index"
	"hoard/internal/index/chunk"
	"hoard/internal/index/snapshot"
	"hoard/internal/model"
)

// Service coordinates one backup pipeline: chunker, hasher, tree builder
// and blob store on one side, the two index actors on the other.
type Service struct {
	chunker Chunker
	hasher  Hasher
	trees   TreeBuilder
	blobs   BlobStore
	chunks  *chunk.Index
	snaps   *snapshot.Index
	coord   *index.Coordinator
	logger  index.Logger
	clock   Clock
	idgen   IDGenerator
}

// NewService creates a Service. The flush coordinator is built here with
// the chunk index ahead of the snapshot index. That ordering is the crash
// consistency contract of the engine and this constructor is its single
// home. Callers checkpoint through the Service and never flush the indices
// directly.
func NewService(chunker Chunker, hasher Hasher, trees TreeBuilder, blobs BlobStore,
	chunks *chunk.Index, snaps *snapshot.Index, logger index.Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		chunker: chunker,
		hasher:  hasher,
		trees:   trees,
		blobs:   blobs,
		chunks:  chunks,
		snaps:   snaps,
		coord:   index.NewCoordinator(logger, chunks, snaps),
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
	}
}

// Backup streams r through the pipeline and records one new snapshot for
// family. The returned root hash identifies the content tree of this run.
//
// Nothing recorded here is durable yet: the caller must Checkpoint (or
// accept that a crash rolls the run back). The write order within the run
// still matters: chunk bytes reach the blob store before the chunk index
// learns their location, and every chunk is indexed before the snapshot
// record that references the tree root is added.
func (s *Service) Backup(family string, r io.Reader) (model.Hash, error) {
	session := s.idgen.New()
	start := s.clock.Now()

	var hashes []model.Hash
	var newChunks int
	err := s.chunker.Split(r, func(data []byte) error {
		h := s.hasher.Sum(data)

		existing, err := s.chunks.Lookup(h)
		if err != nil {
			return err
		}
		if existing == nil {
			ref, err := s.blobs.Put(h, data)
			if err != nil {
				return fmt.Errorf("storing chunk %s: %w", h.Short(), err)
			}
			if err := s.chunks.Insert(h, 0, ref); err != nil {
				return err
			}
			newChunks++
		}

		hashes = append(hashes, h)
		return nil
	})
	if err != nil {
		return model.Hash{}, fmt.Errorf("chunking stream: %w", err)
	}

	root, treeRef, err := s.trees.Build(hashes)
	if err != nil {
		return model.Hash{}, fmt.Errorf("building content tree: %w", err)
	}

	if err := s.snaps.Add(family, root, treeRef); err != nil {
		return model.Hash{}, err
	}

	s.logger.Info("backup recorded",
		"session", session,
		"family", family,
		"root", root.Short(),
		"chunks", len(hashes),
		"new_chunks", newChunks,
		"elapsed", s.clock.Now().Sub(start))
	return root, nil
}

// Checkpoint makes everything recorded so far crash-durable: the chunk
// index commits first, then the snapshot index. When Checkpoint returns
// nil the caller may report completed backups to the user.
func (s *Service) Checkpoint() error {
	return s.coord.Flush()
}

// LatestRoot returns the most recent snapshot record for family, or nil if
// the family has none. This is the base-selection query for incremental
// backups and the entry point for restores.
func (s *Service) LatestRoot(family string) (*snapshot.Record, error) {
	return s.snaps.Latest(family)
}

// Restore writes the content of family's latest snapshot to w by walking
// its tree reference and fetching each chunk through the chunk index and
// blob store.
func (s *Service) Restore(family string, w io.Writer) error {
	rec, err := s.snaps.Latest(family)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no snapshot recorded for family %q", family)
	}

	hashes, err := s.trees.Walk(rec.TreeRef)
	if err != nil {
		return fmt.Errorf("walking content tree for %q: %w", family, err)
	}

	for _, h := range hashes {
		entry, err := s.chunks.Lookup(h)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("chunk %s referenced by snapshot %d is not indexed", h.Short(), rec.ID)
		}

		data, err := s.blobs.Get(entry.BlobRef)
		if err != nil {
			return fmt.Errorf("fetching chunk %s: %w", h.Short(), err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("writing restored data: %w", err)
		}
	}

	s.logger.Info("restore complete", "family", family, "snapshot_id", rec.ID, "chunks", len(hashes))
	return nil
}
