package storage

import (
	"fmt"
	"path/filepath"

	"review-harvester/models"
	"review-harvester/utils"
)

// Checkpointer accumulates every output row and periodically persists them
// as a rolling full snapshot plus a numbered chunk holding the rows added
// since the previous chunk.
type Checkpointer struct {
	snapshotPath string
	chunkDir     string
	chunkSize    int
	logger       *utils.Logger

	rows       []models.OutputRow
	chunkStart int
	chunkIdx   int
	processed  int
}

// NewCheckpointer creates a Checkpointer. chunkSize is the number of
// processed entities between saves.
func NewCheckpointer(snapshotPath, chunkDir string, chunkSize int, logger *utils.Logger) *Checkpointer {
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &Checkpointer{
		snapshotPath: snapshotPath,
		chunkDir:     chunkDir,
		chunkSize:    chunkSize,
		logger:       logger,
	}
}

func (c *Checkpointer) Append(rows []models.OutputRow) error {
	c.rows = append(c.rows, rows...)
	return nil
}

// EntityDone saves a checkpoint every chunkSize processed entities.
func (c *Checkpointer) EntityDone(processed int) error {
	c.processed = processed
	if processed%c.chunkSize != 0 {
		return nil
	}
	return c.save()
}

// Close writes the trailing partial chunk, if any, and the final snapshot.
func (c *Checkpointer) Close() error {
	if c.chunkStart < len(c.rows) {
		return c.save()
	}
	return WriteCSVFile(c.snapshotPath, c.rows)
}

// Rows returns everything accumulated so far.
func (c *Checkpointer) Rows() []models.OutputRow {
	return c.rows
}

func (c *Checkpointer) save() error {
	if err := WriteCSVFile(c.snapshotPath, c.rows); err != nil {
		return fmt.Errorf("checkpoint: snapshot: %w", err)
	}

	chunk := c.rows[c.chunkStart:]
	if len(chunk) == 0 {
		return nil
	}

	c.chunkIdx++
	path := c.ChunkPath(c.chunkIdx)
	if err := WriteCSVFile(path, chunk); err != nil {
		return fmt.Errorf("checkpoint: chunk %d: %w", c.chunkIdx, err)
	}
	c.chunkStart = len(c.rows)

	c.logger.Info("[checkpoint] Saved %s (%d rows) and %s (%d rows)",
		c.snapshotPath, len(c.rows), path, len(chunk))
	return nil
}

// ChunkPath returns the file name of chunk idx (1-based).
func (c *Checkpointer) ChunkPath(idx int) string {
	return filepath.Join(c.chunkDir, fmt.Sprintf("2gis_reviews_chunk_%03d.csv", idx))
}
