package jsonfile

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/custodia-labs/webrage/internal/core/domain"
)

// SchemaVersion is the only file layout this package reads and writes.
const SchemaVersion = 1

// SentinelID marks the placeholder record present in every store file.
const SentinelID = "__sentinel__"

// storeFile is the on-disk document.
type storeFile struct {
	SchemaVersion *int     `json:"schema_version"`
	Dimension     int      `json:"dimension"`
	Records       []record `json:"records"`
}

// record uses pointers so missing fields are distinguishable from zero values.
type record struct {
	ID            *string        `json:"id"`
	DocumentID    *string        `json:"document_id"`
	SequenceIndex *int           `json:"sequence_index"`
	Text          *string        `json:"text"`
	Vector        *[]float32     `json:"vector"`
	Metadata      map[string]any `json:"metadata"`
}

func sentinelRecord() record {
	id, doc, text := SentinelID, "", ""
	seq := -1
	vec := []float32{}
	return record{
		ID:            &id,
		DocumentID:    &doc,
		SequenceIndex: &seq,
		Text:          &text,
		Vector:        &vec,
		Metadata:      map[string]any{"sentinel": true},
	}
}

func toRecord(c *domain.Chunk) record {
	id, doc, text, seq := c.ID, c.DocumentID, c.Text, c.SequenceIndex
	vec := c.Vector
	return record{
		ID:            &id,
		DocumentID:    &doc,
		SequenceIndex: &seq,
		Text:          &text,
		Vector:        &vec,
		Metadata:      c.Metadata,
	}
}

// encode renders chunks as a store file, sentinel first.
func encode(dimension int, chunks []domain.Chunk) ([]byte, error) {
	version := SchemaVersion
	f := storeFile{
		SchemaVersion: &version,
		Dimension:     dimension,
		Records:       make([]record, 0, len(chunks)+1),
	}
	f.Records = append(f.Records, sentinelRecord())
	for i := range chunks {
		f.Records = append(f.Records, toRecord(&chunks[i]))
	}

	data, err := sonic.ConfigStd.MarshalIndent(&f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode store: %w", err)
	}
	return data, nil
}

// decode parses and validates a store file. Any defect is ErrCorruptStore.
//
//nolint:gocyclo // Validation is a flat list of field checks.
func decode(data []byte) (int, []domain.Chunk, error) {
	var f storeFile
	if err := sonic.ConfigStd.Unmarshal(data, &f); err != nil {
		return 0, nil, fmt.Errorf("parse store file: %v: %w", err, domain.ErrCorruptStore)
	}

	if f.SchemaVersion == nil {
		return 0, nil, fmt.Errorf("missing schema_version: %w", domain.ErrCorruptStore)
	}
	if *f.SchemaVersion != SchemaVersion {
		return 0, nil, fmt.Errorf("unrecognised schema_version %d: %w", *f.SchemaVersion, domain.ErrCorruptStore)
	}
	if f.Dimension < 0 {
		return 0, nil, fmt.Errorf("negative dimension %d: %w", f.Dimension, domain.ErrCorruptStore)
	}

	chunks := make([]domain.Chunk, 0, len(f.Records))
	seen := make(map[string]struct{}, len(f.Records))
	sentinel := false

	for i, r := range f.Records {
		if r.ID == nil {
			return 0, nil, fmt.Errorf("record %d missing id: %w", i, domain.ErrCorruptStore)
		}
		if *r.ID == SentinelID {
			sentinel = true
			continue
		}
		switch {
		case r.DocumentID == nil || *r.DocumentID == "":
			return 0, nil, fmt.Errorf("record %q missing document_id: %w", *r.ID, domain.ErrCorruptStore)
		case r.SequenceIndex == nil:
			return 0, nil, fmt.Errorf("record %q missing sequence_index: %w", *r.ID, domain.ErrCorruptStore)
		case r.Text == nil || *r.Text == "":
			return 0, nil, fmt.Errorf("record %q missing text: %w", *r.ID, domain.ErrCorruptStore)
		case r.Vector == nil || len(*r.Vector) == 0:
			return 0, nil, fmt.Errorf("record %q missing vector: %w", *r.ID, domain.ErrCorruptStore)
		case len(*r.Vector) != f.Dimension:
			return 0, nil, fmt.Errorf("record %q has %d dimensions, store has %d: %w",
				*r.ID, len(*r.Vector), f.Dimension, domain.ErrCorruptStore)
		}
		if _, dup := seen[*r.ID]; dup {
			return 0, nil, fmt.Errorf("record %q appears twice: %w", *r.ID, domain.ErrCorruptStore)
		}
		seen[*r.ID] = struct{}{}

		chunks = append(chunks, domain.Chunk{
			ID:            *r.ID,
			DocumentID:    *r.DocumentID,
			Text:          *r.Text,
			SequenceIndex: *r.SequenceIndex,
			Vector:        *r.Vector,
			Metadata:      r.Metadata,
		})
	}

	if !sentinel {
		return 0, nil, fmt.Errorf("sentinel record missing: %w", domain.ErrCorruptStore)
	}
	return f.Dimension, chunks, nil
}
