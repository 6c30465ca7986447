// Package session persists survey sessions. A session document holds
// the house structure and the full ordered scan record list, never
// derived data: overlap edges and recommendations are recomputed on
// load so they can't go stale against the records.
package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/markus-lassfolk/wifisurvey/pkg/scan"
	"github.com/markus-lassfolk/wifisurvey/pkg/site"
)

// DocumentVersion is bumped when the document layout changes
const DocumentVersion = 1

// Document is the persisted survey session. Field order and record
// order are stable, so load → save → load is byte-for-byte equivalent.
type Document struct {
	Version int               `json:"version"`
	House   site.House        `json:"house"`
	Records []scan.ScanRecord `json:"records"`
}

// NewDocument builds a document from the current house and the accepted
// records in ingestion order
func NewDocument(house site.House, records []scan.ScanRecord) *Document {
	if records == nil {
		records = []scan.ScanRecord{}
	}
	return &Document{
		Version: DocumentVersion,
		House:   house,
		Records: records,
	}
}

// Encode serializes the document deterministically
func (d *Document) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode session document: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses and validates a session document
func Decode(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode session document: %w", err)
	}
	if d.Version != DocumentVersion {
		return nil, fmt.Errorf("unsupported session document version %d", d.Version)
	}
	if err := d.House.Validate(); err != nil {
		return nil, fmt.Errorf("session document: %w", err)
	}
	if d.Records == nil {
		d.Records = []scan.ScanRecord{}
	}
	return &d, nil
}

// SaveFile writes the document to a file
func (d *Document) SaveFile(path string) error {
	data, err := d.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session file %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a document from a file
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file %s: %w", path, err)
	}
	return Decode(data)
}

// Restore replaces the aggregator's state with the document's: house
// first, then every record replayed in its original order.
func (d *Document) Restore(agg *site.Aggregator) (*site.IngestReport, error) {
	agg.Reset()
	if err := agg.SetHouse(d.House); err != nil {
		return nil, err
	}
	return agg.Ingest(d.Records)
}
