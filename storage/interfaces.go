package storage

import "review-harvester/models"

// RowSink is the interface any output backend must satisfy. Append is called
// with the rows of one card; EntityDone after each source entity.
type RowSink interface {
	Append(rows []models.OutputRow) error
	EntityDone(processed int) error
	Close() error
}

// MultiSink fans rows out to several sinks. Every sink sees every call; the
// first error is returned.
type MultiSink []RowSink

func (m MultiSink) Append(rows []models.OutputRow) error {
	var first error
	for _, s := range m {
		if err := s.Append(rows); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) EntityDone(processed int) error {
	var first error
	for _, s := range m {
		if err := s.EntityDone(processed); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
