package library

import "time"

type SourceConfig struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

type Source struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Path          string `json:"path"`
	DocumentCount int    `json:"document_count"`
}

// Document is a linkable file found under a source.
type Document struct {
	ID       string    `json:"id"`
	SourceID string    `json:"source_id"`
	Path     string    `json:"path"`
	RelPath  string    `json:"rel_path"`
	Language string    `json:"language"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}

type Library struct {
	Sources   []Source   `json:"sources"`
	Documents []Document `json:"documents"`
}
