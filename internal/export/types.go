// Package export renders presentations to printable HTML and PDF.
package export

import "errors"

type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing means no headless Chrome binary could be found.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
