package ingest

import "errors"

// ErrExtraction indicates source content could not be extracted.
var ErrExtraction = errors.New("content extraction failed")

// ErrUnsupportedSource indicates a source no loader can handle.
var ErrUnsupportedSource = errors.New("unsupported source")

// ErrIngestion indicates indexing failed after extraction succeeded.
var ErrIngestion = errors.New("ingestion failed")

// ErrEmptyContent indicates extraction yielded no usable text.
var ErrEmptyContent = errors.New("no content extracted")
