package papermine

import "errors"

var (
	// ErrNoPages is returned for documents with zero pages.
	ErrNoPages = errors.New("papermine: document has no pages")

	// ErrNoImages is returned when cache population yields no page images.
	ErrNoImages = errors.New("papermine: no page images rendered")

	// ErrCacheMissing is returned when resuming from a cache directory that
	// has no entries for the document.
	ErrCacheMissing = errors.New("papermine: no cached images for document")

	// ErrExtractionFailed is returned when the vision request or response
	// parsing fails. The image cache is retained so the document can be
	// retried without re-rendering.
	ErrExtractionFailed = errors.New("papermine: extraction failed")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("papermine: invalid configuration")
)
