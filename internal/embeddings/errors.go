package embeddings

import "errors"

// ErrEmptyInput signals a blank (empty or whitespace-only) text payload.
var ErrEmptyInput = errors.New("embeddings: empty input")

// ErrBadImage signals a zero-length image payload, an image the provider
// rejected, or a provider with no image-embedding path.
var ErrBadImage = errors.New("embeddings: bad image")
