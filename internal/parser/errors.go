// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package parser

import "errors"

// ErrUnsupportedType signals a file extension with no registered producer.
var ErrUnsupportedType = errors.New("parser: unsupported file type")

// ErrFileTooLarge signals a file over the ingestion size boundary.
var ErrFileTooLarge = errors.New("parser: file exceeds maximum size")

// MaxFileSizeBytes is the ingestion size boundary (50MB).
const MaxFileSizeBytes = 50 * 1024 * 1024
