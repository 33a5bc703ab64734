// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package query

import "errors"

// ErrGenerationFailed signals the generator's LLM call failed, timed
// out, or produced output that failed the grounding check.
var ErrGenerationFailed = errors.New("query: generation failed")
