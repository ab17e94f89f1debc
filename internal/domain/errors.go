package domain

import "fmt"

// Stage errors. Classification, extraction and synthesis failures degrade
// to documented defaults inside the pipeline; embedding and index failures
// are fatal to the request and surface as an apologetic reply. All of them
// are logged with stage identity even when masked from the user.

// ClassificationError reports a failed or unrecognized intent decision.
type ClassificationError struct{ Err error }

func (e *ClassificationError) Error() string { return fmt.Sprintf("intent classification: %v", e.Err) }
func (e *ClassificationError) Unwrap() error { return e.Err }

// ExtractionError reports malformed or non-parsing parameter extraction.
type ExtractionError struct{ Err error }

func (e *ExtractionError) Error() string { return fmt.Sprintf("parameter extraction: %v", e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError reports a failed embedding call. Without a vector no
// search is possible, so this aborts the search for the current request.
type EmbeddingError struct{ Err error }

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding: %v", e.Err) }
func (e *EmbeddingError) Unwrap() error { return e.Err }

// IndexUnavailableError reports that the vector index cannot be reached.
type IndexUnavailableError struct{ Err error }

func (e *IndexUnavailableError) Error() string { return fmt.Sprintf("vector index unavailable: %v", e.Err) }
func (e *IndexUnavailableError) Unwrap() error { return e.Err }

// SynthesisError reports a failed reply generation call.
type SynthesisError struct{ Err error }

func (e *SynthesisError) Error() string { return fmt.Sprintf("response synthesis: %v", e.Err) }
func (e *SynthesisError) Unwrap() error { return e.Err }
