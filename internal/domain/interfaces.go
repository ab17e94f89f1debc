package domain

import "context"

// Reasoner wraps the language-reasoning service behind its three prompted
// call shapes. One adapter owns the client, timeouts and prompt templates;
// tests substitute a deterministic fake.
type Reasoner interface {
	// ClassifyIntent decides search vs chat from the message and history.
	// An unrecognized label is a *ClassificationError.
	ClassifyIntent(ctx context.Context, message string, history []ConversationTurn) (Intent, error)

	// ExtractParams turns a message (any language, optional image) into a
	// structured query with English keywords. Malformed output is an
	// *ExtractionError.
	ExtractParams(ctx context.Context, message string, image []byte, history []ConversationTurn) (ExtractedParams, error)

	// Synthesize produces the natural-language reply for the given intent
	// and grouped products. A call failure is a *SynthesisError; the
	// pipeline substitutes a template reply, never a raw error.
	Synthesize(ctx context.Context, in SynthesisInput) (string, error)
}

// SynthesisInput carries everything the reply generation prompt needs.
type SynthesisInput struct {
	Message  string
	Intent   Intent
	Products []GroupedProduct
	Params   *ExtractedParams
	History  []ConversationTurn
}

// Embedder produces fixed-dimension vectors in one shared latent space.
// Text and image vectors are directly comparable by cosine similarity;
// query-time and ingestion-time embeddings come from the same model with
// the same normalization.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)
}

// VectorIndex stores per-asset vectors with product metadata and answers
// filtered nearest-neighbor queries. Written only by ingestion, read-only
// at query time.
type VectorIndex interface {
	// Init prepares the backing collection for vectors of the given
	// dimension. Safe to call when the collection already exists.
	Init(ctx context.Context, dimension int) error

	// Upsert stores the assets, replacing any prior vector with the same ID.
	Upsert(ctx context.Context, assets []AssetVector) error

	// Search returns up to topK hits ordered by descending score, filtered
	// by metadata. An empty result is not an error.
	Search(ctx context.Context, vector []float32, filter SearchFilter, topK int) ([]SearchHit, error)

	// DeleteFolder removes every vector belonging to a product folder, so
	// re-ingesting a folder replaces rather than accumulates.
	DeleteFolder(ctx context.Context, folder string) error

	// Ping verifies connectivity. The server calls it once at startup and
	// fails fast instead of retrying per request.
	Ping(ctx context.Context) error
}
