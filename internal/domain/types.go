package domain

import "strings"

// Role of one conversation turn. The client supplies the full history on
// every request; the server never stores or mutates it.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one message of the client-supplied history.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Intent is the routing decision between plain conversation and product search.
type Intent string

const (
	IntentSearch Intent = "search"
	IntentChat   Intent = "chat"
)

// QueryContext is the input to one pipeline invocation. At least one of
// Message/Image is non-empty; the HTTP boundary rejects requests where both
// are absent, so the pipeline does not re-validate.
type QueryContext struct {
	Message string
	Image   []byte
	History []ConversationTurn
}

// HasImage reports whether an image was attached to the request.
func (q QueryContext) HasImage() bool { return len(q.Image) > 0 }

// ExtractedParams is the structured query produced from a user message.
// Keywords are always rendered in English, the language the text encoder
// was aligned on. Absent constraints are nil, never zero values.
type ExtractedParams struct {
	Keywords string   `json:"keywords"`
	Category *string  `json:"category"`
	Color    *string  `json:"color"`
	Shape    *string  `json:"shape"`
	PriceMin *float64 `json:"price_min"`
	PriceMax *float64 `json:"price_max"`
}

// Filter returns the metadata filter portion of the params. price_min >
// price_max is passed through as-is; a contradictory range yields an empty
// result set, not an error.
func (p ExtractedParams) Filter() SearchFilter {
	return SearchFilter{
		PriceMin: p.PriceMin,
		PriceMax: p.PriceMax,
		Category: p.Category,
		Color:    p.Color,
	}
}

// AssetKind distinguishes the two vector sources of a product.
type AssetKind string

const (
	AssetImage AssetKind = "image"
	AssetText  AssetKind = "text"
)

// AssetVector is one embedding row in the index. A product contributes one
// vector per image plus one for its description; product-level metadata
// (price, description, category, color) is duplicated onto every vector at
// ingestion time so that any single hit can supply it without a second
// index round-trip.
type AssetVector struct {
	ID            string
	Vector        []float32
	ProductID     string
	Folder        string
	Kind          AssetKind
	ImageFilename string
	Description   string
	Category      string
	Color         string
	Price         *float64
}

// SearchFilter restricts nearest-neighbor candidates by metadata. All set
// fields are conjunctive. Filters are best-effort: a vector missing a
// filtered-on field is excluded, not included by default.
type SearchFilter struct {
	PriceMin *float64
	PriceMax *float64
	Category *string
	Color    *string
}

// IsZero reports whether no filter field is set.
func (f SearchFilter) IsZero() bool {
	return f.PriceMin == nil && f.PriceMax == nil && f.Category == nil && f.Color == nil
}

// Matches applies the filter to one asset's metadata. Used by backends
// that filter in-process rather than server-side.
func (f SearchFilter) Matches(a AssetVector) bool {
	if f.PriceMin != nil && (a.Price == nil || *a.Price < *f.PriceMin) {
		return false
	}
	if f.PriceMax != nil && (a.Price == nil || *a.Price > *f.PriceMax) {
		return false
	}
	if f.Category != nil && !strings.EqualFold(a.Category, *f.Category) {
		return false
	}
	if f.Color != nil && !strings.EqualFold(a.Color, *f.Color) {
		return false
	}
	return true
}

// SearchHit is one nearest-neighbor result before grouping.
type SearchHit struct {
	Asset AssetVector
	Score float32
}

// GroupedProduct is one distinct product among the hits: the folder's best
// score, its top-scoring image as representative, and whatever metadata any
// of its hits carried.
type GroupedProduct struct {
	ID          string   `json:"id"`
	Folder      string   `json:"folder"`
	Price       *float64 `json:"price"`
	Score       float32  `json:"score"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image,omitempty"`
}

// PipelineResult is the externally visible outcome of one request.
type PipelineResult struct {
	Reply           string           `json:"reply"`
	Intent          Intent           `json:"intent"`
	Products        []GroupedProduct `json:"products"`
	ExtractedParams *ExtractedParams `json:"extracted_params,omitempty"`
}
