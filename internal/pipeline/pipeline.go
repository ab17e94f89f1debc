// Package pipeline sequences one conversational request: intent, optional
// extraction and search, reply synthesis. It owns the error and fallback
// policy: recoverable stage failures degrade to documented defaults, fatal
// ones end in an apologetic reply, and the caller never sees a raw error
// unless the client itself went away.
package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"fashion-search/internal/domain"
	"fashion-search/internal/search"
)

// Template replies used when synthesis itself is unavailable. Same strings
// the assistant ships to its (Egyptian Arabic speaking) audience.
const (
	apologyReply       = "عذرًا، حصل مشكلة. ممكن تحاول تاني؟"
	foundTemplateReply = "لقيتلك شوية خيارات حلوة، بص عليهم! 👇"
	emptyTemplateReply = "مش لاقي حاجة بنفس المواصفات دي دلوقتي. تحب تغير الفلتر؟"
)

// Pipeline wires the reasoner and the search orchestrator.
type Pipeline struct {
	reasoner domain.Reasoner
	searcher *search.Orchestrator
	topK     int
}

// New creates a pipeline. topK bounds the grouped products returned per
// conversational request.
func New(reasoner domain.Reasoner, searcher *search.Orchestrator, topK int) *Pipeline {
	if topK <= 0 {
		topK = 10
	}
	return &Pipeline{reasoner: reasoner, searcher: searcher, topK: topK}
}

// Handle runs the full conversational flow. The only returned error is the
// request context's own cancellation; every stage failure otherwise
// resolves into some reply.
func (p *Pipeline) Handle(ctx context.Context, q domain.QueryContext) (domain.PipelineResult, error) {
	intent := p.classify(ctx, q)

	if intent == domain.IntentChat {
		reply := p.synthesize(ctx, domain.SynthesisInput{
			Message: q.Message,
			Intent:  domain.IntentChat,
			History: q.History,
		})
		return domain.PipelineResult{Reply: reply, Intent: domain.IntentChat}, ctx.Err()
	}

	params := p.extract(ctx, q)

	products, err := p.searcher.Search(ctx, search.Query{
		Text:   keywordsOrMessage(params, q.Message),
		Image:  q.Image,
		Filter: params.Filter(),
		TopK:   p.topK,
	})
	if err != nil {
		// Embedding and index failures are fatal to the search: no vector,
		// no results. The user still gets a reply.
		log.Error().Err(err).Str("stage", stageOf(err)).Msg("search aborted")
		if ctx.Err() != nil {
			return domain.PipelineResult{}, ctx.Err()
		}
		return domain.PipelineResult{
			Reply:           apologyReply,
			Intent:          domain.IntentSearch,
			Products:        []domain.GroupedProduct{},
			ExtractedParams: &params,
		}, nil
	}

	reply := p.synthesize(ctx, domain.SynthesisInput{
		Message:  q.Message,
		Intent:   domain.IntentSearch,
		Products: products,
		Params:   &params,
		History:  q.History,
	})
	return domain.PipelineResult{
		Reply:           reply,
		Intent:          domain.IntentSearch,
		Products:        products,
		ExtractedParams: &params,
	}, ctx.Err()
}

// QuickSearch is the secondary entry point: no intent classification, no
// synthesized reply, just extraction and grouped products.
func (p *Pipeline) QuickSearch(ctx context.Context, message string, image []byte, topK int) ([]domain.GroupedProduct, domain.ExtractedParams, error) {
	params := p.extract(ctx, domain.QueryContext{Message: message, Image: image})
	products, err := p.searcher.Search(ctx, search.Query{
		Text:   keywordsOrMessage(params, message),
		Image:  image,
		Filter: params.Filter(),
		TopK:   topK,
	})
	if err != nil {
		log.Error().Err(err).Str("stage", stageOf(err)).Msg("quick search aborted")
		return nil, params, err
	}
	return products, params, nil
}

// classify resolves the routing decision. An image with no text is
// sufficient signal for search without asking the reasoner; a failed or
// unrecognized classification defaults to search when an image is attached,
// chat otherwise.
func (p *Pipeline) classify(ctx context.Context, q domain.QueryContext) domain.Intent {
	if strings.TrimSpace(q.Message) == "" {
		if q.HasImage() {
			return domain.IntentSearch
		}
		return domain.IntentChat
	}
	intent, err := p.reasoner.ClassifyIntent(ctx, q.Message, q.History)
	if err != nil {
		log.Warn().Err(err).Str("stage", "classify").Bool("image", q.HasImage()).Msg("intent classification failed, using default")
		if q.HasImage() {
			return domain.IntentSearch
		}
		return domain.IntentChat
	}
	return intent
}

// extract falls back to the raw message as keywords with all other fields
// null; extraction failure never aborts a request.
func (p *Pipeline) extract(ctx context.Context, q domain.QueryContext) domain.ExtractedParams {
	params, err := p.reasoner.ExtractParams(ctx, q.Message, q.Image, q.History)
	if err != nil {
		log.Warn().Err(err).Str("stage", "extract").Msg("parameter extraction failed, using raw message")
		return domain.ExtractedParams{Keywords: q.Message}
	}
	return params
}

// synthesize returns the generated reply, or the deterministic template
// when the call fails.
func (p *Pipeline) synthesize(ctx context.Context, in domain.SynthesisInput) string {
	reply, err := p.reasoner.Synthesize(ctx, in)
	if err == nil {
		return reply
	}
	log.Warn().Err(err).Str("stage", "synthesize").Msg("reply synthesis failed, using template")
	if in.Intent == domain.IntentChat {
		return apologyReply
	}
	if len(in.Products) > 0 {
		return foundTemplateReply
	}
	return emptyTemplateReply
}

func keywordsOrMessage(params domain.ExtractedParams, message string) string {
	if params.Keywords != "" {
		return params.Keywords
	}
	return message
}

func stageOf(err error) string {
	var embErr *domain.EmbeddingError
	if errors.As(err, &embErr) {
		return "embed"
	}
	var idxErr *domain.IndexUnavailableError
	if errors.As(err, &idxErr) {
		return "index"
	}
	return "search"
}
