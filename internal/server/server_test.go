package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fashion-search/internal/domain"
	"fashion-search/internal/pipeline"
	"fashion-search/internal/search"
	"fashion-search/internal/vectorindex/memory"
)

type fakeReasoner struct {
	intent domain.Intent
	params domain.ExtractedParams
	reply  string
}

func (f *fakeReasoner) ClassifyIntent(context.Context, string, []domain.ConversationTurn) (domain.Intent, error) {
	return f.intent, nil
}

func (f *fakeReasoner) ExtractParams(context.Context, string, []byte, []domain.ConversationTurn) (domain.ExtractedParams, error) {
	return f.params, nil
}

func (f *fakeReasoner) Synthesize(context.Context, domain.SynthesisInput) (string, error) {
	return f.reply, nil
}

type fixedEmbedder struct{}

func (fixedEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (fixedEmbedder) EmbedImage(context.Context, []byte) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func newTestServer(t *testing.T, r domain.Reasoner) *httptest.Server {
	t.Helper()
	idx := memory.New()
	require.NoError(t, idx.Init(context.Background(), 3))
	p := 450.0
	require.NoError(t, idx.Upsert(context.Background(), []domain.AssetVector{{
		ID:            "1",
		Vector:        []float32{1, 0, 0},
		ProductID:     "JKT-1",
		Folder:        "jacket-01",
		Kind:          domain.AssetImage,
		ImageFilename: "front.jpg",
		Price:         &p,
	}}))
	pipe := pipeline.New(r, search.NewOrchestrator(fixedEmbedder{}, idx, 0.3), 10)
	srv := httptest.NewServer(New(pipe, idx, ":0", "").Handler())
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, fields map[string]string, imageField string, image []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		fw, err := w.CreateFormFile(imageField, "query.jpg")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestChatRejectsEmptyRequest(t *testing.T) {
	srv := newTestServer(t, &fakeReasoner{intent: domain.IntentChat, reply: "hi"})
	body, contentType := multipartBody(t, map[string]string{"message": "   "}, "", nil)

	resp, err := http.Post(srv.URL+"/chat", contentType, body)

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatConversationFlow(t *testing.T) {
	srv := newTestServer(t, &fakeReasoner{intent: domain.IntentChat, reply: "hello there"})
	body, contentType := multipartBody(t, map[string]string{"message": "hi"}, "", nil)

	resp, err := http.Post(srv.URL+"/chat", contentType, body)

	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result domain.PipelineResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, domain.IntentChat, result.Intent)
	assert.Equal(t, "hello there", result.Reply)
	assert.Empty(t, result.Products)
}

func TestChatSearchFlowReturnsProducts(t *testing.T) {
	srv := newTestServer(t, &fakeReasoner{
		intent: domain.IntentSearch,
		params: domain.ExtractedParams{Keywords: "black jacket"},
		reply:  "check these out",
	})
	body, contentType := multipartBody(t, map[string]string{"message": "عايز جاكت"}, "", nil)

	resp, err := http.Post(srv.URL+"/chat", contentType, body)

	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result domain.PipelineResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, domain.IntentSearch, result.Intent)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "jacket-01", result.Products[0].Folder)
	require.NotNil(t, result.ExtractedParams)
	assert.Equal(t, "black jacket", result.ExtractedParams.Keywords)
}

func TestChatImageOnlyIsAccepted(t *testing.T) {
	srv := newTestServer(t, &fakeReasoner{
		params: domain.ExtractedParams{},
		reply:  "found a match",
	})
	body, contentType := multipartBody(t, nil, "image_file", []byte{0xff, 0xd8, 0xff})

	resp, err := http.Post(srv.URL+"/chat", contentType, body)

	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result domain.PipelineResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, domain.IntentSearch, result.Intent)
}

func TestChatIgnoresInvalidHistory(t *testing.T) {
	srv := newTestServer(t, &fakeReasoner{intent: domain.IntentChat, reply: "hi"})
	body, contentType := multipartBody(t, map[string]string{
		"message":              "hello",
		"conversation_history": "{not json",
	}, "", nil)

	resp, err := http.Post(srv.URL+"/chat", contentType, body)

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSearchEndpointReturnsGroupedResults(t *testing.T) {
	srv := newTestServer(t, &fakeReasoner{
		params: domain.ExtractedParams{Keywords: "black jacket"},
	})
	body, contentType := multipartBody(t, map[string]string{"text_query": "black jacket"}, "", nil)

	resp, err := http.Post(srv.URL+"/search", contentType, body)

	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Results         []domain.GroupedProduct `json:"results"`
		ExtractedParams domain.ExtractedParams  `json:"extracted_params"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, "jacket-01", out.Results[0].Folder)
	assert.Equal(t, "black jacket", out.ExtractedParams.Keywords)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeReasoner{})

	resp, err := http.Get(srv.URL + "/healthz")

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
