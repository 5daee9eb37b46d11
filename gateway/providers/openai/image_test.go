package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate-ai/flowgate/gateway"
	"github.com/flowgate-ai/flowgate/gateway/providers"
	"github.com/flowgate-ai/flowgate/types"
)

func newImageAdapter(t *testing.T, handler http.HandlerFunc) *ImageAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter, err := NewImageAdapter(providers.Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, nil)
	require.NoError(t, err)
	return adapter
}

func TestNewImageAdapterRequiresAPIKey(t *testing.T) {
	_, err := NewImageAdapter(providers.Config{}, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrMissingAPIKey, types.GetErrorCode(err))
}

func TestImageGenerate(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	adapter := newImageAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(imageWireResponse{
			Created: 1700000000,
			Data: []types.ImageData{
				{URL: "https://img.example/1.png", RevisedPrompt: "a red fox, detailed"},
			},
		})
	})

	resp, err := adapter.Generate(context.Background(), &gateway.ImageRequest{
		Prompt: "a red fox",
		Params: map[string]any{"n": float64(1), "size": "1024x1024", "quality": "hd"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/images/generations", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "dall-e-3", gotBody["model"])
	assert.Equal(t, "a red fox", gotBody["prompt"])
	assert.Equal(t, "hd", gotBody["quality"])
	assert.NotContains(t, gotBody, "response_format")

	assert.Equal(t, "succeeded", resp.Status)
	assert.Equal(t, "openai", resp.Provider)
	require.Len(t, resp.Images, 1)
	assert.Equal(t, "https://img.example/1.png", resp.Images[0].URL)
	assert.Equal(t, "a red fox, detailed", resp.Images[0].RevisedPrompt)
	assert.Equal(t, int64(1700000000), resp.CreatedAt.Unix())
	assert.NotEmpty(t, resp.ID)
}

func TestImageCreateVariationMultipart(t *testing.T) {
	var gotPath string
	var gotModel, gotN string
	var gotImage []byte
	adapter := newImageAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotModel = r.FormValue("model")
		gotN = r.FormValue("n")

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "image.png", header.Filename)
		buf := make([]byte, header.Size)
		_, err = file.Read(buf)
		require.NoError(t, err)
		gotImage = buf

		json.NewEncoder(w).Encode(imageWireResponse{
			Data: []types.ImageData{{URL: "https://img.example/var.png"}},
		})
	})

	resp, err := adapter.CreateVariation(context.Background(), &gateway.VariationRequest{
		Image:  []byte("fake-png-bytes"),
		Params: map[string]any{"n": float64(2)},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/images/variations", gotPath)
	assert.Equal(t, "dall-e-2", gotModel)
	assert.Equal(t, "2", gotN)
	assert.Equal(t, []byte("fake-png-bytes"), gotImage)
	require.Len(t, resp.Images, 1)
}

func TestImageEditSendsMask(t *testing.T) {
	var gotPrompt string
	var hasMask bool
	adapter := newImageAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotPrompt = r.FormValue("prompt")
		_, _, err := r.FormFile("mask")
		hasMask = err == nil
		json.NewEncoder(w).Encode(imageWireResponse{
			Data: []types.ImageData{{URL: "https://img.example/edit.png"}},
		})
	})

	_, err := adapter.Edit(context.Background(), &gateway.EditRequest{
		Prompt: "add a hat",
		Image:  []byte("img"),
		Mask:   []byte("mask"),
	})
	require.NoError(t, err)
	assert.Equal(t, "add a hat", gotPrompt)
	assert.True(t, hasMask)
}

func TestImageGenerateErrorMapping(t *testing.T) {
	adapter := newImageAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "billing hard limit reached"},
		})
	})

	_, err := adapter.Generate(context.Background(), &gateway.ImageRequest{Prompt: "x"})
	require.Error(t, err)
	gwErr, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrQuotaExceeded, gwErr.Code)
	assert.Equal(t, "openai", gwErr.Provider)
}

func TestNewChatAdapterDefaults(t *testing.T) {
	adapter, err := NewChatAdapter(providers.Config{APIKey: "test-key"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", adapter.Name())
}
