package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/lukasbauer/tonebridge/internal/codec"
)

// APIError is a non-2xx reply from the relay server.
type APIError struct {
	Status  int
	Message string `json:"error"`
	Details string `json:"details"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("server returned %d: %s (%s)", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// API talks to the relay server's REST routes.
type API struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (a *API) Health(ctx context.Context) (codec.Availability, error) {
	var out codec.Availability
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return out, fmt.Errorf("failed to create request: %w", err)
	}
	err = a.do(req, func(body io.Reader) error {
		return json.NewDecoder(body).Decode(&out)
	})
	return out, err
}

type encodeBody struct {
	Message string `json:"message"`
	codec.EncodeParams
}

// Encode returns the WAV produced for message.
func (a *API) Encode(ctx context.Context, message string, p codec.EncodeParams) ([]byte, error) {
	body, err := json.Marshal(encodeBody{Message: message, EncodeParams: p})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/encode", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var wav []byte
	err = a.do(req, func(r io.Reader) error {
		wav, err = io.ReadAll(r)
		return err
	})
	return wav, err
}

// Decode uploads a WAV recording.
func (a *API) Decode(ctx context.Context, wav []byte) (codec.DecodeResult, error) {
	return a.upload(ctx, "/decode", "message.wav", wav)
}

// DecodeChunk uploads one captured chunk for conversion and decoding.
func (a *API) DecodeChunk(ctx context.Context, chunk []byte) (codec.DecodeResult, error) {
	return a.upload(ctx, "/decode-webm", "chunk.wav", chunk)
}

func (a *API) upload(ctx context.Context, path, filename string, data []byte) (codec.DecodeResult, error) {
	var out codec.DecodeResult

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return out, err
	}
	if _, err := fw.Write(data); err != nil {
		return out, err
	}
	if err := mw.Close(); err != nil {
		return out, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, &buf)
	if err != nil {
		return out, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	err = a.do(req, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	})
	return out, err
}

func (a *API) do(req *http.Request, read func(io.Reader) error) error {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		respBody, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}
	return read(resp.Body)
}
