package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/lukasbauer/tonebridge/internal/codec"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Stderr  string `json:"stderr,omitempty"`
}

type encodeRequest struct {
	Message    any `json:"message"`
	Volume     any `json:"volume"`
	SampleRate any `json:"sampleRate"`
	Protocol   any `json:"protocol"`
}

func (e encodeRequest) params() codec.EncodeParams {
	return codec.EncodeParams{
		Volume:     looseInt(e.Volume),
		SampleRate: looseInt(e.SampleRate),
		Protocol:   looseInt(e.Protocol),
	}
}

// looseInt accepts JSON numbers and numeric strings, truncated toward zero.
// Anything else leaves the parameter at the tool default.
func looseInt(v any) int {
	var f float64
	switch v := v.(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0
	}
	return int(f)
}

// text mirrors the loose coercion clients rely on: numbers and booleans are
// accepted as their literal text, null and missing mean empty.
func (e encodeRequest) text() string {
	switch v := e.Message.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprint(v)
	case bool:
		return fmt.Sprint(v)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

type healthResponse struct {
	codec.Availability
	Draining bool `json:"draining"`
}

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Availability: r.cfg.Tools.Available(),
		Draining:     r.sessions.IsDraining(),
	})
}

func (r *Router) handleEncode(w http.ResponseWriter, req *http.Request) {
	var body encodeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, r.cfg.MaxUploadBytes))
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	wav, err := r.batch.Encode(req.Context(), body.text(), body.params())
	if err != nil {
		r.writeCodecError(w, req, err)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `inline; filename="message.wav"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

func (r *Router) handleDecode(w http.ResponseWriter, req *http.Request) {
	audio, ok := r.readUpload(w, req, "file is required (audio/wav)")
	if !ok {
		return
	}
	res, err := r.batch.Decode(req.Context(), audio)
	if err != nil {
		r.writeCodecError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (r *Router) handleDecodeWebm(w http.ResponseWriter, req *http.Request) {
	chunk, ok := r.readUpload(w, req, "file is required (audio/webm)")
	if !ok {
		return
	}
	res, err := r.stream.DecodeChunk(req.Context(), chunk)
	if err != nil {
		r.writeCodecError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// readUpload returns the bytes of the multipart field "file". It writes a 400
// and returns false when the field is absent or empty.
func (r *Router) readUpload(w http.ResponseWriter, req *http.Request, missing string) ([]byte, bool) {
	if req.ContentLength > r.cfg.MaxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "file too large"})
		return nil, false
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.cfg.MaxUploadBytes)
	f, _, err := req.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "file too large"})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: missing})
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "read upload failed", Details: err.Error()})
		return nil, false
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: missing})
		return nil, false
	}
	return data, true
}

func (r *Router) writeCodecError(w http.ResponseWriter, req *http.Request, err error) {
	details := codec.Details(err)

	var ce *codec.Error
	op := "request"
	if errors.As(err, &ce) {
		op = ce.Op
	}

	switch {
	case errors.Is(err, codec.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: details})
		return
	case errors.Is(err, codec.ErrConversionFailed):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "ffmpeg failed", Details: details})
	case errors.Is(err, codec.ErrToolUnavailable):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: details})
	case errors.Is(err, codec.ErrSpawnFailed):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: op + " spawn failed", Details: details})
	default:
		resp := errorResponse{Error: op + " failed", Details: details}
		if op == "decode" {
			resp.Stderr = details
		}
		writeJSON(w, http.StatusInternalServerError, resp)
	}

	r.logger.Printf("httpapi: %s %s: %v", req.Method, req.URL.Path, err)
	captureError(req, err, "httpapi: "+op+" failed")
}
