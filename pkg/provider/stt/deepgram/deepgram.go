// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// pre-recorded REST API. It implements the stt.Provider interface.
//
// Practice clips are short finished recordings, so the batch endpoint
// (POST /v1/listen) is used rather than the streaming WebSocket API.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zzatang/tongue-twisters-challenge/pkg/provider/stt"
)

const (
	deepgramEndpoint  = "https://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 48000
)

// contentTypes maps stt.RecognizeConfig encodings to the MIME type sent in
// the upload. Deepgram sniffs containers, so this is a hint, not a contract.
var contentTypes = map[string]string{
	"webm-opus": "audio/webm",
	"ogg-opus":  "audio/ogg",
	"linear16":  "audio/l16",
	"wav":       "audio/wav",
	"mp3":       "audio/mpeg",
}

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithBaseURL overrides the Deepgram API endpoint. Useful for tests and
// on-prem deployments.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.endpoint = baseURL
	}
}

// WithHTTPClient replaces the default HTTP client (30 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider backed by the Deepgram pre-recorded API.
type Provider struct {
	apiKey     string
	endpoint   string
	model      string
	language   string
	httpClient *http.Client
}

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   deepgramEndpoint,
		model:      defaultModel,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Recognize submits the clip to Deepgram and returns the transcription.
// A clip with no recognised speech yields a zero stt.Result and nil error.
func (p *Provider) Recognize(ctx context.Context, audio []byte, cfg stt.RecognizeConfig) (stt.Result, error) {
	reqURL, err := p.buildURL(cfg)
	if err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(audio))
	if err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", contentType(cfg.Encoding))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return stt.Result{}, fmt.Errorf("deepgram: server returned HTTP %d: %s", resp.StatusCode, truncate(body, 200))
	}

	return parseResponse(body)
}

// buildURL constructs the pre-recorded endpoint URL for the given config.
func (p *Provider) buildURL(cfg stt.RecognizeConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "false")
	if cfg.WordTimings {
		q.Set("utterances", "false")
	}
	// Raw PCM needs explicit format parameters; containerised audio is sniffed.
	if cfg.Encoding == "linear16" {
		q.Set("encoding", "linear16")
		sr := cfg.SampleRate
		if sr <= 0 {
			sr = defaultSampleRate
		}
		q.Set("sample_rate", strconv.Itoa(sr))
		if cfg.Channels > 0 {
			q.Set("channels", strconv.Itoa(cfg.Channels))
		}
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the JSON structure returned by the pre-recorded API.
type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
				Words      []struct {
					Word       string  `json:"word"`
					Start      float64 `json:"start"`
					End        float64 `json:"end"`
					Confidence float64 `json:"confidence"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// parseResponse decodes a pre-recorded API response into an stt.Result.
// Missing channels/alternatives mean no speech was detected, which is a
// successful zero result rather than an error.
func parseResponse(data []byte) (stt.Result, error) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: parse JSON response: %w", err)
	}
	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return stt.Result{}, nil
	}

	alt := resp.Results.Channels[0].Alternatives[0]
	if alt.Transcript == "" {
		return stt.Result{}, nil
	}

	words := make([]stt.WordTiming, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, stt.WordTiming{
			Word:       w.Word,
			Start:      time.Duration(w.Start * float64(time.Second)),
			End:        time.Duration(w.End * float64(time.Second)),
			Confidence: w.Confidence,
		})
	}
	if len(words) == 0 {
		words = nil
	}

	return stt.Result{
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
		Duration:   time.Duration(resp.Metadata.Duration * float64(time.Second)),
		Words:      words,
	}, nil
}

// contentType returns the upload MIME type for an encoding name, defaulting
// to audio/webm (browser MediaRecorder output).
func contentType(encoding string) string {
	if ct, ok := contentTypes[encoding]; ok {
		return ct
	}
	return "audio/webm"
}

// truncate shortens b for inclusion in error messages.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
