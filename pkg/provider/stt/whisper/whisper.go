// Package whisper provides a local whisper.cpp-backed STT provider.
//
// It submits each clip to a running whisper-server binary (which exposes a
// REST API at POST /inference) as a single batch request. Raw 16-bit PCM
// clips are wrapped in a WAV container before upload; containerised clips
// (WebM/Opus, Ogg) are uploaded unchanged and rely on the server's
// conversion support.
//
// whisper.cpp does not report word-level confidence. The provider requests
// verbose segment output and derives an overall confidence from the
// per-segment average log-probability; word timings are interpolated
// linearly inside each segment. They are approximations, good enough for
// ranking which words of a phrase were attempted, and callers should not
// treat them as precise alignments.
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/zzatang/tongue-twisters-challenge/pkg/provider/stt"
)

const (
	// bitsPerSample is fixed at 16 for the 16-bit signed little-endian PCM
	// audio that whisper.cpp expects.
	bitsPerSample = 16

	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with — this is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code sent to the whisper.cpp server
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithHTTPClient replaces the default HTTP client (60 s timeout — local
// inference on CPU can be slow for long clips).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider backed by a local whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  serverURL,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Recognize submits the clip to whisper.cpp and returns the transcription.
// Clips with no recognised speech yield a zero stt.Result and nil error.
func (p *Provider) Recognize(ctx context.Context, audio []byte, cfg stt.RecognizeConfig) (stt.Result, error) {
	payload, filename := prepareUpload(audio, cfg)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(payload); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: write audio data: %w", err)
	}

	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: write response_format field: %w", err)
	}
	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	if lang != "" {
		if err := mw.WriteField("language", lang); err != nil {
			return stt.Result{}, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return stt.Result{}, fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := p.serverURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stt.Result{}, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: read response body: %w", err)
	}

	return parseResponse(data, cfg.WordTimings)
}

// prepareUpload returns the request payload and filename for the clip. Raw
// PCM is wrapped in a WAV container; anything else passes through unchanged
// with a filename extension the server can dispatch on.
func prepareUpload(audio []byte, cfg stt.RecognizeConfig) ([]byte, string) {
	switch cfg.Encoding {
	case "linear16":
		sr := cfg.SampleRate
		if sr <= 0 {
			sr = defaultSampleRate
		}
		ch := cfg.Channels
		if ch <= 0 {
			ch = 1
		}
		return encodeWAV(audio, sr, ch), "audio.wav"
	case "webm-opus":
		return audio, "audio.webm"
	case "ogg-opus":
		return audio, "audio.ogg"
	case "mp3":
		return audio, "audio.mp3"
	default:
		return audio, "audio.wav"
	}
}

// whisperResponse is the verbose_json structure returned by whisper-server.
type whisperResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Text       string  `json:"text"`
		AvgLogprob float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// parseResponse decodes a verbose_json inference response into an stt.Result.
func parseResponse(data []byte, wantWords bool) (stt.Result, error) {
	var resp whisperResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return stt.Result{}, nil
	}

	res := stt.Result{Text: text}

	var confSum, durSum float64
	for _, seg := range resp.Segments {
		segDur := seg.End - seg.Start
		if segDur <= 0 {
			continue
		}
		confSum += segmentConfidence(seg.AvgLogprob) * segDur
		durSum += segDur
	}
	if durSum > 0 {
		res.Confidence = confSum / durSum
		res.Duration = time.Duration(durSum * float64(time.Second))
	}

	if wantWords {
		for _, seg := range resp.Segments {
			conf := segmentConfidence(seg.AvgLogprob)
			res.Words = append(res.Words, interpolateWords(seg.Text, seg.Start, seg.End, conf)...)
		}
	}

	return res, nil
}

// segmentConfidence converts a whisper average log-probability into a
// confidence in [0, 1].
func segmentConfidence(avgLogprob float64) float64 {
	c := math.Exp(avgLogprob)
	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

// interpolateWords splits a segment's text on whitespace and spreads the
// segment's time span evenly across the words. Every word inherits the
// segment confidence.
func interpolateWords(text string, start, end, confidence float64) []stt.WordTiming {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	span := (end - start) / float64(len(words))
	timings := make([]stt.WordTiming, 0, len(words))
	for i, w := range words {
		ws := start + float64(i)*span
		timings = append(timings, stt.WordTiming{
			Word:       w,
			Start:      time.Duration(ws * float64(time.Second)),
			End:        time.Duration((ws + span) * float64(time.Second)),
			Confidence: confidence,
		})
	}
	return timings
}

// encodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container. The returned byte slice is suitable for direct
// inclusion in a multipart form upload.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bps := bitsPerSample
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))        // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
