package whisper

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zzatang/tongue-twisters-challenge/pkg/provider/stt"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("empty server URL", func(t *testing.T) {
		t.Parallel()
		if _, err := New(""); err == nil {
			t.Fatal("New(\"\") expected error, got nil")
		}
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()
		p, err := New("http://localhost:8080", WithModel("base.en"), WithLanguage("de"))
		if err != nil {
			t.Fatalf("New() unexpected error: %v", err)
		}
		if p.model != "base.en" {
			t.Errorf("model = %q, want 'base.en'", p.model)
		}
		if p.language != "de" {
			t.Errorf("language = %q, want 'de'", p.language)
		}
	})
}

func TestRecognize(t *testing.T) {
	t.Parallel()

	const responseJSON = `{
		"text": " Peter Piper picked",
		"segments": [
			{"start": 0.0, "end": 1.5, "text": " Peter Piper picked", "avg_logprob": -0.2}
		]
	}`

	t.Run("success with interpolated words", func(t *testing.T) {
		t.Parallel()

		var gotPath, gotFilename, gotFormat string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("ParseMultipartForm: %v", err)
			}
			gotFormat = r.FormValue("response_format")
			if fhs := r.MultipartForm.File["file"]; len(fhs) == 1 {
				gotFilename = fhs[0].Filename
			}
			w.Write([]byte(responseJSON))
		}))
		defer srv.Close()

		p, err := New(srv.URL)
		if err != nil {
			t.Fatalf("New() unexpected error: %v", err)
		}

		res, err := p.Recognize(context.Background(), []byte("audio"), stt.RecognizeConfig{
			Encoding: "webm-opus", WordTimings: true,
		})
		if err != nil {
			t.Fatalf("Recognize() unexpected error: %v", err)
		}
		if gotPath != "/inference" {
			t.Errorf("request path = %q, want /inference", gotPath)
		}
		if gotFormat != "verbose_json" {
			t.Errorf("response_format = %q, want verbose_json", gotFormat)
		}
		if gotFilename != "audio.webm" {
			t.Errorf("upload filename = %q, want audio.webm", gotFilename)
		}
		if res.Text != "Peter Piper picked" {
			t.Errorf("Text = %q, want 'Peter Piper picked'", res.Text)
		}
		wantConf := math.Exp(-0.2)
		if math.Abs(res.Confidence-wantConf) > 1e-9 {
			t.Errorf("Confidence = %v, want %v", res.Confidence, wantConf)
		}
		if res.Duration != 1500*time.Millisecond {
			t.Errorf("Duration = %v, want 1.5s", res.Duration)
		}
		if len(res.Words) != 3 {
			t.Fatalf("len(Words) = %d, want 3", len(res.Words))
		}
		if res.Words[0].Word != "Peter" || res.Words[2].Word != "picked" {
			t.Errorf("Words = %+v, want Peter..picked", res.Words)
		}
		if res.Words[1].Start != 500*time.Millisecond {
			t.Errorf("Words[1].Start = %v, want 500ms", res.Words[1].Start)
		}
	})

	t.Run("no speech yields zero result", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"text": " ", "segments": []}`))
		}))
		defer srv.Close()

		p, _ := New(srv.URL)
		res, err := p.Recognize(context.Background(), []byte("silence"), stt.RecognizeConfig{})
		if err != nil {
			t.Fatalf("Recognize() unexpected error: %v", err)
		}
		if !res.NoSpeech() {
			t.Errorf("NoSpeech() = false, want true for blank transcript")
		}
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}))
		defer srv.Close()

		p, _ := New(srv.URL)
		_, err := p.Recognize(context.Background(), []byte("audio"), stt.RecognizeConfig{})
		if err == nil {
			t.Fatal("Recognize() expected error for HTTP 500")
		}
		if !strings.Contains(err.Error(), "HTTP 500") {
			t.Errorf("error = %q, want HTTP 500 mention", err.Error())
		}
	})

	t.Run("linear16 wrapped in WAV", func(t *testing.T) {
		t.Parallel()

		var gotFilename string
		var gotHeader []byte
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("ParseMultipartForm: %v", err)
			}
			fhs := r.MultipartForm.File["file"]
			if len(fhs) != 1 {
				t.Fatalf("expected 1 file part, got %d", len(fhs))
			}
			gotFilename = fhs[0].Filename
			f, err := fhs[0].Open()
			if err != nil {
				t.Fatalf("open upload: %v", err)
			}
			defer f.Close()
			gotHeader, _ = io.ReadAll(f)
			w.Write([]byte(`{"text": "ok", "segments": []}`))
		}))
		defer srv.Close()

		p, _ := New(srv.URL)
		pcm := []byte{0x01, 0x02, 0x03, 0x04}
		_, err := p.Recognize(context.Background(), pcm, stt.RecognizeConfig{
			Encoding: "linear16", SampleRate: 16000, Channels: 1,
		})
		if err != nil {
			t.Fatalf("Recognize() unexpected error: %v", err)
		}
		if gotFilename != "audio.wav" {
			t.Errorf("upload filename = %q, want audio.wav", gotFilename)
		}
		if len(gotHeader) != 44+len(pcm) {
			t.Fatalf("upload size = %d, want %d", len(gotHeader), 44+len(pcm))
		}
		if string(gotHeader[0:4]) != "RIFF" || string(gotHeader[8:12]) != "WAVE" {
			t.Errorf("upload missing RIFF/WAVE magic: % x", gotHeader[:12])
		}
		if sr := binary.LittleEndian.Uint32(gotHeader[24:28]); sr != 16000 {
			t.Errorf("sample rate in header = %d, want 16000", sr)
		}
	})
}

func TestEncodeWAV(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 320)
	wav := encodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("RIFF size = %d, want %d", got, 36+len(pcm))
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
		t.Errorf("byte rate = %d, want 32000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
}

func TestSegmentConfidence(t *testing.T) {
	t.Parallel()

	if got := segmentConfidence(0); got != 1 {
		t.Errorf("segmentConfidence(0) = %v, want 1", got)
	}
	if got := segmentConfidence(5); got != 1 {
		t.Errorf("segmentConfidence(5) = %v, want clamp to 1", got)
	}
	if got := segmentConfidence(-1); math.Abs(got-math.Exp(-1)) > 1e-9 {
		t.Errorf("segmentConfidence(-1) = %v, want e^-1", got)
	}
}
