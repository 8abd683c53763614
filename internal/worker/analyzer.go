package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

var previewClient = &http.Client{Timeout: 15 * time.Second}

// AnalyzePreview downloads an MP3 preview and returns its RMS loudness
// normalized to [0,1].
func AnalyzePreview(ctx context.Context, url string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("preview request: %w", err)
	}
	resp, err := previewClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("preview fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("preview fetch status %d", resp.StatusCode)
	}
	return rmsEnergy(resp.Body)
}

// rmsEnergy decodes 16-bit little-endian PCM from an MP3 stream.
func rmsEnergy(r io.Reader) (float64, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return 0, fmt.Errorf("preview decode failed: %w", err)
	}

	buf := make([]byte, 4096)
	var sumSquares, count float64
	for {
		n, err := decoder.Read(buf)
		for i := 0; i+1 < n; i += 2 {
			sample := float64(int16(buf[i]) | int16(buf[i+1])<<8)
			sumSquares += sample * sample
			count++
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, fmt.Errorf("preview read failed: %w", err)
		}
	}
	if count == 0 {
		return 0, fmt.Errorf("preview contains no samples")
	}

	energy := math.Sqrt(sumSquares/count) / 32768.0
	return math.Min(math.Max(energy, 0), 1), nil
}
