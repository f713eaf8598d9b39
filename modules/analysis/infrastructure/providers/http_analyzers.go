package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"teammate/server/modules/analysis/domain/entities"
)

// httpClient is shared across the HTTP-backed analyzers; each outbound
// call still carries its own context deadline (hard per-call
// timeout, recommended 120s, enforced by the orchestrator).
var httpClient = &http.Client{}

func postJSON(ctx context.Context, url string, body interface{}, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("analyzer responded %d: %s", resp.StatusCode, string(data))
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

// HTTPPronunciationAnalyzer calls an external scoring service over
// HTTP, a thin adapter over a single POST.
type HTTPPronunciationAnalyzer struct {
	URL string
}

func (a *HTTPPronunciationAnalyzer) Analyze(ctx context.Context, wavPath, transcript string) (map[string]interface{}, []entities.WordDetail, error) {
	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, nil, err
	}
	var out struct {
		Result map[string]interface{} `json:"result"`
		Words  []entities.WordDetail  `json:"words"`
	}
	req := struct {
		Transcript string `json:"transcript"`
		AudioB64   []byte `json:"audio"`
	}{Transcript: transcript, AudioB64: audio}
	if err := postJSON(ctx, a.URL, req, &out); err != nil {
		return nil, nil, err
	}
	return out.Result, out.Words, nil
}

// HTTPTextAnalyzer backs the grammar, lexical and vocabulary stages,
// which all share the text-in/grade-out contract.
type HTTPTextAnalyzer struct {
	URL string
}

func (a *HTTPTextAnalyzer) Analyze(ctx context.Context, transcript string) (map[string]interface{}, error) {
	var out map[string]interface{}
	req := struct {
		Transcript string `json:"transcript"`
	}{Transcript: transcript}
	if err := postJSON(ctx, a.URL, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HTTPFluencyAnalyzer calls an external fluency scorer with the
// transcript plus pronunciation's word-level detail.
type HTTPFluencyAnalyzer struct {
	URL string
}

func (a *HTTPFluencyAnalyzer) Analyze(ctx context.Context, transcript string, detail entities.FluencyDetail) (map[string]interface{}, error) {
	var out map[string]interface{}
	req := struct {
		Transcript string                `json:"transcript"`
		Words      []entities.WordDetail `json:"words"`
	}{Transcript: transcript, Words: detail.Words}
	if err := postJSON(ctx, a.URL, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}
