// pkg/ai/openai_client.go

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"socialcast/entities"
	"socialcast/pkg/resilience"
)

type openAI struct {
	endpoint string
	key      string
	model    string
	guard    *resilience.Guard
	httpc    *http.Client
}

// NewOpenAI builds a client for any OpenAI-compatible chat endpoint. All
// calls go through the scorer guard (rate limit, breaker, retry).
func NewOpenAI(endpoint, key, model string, guard *resilience.Guard) Client {
	return &openAI{
		endpoint: strings.TrimRight(endpoint, "/"),
		key:      key,
		model:    model,
		guard:    guard,
		httpc:    &http.Client{},
	}
}

func (c *openAI) ScoreArticle(ctx context.Context, brand entities.Brand, rubric, title, excerpt string) (ScoreResult, error) {
	content, err := c.chat(ctx,
		"You score article suitability for short-form social video. Answer in the exact labeled format requested.",
		renderScorePrompt(brand, rubric, title, excerpt),
		0.2,
	)
	if err != nil {
		return ScoreResult{}, err
	}
	return parseScoreResponse(content)
}

func (c *openAI) WriteScript(ctx context.Context, brand entities.Brand, styleHints, title, excerpt string) (string, error) {
	content, err := c.chat(ctx,
		"You write spoken scripts for short vertical videos. Output only the script text, no stage directions, no hashtags.",
		renderScriptPrompt(brand, styleHints, title, excerpt),
		0.7,
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *openAI) chat(ctx context.Context, system, user string, temperature float64) (string, error) {
	reqBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"temperature": temperature,
	}
	b, _ := json.Marshal(reqBody)

	var content string
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(b))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.key)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			return resilience.Transient(err)
		}
		defer resp.Body.Close()

		if err := checkStatus(resp); err != nil {
			return err
		}
		var out struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return resilience.Transient(fmt.Errorf("decode chat response: %w", err))
		}
		if len(out.Choices) == 0 {
			return resilience.Transient(fmt.Errorf("chat response has no choices"))
		}
		content = out.Choices[0].Message.Content
		return nil
	}

	var err error
	if c.guard != nil {
		err = c.guard.Do(ctx, call)
	} else {
		err = call(ctx)
	}
	return content, err
}

// checkStatus reads the body only on failure, leaving it intact for the
// success-path decode.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return resilience.ClassifyStatus(resp.StatusCode, readSnippet(resp.Body))
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}

func renderScorePrompt(brand entities.Brand, rubric, title, excerpt string) string {
	return fmt.Sprintf(`Rate this article for the %s brand on a 0-100 scale.

RUBRIC:
%s

ARTICLE TITLE: %s

ARTICLE EXCERPT:
%s

Reply in EXACTLY this format:
SCORE: <0-100>
REASONING: <one or two sentences>
SHOULD_MAKE_VIDEO: <YES or NO>
RED_FLAGS:
- <flag, or "none">
STRENGTHS:
- <strength, or "none">`, brand, rubric, title, excerpt)
}

func renderScriptPrompt(brand entities.Brand, styleHints, title, excerpt string) string {
	return fmt.Sprintf(`Write a 30-45 second spoken script for a vertical video for the %s brand.
Style: %s
Keep it between 60 and 120 words. Hook in the first sentence. End with a soft call to action.

ARTICLE TITLE: %s

ARTICLE EXCERPT:
%s`, brand, styleHints, title, excerpt)
}

// parseScoreResponse reads the labeled answer format. List items are "- "
// lines under their section header; a lone "none" clears the list.
func parseScoreResponse(content string) (ScoreResult, error) {
	res := ScoreResult{}
	scoreSeen := false
	section := ""

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SCORE:"):
			raw := strings.TrimSpace(strings.TrimPrefix(line, "SCORE:"))
			n, err := strconv.Atoi(strings.TrimSuffix(raw, "/100"))
			if err != nil {
				return ScoreResult{}, fmt.Errorf("parse score %q: %w", raw, err)
			}
			if n < 0 {
				n = 0
			}
			if n > 100 {
				n = 100
			}
			res.Score = n
			scoreSeen = true
			section = ""
		case strings.HasPrefix(line, "REASONING:"):
			res.Reasoning = strings.TrimSpace(strings.TrimPrefix(line, "REASONING:"))
			section = ""
		case strings.HasPrefix(line, "SHOULD_MAKE_VIDEO:"):
			v := strings.TrimSpace(strings.TrimPrefix(line, "SHOULD_MAKE_VIDEO:"))
			res.ShouldMakeVideo = strings.EqualFold(v, "yes")
			section = ""
		case strings.HasPrefix(line, "RED_FLAGS:"):
			section = "flags"
		case strings.HasPrefix(line, "STRENGTHS:"):
			section = "strengths"
		case strings.HasPrefix(line, "- "):
			item := strings.TrimSpace(strings.TrimPrefix(line, "- "))
			if item == "" || strings.EqualFold(item, "none") {
				continue
			}
			switch section {
			case "flags":
				res.RedFlags = append(res.RedFlags, item)
			case "strengths":
				res.Strengths = append(res.Strengths, item)
			}
		}
	}
	if !scoreSeen {
		return ScoreResult{}, fmt.Errorf("no SCORE line in response: %q", firstLine(content))
	}
	return res, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
