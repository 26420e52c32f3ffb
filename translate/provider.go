package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MurphyLo/Document-Synchronizer/langmeta"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderGoogle       = "google"
	ProviderGroq         = "groq"
	ProviderOllama       = "ollama"
	ProviderCustomOpenAI = "custom-openai"
)

// Provider is the configuration of one HTTP AI provider.
type Provider struct {
	// ID is the provider identifier (google, groq, ollama, custom-openai).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL.
	BaseURL string
	// APIKey is the authentication key (empty for local services).
	APIKey string
	// Model is the model identifier.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the request timeout.
	Timeout time.Duration
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderGoogle: {
			ID:      ProviderGoogle,
			Name:    "Google AI (Gemini)",
			BaseURL: "https://generativelanguage.googleapis.com",
			Timeout: 120 * time.Second,
		},
		ProviderGroq: {
			ID:      ProviderGroq,
			Name:    "Groq",
			BaseURL: "https://api.groq.com/openai/v1",
			Timeout: 60 * time.Second,
		},
		ProviderOllama: {
			ID:      ProviderOllama,
			Name:    "Ollama",
			BaseURL: "http://localhost:11434",
			Timeout: 120 * time.Second,
		},
		ProviderCustomOpenAI: {
			ID:      ProviderCustomOpenAI,
			Name:    "Custom OpenAI",
			Timeout: 60 * time.Second,
		},
	}
}

// makeHTTPClient builds a client with proxy support: an explicit proxy
// URL wins, otherwise HTTP_PROXY/HTTPS_PROXY from the environment apply.
func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// ---------------------------------------------------------------------------
// Prompts
// ---------------------------------------------------------------------------

// DocSystemPrompt instructs the model to translate whole Markdown
// documents while preserving structure.
const DocSystemPrompt = `You are a professional translator specializing in technical documentation for software systems. You are translating complete Markdown documents between languages.

TRANSLATION REQUIREMENTS:
- Maintain professional tone and technical accuracy
- Preserve ALL original formatting, markup, and structure: headings, lists, tables, links, emphasis
- Code blocks, command examples, file paths, and identifiers must be copied verbatim, never translated
- For longer content, translate every paragraph completely without omission or simplification
- Output ONLY the translated document, with no additional commentary`

// freshPromptTemplate asks for a new translation from scratch.
const freshPromptTemplate = `Translate the following %s document accurately into %s, maintaining professional tone and technical accuracy.
Preserve all original formatting, markup, and structure.
Provide only the translation output without additional comments:

%s`

// improvePromptTemplate asks for an improvement pass over an existing
// translation, using it as translation memory.
const improvePromptTemplate = `Improve the following %s translation so it accurately reflects the %s original content.

Original (%s):
%s

Existing translation (%s):
%s

Requirements:
1. Preserve correct and appropriate parts of the existing translation
2. Correct inaccurate or inappropriate translation parts
3. Add content present in the original but missing from the translation
4. Maintain all original formatting, markup, and structure

Output the complete improved document, not just the changed parts:`

// buildUserPrompt renders the request into the fresh or improvement
// prompt depending on whether a prior translation exists. Language
// tags are resolved to English names so the model never has to guess
// what "zh-TW" means.
func buildUserPrompt(req Request) string {
	src := "English"
	if req.SourceLang != "" {
		src = langmeta.PromptName(req.SourceLang)
	}
	tgt := langmeta.PromptName(req.TargetLang)
	if req.PriorTargetContent != "" {
		return fmt.Sprintf(improvePromptTemplate,
			tgt, src,
			src, req.SourceContent,
			tgt, req.PriorTargetContent)
	}
	return fmt.Sprintf(freshPromptTemplate, src, tgt, req.SourceContent)
}

// ---------------------------------------------------------------------------
// API format and request builders
// ---------------------------------------------------------------------------

type apiFormat int

const (
	formatOpenAIChat   apiFormat = iota // OpenAI chat/completions
	formatGeminiNative                  // Google Gemini generateContent
)

func formatFor(providerID string) apiFormat {
	if providerID == ProviderGoogle {
		return formatGeminiNative
	}
	return formatOpenAIChat
}

func buildOpenAIChatRequest(model, systemPrompt, userPrompt string) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	return json.Marshal(map[string]any{
		"model": model,
		"messages": []msg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		"temperature": 0.3,
	})
}

func buildGeminiRequest(systemPrompt, userPrompt string) ([]byte, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	return json.Marshal(map[string]any{
		"system_instruction": content{Parts: []part{{Text: systemPrompt}}},
		"contents":           []content{{Role: "user", Parts: []part{{Text: userPrompt}}}},
		"generationConfig":   map[string]any{"temperature": 0.3},
	})
}

// buildHTTPRequest constructs endpoint, headers, and body for a provider.
func buildHTTPRequest(prov Provider, systemPrompt, userPrompt string) (string, map[string]string, []byte, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
	}

	var endpoint string
	var body []byte
	var err error

	switch formatFor(prov.ID) {
	case formatGeminiNative:
		endpoint = fmt.Sprintf("%s/v1beta/models/%s:generateContent",
			strings.TrimRight(prov.BaseURL, "/"), prov.Model)
		if prov.APIKey != "" {
			headers["x-goog-api-key"] = prov.APIKey
		}
		body, err = buildGeminiRequest(systemPrompt, userPrompt)

	default:
		base := strings.TrimRight(prov.BaseURL, "/")
		if prov.ID == ProviderOllama {
			endpoint = base + "/v1/chat/completions"
		} else {
			endpoint = base + "/chat/completions"
		}
		if prov.APIKey != "" {
			headers["Authorization"] = "Bearer " + prov.APIKey
		}
		body, err = buildOpenAIChatRequest(prov.Model, systemPrompt, userPrompt)
	}
	if err != nil {
		return "", nil, nil, err
	}
	return endpoint, headers, body, nil
}

// ---------------------------------------------------------------------------
// Response handling
// ---------------------------------------------------------------------------

// extractResponseText pulls generated text out of a provider response,
// accepting OpenAI chat and Gemini shapes.
func extractResponseText(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("%w: invalid JSON: %v", ErrMalformedResponse, err)
	}

	if errObj, ok := raw["error"]; ok {
		if errMap, ok := errObj.(map[string]any); ok {
			if msg, ok := errMap["message"].(string); ok {
				return "", fmt.Errorf("%w: API error: %s", ErrMalformedResponse, msg)
			}
		}
		return "", fmt.Errorf("%w: API error: %v", ErrMalformedResponse, errObj)
	}

	// OpenAI chat format: choices[0].message.content
	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return content, nil
				}
			}
		}
	}

	// Gemini format: candidates[0].content.parts[0].text
	if candidates, ok := raw["candidates"].([]any); ok && len(candidates) > 0 {
		if candidate, ok := candidates[0].(map[string]any); ok {
			if content, ok := candidate["content"].(map[string]any); ok {
				if parts, ok := content["parts"].([]any); ok && len(parts) > 0 {
					if part, ok := parts[0].(map[string]any); ok {
						if text, ok := part["text"].(string); ok {
							return text, nil
						}
					}
				}
			}
		}
	}

	return "", fmt.Errorf("%w: could not extract text from response: %s", ErrMalformedResponse, truncate(string(body), 500))
}

// parseRetryDelay extracts the retry delay from a 429 response, looking
// at the Retry-After header and Google's RetryInfo detail. Defaults to
// 65s (a minute plus buffer).
func parseRetryDelay(header http.Header, body []byte) time.Duration {
	const defaultDelay = 65 * time.Second

	if ra := header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs)*time.Second + 5*time.Second
		}
	}

	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return defaultDelay
	}
	for _, detail := range errResp.Error.Details {
		if strings.Contains(detail.Type, "RetryInfo") && detail.RetryDelay != "" {
			d := strings.TrimSuffix(detail.RetryDelay, "s")
			if secs, err := strconv.ParseFloat(d, 64); err == nil {
				return time.Duration(secs*1000)*time.Millisecond + 5*time.Second
			}
		}
	}
	return defaultDelay
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// ---------------------------------------------------------------------------
// HTTPTranslator
// ---------------------------------------------------------------------------

// HTTPTranslator implements Translator over an HTTP AI provider.
// It performs exactly one request per Translate call; retry policy
// belongs to the orchestrator.
type HTTPTranslator struct {
	Provider Provider
	// SystemPrompt overrides DocSystemPrompt when set.
	SystemPrompt string
	Verbose      bool

	client *http.Client
}

// NewHTTPTranslator builds a translator for the given provider.
func NewHTTPTranslator(prov Provider) *HTTPTranslator {
	timeout := prov.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPTranslator{
		Provider: prov,
		client:   makeHTTPClient(prov.Proxy, timeout),
	}
}

// Translate implements Translator. Failures are classified into the
// package error taxonomy: 429 → ErrRateLimited, transport errors and
// 5xx → ErrNetworkUnavailable, everything else → ErrMalformedResponse.
func (t *HTTPTranslator) Translate(ctx context.Context, req Request) (string, error) {
	systemPrompt := t.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DocSystemPrompt
	}

	endpoint, headers, body, err := buildHTTPRequest(t.Provider, systemPrompt, buildUserPrompt(req))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	if t.Verbose {
		log.Printf("[DEBUG] %s: POST %s (%d bytes)", t.Provider.Name, endpoint, len(body))
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &RateLimitError{RetryAfter: parseRetryDelay(resp.Header, respBody)}
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: API returned status %d", ErrNetworkUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: API returned status %d: %s", ErrMalformedResponse, resp.StatusCode, truncate(string(respBody), 500))
	}

	return extractResponseText(respBody)
}
