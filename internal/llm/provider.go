package llm

import (
	"net/url"
	"strings"
)

const (
	KeyInQuery  = "query"
	KeyInHeader = "header"

	apiVersionPath = "/v1beta"
	apiKeyHeader   = "x-goog-api-key"
)

type generateContentRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
	Text  string `json:"text,omitempty"`
}

type part struct {
	Text string `json:"text"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content *content `json:"content"`
	} `json:"candidates"`
}

func buildPayload(message, systemPrompt string) generateContentRequest {
	payload := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: message}}}},
	}
	if strings.TrimSpace(systemPrompt) != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}
	return payload
}

// endpointURL arma <base>/v1beta/models/<model>:generateContent.
func endpointURL(baseURL, model, apiKey, keyPlacement string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasSuffix(base, apiVersionPath) {
		base += apiVersionPath
	}
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")

	endpoint := base + "/models/" + url.PathEscape(model) + ":generateContent"
	if keyPlacement != KeyInHeader && apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(apiKey)
	}
	return endpoint
}

// extractText concatena las partes del primer candidato sin separador.
func extractText(resp generateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	c := resp.Candidates[0].Content
	if len(c.Parts) > 0 {
		var sb strings.Builder
		for _, p := range c.Parts {
			sb.WriteString(p.Text)
		}
		return sb.String()
	}
	return c.Text
}
