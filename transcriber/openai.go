package transcriber

import "encoding/json"

const openAIAPIURL = "https://api.openai.com/v1/audio/transcriptions"

func NewOpenAI(apiKey string, opts ...CloudOption) *Cloud {
	return newCloud("openai", openAIAPIURL, apiKey, "gpt-4o-transcribe", "json", parseOpenAI, opts)
}

func parseOpenAI(body []byte) (string, float64, error) {
	var resp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", 0, err
	}
	return resp.Text, 0, nil
}
