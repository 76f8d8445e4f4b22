package transcriber

import (
	"encoding/json"
	"math"
)

const groqAPIURL = "https://api.groq.com/openai/v1/audio/transcriptions"

// noSpeechCutoff drops segments whisper itself marks as probably silent.
const noSpeechCutoff = 0.8

func NewGroq(apiKey string, opts ...CloudOption) *Cloud {
	return newCloud("groq", groqAPIURL, apiKey, "whisper-large-v3-turbo", "verbose_json", parseGroq, opts)
}

type groqResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text         string  `json:"text"`
		NoSpeechProb float64 `json:"no_speech_prob"`
		AvgLogProb   float64 `json:"avg_logprob"`
	} `json:"segments"`
}

func parseGroq(body []byte) (string, float64, error) {
	var resp groqResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", 0, err
	}
	if len(resp.Segments) == 0 {
		return resp.Text, 0, nil
	}

	var text string
	var logProbSum float64
	for _, seg := range resp.Segments {
		logProbSum += seg.AvgLogProb
		if seg.NoSpeechProb >= noSpeechCutoff {
			continue
		}
		text += seg.Text
	}
	return text, math.Exp(logProbSum / float64(len(resp.Segments))), nil
}
