package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"hotel-operations-api/internal/cache"
)

const (
	requestTimeout = 15 * time.Second
	replyCacheTTL  = 5 * time.Minute
)

// Reply is what the assistant answered for a transcript.
type Reply struct {
	Text   string `json:"text"`
	Intent string `json:"intent"`
}

// Client is a thin proxy to the external speech/LLM service. Replies are
// cached by transcript so repeated guest phrases don't re-hit the API.
type Client struct {
	baseURL string
	http    *http.Client
	replies *cache.TTLCache[string, Reply]
}

// NewClient reads VOICE_API_URL from the environment. When unset the client
// stays in fallback mode and returns a canned reply.
func NewClient() *Client {
	return &Client{
		baseURL: os.Getenv("VOICE_API_URL"),
		http:    &http.Client{Timeout: requestTimeout},
		replies: cache.New[string, Reply](),
	}
}

// Respond asks the assistant service for a reply to the transcript.
func (c *Client) Respond(ctx context.Context, transcript, roomNumber string) (Reply, error) {
	if reply, ok := c.replies.Get(transcript); ok {
		return reply, nil
	}

	if c.baseURL == "" {
		// No upstream configured; acknowledge so the flow stays usable in
		// development.
		return Reply{
			Text:   "Thanks, the front desk has been notified of your request.",
			Intent: "acknowledged",
		}, nil
	}

	body, err := json.Marshal(map[string]string{
		"transcript": transcript,
		"room":       roomNumber,
	})
	if err != nil {
		return Reply{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/respond", bytes.NewReader(body))
	if err != nil {
		return Reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Reply{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Reply{}, fmt.Errorf("voice service returned status %d", resp.StatusCode)
	}

	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return Reply{}, err
	}

	c.replies.Set(transcript, reply, replyCacheTTL)
	return reply, nil
}
