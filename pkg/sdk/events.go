package persona

import "context"

// PublishEvent appends a behavioral event to the processing stream and
// returns the stream entry ID. Processing is asynchronous; the profile
// update lands after the pipeline consumes the event.
func (c *Client) PublishEvent(ctx context.Context, ev Event) (string, error) {
	var resp struct {
		EntryID string `json:"entry_id"`
	}
	if err := c.post(ctx, "/api/v1/events", ev, &resp); err != nil {
		return "", err
	}
	return resp.EntryID, nil
}
