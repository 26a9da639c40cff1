package persona

import (
	"context"
	"net/url"
	"strconv"
)

// Profile fetches a user's interest profile metadata.
func (c *Client) Profile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	if err := c.get(ctx, "/api/v1/users/"+url.PathEscape(userID)+"/profile", nil, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Recommendations fetches personalized recommendations for a user.
// limit <= 0 uses the server default.
func (c *Client) Recommendations(ctx context.Context, userID string, limit int) (Recommendations, error) {
	params := url.Values{}
	params.Set("user_id", userID)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var r Recommendations
	if err := c.get(ctx, "/api/v1/recommendations", params, &r); err != nil {
		return Recommendations{}, err
	}
	return r, nil
}
