package oauth2

import (
	"fmt"

	"golang.org/x/oauth2"

	"github.com/authflow/authflow"
)

// TwitterEndpoint is Twitter's OAuth 2.0 endpoint. Confidential clients
// authenticate to the token endpoint with HTTP basic auth.
var TwitterEndpoint = oauth2.Endpoint{
	AuthURL:   "https://twitter.com/i/oauth2/authorize",
	TokenURL:  "https://api.twitter.com/2/oauth2/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

type TwitterOAuth2 struct {
	*BaseOAuth2
}

func NewTwitterOAuth2(cfg authflow.ProviderConfig, handleProfile HandleProfileFunc) *TwitterOAuth2 {
	out := &TwitterOAuth2{
		BaseOAuth2: NewBaseOAuth2("twitter", cfg, TwitterEndpoint, []string{"users.read", "tweet.read"}, handleProfile),
	}
	out.UserInfoURL = "https://api.twitter.com/2/users/me"
	out.ParseProfile = parseTwitterProfile
	return out
}

// parseTwitterProfile reads GET /2/users/me: {"data": {"id", "username", "name"}}
func parseTwitterProfile(userInfo map[string]any) (authflow.ProviderProfile, error) {
	data, ok := userInfo["data"].(map[string]any)
	if !ok {
		return authflow.ProviderProfile{}, fmt.Errorf("twitter profile has no data")
	}
	profile := authflow.ProviderProfile{
		ID:          stringField(data, "id"),
		Username:    stringField(data, "username"),
		DisplayName: stringField(data, "name"),
	}
	if profile.ID == "" {
		return profile, fmt.Errorf("twitter profile has no id")
	}
	return profile, nil
}
