package oauth2

import (
	"fmt"

	"golang.org/x/oauth2/github"

	"github.com/authflow/authflow"
)

type GithubOAuth2 struct {
	*BaseOAuth2
}

func NewGithubOAuth2(cfg authflow.ProviderConfig, handleProfile HandleProfileFunc) *GithubOAuth2 {
	out := &GithubOAuth2{
		BaseOAuth2: NewBaseOAuth2("github", cfg, github.Endpoint, []string{"read:user"}, handleProfile),
	}
	out.UserInfoURL = "https://api.github.com/user"
	out.ParseProfile = parseGithubProfile
	return out
}

// parseGithubProfile reads GET /user: numeric id, login, name
func parseGithubProfile(userInfo map[string]any) (authflow.ProviderProfile, error) {
	profile := authflow.ProviderProfile{
		ID:          stringField(userInfo, "id"),
		Username:    stringField(userInfo, "login"),
		DisplayName: stringField(userInfo, "name"),
	}
	if profile.ID == "" {
		return profile, fmt.Errorf("github profile has no id")
	}
	if profile.DisplayName == "" {
		profile.DisplayName = profile.Username
	}
	return profile, nil
}
