package sso

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

// Discord is the registry identifier of Discord sign-in
const Discord ID = "discord"

const discordCDN = "https://cdn.discordapp.com"

// DiscordProvider normalizes Discord /users/@me responses
type DiscordProvider struct {
	base
}

// NewDiscordProvider creates a new Discord provider
func NewDiscordProvider(c Credentials) *DiscordProvider {
	return &DiscordProvider{base{
		id: Discord,
		params: OAuthParams{
			Config: oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.RedirectURL,
				Scopes:       c.scopesOr("identify", "email"),
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://discord.com/oauth2/authorize",
					TokenURL: "https://discord.com/api/oauth2/token",
				},
			},
			AuthParams: map[string]string{"prompt": "none"},
			ProfileURL: "https://discord.com/api/users/@me",
		},
	}}
}

type discordUser struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Discriminator string   `json:"discriminator"`
	GlobalName    *string  `json:"global_name"`
	Avatar        *string  `json:"avatar"`
	Email         *string  `json:"email"`
	Verified      flexBool `json:"verified"`
	Locale        string   `json:"locale"`
}

// Normalize maps the @me payload; the avatar URL is built from the CDN template
func (p *DiscordProvider) Normalize(_ context.Context, raw RawResponse, _ *http.Client) (*Profile, error) {
	var u discordUser
	if err := p.decodeProfile(raw, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, missingField(p.id, "id")
	}

	profile := &Profile{
		ID:          u.ID,
		DisplayName: discordName(u),
		AvatarURL:   discordAvatar(u),
		Locale:      canonicalLocale(u.Locale),
	}
	if u.Email != nil {
		profile.setEmail(*u.Email, u.Verified.ptr())
	}
	return profile, nil
}

// discordName prefers the global display name, then handle#discriminator.
// Migrated accounts report discriminator "0".
func discordName(u discordUser) string {
	if u.GlobalName != nil && strings.TrimSpace(*u.GlobalName) != "" {
		return strings.TrimSpace(*u.GlobalName)
	}
	if u.Discriminator != "" && u.Discriminator != "0" {
		return u.Username + "#" + u.Discriminator
	}
	return u.Username
}

func discordAvatar(u discordUser) string {
	if u.Avatar != nil && *u.Avatar != "" {
		ext := "png"
		if strings.HasPrefix(*u.Avatar, "a_") {
			ext = "gif"
		}
		return fmt.Sprintf("%s/avatars/%s/%s.%s", discordCDN, u.ID, *u.Avatar, ext)
	}
	return fmt.Sprintf("%s/embed/avatars/%d.png", discordCDN, discordDefaultAvatar(u))
}

// discordDefaultAvatar picks the default avatar index the Discord client would show
func discordDefaultAvatar(u discordUser) uint64 {
	if u.Discriminator != "" && u.Discriminator != "0" {
		if d, err := strconv.ParseUint(u.Discriminator, 10, 64); err == nil {
			return d % 5
		}
	}
	id, err := strconv.ParseUint(u.ID, 10, 64)
	if err != nil {
		return 0
	}
	return (id >> 22) % 6
}
