package membership

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// DiscordSource resolves current role membership through the Discord
// REST API. Roles are reported as role ID strings.
type DiscordSource struct {
	client  rest.Rest
	guildID snowflake.ID
	logger  *zap.Logger
}

// NewDiscordSource creates a membership source for one guild.
func NewDiscordSource(token string, guildID uint64, logger *zap.Logger) *DiscordSource {
	return &DiscordSource{
		client:  rest.New(rest.NewClient(token)),
		guildID: snowflake.ID(guildID),
		logger:  logger.Named("membership"),
	}
}

// CurrentRoles fetches the member's live role set. A missing member
// means the user left the guild and is reported as not found rather
// than an error.
func (s *DiscordSource) CurrentRoles(ctx context.Context, discordUserID uint64) ([]string, bool, error) {
	member, err := s.client.GetMember(s.guildID, snowflake.ID(discordUserID), rest.WithCtx(ctx))
	if err != nil {
		var restErr rest.Error
		if errors.As(err, &restErr) && restErr.Response != nil &&
			restErr.Response.StatusCode == http.StatusNotFound {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}

	roles := make([]string, 0, len(member.RoleIDs))
	for _, roleID := range member.RoleIDs {
		roles = append(roles, roleID.String())
	}

	return roles, true, nil
}
