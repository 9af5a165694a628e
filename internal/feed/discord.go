package feed

import (
	"context"
	stdsync "sync"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/wardenhq/warden/internal/sync"
	"go.uber.org/zap"
)

// DiscordFeed listens to guild member events on the Discord gateway and
// emits one observation per role added or removed, plus a departure
// trigger when a member leaves. Role diffs are computed against a local
// prior-roles map so the feed never depends on gateway-provided "old"
// state being present.
type DiscordFeed struct {
	client       bot.Client
	guildID      snowflake.ID
	observations ObservationSink
	departures   DepartureSink
	logger       *zap.Logger

	mu    stdsync.Mutex
	roles map[snowflake.ID]map[string]struct{}
}

// NewDiscordFeed creates a gateway feed for one guild.
func NewDiscordFeed(
	token string,
	guildID uint64,
	observations ObservationSink,
	departures DepartureSink,
	logger *zap.Logger,
) (*DiscordFeed, error) {
	f := &DiscordFeed{
		guildID:      snowflake.ID(guildID),
		observations: observations,
		departures:   departures,
		logger:       logger.Named("discord_feed"),
		roles:        make(map[snowflake.ID]map[string]struct{}),
	}

	client, err := disgo.New(token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnGuildMemberJoin:   f.onMemberJoin,
			OnGuildMemberUpdate: f.onMemberUpdate,
			OnGuildMemberLeave:  f.onMemberLeave,
		}),
	)
	if err != nil {
		return nil, err
	}

	f.client = client

	return f, nil
}

// Open connects to the gateway and starts delivering events.
func (f *DiscordFeed) Open(ctx context.Context) error {
	return f.client.OpenGateway(ctx)
}

// Close shuts down the gateway connection.
func (f *DiscordFeed) Close(ctx context.Context) {
	f.client.Close(ctx)
}

func (f *DiscordFeed) onMemberJoin(event *events.GuildMemberJoin) {
	if event.GuildID != f.guildID {
		return
	}

	userID := event.Member.User.ID
	current := roleSet(event.Member.RoleIDs)

	f.mu.Lock()
	f.roles[userID] = current
	f.mu.Unlock()

	for role := range current {
		f.emit(sync.Observation{
			DiscordUserID: uint64(userID),
			Role:          role,
			Added:         true,
		})
	}
}

func (f *DiscordFeed) onMemberUpdate(event *events.GuildMemberUpdate) {
	if event.GuildID != f.guildID {
		return
	}

	userID := event.Member.User.ID
	current := roleSet(event.Member.RoleIDs)

	f.mu.Lock()
	prior := f.roles[userID]
	f.roles[userID] = current
	f.mu.Unlock()

	for role := range current {
		if _, ok := prior[role]; !ok {
			f.emit(sync.Observation{
				DiscordUserID: uint64(userID),
				Role:          role,
				Added:         true,
			})
		}
	}

	for role := range prior {
		if _, ok := current[role]; !ok {
			f.emit(sync.Observation{
				DiscordUserID: uint64(userID),
				Role:          role,
				Added:         false,
			})
		}
	}
}

func (f *DiscordFeed) onMemberLeave(event *events.GuildMemberLeave) {
	if event.GuildID != f.guildID {
		return
	}

	userID := event.User.ID

	f.mu.Lock()
	delete(f.roles, userID)
	f.mu.Unlock()

	if err := f.departures.HandleDeparture(context.Background(), uint64(userID)); err != nil {
		f.logger.Error("Failed to handle departure",
			zap.Uint64("discordUserID", uint64(userID)),
			zap.Error(err))
	}
}

func (f *DiscordFeed) emit(obs sync.Observation) {
	if err := f.observations.HandleObservation(context.Background(), obs); err != nil {
		f.logger.Error("Failed to handle observation",
			zap.Uint64("discordUserID", obs.DiscordUserID),
			zap.String("role", obs.Role),
			zap.Bool("added", obs.Added),
			zap.Error(err))
	}
}

func roleSet(ids []snowflake.ID) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id.String()] = struct{}{}
	}

	return set
}
