package schedule

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/data"
	"github.com/alveusgg/sanctuary/internal/db"
	"github.com/alveusgg/sanctuary/internal/metrics"
)

var (
	// ErrUnknownChannel is returned for a Twitch channel key missing from the channel table
	ErrUnknownChannel = errors.New("unknown twitch channel")

	// ErrPlatformDisabled is returned when the platform client is not configured
	ErrPlatformDisabled = errors.New("platform sync not configured")
)

// CredentialStore loads stored broadcaster credentials
type CredentialStore interface {
	GetTwitchChannel(ctx context.Context, username string) (*db.TwitchChannel, error)
}

// Alerter notifies operators
type Alerter interface {
	Notify(subject, detail string)
}

// Syncer runs reconciliation for the configured platforms
type Syncer struct {
	reconciler *Reconciler
	twitch     TwitchAPI
	discord    DiscordAPI
	creds      CredentialStore
	channels   map[string]data.TwitchChannel
	timezone   string
	alerter    Alerter
	logger     *zap.Logger
}

// SyncerConfig wires a Syncer. A nil Twitch or Discord client disables that platform.
type SyncerConfig struct {
	Reconciler *Reconciler
	Twitch     TwitchAPI
	Discord    DiscordAPI
	Creds      CredentialStore
	Channels   map[string]data.TwitchChannel
	Timezone   string
	Alerter    Alerter
}

// NewSyncer creates a syncer
func NewSyncer(cfg SyncerConfig, logger *zap.Logger) *Syncer {
	return &Syncer{
		reconciler: cfg.Reconciler,
		twitch:     cfg.Twitch,
		discord:    cfg.Discord,
		creds:      cfg.Creds,
		channels:   cfg.Channels,
		timezone:   cfg.Timezone,
		alerter:    cfg.Alerter,
		logger:     logger,
	}
}

// SyncTwitch mirrors the calendar to the schedule of the channel with key.
// A channel without a stored access token fails with ErrMissingAccessToken.
func (s *Syncer) SyncTwitch(ctx context.Context, key string) (Result, error) {
	channel, ok := s.channels[key]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownChannel, key)
	}
	if s.twitch == nil {
		return Result{}, fmt.Errorf("twitch: %w", ErrPlatformDisabled)
	}

	creds, err := s.creds.GetTwitchChannel(ctx, channel.Username)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return Result{}, fmt.Errorf("load twitch credentials: %w", err)
	}

	platform, err := NewTwitchPlatform(s.twitch, channel, creds, s.timezone, s.logger)
	if err != nil {
		err = fmt.Errorf("no access token found for %s twitch account: %w", channel.Username, err)
		metrics.RecordScheduleSync("twitch:"+key, 0, 0, 0, 0, err)
		s.fail("twitch:"+key, err)
		return Result{}, err
	}

	return s.run(ctx, platform)
}

// SyncAllTwitch syncs every known Twitch channel. It keeps going after a
// failing channel and returns the joined errors.
func (s *Syncer) SyncAllTwitch(ctx context.Context) error {
	var errs []error
	for _, key := range sortedChannelKeys(s.channels) {
		if _, err := s.SyncTwitch(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// SyncDiscord mirrors the calendar to the guild's scheduled events
func (s *Syncer) SyncDiscord(ctx context.Context) (Result, error) {
	if s.discord == nil {
		return Result{}, fmt.Errorf("discord: %w", ErrPlatformDisabled)
	}
	return s.run(ctx, NewDiscordPlatform(s.discord))
}

func (s *Syncer) run(ctx context.Context, p Platform) (Result, error) {
	res, err := s.reconciler.Reconcile(ctx, p)
	metrics.RecordScheduleSync(p.Name(), res.Matched, res.Created, res.Deleted, res.Failed, err)

	if err != nil {
		s.fail(p.Name(), err)
		return res, err
	}

	s.logger.Info("schedule synced",
		zap.String("platform", p.Name()),
		zap.Int("matched", res.Matched),
		zap.Int("created", res.Created),
		zap.Int("deleted", res.Deleted),
		zap.Int("failed", res.Failed),
	)

	if res.Failed > 0 {
		s.alert(p.Name()+" sync incomplete", fmt.Sprintf("%d schedule changes failed, see logs", res.Failed))
	}

	return res, nil
}

func (s *Syncer) fail(platform string, err error) {
	s.logger.Error("schedule sync failed", zap.String("platform", platform), zap.Error(err))
	s.alert(platform+" sync failed", err.Error())
}

func (s *Syncer) alert(subject, detail string) {
	if s.alerter != nil {
		s.alerter.Notify(subject, detail)
	}
}

func sortedChannelKeys(m map[string]data.TwitchChannel) []string {
	d := data.Data{TwitchChannels: m}
	return d.TwitchKeys()
}
