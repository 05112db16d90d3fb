package gate

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"spin-bot/internal/ledger"
)

const (
	StatusLeft   = "left"
	StatusKicked = "kicked"
)

// MembershipChecker asks the messaging gateway for a user's status in a channel.
type MembershipChecker interface {
	MemberStatus(ctx context.Context, channel string, userID int64) (string, error)
}

// ChannelSource provides the current allow-list.
type ChannelSource interface {
	Channels() []string
}

type Options struct {
	// Concurrency caps parallel membership queries for one check.
	Concurrency int
	// RatePerSecond and Burst throttle queries process-wide.
	RatePerSecond float64
	Burst         int
	// Timeout bounds a single membership query.
	Timeout time.Duration
}

func DefaultOptions() Options {
	return Options{Concurrency: 4, RatePerSecond: 20, Burst: 20, Timeout: 5 * time.Second}
}

// Gate decides whether a user may use the bot.
type Gate struct {
	channels ChannelSource
	members  MembershipChecker
	limiter  *rate.Limiter
	opts     Options
}

func New(channels ChannelSource, members MembershipChecker, opts Options) *Gate {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	return &Gate{
		channels: channels,
		members:  members,
		limiter:  rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		opts:     opts,
	}
}

// Missing returns, in allow-list order, the channels the user has not joined.
// A failed query counts as not joined.
func (g *Gate) Missing(ctx context.Context, userID int64) []string {
	channels := g.channels.Channels()
	if len(channels) == 0 {
		return nil
	}

	satisfied := make([]bool, len(channels))
	var eg errgroup.Group
	eg.SetLimit(g.opts.Concurrency)

	for i, ch := range channels {
		eg.Go(func() error {
			ok, err := g.isMember(ctx, ch, userID)
			if err != nil {
				log.Warnf("Membership check of %d in %s failed, treating as not joined: %v", userID, ch, err)
				return nil
			}
			satisfied[i] = ok
			return nil
		})
	}
	_ = eg.Wait()

	var missing []string
	for i, ch := range channels {
		if !satisfied[i] {
			missing = append(missing, ch)
		}
	}
	return missing
}

func (g *Gate) isMember(ctx context.Context, channel string, userID int64) (bool, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("%w: %v", ledger.ErrGatewayUnavailable, err)
	}

	qctx := ctx
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	status, err := g.members.MemberStatus(qctx, channel, userID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ledger.ErrGatewayUnavailable, err)
	}
	return status != StatusLeft && status != StatusKicked, nil
}
