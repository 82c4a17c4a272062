// Package resolve turns an accepted search candidate into the identification
// profile shown to the operator.
package resolve

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"petscan/internal/biometry"
	"petscan/internal/config"
	"petscan/internal/logging"
	"petscan/internal/services"
)

// ErrProfileFetch marks failures to load a profile for an accepted match.
var ErrProfileFetch = errors.New("profile fetch failed")

// Fetcher loads identified profiles from the registry.
type Fetcher interface {
	FetchProfile(ctx context.Context, petID int64) (*biometry.Profile, error)
}

// Notifier receives lost-pet alerts.
type Notifier interface {
	NotifyLostPetIdentified(ctx context.Context, profile *biometry.Profile, similarity float64) error
}

// Resolver fetches, caches and redacts identified profiles.
type Resolver struct {
	fetcher     Fetcher
	notifier    Notifier
	cache       *cache.Cache
	countryCode string
	logger      *slog.Logger

	alerts sync.WaitGroup
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithNotifier sets the lost-pet alert sink.
func WithNotifier(n Notifier) Option {
	return func(r *Resolver) { r.notifier = n }
}

// WithCacheTTL enables the profile cache. A non-positive ttl disables it.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl <= 0 {
			r.cache = nil
			return
		}
		r.cache = cache.New(ttl, 2*ttl)
	}
}

// WithCountryCode sets the prefix used for national contact numbers.
func WithCountryCode(code string) Option {
	return func(r *Resolver) { r.countryCode = normalizeCountryCode(code) }
}

// WithLogger sets the resolver logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logging.NewComponentLogger(logger, "resolver") }
}

// New constructs a resolver over the given fetcher.
func New(fetcher Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:     fetcher,
		countryCode: DefaultCountryCode,
		logger:      logging.NewComponentLogger(nil, "resolver"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// NewFromConfig wires cache TTL and contact formatting from configuration.
func NewFromConfig(cfg *config.Config, fetcher Fetcher, notifier Notifier, logger *slog.Logger) *Resolver {
	return New(fetcher,
		WithNotifier(notifier),
		WithCacheTTL(cfg.ProfileCacheTTL()),
		WithCountryCode(cfg.Profile.ContactCountryCode),
		WithLogger(logger),
	)
}

// Resolve returns the profile for candidate. Cached profiles are returned as
// copies. Owner contact fields are cleared unless the candidate carries
// contact permission.
func (r *Resolver) Resolve(ctx context.Context, candidate biometry.Candidate) (*biometry.Profile, error) {
	if candidate.PetID <= 0 {
		return nil, services.Wrap(services.ErrValidation, "resolver", "resolve", "candidate has no pet id", ErrProfileFetch)
	}

	profile, cached := r.lookup(candidate.PetID)
	if !cached {
		fetched, err := r.fetcher.FetchProfile(ctx, candidate.PetID)
		if err != nil {
			return nil, &fetchError{petID: candidate.PetID, err: err}
		}
		if fetched == nil {
			return nil, &fetchError{petID: candidate.PetID, err: services.Wrap(services.ErrNotFound, "resolver", "resolve", "empty profile", nil)}
		}
		r.store(fetched)
		profile = fetched.Clone()
		if profile.IsLost {
			r.alertLost(ctx, profile.Clone(), candidate.Similarity)
		}
	}

	if !candidate.HasContactPermission {
		profile.RedactOwner()
	}

	r.logger.Debug("profile resolved",
		logging.Int64("pet_id", candidate.PetID),
		logging.Bool("cached", cached),
		logging.Bool("lost", profile.IsLost),
	)
	return profile, nil
}

// Invalidate drops a cached profile.
func (r *Resolver) Invalidate(petID int64) {
	if r.cache != nil {
		r.cache.Delete(cacheKey(petID))
	}
}

// Wait blocks until in-flight lost-pet alerts finish.
func (r *Resolver) Wait() {
	r.alerts.Wait()
}

// ContactLink builds the WhatsApp link for profile using the configured
// country code.
func (r *Resolver) ContactLink(profile *biometry.Profile) string {
	return ContactLink(profile, r.countryCode)
}

func (r *Resolver) lookup(petID int64) (*biometry.Profile, bool) {
	if r.cache == nil {
		return nil, false
	}
	if x, found := r.cache.Get(cacheKey(petID)); found {
		return x.(*biometry.Profile).Clone(), true
	}
	return nil, false
}

func (r *Resolver) store(profile *biometry.Profile) {
	if r.cache == nil {
		return
	}
	r.cache.Set(cacheKey(profile.ID), profile.Clone(), cache.DefaultExpiration)
}

func (r *Resolver) alertLost(ctx context.Context, profile *biometry.Profile, similarity float64) {
	if r.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	r.alerts.Add(1)
	go func() {
		defer r.alerts.Done()
		if err := r.notifier.NotifyLostPetIdentified(ctx, profile, similarity); err != nil {
			logging.WarnWithContext(r.logger, "lost pet alert failed", "lost_pet_alert_failed",
				logging.Int64("pet_id", profile.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
				logging.String(logging.FieldImpact, "owner was not alerted; profile still shown"),
			)
			return
		}
		r.logger.Info("lost pet alert sent",
			logging.String(logging.FieldEventType, "lost_pet_alert_sent"),
			logging.Int64("pet_id", profile.ID),
		)
	}()
}

func cacheKey(petID int64) string {
	return strconv.FormatInt(petID, 10)
}

type fetchError struct {
	petID int64
	err   error
}

func (e *fetchError) Error() string {
	return "load profile for pet " + strconv.FormatInt(e.petID, 10) + ": " + e.err.Error()
}

// Unwrap exposes both the profile marker and the underlying cause so callers
// can still classify transport and not-found failures.
func (e *fetchError) Unwrap() []error {
	return []error{ErrProfileFetch, e.err}
}
