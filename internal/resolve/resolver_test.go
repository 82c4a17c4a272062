package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"petscan/internal/biometry"
	"petscan/internal/services"
	"petscan/internal/testsupport"
)

type fakeFetcher struct {
	mu       sync.Mutex
	profiles map[int64]*biometry.Profile
	err      error
	calls    int
}

func (f *fakeFetcher) FetchProfile(_ context.Context, petID int64) (*biometry.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	profile, ok := f.profiles[petID]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "biometry", "fetch profile", "pet not found", nil)
	}
	return profile.Clone(), nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []int64
	err    error
}

func (n *recordingNotifier) NotifyLostPetIdentified(_ context.Context, profile *biometry.Profile, _ float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, profile.ID)
	return n.err
}

func (n *recordingNotifier) Alerts() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.alerts...)
}

func sampleProfile(id int64, lost bool) *biometry.Profile {
	return &biometry.Profile{
		ID:         id,
		Name:       "Rex",
		Species:    "dog",
		IsLost:     lost,
		OwnerName:  "Ana",
		OwnerPhone: "(11) 98765-4321",
		Vaccines:   []biometry.Vaccine{{Title: "V10", EventDate: "2024-03-01"}},
	}
}

func TestResolveRedactsOwnerWithoutPermission(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[int64]*biometry.Profile{7: sampleProfile(7, false)}}
	r := New(fetcher)

	profile, err := r.Resolve(context.Background(), biometry.Candidate{PetID: 7, Similarity: 0.9})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if profile.OwnerName != "" || profile.OwnerPhone != "" {
		t.Fatalf("expected owner fields cleared, got %+v", profile)
	}

	profile, err = r.Resolve(context.Background(), biometry.Candidate{PetID: 7, Similarity: 0.9, HasContactPermission: true})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if profile.OwnerPhone == "" {
		t.Fatal("expected owner phone kept with contact permission")
	}
}

func TestResolveCachesProfilesAndReturnsCopies(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[int64]*biometry.Profile{7: sampleProfile(7, false)}}
	r := New(fetcher, WithCacheTTL(time.Minute))
	cand := biometry.Candidate{PetID: 7, HasContactPermission: true}

	first, err := r.Resolve(context.Background(), cand)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	first.Name = "mutated"
	first.Vaccines[0].Title = "mutated"

	second, err := r.Resolve(context.Background(), cand)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if fetcher.Calls() != 1 {
		t.Fatalf("expected one fetch, got %d", fetcher.Calls())
	}
	if second.Name != "Rex" || second.Vaccines[0].Title != "V10" {
		t.Fatalf("cached profile was mutated by caller: %+v", second)
	}

	// Redaction of one caller's copy must not leak into the cache.
	if _, err := r.Resolve(context.Background(), biometry.Candidate{PetID: 7}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	third, _ := r.Resolve(context.Background(), cand)
	if third.OwnerPhone == "" {
		t.Fatal("expected cached profile to keep owner phone")
	}

	r.Invalidate(7)
	if _, err := r.Resolve(context.Background(), cand); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if fetcher.Calls() != 2 {
		t.Fatalf("expected refetch after invalidate, got %d calls", fetcher.Calls())
	}
}

func TestResolveWithoutCacheAlwaysFetches(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[int64]*biometry.Profile{7: sampleProfile(7, false)}}
	r := New(fetcher, WithCacheTTL(0))
	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), biometry.Candidate{PetID: 7}); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}
	if fetcher.Calls() != 3 {
		t.Fatalf("expected 3 fetches, got %d", fetcher.Calls())
	}
}

func TestResolveWrapsFetchErrors(t *testing.T) {
	transport := services.Wrap(services.ErrTransport, "biometry", "fetch profile", "connection refused", nil)
	r := New(&fakeFetcher{err: transport})

	_, err := r.Resolve(context.Background(), biometry.Candidate{PetID: 3})
	if !errors.Is(err, ErrProfileFetch) {
		t.Fatalf("expected ErrProfileFetch, got %v", err)
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport marker preserved, got %v", err)
	}

	_, err = New(&fakeFetcher{}).Resolve(context.Background(), biometry.Candidate{PetID: 99})
	if !errors.Is(err, ErrProfileFetch) || !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected profile fetch not-found error, got %v", err)
	}

	_, err = r.Resolve(context.Background(), biometry.Candidate{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing pet id, got %v", err)
	}
}

func TestResolveAlertsOnceForLostPets(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[int64]*biometry.Profile{
		1: sampleProfile(1, true),
		2: sampleProfile(2, false),
	}}
	notifier := &recordingNotifier{}
	r := New(fetcher, WithNotifier(notifier), WithCacheTTL(time.Minute))

	for _, id := range []int64{1, 2, 1} {
		if _, err := r.Resolve(context.Background(), biometry.Candidate{PetID: id}); err != nil {
			t.Fatalf("resolve %d: %v", id, err)
		}
	}
	r.Wait()

	alerts := notifier.Alerts()
	if len(alerts) != 1 || alerts[0] != 1 {
		t.Fatalf("expected a single alert for pet 1, got %v", alerts)
	}
}

func TestResolveIgnoresAlertFailures(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[int64]*biometry.Profile{1: sampleProfile(1, true)}}
	notifier := &recordingNotifier{err: errors.New("ntfy down")}
	r := New(fetcher, WithNotifier(notifier))

	profile, err := r.Resolve(context.Background(), biometry.Candidate{PetID: 1})
	r.Wait()
	if err != nil || profile == nil {
		t.Fatalf("expected profile despite alert failure, got %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Profile.CacheTTLSeconds = 60
	cfg.Profile.ContactCountryCode = "+351"
	fetcher := &fakeFetcher{profiles: map[int64]*biometry.Profile{7: sampleProfile(7, false)}}

	r := NewFromConfig(cfg, fetcher, nil, nil)
	if r.cache == nil {
		t.Fatal("expected cache enabled")
	}
	if r.countryCode != "351" {
		t.Fatalf("expected country code 351, got %q", r.countryCode)
	}
}
