package entities

import "fmt"

// Brand is the closed set of publishing identities the pipeline produces
// content for. Everything downstream (feeds, budgets, slots, provider
// profiles) is keyed by brand, so unknown values are rejected at the boundary.
type Brand string

const (
	BrandRealty  Brand = "realty"
	BrandAutos   Brand = "autos"
	BrandPodcast Brand = "podcast"
)

// AllBrands in stable order, for sweeps and reports.
func AllBrands() []Brand { return []Brand{BrandRealty, BrandAutos, BrandPodcast} }

// ParseBrand validates a brand coming from a URL path or config file.
func ParseBrand(s string) (Brand, error) {
	switch Brand(s) {
	case BrandRealty, BrandAutos, BrandPodcast:
		return Brand(s), nil
	}
	return "", fmt.Errorf("unknown brand %q", s)
}

// Provider names an external service boundary. Budget rows, circuit breakers
// and rate limiters are all keyed by provider.
type Provider string

const (
	ProviderScorer    Provider = "scorer"    // article quality scoring (LLM)
	ProviderVideoGen  Provider = "videogen"  // avatar video generation
	ProviderCaptions  Provider = "captions"  // caption burn-in / enhancement
	ProviderBroker    Provider = "broker"    // managed multi-platform publisher
	ProviderVideoHost Provider = "videohost" // direct first-party video upload
)

func AllProviders() []Provider {
	return []Provider{ProviderScorer, ProviderVideoGen, ProviderCaptions, ProviderBroker, ProviderVideoHost}
}

func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderScorer, ProviderVideoGen, ProviderCaptions, ProviderBroker, ProviderVideoHost:
		return Provider(s), nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// Platform is a social destination. All platforms except the direct video
// host are reached through the broker.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
	PlatformThreads   Platform = "threads"
	PlatformBluesky   Platform = "bluesky"
)

func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformInstagram, PlatformTikTok, PlatformYouTube, PlatformFacebook,
		PlatformLinkedIn, PlatformTwitter, PlatformThreads, PlatformBluesky:
		return Platform(s), nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Direct reports whether the platform is published through the first-party
// video-host API instead of the broker.
func (p Platform) Direct() bool { return p == PlatformYouTube }

// PlatformGroup buckets platforms that share a posting time; slots are
// configured per group, not per platform.
type PlatformGroup string

const (
	GroupProfessional PlatformGroup = "professional" // linkedin, twitter, bluesky
	GroupMidday       PlatformGroup = "midday"       // facebook, youtube
	GroupEvening      PlatformGroup = "evening"      // instagram, tiktok, threads
)

func ParsePlatformGroup(s string) (PlatformGroup, error) {
	switch PlatformGroup(s) {
	case GroupProfessional, GroupMidday, GroupEvening:
		return PlatformGroup(s), nil
	}
	return "", fmt.Errorf("unknown platform group %q", s)
}

// GroupPlatforms returns the members of a group in stable order.
func GroupPlatforms(g PlatformGroup) []Platform {
	switch g {
	case GroupProfessional:
		return []Platform{PlatformLinkedIn, PlatformTwitter, PlatformBluesky}
	case GroupMidday:
		return []Platform{PlatformFacebook, PlatformYouTube}
	case GroupEvening:
		return []Platform{PlatformInstagram, PlatformTikTok, PlatformThreads}
	}
	return nil
}
