package app

import (
	"github.com/yourusername/mediabridge-go/internal/domain"
)

// ChainPolicy decides which providers a request walks through, and in what order
type ChainPolicy struct {
	CobaltEnabled   bool
	TikwmEnabled    bool
	FallbackEnabled bool
}

// NewChainPolicy reads the provider toggles from cfg
func NewChainPolicy(cfg *domain.Config) ChainPolicy {
	return ChainPolicy{
		CobaltEnabled:   cfg.Cobalt.Enabled,
		TikwmEnabled:    cfg.Tikwm.Enabled,
		FallbackEnabled: cfg.Fallback.Enabled,
	}
}

// BuildChain returns the ordered providers for req.
//
// Gallery requests only ever use gallery-dl. Media requests put the TikTok
// fast path first for TikTok URLs, then Cobalt when it is the primary
// provider, then yt-dlp. Instagram video requests try gallery-dl ahead of
// yt-dlp, which often cannot reach Instagram posts without a login.
func (p ChainPolicy) BuildChain(req domain.MediaRequest) (domain.ProviderChain, error) {
	if req.Mode == domain.ModeGallery {
		return domain.NewProviderChain(domain.ProviderGalleryDL)
	}

	ids := make([]domain.ProviderID, 0, 4)
	if req.Platform() == domain.PlatformTikTok && p.TikwmEnabled {
		ids = append(ids, domain.ProviderTikwm)
	}
	if p.CobaltEnabled {
		ids = append(ids, domain.ProviderCobalt)
	}
	if req.Platform() == domain.PlatformInstagram && !req.WantAudioOnly {
		ids = append(ids, domain.ProviderGalleryDL)
	}
	ids = append(ids, domain.ProviderYTDLP)
	return domain.NewProviderChain(ids...)
}

// TransitionPolicy returns the fallback rules matching this chain policy
func (p ChainPolicy) TransitionPolicy() TransitionPolicy {
	return TransitionPolicy{
		FallbackEnabled: p.FallbackEnabled,
		AlwaysAdvance:   []domain.ProviderID{domain.ProviderTikwm},
	}
}
