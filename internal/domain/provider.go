package domain

import (
	"context"
	"fmt"
	"strings"
)

// ProviderID identifies an acquisition backend
type ProviderID string

const (
	ProviderCobalt    ProviderID = "cobalt"     // Cloud extraction API
	ProviderTikwm     ProviderID = "tikwm"      // TikTok fast path
	ProviderYTDLP     ProviderID = "yt-dlp"     // General CLI downloader
	ProviderGalleryDL ProviderID = "gallery-dl" // Gallery CLI downloader
)

// FetchHint carries per-attempt context a provider may use
type FetchHint struct {
	Platform Platform
	// WorkDir is a fresh directory owned by the caller and removed once the
	// attempt returns. Providers put every temporary file here.
	WorkDir string
}

// Provider acquires media for a request. Every failure path is returned as
// a *Failure result; Fetch never panics on upstream errors.
type Provider interface {
	ID() ProviderID
	Fetch(ctx context.Context, req MediaRequest, hint FetchHint) ProviderResult
}

// ProviderChain is the ordered list of providers to try for one request
type ProviderChain []ProviderID

// NewProviderChain builds a chain, rejecting duplicates
func NewProviderChain(ids ...ProviderID) (ProviderChain, error) {
	seen := make(map[ProviderID]bool, len(ids))
	chain := make(ProviderChain, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("provider %s appears twice in chain", id)
		}
		seen[id] = true
		chain = append(chain, id)
	}
	return chain, nil
}

// Contains reports whether id is part of the chain
func (c ProviderChain) Contains(id ProviderID) bool {
	for _, p := range c {
		if p == id {
			return true
		}
	}
	return false
}

// String renders the chain as "a -> b -> c"
func (c ProviderChain) String() string {
	parts := make([]string, len(c))
	for i, id := range c {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}
