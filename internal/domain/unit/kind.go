package unit

import "fmt"

// Kind is the ad format backing a unit. It never changes after creation.
type Kind string

const (
	KindBanner               Kind = "banner"
	KindInterstitial         Kind = "interstitial"
	KindRewarded             Kind = "rewarded"
	KindRewardedInterstitial Kind = "rewarded_interstitial"
	KindAppOpen              Kind = "app_open"
)

// Kinds lists every supported kind in declaration order.
var Kinds = []Kind{
	KindBanner,
	KindInterstitial,
	KindRewarded,
	KindRewardedInterstitial,
	KindAppOpen,
}

// IsValid reports whether k is a supported kind
func (k Kind) IsValid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsReusable reports whether the unit can be shown and hidden repeatedly
// without being consumed.
func (k Kind) IsReusable() bool {
	return k == KindBanner
}

// IsSingleton reports whether at most one unit of this kind may live in a group.
// Every single-use kind is a singleton.
func (k Kind) IsSingleton() bool {
	return k.IsValid() && !k.IsReusable()
}

// IsRewarding reports whether the provider may grant rewards for this kind.
func (k Kind) IsRewarding() bool {
	return k == KindRewarded || k == KindRewardedInterstitial
}

// ParseKind parses the wire/config name of a kind
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}
