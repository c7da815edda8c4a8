package domain

import "strings"

// Platform represents the source platform of a media URL
type Platform string

const (
	PlatformYouTube     Platform = "youtube"
	PlatformTikTok      Platform = "tiktok"
	PlatformInstagram   Platform = "instagram"
	PlatformTwitter     Platform = "twitter"
	PlatformReddit      Platform = "reddit"
	PlatformPinterest   Platform = "pinterest"
	PlatformTwitch      Platform = "twitch"
	PlatformVimeo       Platform = "vimeo"
	PlatformSoundCloud  Platform = "soundcloud"
	PlatformBilibili    Platform = "bilibili"
	PlatformTumblr      Platform = "tumblr"
	PlatformDailymotion Platform = "dailymotion"
	PlatformFacebook    Platform = "facebook"
	PlatformSnapchat    Platform = "snapchat"
	PlatformLoom        Platform = "loom"
	PlatformStreamable  Platform = "streamable"
	PlatformOther       Platform = "other"
)

type platformRule struct {
	substring string
	platform  Platform
}

// platformRules is matched in order; the first hit wins.
var platformRules = []platformRule{
	{"youtube.com", PlatformYouTube},
	{"youtu.be", PlatformYouTube},
	{"tiktok.com", PlatformTikTok},
	{"instagram.com", PlatformInstagram},
	{"twitter.com", PlatformTwitter},
	{"x.com", PlatformTwitter},
	{"reddit.com", PlatformReddit},
	{"redd.it", PlatformReddit},
	{"pinterest.com", PlatformPinterest},
	{"pin.it", PlatformPinterest},
	{"twitch.tv", PlatformTwitch},
	{"vimeo.com", PlatformVimeo},
	{"soundcloud.com", PlatformSoundCloud},
	{"bilibili.com", PlatformBilibili},
	{"bilibili.tv", PlatformBilibili},
	{"tumblr.com", PlatformTumblr},
	{"dailymotion.com", PlatformDailymotion},
	{"streamable.com", PlatformStreamable},
	{"facebook.com", PlatformFacebook},
	{"fb.watch", PlatformFacebook},
	{"snapchat.com", PlatformSnapchat},
	{"loom.com", PlatformLoom},
}

// Classify maps a URL to its platform by case-insensitive substring match.
// URLs matching no rule are PlatformOther.
func Classify(url string) Platform {
	lower := strings.ToLower(url)
	for _, rule := range platformRules {
		if strings.Contains(lower, rule.substring) {
			return rule.platform
		}
	}
	return PlatformOther
}

// AllPlatforms returns every known platform, PlatformOther last
func AllPlatforms() []Platform {
	seen := make(map[Platform]bool)
	platforms := make([]Platform, 0, len(platformRules)+1)
	for _, rule := range platformRules {
		if !seen[rule.platform] {
			seen[rule.platform] = true
			platforms = append(platforms, rule.platform)
		}
	}
	return append(platforms, PlatformOther)
}

// ValidatePlatform checks if a platform is one of the known identifiers
func ValidatePlatform(platform Platform) bool {
	for _, p := range AllPlatforms() {
		if p == platform {
			return true
		}
	}
	return false
}

// RequiresImpersonation reports whether downloads for the platform need a
// browser-impersonating downloader build.
func (p Platform) RequiresImpersonation() bool {
	return p == PlatformTikTok
}
