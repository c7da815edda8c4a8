package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		url      string
		expected Platform
	}{
		{"https://www.youtube.com/watch?v=abc", PlatformYouTube},
		{"https://youtu.be/abc", PlatformYouTube},
		{"https://music.youtube.com/watch?v=abc", PlatformYouTube},
		{"https://www.tiktok.com/@user/video/123", PlatformTikTok},
		{"https://vm.tiktok.com/ZM123/", PlatformTikTok},
		{"https://www.instagram.com/p/ABC/", PlatformInstagram},
		{"https://twitter.com/user/status/1", PlatformTwitter},
		{"https://x.com/user/status/1", PlatformTwitter},
		{"https://www.reddit.com/r/videos/comments/1", PlatformReddit},
		{"https://redd.it/abc", PlatformReddit},
		{"https://www.pinterest.com/pin/1/", PlatformPinterest},
		{"https://pin.it/abc", PlatformPinterest},
		{"https://www.twitch.tv/videos/1", PlatformTwitch},
		{"https://vimeo.com/1", PlatformVimeo},
		{"https://soundcloud.com/artist/track", PlatformSoundCloud},
		{"https://www.bilibili.com/video/BV1", PlatformBilibili},
		{"https://www.bilibili.tv/en/video/1", PlatformBilibili},
		{"https://someone.tumblr.com/post/1", PlatformTumblr},
		{"https://www.dailymotion.com/video/x1", PlatformDailymotion},
		{"https://streamable.com/abc", PlatformStreamable},
		{"https://www.facebook.com/watch?v=1", PlatformFacebook},
		{"https://fb.watch/abc/", PlatformFacebook},
		{"https://www.snapchat.com/spotlight/1", PlatformSnapchat},
		{"https://www.loom.com/share/1", PlatformLoom},
		{"HTTPS://WWW.YOUTUBE.COM/WATCH?V=ABC", PlatformYouTube},
		{"https://example.org/video.mp4", PlatformOther},
		{"not a url", PlatformOther},
		{"", PlatformOther},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.url))
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	url := "https://www.tiktok.com/@user/video/123"
	first := Classify(url)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(url))
	}
}

func TestClassify_FirstRuleWins(t *testing.T) {
	// Both youtube and tiktok substrings appear; youtube is declared first.
	assert.Equal(t, PlatformYouTube, Classify("https://youtube.com/redirect?to=tiktok.com"))
}

func TestAllPlatforms(t *testing.T) {
	platforms := AllPlatforms()

	assert.Len(t, platforms, 17)
	assert.Equal(t, PlatformOther, platforms[len(platforms)-1])
	assert.True(t, ValidatePlatform(PlatformLoom))
	assert.False(t, ValidatePlatform(Platform("myspace")))
}

func TestPlatform_RequiresImpersonation(t *testing.T) {
	assert.True(t, PlatformTikTok.RequiresImpersonation())
	assert.False(t, PlatformYouTube.RequiresImpersonation())
}
