package models

import (
	"regexp"
	"strings"
)

// Channel identifies a distribution surface from the closed catalog.
type Channel string

const (
	ChannelLinkedIn   Channel = "LINKEDIN"
	ChannelIndeed     Channel = "INDEED"
	ChannelX          Channel = "X"
	ChannelFacebook   Channel = "FACEBOOK"
	ChannelInstagram  Channel = "INSTAGRAM"
	ChannelTikTok     Channel = "TIKTOK"
	ChannelGoogleJobs Channel = "GOOGLE_JOBS"
	ChannelStepstone  Channel = "STEPSTONE"
)

// SupportedChannels lists the closed channel catalog in presentation order.
var SupportedChannels = []Channel{
	ChannelLinkedIn,
	ChannelIndeed,
	ChannelX,
	ChannelFacebook,
	ChannelInstagram,
	ChannelTikTok,
	ChannelGoogleJobs,
	ChannelStepstone,
}

// IsSupportedChannel reports whether c belongs to the catalog.
func IsSupportedChannel(c Channel) bool {
	for _, known := range SupportedChannels {
		if known == c {
			return true
		}
	}
	return false
}

var channelNormalizeRe = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeChannel maps a free-form channel identifier onto the catalog by
// lowercasing and collapsing non-alphanumeric runs to underscores, then
// comparing against the allow-list. Returns "" when no entry matches.
func NormalizeChannel(raw string, allowed []Channel) Channel {
	key := strings.Trim(channelNormalizeRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), "_"), "_")
	if key == "" {
		return ""
	}
	for _, c := range allowed {
		candidate := strings.Trim(channelNormalizeRe.ReplaceAllString(strings.ToLower(string(c)), "_"), "_")
		if candidate == key {
			return c
		}
	}
	return ""
}

// FormatID identifies a creative asset format.
type FormatID string

const (
	FormatLinkedInJobPosting FormatID = "LINKEDIN_JOB_POSTING"
	FormatLinkedInFeedPost   FormatID = "LINKEDIN_FEED_POST"
	FormatXPost              FormatID = "X_POST"
	FormatFacebookFeedPost   FormatID = "FACEBOOK_FEED_POST"
	FormatInstagramCaption   FormatID = "INSTAGRAM_CAPTION"
	FormatSocialImageCaption FormatID = "SOCIAL_IMAGE_CAPTION"
	FormatShortVideoTikTok   FormatID = "SHORT_VIDEO_TIKTOK"
	FormatIndeedJobPosting   FormatID = "INDEED_JOB_POSTING"
	FormatGoogleJobsPosting  FormatID = "GOOGLE_JOBS_POSTING"
	FormatStepstonePosting   FormatID = "STEPSTONE_JOB_POSTING"
)

// channelFormats is the static fan-out table mapping each channel to the
// asset formats generated for it. Plan size is the sum of fan-outs over the
// selected channels; the table is closed and never consulted dynamically.
var channelFormats = map[Channel][]FormatID{
	ChannelLinkedIn:   {FormatLinkedInJobPosting, FormatLinkedInFeedPost},
	ChannelX:          {FormatXPost, FormatSocialImageCaption},
	ChannelFacebook:   {FormatFacebookFeedPost, FormatSocialImageCaption},
	ChannelInstagram:  {FormatInstagramCaption, FormatSocialImageCaption},
	ChannelTikTok:     {FormatShortVideoTikTok, FormatSocialImageCaption},
	ChannelIndeed:     {FormatIndeedJobPosting},
	ChannelGoogleJobs: {FormatGoogleJobsPosting},
	ChannelStepstone:  {FormatStepstonePosting},
}

// FormatsForChannel returns the static format fan-out for a channel.
func FormatsForChannel(c Channel) []FormatID {
	return channelFormats[c]
}

// AssetPlanRow is one planned asset: a format targeted at a channel.
type AssetPlanRow struct {
	FormatID  FormatID `json:"format_id"`
	ChannelID Channel  `json:"channel_id"`
}

// PlanAssets expands the selected channels into concrete asset rows using
// the static format table. Duplicate channels are collapsed; unknown
// channels are skipped.
func PlanAssets(selected []Channel) []AssetPlanRow {
	seen := make(map[Channel]bool, len(selected))
	var rows []AssetPlanRow
	for _, c := range selected {
		if seen[c] {
			continue
		}
		seen[c] = true
		for _, f := range channelFormats[c] {
			rows = append(rows, AssetPlanRow{FormatID: f, ChannelID: c})
		}
	}
	return rows
}

// ChannelRecommendation is one entry of the ordered recommendation list.
type ChannelRecommendation struct {
	Channel     Channel  `json:"channel"`
	Reason      string   `json:"reason"`
	ExpectedCPA *float64 `json:"expected_cpa,omitempty"`
}
