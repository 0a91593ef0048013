package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeChannel(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Channel
	}{
		{"exact", "LINKEDIN", ChannelLinkedIn},
		{"lowercase", "linkedin", ChannelLinkedIn},
		{"padded", "  x ", ChannelX},
		{"separator variants", "google jobs", ChannelGoogleJobs},
		{"hyphenated", "Google-Jobs", ChannelGoogleJobs},
		{"dotted", "tik.tok", ChannelTikTok},
		{"unknown", "myspace", ""},
		{"empty", "", ""},
		{"punctuation only", "---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeChannel(tt.raw, SupportedChannels))
		})
	}
}

func TestNormalizeChannel_RespectsAllowList(t *testing.T) {
	allowed := []Channel{ChannelIndeed}
	assert.Equal(t, Channel(""), NormalizeChannel("linkedin", allowed))
	assert.Equal(t, ChannelIndeed, NormalizeChannel("indeed", allowed))
}

func TestPlanAssets_FanOut(t *testing.T) {
	rows := PlanAssets([]Channel{ChannelLinkedIn, ChannelX, ChannelIndeed})
	// LINKEDIN fans out to 2 formats, X to 2, INDEED to 1.
	assert.Len(t, rows, 5)

	byChannel := map[Channel]int{}
	for _, row := range rows {
		byChannel[row.ChannelID]++
	}
	assert.Equal(t, 2, byChannel[ChannelLinkedIn])
	assert.Equal(t, 2, byChannel[ChannelX])
	assert.Equal(t, 1, byChannel[ChannelIndeed])
}

func TestPlanAssets_CollapsesDuplicates(t *testing.T) {
	rows := PlanAssets([]Channel{ChannelLinkedIn, ChannelLinkedIn, ChannelLinkedIn})
	assert.Len(t, rows, 2)
}

func TestPlanAssets_SkipsUnknown(t *testing.T) {
	rows := PlanAssets([]Channel{"MYSPACE"})
	assert.Empty(t, rows)
}

func TestFormatsForChannel_CoversCatalog(t *testing.T) {
	for _, c := range SupportedChannels {
		assert.NotEmpty(t, FormatsForChannel(c), "channel %s has no formats", c)
	}
}

func TestJobLifecycle_Derivation(t *testing.T) {
	job := &Job{State: &Draft{}}
	assert.Equal(t, JobStateDraft, job.Lifecycle())

	job.Refined = &Refinement{Draft: &Draft{}}
	assert.Equal(t, JobStateRefined, job.Lifecycle())

	job.Finalization = &Finalization{Source: SourceOriginal}
	assert.Equal(t, JobStateFinalized, job.Lifecycle())

	job.Channels = &ChannelRecommendations{Items: []ChannelRecommendation{{Channel: ChannelLinkedIn}}}
	assert.Equal(t, JobStateChannelsReady, job.Lifecycle())

	job.AssetRun = &AssetRun{Status: AssetRunGenerating}
	assert.Equal(t, JobStateAssetsGenerating, job.Lifecycle())

	job.AssetRun.Status = AssetRunCompleted
	assert.Equal(t, JobStateAssetsReady, job.Lifecycle())
}

func TestFinalDraft_SelectsRefinedVariant(t *testing.T) {
	state := &Draft{RoleTitle: "Original"}
	refined := &Draft{RoleTitle: "Refined"}
	job := &Job{State: state, Refined: &Refinement{Draft: refined}}

	assert.Same(t, state, job.FinalDraft(), "unfinalized job uses state")

	job.Finalization = &Finalization{Source: SourceRefined}
	assert.Same(t, refined, job.FinalDraft())

	job.Finalization = &Finalization{Source: SourceOriginal}
	assert.Same(t, state, job.FinalDraft())
}
