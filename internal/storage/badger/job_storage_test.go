package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botsonlabs/jobforge/internal/common"
	"github.com/botsonlabs/jobforge/internal/interfaces"
	"github.com/botsonlabs/jobforge/internal/models"
)

func newTestStorage(t *testing.T) interfaces.JobStorage {
	t.Helper()
	manager, err := NewManager(common.GetLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager.JobStorage()
}

func refinableDraft() *models.Draft {
	return &models.Draft{
		RoleTitle:      "Backend Engineer",
		CompanyName:    "Acme",
		Location:       "Berlin",
		SeniorityLevel: "Senior",
		EmploymentType: "Full-time",
		JobDescription: "Build and run the platform.",
	}
}

func createJob(t *testing.T, store interfaces.JobStorage, draft *models.Draft) *models.Job {
	t.Helper()
	job := &models.Job{ID: common.NewJobID(), State: draft}
	require.NoError(t, store.CreateJob(context.Background(), job))
	return job
}

func TestCreateAndGetJob(t *testing.T) {
	store := newTestStorage(t)
	job := createJob(t, store, &models.Draft{RoleTitle: "  Engineer  "})

	got, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "Engineer", got.State.RoleTitle, "draft is normalized on create")
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetJob_NotFound(t *testing.T) {
	store := newTestStorage(t)
	_, err := store.GetJob(context.Background(), "job_missing")
	assert.ErrorIs(t, err, interfaces.ErrJobNotFound)
}

func TestDeleteJob(t *testing.T) {
	store := newTestStorage(t)
	job := createJob(t, store, &models.Draft{})

	require.NoError(t, store.DeleteJob(context.Background(), job.ID))
	_, err := store.GetJob(context.Background(), job.ID)
	assert.ErrorIs(t, err, interfaces.ErrJobNotFound)

	assert.ErrorIs(t, store.DeleteJob(context.Background(), job.ID), interfaces.ErrJobNotFound)
}

func TestListJobs_NewestFirstWithPaging(t *testing.T) {
	store := newTestStorage(t)
	for i := 0; i < 5; i++ {
		createJob(t, store, &models.Draft{})
	}

	jobs, err := store.ListJobs(context.Background(), &interfaces.JobListOptions{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, jobs, 3)

	rest, err := store.ListJobs(context.Background(), &interfaces.JobListOptions{Limit: 3, Offset: 3})
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestPutDraft_MergeSemantics(t *testing.T) {
	store := newTestStorage(t)
	job := createJob(t, store, &models.Draft{
		RoleTitle:  "Engineer",
		CoreDuties: []string{"a", "b"},
	})

	updated, err := store.PutDraft(context.Background(), job.ID, &models.Draft{
		CompanyName: "Acme",
		CoreDuties:  []string{"c"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Engineer", updated.State.RoleTitle)
	assert.Equal(t, "Acme", updated.State.CompanyName)
	assert.Equal(t, []string{"c"}, updated.State.CoreDuties)
}

func TestFinalize_Original(t *testing.T) {
	store := newTestStorage(t)
	job := createJob(t, store, refinableDraft())

	finalized, err := store.Finalize(context.Background(), job.ID, nil, models.SourceOriginal)
	require.NoError(t, err)
	require.NotNil(t, finalized.Finalization)
	assert.Equal(t, models.SourceOriginal, finalized.Finalization.Source)
	assert.False(t, finalized.Finalization.FinalizedAt.IsZero())
}

func TestFinalize_RefinedRequiresRefinement(t *testing.T) {
	store := newTestStorage(t)
	job := createJob(t, store, refinableDraft())

	_, err := store.Finalize(context.Background(), job.ID, nil, models.SourceRefined)
	assert.ErrorIs(t, err, interfaces.ErrInvalidSource)

	refined := refinableDraft()
	refined.RoleTitle = "Senior Backend Engineer"
	require.NoError(t, store.PutRefinement(context.Background(), job.ID, &models.Refinement{
		Draft:   refined,
		Summary: "tightened the title",
	}))

	finalized, err := store.Finalize(context.Background(), job.ID, nil, models.SourceRefined)
	require.NoError(t, err)
	assert.Equal(t, models.SourceRefined, finalized.Finalization.Source)
	assert.Equal(t, "Senior Backend Engineer", finalized.FinalDraft().RoleTitle)
}

func TestFinalize_EditedReplacesState(t *testing.T) {
	store := newTestStorage(t)
	job := createJob(t, store, refinableDraft())

	edited := refinableDraft()
	edited.RoleTitle = "Staff Engineer"
	finalized, err := store.Finalize(context.Background(), job.ID, edited, models.SourceEdited)
	require.NoError(t, err)
	assert.Equal(t, "Staff Engineer", finalized.State.RoleTitle)

	_, err = store.Finalize(context.Background(), job.ID, nil, models.SourceEdited)
	assert.ErrorIs(t, err, interfaces.ErrInvalidSource)
}

func TestFinalize_RejectsInvalidSourceAndIncompleteDraft(t *testing.T) {
	store := newTestStorage(t)
	job := createJob(t, store, &models.Draft{RoleTitle: "Engineer"})

	_, err := store.Finalize(context.Background(), job.ID, nil, "approved")
	assert.ErrorIs(t, err, interfaces.ErrInvalidSource)

	_, err = store.Finalize(context.Background(), job.ID, nil, models.SourceOriginal)
	assert.ErrorIs(t, err, interfaces.ErrNotRefinable, "missing required fields block finalization")
}

func TestPlanAssetRun_RequiresFinalization(t *testing.T) {
	store := newTestStorage(t)
	job := createJob(t, store, refinableDraft())

	_, err := store.PlanAssetRun(context.Background(), job.ID, models.PlanAssets([]models.Channel{models.ChannelIndeed}))
	assert.ErrorIs(t, err, interfaces.ErrNotFinalized)
}

func TestPlanAssetRun_RejectsConcurrentRun(t *testing.T) {
	store := newTestStorage(t)
	job := createJob(t, store, refinableDraft())
	_, err := store.Finalize(context.Background(), job.ID, nil, models.SourceOriginal)
	require.NoError(t, err)

	rows := models.PlanAssets([]models.Channel{models.ChannelLinkedIn})
	planned, err := store.PlanAssetRun(context.Background(), job.ID, rows)
	require.NoError(t, err)
	assert.Equal(t, models.AssetRunPlanning, planned.AssetRun.Status)
	assert.Equal(t, 2, planned.AssetRun.PlannedCount)
	assert.Len(t, planned.Assets, 2)

	_, err = store.PlanAssetRun(context.Background(), job.ID, rows)
	assert.ErrorIs(t, err, interfaces.ErrRunInProgress)
}

func TestUpsertAsset_TerminalStatusIsImmutable(t *testing.T) {
	store := newTestStorage(t)
	job := createJob(t, store, refinableDraft())
	_, err := store.Finalize(context.Background(), job.ID, nil, models.SourceOriginal)
	require.NoError(t, err)

	planned, err := store.PlanAssetRun(context.Background(), job.ID, models.PlanAssets([]models.Channel{models.ChannelIndeed}))
	require.NoError(t, err)

	var assetID string
	for id := range planned.Assets {
		assetID = id
	}

	ready := models.AssetStatusReady
	content := "We are hiring."
	require.NoError(t, store.UpsertAsset(context.Background(), job.ID, assetID, &interfaces.AssetPatch{
		Status:  &ready,
		Content: &content,
	}))

	got, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusReady, got.Assets[assetID].Status)
	assert.Equal(t, 1, got.AssetRun.CompletedCount)

	// Any transition out of a terminal status is rejected.
	failed := models.AssetStatusFailed
	err = store.UpsertAsset(context.Background(), job.ID, assetID, &interfaces.AssetPatch{Status: &failed})
	assert.ErrorIs(t, err, interfaces.ErrAssetTerminal)

	// Re-asserting the same terminal status is a no-op, not a completion.
	require.NoError(t, store.UpsertAsset(context.Background(), job.ID, assetID, &interfaces.AssetPatch{Status: &ready}))
	got, err = store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AssetRun.CompletedCount, "completed count stays monotone")
}

func TestUpsertAsset_UnknownAsset(t *testing.T) {
	store := newTestStorage(t)
	job := createJob(t, store, refinableDraft())
	_, err := store.Finalize(context.Background(), job.ID, nil, models.SourceOriginal)
	require.NoError(t, err)
	_, err = store.PlanAssetRun(context.Background(), job.ID, models.PlanAssets([]models.Channel{models.ChannelIndeed}))
	require.NoError(t, err)

	ready := models.AssetStatusReady
	err = store.UpsertAsset(context.Background(), job.ID, "asset_missing", &interfaces.AssetPatch{Status: &ready})
	assert.ErrorIs(t, err, interfaces.ErrAssetNotFound)
}

func TestUpsertAsset_CountOverrunPersistsFailedRun(t *testing.T) {
	store := newTestStorage(t)
	job := createJob(t, store, refinableDraft())
	_, err := store.Finalize(context.Background(), job.ID, nil, models.SourceOriginal)
	require.NoError(t, err)

	// Two planned assets for LinkedIn; shrink the planned count behind the
	// store's back so completing both overruns it.
	planned, err := store.PlanAssetRun(context.Background(), job.ID, models.PlanAssets([]models.Channel{models.ChannelLinkedIn}))
	require.NoError(t, err)
	require.Len(t, planned.Assets, 2)
	planned.AssetRun.PlannedCount = 1
	require.NoError(t, store.(*JobStorage).db.Store().Upsert(planned.ID, planned))

	ready := models.AssetStatusReady
	var lastErr error
	for id := range planned.Assets {
		lastErr = store.UpsertAsset(context.Background(), job.ID, id, &interfaces.AssetPatch{Status: &ready})
	}
	assert.ErrorIs(t, lastErr, interfaces.ErrInvariantBroken)

	// The aborted run state must survive the error return.
	got, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetRunFailed, got.AssetRun.Status)
	assert.Equal(t, "internal_invariant", got.AssetRun.Error)
}

func TestFinishAssetRun_CompletedAndAllFailed(t *testing.T) {
	store := newTestStorage(t)
	job := createJob(t, store, refinableDraft())
	_, err := store.Finalize(context.Background(), job.ID, nil, models.SourceOriginal)
	require.NoError(t, err)

	planned, err := store.PlanAssetRun(context.Background(), job.ID, models.PlanAssets([]models.Channel{models.ChannelLinkedIn}))
	require.NoError(t, err)

	// Closing with a non-terminal asset is an invariant breach.
	err = store.FinishAssetRun(context.Background(), job.ID)
	assert.ErrorIs(t, err, interfaces.ErrInvariantBroken)

	failed := models.AssetStatusFailed
	for id := range planned.Assets {
		require.NoError(t, store.UpsertAsset(context.Background(), job.ID, id, &interfaces.AssetPatch{
			Status:  &failed,
			Failure: &models.TaskFailure{Reason: "invoke_failed", Message: "provider down"},
		}))
	}
	require.NoError(t, store.FinishAssetRun(context.Background(), job.ID))

	got, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetRunFailed, got.AssetRun.Status)
	assert.Equal(t, "all assets failed", got.AssetRun.Error)
}

func TestAppendCopilotMessage_DedupsByClientMessageID(t *testing.T) {
	store := newTestStorage(t)
	job := createJob(t, store, refinableDraft())

	msg := func(id string) *models.ConversationMessage {
		return &models.ConversationMessage{
			ID:       common.NewMessageID(),
			Role:     models.RoleUser,
			Content:  "shorten the description",
			Metadata: &models.MessageMetadata{ClientMessageID: id},
		}
	}

	appended, err := store.AppendCopilotMessage(context.Background(), job.ID, msg("cm_1"))
	require.NoError(t, err)
	assert.True(t, appended)

	appended, err = store.AppendCopilotMessage(context.Background(), job.ID, msg("cm_1"))
	require.NoError(t, err)
	assert.False(t, appended, "duplicate clientMessageId is dropped")

	appended, err = store.AppendCopilotMessage(context.Background(), job.ID, msg("cm_2"))
	require.NoError(t, err)
	assert.True(t, appended)

	got, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Len(t, got.Conversation, 2)
}

func TestKVStorage_RoundTrip(t *testing.T) {
	manager, err := NewManager(common.GetLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	kv := manager.KeyValueStorage()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "Gemini_API_Key", "secret-1"))

	// Keys are case-insensitive.
	val, err := kv.Get(ctx, "gemini_api_key")
	require.NoError(t, err)
	assert.Equal(t, "secret-1", val)

	all, err := kv.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"gemini_api_key": "secret-1"}, all)

	require.NoError(t, kv.Delete(ctx, "GEMINI_API_KEY"))
	_, err = kv.Get(ctx, "gemini_api_key")
	assert.Error(t, err)

	// Deleting a missing key is not an error.
	require.NoError(t, kv.Delete(ctx, "gemini_api_key"))
}
