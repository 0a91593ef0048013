package assets

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botsonlabs/jobforge/internal/common"
	"github.com/botsonlabs/jobforge/internal/interfaces"
	"github.com/botsonlabs/jobforge/internal/models"
	"github.com/botsonlabs/jobforge/internal/orchestrator"
	"github.com/botsonlabs/jobforge/internal/services/llm"
	badgerstore "github.com/botsonlabs/jobforge/internal/storage/badger"
	"github.com/botsonlabs/jobforge/internal/tasks"
)

func newTestStore(t *testing.T) interfaces.StorageManager {
	t.Helper()
	manager, err := badgerstore.NewManager(common.GetLogger(), &common.BadgerConfig{
		Path: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func newFinalizedJob(t *testing.T, store interfaces.JobStorage) *models.Job {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	job := &models.Job{
		ID:        common.NewJobID(),
		CreatedAt: now,
		UpdatedAt: now,
		State: &models.Draft{
			RoleTitle:      "Backend Engineer",
			CompanyName:    "Acme",
			LogoURL:        "https://acme.example/logo.png",
			Location:       "Berlin",
			SeniorityLevel: "Senior",
			EmploymentType: "Full-time",
			JobDescription: "Build the platform.",
		},
	}
	require.NoError(t, store.CreateJob(ctx, job))
	finalized, err := store.Finalize(ctx, job.ID, nil, models.SourceOriginal)
	require.NoError(t, err)
	return finalized
}

func instantSleep(_ context.Context, _ time.Duration) error { return nil }

func newTestRunner(stub *llm.StubProvider) *orchestrator.Runner {
	return orchestrator.NewRunner(
		&singleProviderSelector{provider: stub},
		llm.NewRoutingPolicy(nil),
		common.GetLogger(),
		orchestrator.Options{Sleep: instantSleep},
	)
}

type singleProviderSelector struct {
	provider interfaces.Provider
}

func (s *singleProviderSelector) Provider(string) (interfaces.Provider, error) {
	return s.provider, nil
}

type countingImageGen struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (g *countingImageGen) GenerateImage(ctx context.Context, prompt string) (*interfaces.GeneratedImage, error) {
	g.calls.Add(1)
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return &interfaces.GeneratedImage{Bytes: []byte("png"), MIMEType: "image/png", Model: "imagen-test"}, nil
}

type stubVideoGen struct {
	err error
}

func (g *stubVideoGen) GenerateVideo(ctx context.Context, prompt string, config *interfaces.VideoRenderConfig) (*interfaces.GeneratedVideo, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &interfaces.GeneratedVideo{URL: "https://cdn.example/video.mp4", Model: "veo-test"}, nil
}

func TestStartRun_PlansFanOutAndCompletes(t *testing.T) {
	manager := newTestStore(t)
	job := newFinalizedJob(t, manager.JobStorage())

	stub := llm.NewStubProvider("gemini").
		Script(tasks.TaskAssetMaster, llm.StubResponse{Text: `{"content": "the master copy"}`}).
		Script(tasks.TaskAssetAdapt, llm.StubResponse{Text: `{"content": "adapted copy"}`})

	c := NewCoordinator(manager.JobStorage(), newTestRunner(stub), nil, nil, common.GetLogger(), Options{})

	planned, err := c.StartRun(context.Background(), job.ID, []string{"LINKEDIN", "x", "LINKEDIN"}, "run-1")
	require.NoError(t, err)
	require.NotNil(t, planned.AssetRun)
	assert.Equal(t, 4, planned.AssetRun.PlannedCount)
	assert.Len(t, planned.Assets, 4)

	require.Eventually(t, func() bool {
		got, err := manager.JobStorage().GetJob(context.Background(), job.ID)
		if err != nil || got.AssetRun == nil {
			return false
		}
		return got.AssetRun.Status == models.AssetRunCompleted
	}, 5*time.Second, 20*time.Millisecond)

	got, err := manager.JobStorage().GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.AssetRun.CompletedCount)
	logoCount := 0
	for _, asset := range got.Assets {
		assert.Equal(t, models.AssetStatusReady, asset.Status)
		assert.Equal(t, "adapted copy", asset.Content)
		if asset.LogoURL != "" {
			assert.Equal(t, models.FormatSocialImageCaption, asset.FormatID)
			logoCount++
		}
	}
	assert.Equal(t, 1, logoCount, "only the social image caption carries the logo")
	assert.Equal(t, models.JobStateAssetsReady, got.Lifecycle())
}

func TestStartRun_RejectsUnknownChannel(t *testing.T) {
	manager := newTestStore(t)
	job := newFinalizedJob(t, manager.JobStorage())

	c := NewCoordinator(manager.JobStorage(), newTestRunner(llm.NewStubProvider("gemini")), nil, nil, common.GetLogger(), Options{})

	_, err := c.StartRun(context.Background(), job.ID, []string{"MYSPACE"}, "")
	assert.ErrorIs(t, err, interfaces.ErrUnknownChannel)

	_, err = c.StartRun(context.Background(), job.ID, nil, "")
	assert.ErrorIs(t, err, interfaces.ErrUnknownChannel)
}

func TestStartRun_RequiresFinalization(t *testing.T) {
	manager := newTestStore(t)
	ctx := context.Background()
	job := &models.Job{ID: common.NewJobID(), State: &models.Draft{RoleTitle: "x"}}
	require.NoError(t, manager.JobStorage().CreateJob(ctx, job))

	c := NewCoordinator(manager.JobStorage(), newTestRunner(llm.NewStubProvider("gemini")), nil, nil, common.GetLogger(), Options{})

	_, err := c.StartRun(ctx, job.ID, []string{"LINKEDIN"}, "")
	assert.ErrorIs(t, err, interfaces.ErrNotFinalized)
}

func TestRun_MasterFailureFailsAllAssets(t *testing.T) {
	manager := newTestStore(t)
	job := newFinalizedJob(t, manager.JobStorage())

	stub := llm.NewStubProvider("gemini").
		Script(tasks.TaskAssetMaster, llm.StubResponse{Err: errors.New("upstream down")})

	c := NewCoordinator(manager.JobStorage(), newTestRunner(stub), nil, nil, common.GetLogger(), Options{})

	_, err := manager.JobStorage().PlanAssetRun(context.Background(), job.ID, models.PlanAssets([]models.Channel{models.ChannelX}))
	require.NoError(t, err)

	c.run(context.Background(), job.ID, "")

	got, err := manager.JobStorage().GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetRunFailed, got.AssetRun.Status)
	for _, asset := range got.Assets {
		assert.Equal(t, models.AssetStatusFailed, asset.Status)
		require.NotNil(t, asset.Failure)
		assert.Equal(t, tasks.FailInvokeFailed, asset.Failure.Reason)
	}
}

func TestRun_BatchMissingEntryFailsOnlyThatAsset(t *testing.T) {
	manager := newTestStore(t)
	job := newFinalizedJob(t, manager.JobStorage())

	stub := llm.NewStubProvider("gemini").
		Script(tasks.TaskAssetMaster, llm.StubResponse{Text: `{"content": "master"}`}).
		Script(tasks.TaskAssetChannelBatch, llm.StubResponse{
			Text: `{"items": {"LINKEDIN:LINKEDIN_JOB_POSTING": "posting copy"}}`,
		})

	c := NewCoordinator(manager.JobStorage(), newTestRunner(stub), nil, nil, common.GetLogger(), Options{BatchPerChannel: true})

	_, err := manager.JobStorage().PlanAssetRun(context.Background(), job.ID, models.PlanAssets([]models.Channel{models.ChannelLinkedIn}))
	require.NoError(t, err)

	c.run(context.Background(), job.ID, "")

	got, err := manager.JobStorage().GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetRunCompleted, got.AssetRun.Status)
	assert.Equal(t, 2, got.AssetRun.CompletedCount)

	statuses := map[models.FormatID]models.AssetStatus{}
	for _, asset := range got.Assets {
		statuses[asset.FormatID] = asset.Status
	}
	assert.Equal(t, models.AssetStatusReady, statuses[models.FormatLinkedInJobPosting])
	assert.Equal(t, models.AssetStatusFailed, statuses[models.FormatLinkedInFeedPost])
}

func TestGenerateHeroImage_SharesInflightGeneration(t *testing.T) {
	manager := newTestStore(t)
	job := newFinalizedJob(t, manager.JobStorage())

	stub := llm.NewStubProvider("gemini").
		Script(tasks.TaskImagePrompt, llm.StubResponse{Text: `{"prompt": "an office at dawn"}`}).
		Script(tasks.TaskImageCaption, llm.StubResponse{Text: `{"caption": "Join Acme!", "hashtags": ["hiring"]}`})

	imageGen := &countingImageGen{release: make(chan struct{})}
	c := NewCoordinator(manager.JobStorage(), newTestRunner(stub), imageGen, nil, common.GetLogger(), Options{})

	var wg sync.WaitGroup
	results := make([]*models.HeroImage, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := c.GenerateHeroImage(context.Background(), job.ID, false, "")
			require.NoError(t, err)
			results[i] = rec
		}()
	}

	require.Eventually(t, func() bool { return imageGen.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	close(imageGen.release)
	wg.Wait()

	assert.Equal(t, int32(1), imageGen.calls.Load())
	for _, rec := range results {
		require.NotNil(t, rec)
		assert.Equal(t, models.MediaStatusReady, rec.Status)
		assert.Equal(t, "Join Acme!", rec.Caption)
	}
}

func TestGenerateHeroImage_ReturnsCachedUnlessForced(t *testing.T) {
	manager := newTestStore(t)
	job := newFinalizedJob(t, manager.JobStorage())

	stub := llm.NewStubProvider("gemini").
		Script(tasks.TaskImagePrompt, llm.StubResponse{Text: `{"prompt": "p"}`}).
		Script(tasks.TaskImageCaption, llm.StubResponse{Text: `{"caption": "c"}`})

	imageGen := &countingImageGen{}
	c := NewCoordinator(manager.JobStorage(), newTestRunner(stub), imageGen, nil, common.GetLogger(), Options{})

	first, err := c.GenerateHeroImage(context.Background(), job.ID, false, "")
	require.NoError(t, err)
	require.Equal(t, models.MediaStatusReady, first.Status)
	assert.Equal(t, int32(1), imageGen.calls.Load())

	cached, err := c.GenerateHeroImage(context.Background(), job.ID, false, "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), imageGen.calls.Load())
	assert.Equal(t, first.Caption, cached.Caption)

	_, err = c.GenerateHeroImage(context.Background(), job.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), imageGen.calls.Load())
}

func TestGenerateHeroImage_NoBackendFails(t *testing.T) {
	manager := newTestStore(t)
	job := newFinalizedJob(t, manager.JobStorage())

	stub := llm.NewStubProvider("gemini").
		Script(tasks.TaskImagePrompt, llm.StubResponse{Text: `{"prompt": "p"}`})

	c := NewCoordinator(manager.JobStorage(), newTestRunner(stub), nil, nil, common.GetLogger(), Options{})

	rec, err := c.GenerateHeroImage(context.Background(), job.ID, false, "")
	require.NoError(t, err)
	assert.Equal(t, models.MediaStatusFailed, rec.Status)
	require.NotNil(t, rec.Failure)
	assert.Equal(t, tasks.FailInvokeFailed, rec.Failure.Reason)
}

func TestGenerateVideo_StagedPipeline(t *testing.T) {
	manager := newTestStore(t)
	job := newFinalizedJob(t, manager.JobStorage())

	stub := llm.NewStubProvider("gemini").
		Script(tasks.TaskVideoConfig, llm.StubResponse{Text: `{"duration_seconds": 30, "aspect_ratio": "9:16", "style": "upbeat"}`}).
		Script(tasks.TaskVideoStoryboard, llm.StubResponse{Text: `{"scenes": [{"sequence": 1, "description": "office", "overlay_text": "Join us"}]}`}).
		Script(tasks.TaskVideoCaption, llm.StubResponse{Text: `{"caption": "We are hiring"}`}).
		Script(tasks.TaskVideoCompliance, llm.StubResponse{Text: `{"approved": true, "flags": []}`})

	c := NewCoordinator(manager.JobStorage(), newTestRunner(stub), nil, &stubVideoGen{}, common.GetLogger(), Options{})

	rec, err := c.GenerateVideo(context.Background(), job.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.MediaStatusReady, rec.Status)
	assert.Equal(t, "https://cdn.example/video.mp4", rec.VideoURL)
	assert.Equal(t, 30, rec.DurationSeconds)
	assert.Equal(t, "We are hiring", rec.Caption)

	got, err := manager.JobStorage().GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Video)
	assert.Equal(t, models.MediaStatusReady, got.Video.Status)
}

func TestGenerateVideo_ComplianceRejectionStopsRender(t *testing.T) {
	manager := newTestStore(t)
	job := newFinalizedJob(t, manager.JobStorage())

	stub := llm.NewStubProvider("gemini").
		Script(tasks.TaskVideoConfig, llm.StubResponse{Text: `{"duration_seconds": 30, "aspect_ratio": "9:16"}`}).
		Script(tasks.TaskVideoStoryboard, llm.StubResponse{Text: `{"scenes": [{"sequence": 1, "description": "scene"}]}`}).
		Script(tasks.TaskVideoCaption, llm.StubResponse{Text: `{"caption": "caption"}`}).
		Script(tasks.TaskVideoCompliance, llm.StubResponse{Text: `{"approved": false, "flags": ["age wording"]}`})

	videoGen := &stubVideoGen{err: errors.New("must not be called")}
	c := NewCoordinator(manager.JobStorage(), newTestRunner(stub), nil, videoGen, common.GetLogger(), Options{})

	rec, err := c.GenerateVideo(context.Background(), job.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.MediaStatusFailed, rec.Status)
	require.NotNil(t, rec.Failure)
	assert.Equal(t, failComplianceRejected, rec.Failure.Reason)
	assert.Contains(t, rec.Failure.Message, "age wording")
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(&common.AssetsConfig{
		Parallelism:      2,
		TextTimeout:      "10s",
		HeroImageTimeout: "1m",
		VideoTimeout:     "2m",
	})
	opts.normalize()
	assert.Equal(t, 2, opts.Parallelism)
	assert.Equal(t, 10*time.Second, opts.TextTimeout)
	assert.Equal(t, time.Minute, opts.HeroImageTimeout)
	assert.Equal(t, 2*time.Minute, opts.VideoTimeout)
}
