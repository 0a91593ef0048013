package copilot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/botsonlabs/jobforge/internal/common"
	"github.com/botsonlabs/jobforge/internal/interfaces"
	"github.com/botsonlabs/jobforge/internal/models"
	"github.com/botsonlabs/jobforge/internal/orchestrator"
	"github.com/botsonlabs/jobforge/internal/tasks"
)

const defaultMaxToolSteps = 4

// Service is the conversational copilot: a bounded agent loop over the
// copilot task that can read the job through tools and mutate it through
// validated actions.
type Service struct {
	store  interfaces.JobStorage
	runner *orchestrator.Runner
	logger arbor.ILogger

	maxToolSteps int

	droppedActions atomic.Int64
}

// NewService creates the copilot service.
func NewService(store interfaces.JobStorage, runner *orchestrator.Runner, cfg *common.CopilotConfig, logger arbor.ILogger) *Service {
	maxSteps := defaultMaxToolSteps
	if cfg != nil && cfg.MaxToolSteps > 0 {
		maxSteps = cfg.MaxToolSteps
	}
	return &Service{
		store:        store,
		runner:       runner,
		logger:       logger,
		maxToolSteps: maxSteps,
	}
}

// DroppedActionCount reports how many emitted actions were rejected by
// validation since startup.
func (s *Service) DroppedActionCount() int64 {
	return s.droppedActions.Load()
}

// ChatInput is one user turn.
type ChatInput struct {
	Message         string
	ClientMessageID string
	Stage           string
	Route           string
}

// ChatResult is the outcome of one copilot turn.
type ChatResult struct {
	Reply          *models.ConversationMessage
	AppliedActions []tasks.CopilotAction
	ToolSteps      int
	Duplicate      bool
}

// Chat runs one copilot turn: append the user message, loop through tool
// calls up to the step bound, apply the final actions and append the reply.
// A re-sent clientMessageId returns the previously stored reply without
// invoking the model again.
func (s *Service) Chat(ctx context.Context, jobID string, in *ChatInput) (*ChatResult, *models.TaskFailure, error) {
	if in == nil || in.Message == "" {
		return nil, nil, fmt.Errorf("message is required")
	}

	userMsg := &models.ConversationMessage{
		ID:        common.NewMessageID(),
		Role:      models.RoleUser,
		Content:   in.Message,
		CreatedAt: time.Now().UTC(),
	}
	if in.ClientMessageID != "" {
		userMsg.Metadata = &models.MessageMetadata{ClientMessageID: in.ClientMessageID}
	}

	appended, err := s.store.AppendCopilotMessage(ctx, jobID, userMsg)
	if err != nil {
		return nil, nil, err
	}
	if !appended {
		reply, err := s.replyAfter(ctx, jobID, in.ClientMessageID)
		if err != nil {
			return nil, nil, err
		}
		return &ChatResult{Reply: reply, Duplicate: true}, nil, nil
	}

	result := &ChatResult{}
	for step := 0; ; step++ {
		job, err := s.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, nil, err
		}

		tctx := &tasks.TaskContext{
			JobID:        jobID,
			Route:        in.Route,
			Stage:        in.Stage,
			Draft:        job.State,
			Conversation: job.Conversation,
		}
		if job.Refined != nil {
			tctx.RefinedDraft = job.Refined.Draft
		}

		runResult, fail := s.runner.Run(ctx, tasks.TaskCopilotAgent, tctx)
		if fail != nil {
			return nil, fail, nil
		}
		turn := runResult.Payload.(*tasks.CopilotResult)

		if turn.Type == "tool_call" {
			if step >= s.maxToolSteps {
				// Step budget exhausted: close the turn instead of looping.
				return s.closeTurn(ctx, jobID, result,
					"I could not finish gathering data for this request. Please try again with a narrower question.")
			}
			result.ToolSteps++
			toolOutput := s.executeTool(ctx, job, in.Route, turn.Tool, turn.Input)
			toolMsg := &models.ConversationMessage{
				ID:        common.NewMessageID(),
				Role:      models.RoleTool,
				Content:   toolOutput,
				CreatedAt: time.Now().UTC(),
			}
			if _, err := s.store.AppendCopilotMessage(ctx, jobID, toolMsg); err != nil {
				return nil, nil, err
			}
			continue
		}

		for _, action := range turn.Actions {
			if err := s.applyAction(ctx, jobID, action); err != nil {
				s.droppedActions.Add(1)
				s.logger.Warn().
					Str("job_id", jobID).
					Str("action", string(action.Type)).
					Err(err).
					Msg("Copilot action dropped")
				continue
			}
			result.AppliedActions = append(result.AppliedActions, action)
		}

		return s.closeTurn(ctx, jobID, result, turn.Message)
	}
}

// closeTurn appends the assistant reply and finishes the turn.
func (s *Service) closeTurn(ctx context.Context, jobID string, result *ChatResult, message string) (*ChatResult, *models.TaskFailure, error) {
	reply := &models.ConversationMessage{
		ID:        common.NewMessageID(),
		Role:      models.RoleAssistant,
		Content:   message,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.store.AppendCopilotMessage(ctx, jobID, reply); err != nil {
		return nil, nil, err
	}
	result.Reply = reply
	return result, nil, nil
}

// replyAfter finds the assistant message that followed the user message with
// the given clientMessageId.
func (s *Service) replyAfter(ctx context.Context, jobID, clientMessageID string) (*models.ConversationMessage, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, msg := range job.Conversation {
		if found && msg.Role == models.RoleAssistant {
			return msg, nil
		}
		if msg.Role == models.RoleUser && msg.Metadata != nil && msg.Metadata.ClientMessageID == clientMessageID {
			found = true
		}
	}
	return nil, nil
}

// toolError wraps a tool failure message as the JSON object fed back into
// the conversation.
func toolError(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}

// executeTool resolves a tool call against the job record. Tool failures are
// reported back into the conversation rather than failing the turn.
func (s *Service) executeTool(ctx context.Context, job *models.Job, route, tool string, _ map[string]interface{}) string {
	switch tool {
	case "get_job":
		snapshot := struct {
			ID           string           `json:"id"`
			Lifecycle    models.JobState  `json:"lifecycle"`
			Draft        *models.Draft    `json:"draft"`
			RefinedDraft *models.Draft    `json:"refined_draft,omitempty"`
			AssetRun     *models.AssetRun `json:"asset_run,omitempty"`
		}{
			ID:        job.ID,
			Lifecycle: job.Lifecycle(),
			Draft:     job.State,
			AssetRun:  job.AssetRun,
		}
		if job.Refined != nil {
			snapshot.RefinedDraft = job.Refined.Draft
		}
		b, err := json.Marshal(snapshot)
		if err != nil {
			return toolError(err.Error())
		}
		return string(b)

	case "get_channel_recommendations":
		if job.Channels == nil {
			return `{"recommendations": []}`
		}
		b, err := json.Marshal(job.Channels)
		if err != nil {
			return toolError(err.Error())
		}
		return string(b)

	case "refresh_channels":
		return s.refreshChannels(ctx, job, route)

	default:
		return toolError(fmt.Sprintf("unknown tool %q", tool))
	}
}

// refreshChannels re-runs the channel ranking task and persists the result,
// mirroring the recompute operation the UI triggers directly. The refreshed
// set (or the failure) is stored on the job and echoed into the conversation.
func (s *Service) refreshChannels(ctx context.Context, job *models.Job, route string) string {
	if job.Finalization == nil {
		return toolError("job is not finalized")
	}

	tctx := &tasks.TaskContext{
		JobID:             job.ID,
		Route:             route,
		Draft:             job.FinalDraft(),
		SupportedChannels: models.SupportedChannels,
	}
	result, fail := s.runner.Run(ctx, tasks.TaskChannels, tctx)
	if fail != nil {
		recs := &models.ChannelRecommendations{
			UpdatedAt: time.Now().UTC(),
			Failure:   fail,
		}
		if err := s.store.SetChannelRecommendations(ctx, job.ID, recs); err != nil {
			return toolError(err.Error())
		}
		return toolError("channel refresh failed: " + fail.Reason)
	}

	payload := result.Payload.(*tasks.ChannelsResult)
	recs := &models.ChannelRecommendations{
		Items:     payload.Recommendations,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.SetChannelRecommendations(ctx, job.ID, recs); err != nil {
		return toolError(err.Error())
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Int("channels", len(recs.Items)).
		Msg("Copilot refreshed channel recommendations")

	b, err := json.Marshal(recs)
	if err != nil {
		return toolError(err.Error())
	}
	return string(b)
}

// applyAction validates and applies one copilot action. Invalid payloads,
// unknown fields and unknown action types are all errors; the caller drops
// the action.
func (s *Service) applyAction(ctx context.Context, jobID string, action tasks.CopilotAction) error {
	switch action.Type {
	case tasks.ActionFieldUpdate:
		fieldID, value, err := fieldUpdatePayload(action.Payload)
		if err != nil {
			return err
		}
		return s.updateDraftFields(ctx, jobID, map[string]interface{}{fieldID: value})

	case tasks.ActionFieldBatchUpdate:
		fields, err := batchUpdatePayload(action.Payload)
		if err != nil {
			return err
		}
		return s.updateDraftFields(ctx, jobID, fields)

	case tasks.ActionRefinedFieldUpdate:
		fieldID, value, err := fieldUpdatePayload(action.Payload)
		if err != nil {
			return err
		}
		return s.updateRefinedFields(ctx, jobID, map[string]interface{}{fieldID: value})

	case tasks.ActionRefinedFieldBatchUpdate:
		fields, err := batchUpdatePayload(action.Payload)
		if err != nil {
			return err
		}
		return s.updateRefinedFields(ctx, jobID, fields)

	case tasks.ActionChannelRecsUpdate:
		return s.updateChannelRecommendations(ctx, jobID, action.Payload)

	case tasks.ActionAssetUpdate:
		return s.updateAsset(ctx, jobID, action.Payload)

	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

func fieldUpdatePayload(payload map[string]interface{}) (string, interface{}, error) {
	if payload == nil {
		return "", nil, fmt.Errorf("missing payload")
	}
	fieldID, _ := payload["field_id"].(string)
	if !models.IsDraftField(fieldID) {
		return "", nil, fmt.Errorf("unknown field %q", fieldID)
	}
	value, ok := payload["value"]
	if !ok {
		return "", nil, fmt.Errorf("missing value for field %q", fieldID)
	}
	return fieldID, value, nil
}

func batchUpdatePayload(payload map[string]interface{}) (map[string]interface{}, error) {
	if payload == nil {
		return nil, fmt.Errorf("missing payload")
	}
	fields, ok := payload["fields"].(map[string]interface{})
	if !ok || len(fields) == 0 {
		return nil, fmt.Errorf("missing fields object")
	}
	for fieldID := range fields {
		if !models.IsDraftField(fieldID) {
			return nil, fmt.Errorf("unknown field %q", fieldID)
		}
	}
	return fields, nil
}

func (s *Service) updateDraftFields(ctx context.Context, jobID string, fields map[string]interface{}) error {
	patch := &models.Draft{}
	for fieldID, value := range fields {
		if err := patch.SetField(fieldID, value); err != nil {
			return err
		}
	}
	_, err := s.store.PutDraft(ctx, jobID, patch)
	return err
}

func (s *Service) updateRefinedFields(ctx context.Context, jobID string, fields map[string]interface{}) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Refined == nil || job.Refined.Draft == nil {
		return fmt.Errorf("job has no refined draft")
	}

	draft := job.Refined.Draft.Clone()
	for fieldID, value := range fields {
		if err := draft.SetField(fieldID, value); err != nil {
			return err
		}
	}
	ref := *job.Refined
	ref.Draft = draft
	return s.store.PutRefinement(ctx, jobID, &ref)
}

func (s *Service) updateChannelRecommendations(ctx context.Context, jobID string, payload map[string]interface{}) error {
	if payload == nil {
		return fmt.Errorf("missing payload")
	}
	raw, ok := payload["channels"].([]interface{})
	if !ok || len(raw) == 0 {
		return fmt.Errorf("missing channels array")
	}

	var items []models.ChannelRecommendation
	for _, item := range raw {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := entry["channel"].(string)
		channel := models.NormalizeChannel(name, models.SupportedChannels)
		if channel == "" {
			return fmt.Errorf("%w: %q", interfaces.ErrUnknownChannel, name)
		}
		reason, _ := entry["reason"].(string)
		items = append(items, models.ChannelRecommendation{Channel: channel, Reason: reason})
	}
	if len(items) == 0 {
		return fmt.Errorf("no valid channel entries")
	}

	return s.store.SetChannelRecommendations(ctx, jobID, &models.ChannelRecommendations{
		Items:     items,
		UpdatedAt: time.Now().UTC(),
	})
}

func (s *Service) updateAsset(ctx context.Context, jobID string, payload map[string]interface{}) error {
	if payload == nil {
		return fmt.Errorf("missing payload")
	}
	assetID, _ := payload["asset_id"].(string)
	content, _ := payload["content"].(string)
	if assetID == "" || content == "" {
		return fmt.Errorf("asset_update requires asset_id and content")
	}
	return s.store.UpsertAsset(ctx, jobID, assetID, &interfaces.AssetPatch{Content: &content})
}
