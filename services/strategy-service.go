package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"collections-backend/model"
	"collections-backend/strategy"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type StrategyService struct {
	DB *gorm.DB
	AI *strategy.Client
}

func (s *StrategyService) ownerQuery(ownerID uint, ownerType string) *gorm.DB {
	if ownerType == model.OwnerTypeGroup {
		return s.DB.Where("group_id = ?", ownerID)
	}
	return s.DB.Where("user_id = ?", ownerID)
}

// GetLatestForOwner returns the owner's strategy, or nil when none exists.
// Create-or-update semantics mean at most one row per owner in practice.
func (s *StrategyService) GetLatestForOwner(ownerID uint, ownerType string) (*model.Strategy, error) {
	var st model.Strategy
	err := s.ownerQuery(ownerID, ownerType).Order("created_at DESC").First(&st).Error
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// CreateOrUpdateForOwner replaces the owner's existing strategy row in place
// or inserts the first one. Prior timelines are intentionally discarded; the
// system keeps no strategy history.
func (s *StrategyService) CreateOrUpdateForOwner(ownerID uint, ownerType string, timeline []strategy.TimelineColumn, prompt *string) (*model.Strategy, error) {
	blob, err := marshalTimeline(timeline)
	if err != nil {
		return nil, err
	}

	existing, err := s.GetLatestForOwner(ownerID, ownerType)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		err = s.DB.Model(&model.Strategy{}).Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"timeline": blob,
				"prompt":   prompt,
			}).Error
		if err != nil {
			return nil, err
		}
		existing.Timeline = blob
		existing.Prompt = prompt
		return existing, nil
	}

	st := &model.Strategy{Timeline: blob, Prompt: prompt}
	if ownerType == model.OwnerTypeGroup {
		st.GroupID = &ownerID
	} else {
		st.UserID = &ownerID
	}
	if err := s.DB.Create(st).Error; err != nil {
		return nil, err
	}
	return st, nil
}

// MarkExecuted is one-way and idempotent; re-executing an executed strategy
// simply re-confirms it.
func (s *StrategyService) MarkExecuted(st *model.Strategy) error {
	if err := s.DB.Model(&model.Strategy{}).Where("id = ?", st.ID).Update("executed", true).Error; err != nil {
		return err
	}
	st.Executed = true
	return nil
}

// BuildTimeline produces the owner's timeline: the planner model's output
// when it is configured, reachable, and structurally valid, otherwise the
// deterministic escalation template. Always returns an enriched, well-formed
// timeline.
func (s *StrategyService) BuildTimeline(ctx context.Context, rawDetails map[string]any, d model.Details, prompt string) []strategy.TimelineColumn {
	if s.AI != nil {
		generated, err := s.AI.GenerateTimeline(ctx, rawDetails, prompt)
		if err == nil {
			prepared, perr := strategy.PrepareTimeline(generated, d)
			if perr == nil {
				return prepared
			}
			log.Printf("planner timeline failed validation, using fallback: %v", perr)
		} else {
			log.Printf("planner unavailable, using fallback: %v", err)
		}
	}
	return strategy.FallbackTimeline(d)
}

// BuildBlockContent produces message copy for one action block, falling back
// to the deterministic tone template on any completion failure.
func (s *StrategyService) BuildBlockContent(ctx context.Context, d model.Details, b strategy.Block, prompt string) string {
	if s.AI != nil {
		content, err := s.AI.GenerateBlockContent(ctx, d, b, prompt)
		if err == nil && content != "" {
			return content
		}
		if err != nil {
			log.Printf("copywriter unavailable, using template: %v", err)
		}
	}
	return strategy.DefaultActionContent(d, b, prompt)
}

// UserStatusAfterExecution: ongoing while money is still owed, else finished.
func UserStatusAfterExecution(d model.Details) string {
	if d.AmountOwed != nil && *d.AmountOwed > 0 {
		return model.StatusOngoing
	}
	return model.StatusFinished
}

// GroupStatusAfterExecution: ongoing while any member still owes.
func GroupStatusAfterExecution(members []model.User) string {
	for _, u := range members {
		d := model.ParseDetails(u.Details)
		if d.AmountOwed != nil && *d.AmountOwed > 0 {
			return model.StatusOngoing
		}
	}
	return model.StatusFinished
}

// DecodeTimeline reads a stored timeline blob back into columns.
func DecodeTimeline(blob datatypes.JSON) ([]strategy.TimelineColumn, error) {
	var timeline []strategy.TimelineColumn
	if len(blob) == 0 {
		return timeline, nil
	}
	if err := json.Unmarshal(blob, &timeline); err != nil {
		return nil, fmt.Errorf("stored timeline is unreadable: %w", err)
	}
	return timeline, nil
}

func marshalTimeline(timeline []strategy.TimelineColumn) (datatypes.JSON, error) {
	if timeline == nil {
		timeline = []strategy.TimelineColumn{}
	}
	out, err := json.Marshal(timeline)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}
