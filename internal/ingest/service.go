// Package ingest is the single entry point for node-reported events. The
// HTTP endpoint and the MQTT subscriber both feed it, so normalization,
// validation, heartbeats and fusion triggering behave identically no matter
// how an event arrives.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/condosec/condowatch/internal/conf"
	"github.com/condosec/condowatch/internal/datastore/entities"
	"github.com/condosec/condowatch/internal/datastore/repository"
	"github.com/condosec/condowatch/internal/errors"
	"github.com/condosec/condowatch/internal/logger"
	"github.com/condosec/condowatch/internal/observability"
)

// Request is one node report. Only node and event are required.
type Request struct {
	Node  string     `json:"node"`
	Event string     `json:"event"`
	Room  string     `json:"room,omitempty"`
	Value *float64   `json:"value,omitempty"`
	Unit  string     `json:"unit,omitempty"`
	TS    *time.Time `json:"ts,omitempty"`
	Note  string     `json:"note,omitempty"`
}

// Response echoes the normalized report. AlertID is set when the event
// completed a fusion rule.
type Response struct {
	OK      bool   `json:"ok"`
	Node    string `json:"node"`
	Event   string `json:"event"`
	Room    string `json:"room"`
	AlertID *uint  `json:"alert_id"`
}

// FusionHook is the slice of the fusion engine ingestion needs.
type FusionHook interface {
	HandleFireSignal(ctx context.Context, ts time.Time, room string) (uint, error)
	HandleIntruderEvidence(ctx context.Context, ts time.Time) (uint, error)
}

// Service normalizes and persists node reports.
type Service struct {
	events  repository.EventRepository
	nodes   repository.NodeRepository
	fusion  FusionHook
	log     logger.Logger
	metrics *observability.Metrics
	nowFn   func() time.Time
}

func NewService(
	events repository.EventRepository,
	nodes repository.NodeRepository,
	fusion FusionHook,
	log logger.Logger,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		events:  events,
		nodes:   nodes,
		fusion:  fusion,
		log:     log,
		metrics: metrics,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// Ingest validates and stores one report, upserts the node heartbeat, and
// runs whichever fusion family the event type can complete.
func (s *Service) Ingest(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Node) == "" {
		return Response{}, errors.ValidationError("node is required")
	}
	if strings.TrimSpace(req.Event) == "" {
		return Response{}, errors.ValidationError("event is required")
	}

	nodeID := conf.NormalizeNodeID(req.Node)
	if nodeID == "" {
		return Response{}, errors.ValidationError("node id %q normalizes to nothing", req.Node)
	}
	eventType := strings.ToUpper(strings.TrimSpace(req.Event))

	meta := conf.GetNodeMeta(nodeID)
	room := strings.TrimSpace(req.Room)
	if room == "" {
		room = meta.Room
	}

	ts := s.nowFn()
	if req.TS != nil && !req.TS.IsZero() {
		ts = req.TS.UTC()
	}

	event := &entities.Event{
		Type:      eventType,
		Source:    eventSource(nodeID, meta),
		Room:      room,
		Details:   composeDetails(req),
		Timestamp: ts,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return Response{}, err
	}
	s.metrics.EventsTotal.WithLabelValues(eventType).Inc()

	if err := s.nodes.UpsertSeen(ctx, nodeID, "ingest", ts); err != nil {
		// A lost heartbeat must not fail an accepted event.
		s.log.Warn("heartbeat upsert failed", logger.String("node", nodeID), logger.Error(err))
	}

	resp := Response{OK: true, Node: nodeID, Event: eventType, Room: room}

	alertID, err := s.triggerFusion(ctx, eventType, room, ts)
	if err != nil {
		s.log.Error("fusion after ingest failed",
			logger.String("event", eventType),
			logger.Error(err))
	} else if alertID != 0 {
		resp.AlertID = &alertID
		s.log.Warn("ingested event completed a fusion rule",
			logger.String("event", eventType),
			logger.Uint64("alert_id", uint64(alertID)))
	}
	return resp, nil
}

// triggerFusion maps event types to the rule family they can complete.
func (s *Service) triggerFusion(ctx context.Context, eventType, room string, ts time.Time) (uint, error) {
	switch eventType {
	case entities.EventSmokeHigh, entities.EventFlameSignal:
		return s.fusion.HandleFireSignal(ctx, ts, room)
	case entities.EventDoorForce, entities.EventUnknown:
		return s.fusion.HandleIntruderEvidence(ctx, ts)
	}
	return 0, nil
}

// eventSource labels camera-node events with the camera source constants so
// fusion sees ingested and loop-detected sightings the same way.
func eventSource(nodeID string, meta conf.NodeMeta) string {
	switch meta.Role {
	case "indoor":
		return entities.SourceCamIndoor
	case "outdoor":
		return entities.SourceCamOutdoor
	}
	return nodeID
}

func composeDetails(req Request) string {
	var parts []string
	if req.Value != nil {
		value := fmt.Sprintf("value=%g", *req.Value)
		if unit := strings.TrimSpace(req.Unit); unit != "" {
			value += " " + unit
		}
		parts = append(parts, value)
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		parts = append(parts, note)
	}
	return strings.Join(parts, " ")
}
