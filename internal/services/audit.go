package services

import (
	"context"
	"sync"
	"time"

	"github.com/ansyar-project/split-the-bill/internal/events"
	"github.com/ansyar-project/split-the-bill/internal/models"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/ansyar-project/split-the-bill/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditEntry struct {
	UserID       *uuid.UUID
	GroupID      *uuid.UUID
	Action       events.Type
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]interface{}
}

// AuditService persists audit rows and forwards each one to the event
// publisher. Writes happen on a background goroutine so request latency does
// not depend on the broker.
type AuditService struct {
	DB        *gorm.DB
	Publisher events.Publisher
	Auth      *Authorizer

	queue  chan models.AuditLog
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAuditService(db *gorm.DB, publisher events.Publisher, queueSize int) *AuditService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if queueSize <= 0 {
		queueSize = 1000
	}

	s := &AuditService{
		DB:        db,
		Publisher: publisher,
		Auth:      NewAuthorizer(db),
		queue:     make(chan models.AuditLog, queueSize),
		done:      make(chan struct{}),
	}
	go s.processQueue()
	return s
}

// Record enqueues entry. It never blocks; entries are dropped with a warning
// when the queue is full. A nil service records nothing.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	if s == nil {
		return
	}

	meta := requestMetaFrom(ctx)
	row := models.AuditLog{
		ID:           uuid.New(),
		UserID:       entry.UserID,
		GroupID:      entry.GroupID,
		Action:       string(entry.Action),
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		IPAddress:    meta.IPAddress,
		RequestID:    meta.RequestID,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.queue <- row:
	default:
		logger.Warn("audit_queue_full", map[string]interface{}{
			"action":  row.Action,
			"dropped": true,
		})
	}
}

// Close stops accepting entries and waits until the queue is drained.
func (s *AuditService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
}

func (s *AuditService) processQueue() {
	defer close(s.done)

	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("audit_log_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
			continue
		}
		s.publish(row)
	}
}

func (s *AuditService) publish(row models.AuditLog) {
	event := events.Event{
		ID:         row.ID,
		Type:       events.Type(row.Action),
		GroupID:    row.GroupID,
		ActorID:    row.UserID,
		ResourceID: row.ResourceID,
		Data:       row.Details,
		OccurredAt: row.CreatedAt,
	}

	if err := s.Publisher.Publish(context.Background(), event); err != nil {
		logger.Error("event_publish_failed", err, map[string]interface{}{
			"action":   row.Action,
			"event_id": row.ID.String(),
		})
	}
}

const exportLimit = 10000

// GroupActivity lists audit rows of a group, newest first. Members only.
func (s *AuditService) GroupActivity(ctx context.Context, actor *models.User, groupID uuid.UUID, page utils.PaginationParams) ([]models.AuditLog, int64, error) {
	if _, err := s.Auth.RequireMember(ctx, actor, groupID); err != nil {
		return nil, 0, err
	}

	query := s.DB.WithContext(ctx).Model(&models.AuditLog{}).Where("group_id = ?", groupID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, internal("Failed to load activity", err)
	}

	var rows []models.AuditLog
	if err := query.Order("created_at DESC").Scopes(page.Scope).Find(&rows).Error; err != nil {
		return nil, 0, internal("Failed to load activity", err)
	}
	return rows, total, nil
}

// ExportGroupActivity returns up to exportLimit audit rows of a group, newest
// first. Members only.
func (s *AuditService) ExportGroupActivity(ctx context.Context, actor *models.User, groupID uuid.UUID) ([]models.AuditLog, error) {
	if _, err := s.Auth.RequireMember(ctx, actor, groupID); err != nil {
		return nil, err
	}

	var rows []models.AuditLog
	if err := s.DB.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Limit(exportLimit).
		Find(&rows).Error; err != nil {
		return nil, internal("Failed to load activity", err)
	}
	return rows, nil
}

func actorRef(actor *models.User) *uuid.UUID {
	if actor == nil || actor.ID == uuid.Nil {
		return nil
	}
	id := actor.ID
	return &id
}

func ref(id uuid.UUID) *uuid.UUID {
	return &id
}
