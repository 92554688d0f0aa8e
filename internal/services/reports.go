package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ansyar-project/split-the-bill/internal/events"
	"github.com/ansyar-project/split-the-bill/internal/ledger"
	"github.com/ansyar-project/split-the-bill/internal/models"
	"github.com/ansyar-project/split-the-bill/internal/report"
	"github.com/ansyar-project/split-the-bill/internal/storage"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type MonthlyReport struct {
	Group     models.Group                  `json:"group"`
	Month     int                           `json:"month"`
	Year      int                           `json:"year"`
	Members   []MemberView                  `json:"members"`
	Expenses  []models.Expense              `json:"expenses"`
	Balances  map[uuid.UUID]decimal.Decimal `json:"balances"`
	Total     decimal.Decimal               `json:"total"`
	Transfers []ledger.Transfer             `json:"transfers"`
}

// PDFReport is a rendered report. ArchiveKey is set when a copy was stored and
// ArchiveURL when a download link for that copy could be signed.
type PDFReport struct {
	Data       []byte
	ArchiveKey string
	ArchiveURL string
}

const defaultLinkTTL = 15 * time.Minute

type ReportService struct {
	DB       *gorm.DB
	Auth     *Authorizer
	Audit    *AuditService
	Renderer report.Renderer
	Archive  storage.ReportArchive
	LinkTTL  time.Duration
	Now      func() time.Time
}

func NewReportService(db *gorm.DB, auth *Authorizer, audit *AuditService, renderer report.Renderer, archive storage.ReportArchive) *ReportService {
	return &ReportService{DB: db, Auth: auth, Audit: audit, Renderer: renderer, Archive: archive, LinkTTL: defaultLinkTTL, Now: time.Now}
}

// Monthly computes member balances from the expenses created in the given UTC
// month. It returns nil for an unknown group.
func (s *ReportService) Monthly(ctx context.Context, actor *models.User, groupID uuid.UUID, month, year int) (*MonthlyReport, error) {
	if actor == nil {
		return nil, unauthorized()
	}

	from, to, err := monthWindow(month, year)
	if err != nil {
		return nil, err
	}

	group, err := s.findGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, nil
	}
	if _, err := s.Auth.RequireMember(ctx, actor, groupID); err != nil {
		return nil, err
	}

	memberships, expenses, err := s.loadLedger(ctx, groupID, &from, &to)
	if err != nil {
		return nil, err
	}

	balances := ledger.Compute(memberIDs(memberships), toLedger(expenses))
	members := make([]MemberView, 0, len(memberships))
	for _, m := range memberships {
		members = append(members, memberView(m))
	}

	return &MonthlyReport{
		Group:     *group,
		Month:     month,
		Year:      year,
		Members:   members,
		Expenses:  expenses,
		Balances:  balances,
		Total:     balances.Total(),
		Transfers: ledger.Settle(balances),
	}, nil
}

// PDF renders a report for one month, or for all time when month and year
// are both nil.
func (s *ReportService) PDF(ctx context.Context, actor *models.User, groupID uuid.UUID, month, year *int) (*PDFReport, error) {
	if actor == nil {
		return nil, unauthorized()
	}
	if (month == nil) != (year == nil) {
		return nil, validationError("Month and year must be provided together")
	}

	var from, to *time.Time
	period := "All time"
	if month != nil {
		start, end, err := monthWindow(*month, *year)
		if err != nil {
			return nil, err
		}
		from, to = &start, &end
		period = start.Format("January 2006")
	}

	group, err := s.findGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, notFound("Group not found")
	}
	if _, err := s.Auth.RequireMember(ctx, actor, groupID); err != nil {
		return nil, err
	}

	memberships, expenses, err := s.loadLedger(ctx, groupID, from, to)
	if err != nil {
		return nil, err
	}
	balances := ledger.Compute(memberIDs(memberships), toLedger(expenses))

	now := s.Now().UTC()
	doc := report.Document{
		GroupName:   group.Name,
		Period:      period,
		GeneratedAt: now,
		Balances:    balances,
	}
	for _, m := range memberships {
		view := memberView(m)
		doc.Members = append(doc.Members, report.Member{ID: view.ID, Name: view.Name, Email: view.Email, Role: string(view.Role)})
	}
	for _, e := range expenses {
		line := report.Line{Date: e.CreatedAt, Title: e.Title, Amount: e.Amount}
		if e.PaidBy != nil {
			line.PaidBy = e.PaidBy.Name
		}
		doc.Expenses = append(doc.Expenses, line)
	}

	data, err := s.Renderer.Render(doc)
	if err != nil {
		logger.ErrorWithUser(actor.ID.String(), "report_render_failed", err, map[string]interface{}{
			"group_id": groupID.String(),
		})
		return nil, internal("Failed to render report", err)
	}

	result := &PDFReport{Data: data}
	if s.Archive != nil {
		m, y := 0, 0
		if month != nil {
			m, y = *month, *year
		}
		key := storage.ReportKey(groupID, m, y, now)
		if err := s.Archive.StoreReport(ctx, key, data); err != nil {
			// The caller still gets the document.
			logger.WarnWithUser(actor.ID.String(), "report_archive_failed", map[string]interface{}{
				"group_id": groupID.String(),
				"error":    err.Error(),
			})
		} else {
			result.ArchiveKey = key
			result.ArchiveURL = s.archiveLink(ctx, actor, key)
		}
	}

	s.Audit.Record(ctx, AuditEntry{
		UserID:       actorRef(actor),
		GroupID:      ref(groupID),
		Action:       events.ReportGenerated,
		ResourceType: "report",
		Details: map[string]interface{}{
			"period":      period,
			"expenses":    len(expenses),
			"archive_key": result.ArchiveKey,
		},
	})
	return result, nil
}

// archiveLink signs a download link for an archived report. A signing failure
// only costs the caller the link.
func (s *ReportService) archiveLink(ctx context.Context, actor *models.User, key string) string {
	ttl := s.LinkTTL
	if ttl <= 0 {
		ttl = defaultLinkTTL
	}
	link, err := s.Archive.PresignedReportURL(ctx, key, ttl)
	if err != nil {
		logger.WarnWithUser(actor.ID.String(), "report_archive_link_failed", map[string]interface{}{
			"archive_key": key,
			"error":       err.Error(),
		})
		return ""
	}
	return link
}

func (s *ReportService) findGroup(ctx context.Context, groupID uuid.UUID) (*models.Group, error) {
	var group models.Group
	if err := s.DB.WithContext(ctx).First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, internal("Failed to load group", err)
	}
	return &group, nil
}

// loadLedger fetches members and expenses concurrently.
func (s *ReportService) loadLedger(ctx context.Context, groupID uuid.UUID, from, to *time.Time) ([]models.Membership, []models.Expense, error) {
	var (
		memberships []models.Membership
		expenses    []models.Expense
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		memberships, err = loadMemberships(gctx, s.DB, groupID)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = loadExpenses(gctx, s.DB, groupID, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return memberships, expenses, nil
}

func monthWindow(month, year int) (time.Time, time.Time, error) {
	from, to, err := ledger.MonthWindow(month, year)
	switch {
	case errors.Is(err, ledger.ErrInvalidMonth):
		return from, to, validationError("Month must be between 1 and 12")
	case errors.Is(err, ledger.ErrInvalidYear):
		return from, to, validationError("Year must be 1970 or later")
	case err != nil:
		return from, to, internal("Invalid report period", fmt.Errorf("month window: %w", err))
	}
	return from, to, nil
}

func memberIDs(memberships []models.Membership) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.UserID)
	}
	return ids
}
