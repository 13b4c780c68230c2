package boards

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/async"
	"github.com/platinummonkey/sprintflow/pkg/audit"
	"github.com/platinummonkey/sprintflow/pkg/observability"
)

// DefaultMaxRetries is how many times a mutation is re-applied after losing
// a compare-and-swap race
const DefaultMaxRetries = 5

// sideEffectTimeout bounds each background emit or publish
const sideEffectTimeout = 5 * time.Second

// StatusUpdater sets an issue's status after a move
type StatusUpdater interface {
	SetStatus(ctx context.Context, issueID, status string) error
}

// Broadcaster pushes events to realtime rooms
type Broadcaster interface {
	Emit(room, event string, payload interface{})
}

// ProjectValidator rejects unknown project ids
type ProjectValidator interface {
	ValidateProject(ctx context.Context, projectID string) error
}

// Publisher delivers domain events to outbound webhooks
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// Service implements board CRUD and the drag-and-drop operations
type Service struct {
	repo        Repository
	issues      StatusUpdater
	projects    ProjectValidator
	auditLogger audit.Logger
	broadcaster Broadcaster
	publisher   Publisher
	metrics     *observability.Metrics
	maxRetries  int
}

// Option configures a Service
type Option func(*Service)

// WithStatusUpdater keeps issue status in sync with moves
func WithStatusUpdater(u StatusUpdater) Option {
	return func(s *Service) { s.issues = u }
}

// WithProjects checks project_id when a board is created
func WithProjects(p ProjectValidator) Option {
	return func(s *Service) { s.projects = p }
}

// WithAuditLogger records board mutations
func WithAuditLogger(l audit.Logger) Option {
	return func(s *Service) { s.auditLogger = l }
}

// WithBroadcaster emits realtime board events
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) { s.broadcaster = b }
}

// WithPublisher forwards board events to webhooks
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics counts mutations and conflicts
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMaxRetries sets the compare-and-swap retry budget
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// NewService creates a board service
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		auditLogger: audit.NoOpLogger{},
		maxRetries:  DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observability.NewNopMetrics()
	}
	return s
}

// CreateBoard creates a board with an optional initial layout
func (s *Service) CreateBoard(ctx context.Context, in CreateBoardInput) (*Board, error) {
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.Name = strings.TrimSpace(in.Name)
	if in.ProjectID == "" || in.Name == "" {
		return nil, apperr.BadRequest("project_id and name required")
	}

	switch in.Type {
	case "":
		in.Type = BoardTypeScrum
	case BoardTypeScrum, BoardTypeKanban:
	default:
		return nil, apperr.BadRequest("invalid board type: %s", in.Type)
	}
	if s.projects != nil {
		if err := s.projects.ValidateProject(ctx, in.ProjectID); err != nil {
			return nil, err
		}
	}

	doc := NewPositionDocument()
	if in.Config != nil {
		doc = in.Config.Clone()
		for i := range doc.Columns {
			if doc.Columns[i].ID == "" {
				doc.Columns[i].ID = uuid.NewString()
			}
		}
	}

	board := &Board{
		ProjectID: in.ProjectID,
		Name:      in.Name,
		Type:      in.Type,
		Config:    doc,
	}
	if err := s.repo.CreateBoard(ctx, board); err != nil {
		return nil, err
	}

	s.record(ctx, audit.EventTypeBoardCreate, board.ID, map[string]interface{}{
		"project_id": board.ProjectID,
		"type":       string(board.Type),
	})
	s.emit(ctx, board.ID, EventBoardCreated, board)
	s.publish(ctx, "board.created", board)
	return board, nil
}

// GetBoard returns a board by id
func (s *Service) GetBoard(ctx context.Context, id string) (*Board, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.BadRequest("board_id required")
	}
	return s.repo.GetBoard(ctx, id)
}

// ListBoards lists boards, optionally for one project
func (s *Service) ListBoards(ctx context.Context, projectID string) ([]*Board, error) {
	return s.repo.ListBoards(ctx, projectID)
}

// ListColumns returns the board's columns in display order
func (s *Service) ListColumns(ctx context.Context, boardID string) ([]Column, error) {
	board, err := s.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return board.Config.SortedColumns(), nil
}

// CreateColumn adds a column. A nil order places it last.
func (s *Service) CreateColumn(ctx context.Context, boardID, name string, order *int) (Column, error) {
	name = strings.TrimSpace(name)
	if boardID == "" || name == "" {
		return Column{}, apperr.BadRequest("board_id and name required")
	}

	var created Column
	board, err := s.mutate(ctx, "column_create", boardID, func(doc *PositionDocument) error {
		created = doc.AddColumn(uuid.NewString(), name, order)
		return nil
	})
	if err != nil {
		return Column{}, err
	}

	s.record(ctx, audit.EventTypeBoardColumnCreate, boardID, map[string]interface{}{
		"column_id": created.ID,
		"name":      created.Name,
	})
	s.emitColumns(ctx, board)
	return created, nil
}

// ReorderColumns applies new orders to existing columns, all or nothing
func (s *Service) ReorderColumns(ctx context.Context, boardID string, orders []ColumnOrder) ([]Column, error) {
	if boardID == "" || orders == nil {
		return nil, apperr.BadRequest("board_id and columns required")
	}

	board, err := s.mutate(ctx, "column_reorder", boardID, func(doc *PositionDocument) error {
		return doc.ApplyColumnOrder(orders)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.EventTypeBoardColumnReorder, boardID, map[string]interface{}{
		"count": len(board.Config.Columns),
	})
	s.emitColumns(ctx, board)
	return board.Config.SortedColumns(), nil
}

// DeleteColumn removes a column. Issues placed in it become unplaced.
func (s *Service) DeleteColumn(ctx context.Context, boardID, columnID string) error {
	if boardID == "" || columnID == "" {
		return apperr.BadRequest("board_id and column_id required")
	}

	board, err := s.mutate(ctx, "column_delete", boardID, func(doc *PositionDocument) error {
		doc.RemoveColumn(columnID)
		return nil
	})
	if err != nil {
		return err
	}

	s.record(ctx, audit.EventTypeBoardColumnDelete, boardID, map[string]interface{}{
		"column_id": columnID,
	})
	s.emitColumns(ctx, board)
	return nil
}

// MoveIssue places an issue in a column at a position and syncs its status
// to the column name. The issue leaves whichever column holds it, so the
// result's FromColumnID is the column it was actually taken from.
func (s *Service) MoveIssue(ctx context.Context, in MoveIssueInput) (*MoveResult, error) {
	if in.BoardID == "" || in.IssueID == "" || in.ToColumnID == "" {
		return nil, apperr.BadRequest("board_id, issue_id and to_column_id required")
	}

	var position int
	var dest Column
	var source string
	board, err := s.mutate(ctx, "move", in.BoardID, func(doc *PositionDocument) error {
		col, ok := doc.Column(in.ToColumnID)
		if !ok {
			return apperr.BadRequest("Unknown column id: %s", in.ToColumnID)
		}
		dest = col
		source, _ = doc.ColumnOf(in.IssueID)
		position = doc.MoveIssue(in.IssueID, in.ToColumnID, in.Position)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &MoveResult{
		BoardID:      board.ID,
		IssueID:      in.IssueID,
		FromColumnID: source,
		ToColumnID:   in.ToColumnID,
		Position:     position,
	}
	if source != in.FromColumnID && in.FromColumnID != "" {
		observability.FromContext(ctx).WithFields(map[string]interface{}{
			"issue_id":  in.IssueID,
			"requested": in.FromColumnID,
			"actual":    source,
		}).Debug("move source differs from the issue's column")
	}

	if dest.Name != "" && s.issues != nil {
		result.Status = StatusForColumn(dest.Name)
		if err := s.issues.SetStatus(ctx, in.IssueID, result.Status); err != nil {
			return nil, err
		}
	}

	s.record(ctx, audit.EventTypeBoardDnDMove, board.ID, map[string]interface{}{
		"issue_id":       in.IssueID,
		"from_column_id": source,
		"to_column_id":   in.ToColumnID,
		"position":       position,
	})
	s.emit(ctx, board.ID, EventIssueMoved, result)
	s.publish(ctx, "board.issue_moved", result)
	return result, nil
}

// ReorderIssue moves an issue to a position within one column
func (s *Service) ReorderIssue(ctx context.Context, in ReorderIssueInput) (*MoveResult, error) {
	if in.BoardID == "" || in.ColumnID == "" || in.IssueID == "" || in.Position == nil {
		return nil, apperr.BadRequest("board_id, column_id, issue_id and numeric position required")
	}

	var position int
	board, err := s.mutate(ctx, "reorder", in.BoardID, func(doc *PositionDocument) error {
		if _, ok := doc.Column(in.ColumnID); !ok {
			return apperr.BadRequest("Unknown column id: %s", in.ColumnID)
		}
		var err error
		position, err = doc.ReorderIssue(in.ColumnID, in.IssueID, *in.Position)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &MoveResult{
		BoardID:    board.ID,
		IssueID:    in.IssueID,
		ToColumnID: in.ColumnID,
		Position:   position,
	}

	s.record(ctx, audit.EventTypeBoardDnDReorder, board.ID, map[string]interface{}{
		"issue_id":  in.IssueID,
		"column_id": in.ColumnID,
		"position":  position,
	})
	s.emit(ctx, board.ID, EventIssueReordered, map[string]interface{}{
		"board_id":  board.ID,
		"column_id": in.ColumnID,
		"issue_id":  in.IssueID,
		"position":  position,
	})
	return result, nil
}

// mutate runs read, apply, compare-and-swap. A lost race re-applies fn to a
// fresh read until the retry budget runs out. Errors from fn are returned
// without retrying.
func (s *Service) mutate(ctx context.Context, op, boardID string, fn func(doc *PositionDocument) error) (*Board, error) {
	logger := observability.FromContext(ctx).WithFields(map[string]interface{}{
		"board_id":  boardID,
		"operation": op,
	})

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		board, err := s.repo.GetBoard(ctx, boardID)
		if err != nil {
			s.metrics.BoardMutationsTotal.WithLabelValues(op, "error").Inc()
			return nil, err
		}

		doc := board.Config.Clone()
		if err := fn(&doc); err != nil {
			s.metrics.BoardMutationsTotal.WithLabelValues(op, "rejected").Inc()
			return nil, err
		}

		swapped, err := s.repo.CompareAndSwap(ctx, board.ID, board.Version, doc)
		if err != nil {
			s.metrics.BoardMutationsTotal.WithLabelValues(op, "error").Inc()
			return nil, err
		}
		if swapped {
			board.Config = doc
			board.Version++
			s.metrics.BoardMutationsTotal.WithLabelValues(op, "success").Inc()
			return board, nil
		}

		s.metrics.BoardConflictsTotal.WithLabelValues(op).Inc()
		logger.WithField("attempt", attempt+1).Debug("board version conflict, retrying")
	}

	s.metrics.BoardMutationsTotal.WithLabelValues(op, "conflict").Inc()
	logger.Warn("board update abandoned after repeated version conflicts")
	return nil, apperr.Conflict("board %s was modified concurrently, retry the request", boardID)
}

func (s *Service) record(ctx context.Context, eventType audit.EventType, boardID string, metadata map[string]interface{}) {
	event := audit.NewEvent(ctx, eventType, audit.EventStatusSuccess)
	event.ResourceType = audit.ResourceTypeBoard
	event.ResourceID = boardID
	for k, v := range metadata {
		event.Metadata[k] = v
	}
	audit.Record(ctx, s.auditLogger, event)
}

func (s *Service) emitColumns(ctx context.Context, board *Board) {
	s.emit(ctx, board.ID, EventColumnsUpdated, map[string]interface{}{
		"board_id": board.ID,
		"columns":  board.Config.SortedColumns(),
	})
}

func (s *Service) emit(ctx context.Context, boardID, event string, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	async.SafeGoNoError(ctx, sideEffectTimeout, "realtime "+event, func(ctx context.Context) {
		s.broadcaster.Emit(Room(boardID), event, payload)
	})
}

func (s *Service) publish(ctx context.Context, eventType string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	async.SafeGo(ctx, sideEffectTimeout, "webhook "+eventType, func(ctx context.Context) error {
		return s.publisher.Publish(ctx, eventType, payload)
	})
}
