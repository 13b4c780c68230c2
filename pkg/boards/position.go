package boards

import (
	"regexp"
	"sort"
	"strings"

	"github.com/platinummonkey/sprintflow/pkg/apperr"
)

// Column is a board column
type Column struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// ColumnOrder assigns a new order to an existing column
type ColumnOrder struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

// PositionDocument is the per-board layout: the columns and the ordered issue
// ids placed in each of them. An issue id appears in at most one column.
type PositionDocument struct {
	Columns        []Column            `json:"columns"`
	IssuePositions map[string][]string `json:"issuePositions"`
}

// NewPositionDocument returns an empty document
func NewPositionDocument() PositionDocument {
	return PositionDocument{
		Columns:        []Column{},
		IssuePositions: map[string][]string{},
	}
}

// Normalize replaces nil collections with empty ones
func (d *PositionDocument) Normalize() {
	if d.Columns == nil {
		d.Columns = []Column{}
	}
	if d.IssuePositions == nil {
		d.IssuePositions = map[string][]string{}
	}
}

// Clone returns a deep copy
func (d PositionDocument) Clone() PositionDocument {
	out := PositionDocument{
		Columns:        make([]Column, len(d.Columns)),
		IssuePositions: make(map[string][]string, len(d.IssuePositions)),
	}
	copy(out.Columns, d.Columns)
	for col, ids := range d.IssuePositions {
		out.IssuePositions[col] = append([]string{}, ids...)
	}
	return out
}

// SortedColumns returns the columns by ascending order. Equal orders keep
// their list order.
func (d PositionDocument) SortedColumns() []Column {
	cols := make([]Column, len(d.Columns))
	copy(cols, d.Columns)
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Order < cols[j].Order })
	return cols
}

// Column looks up a column by id
func (d PositionDocument) Column(id string) (Column, bool) {
	for _, c := range d.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// NextOrder returns one past the highest order, or 1 for an empty board
func (d PositionDocument) NextOrder() int {
	if len(d.Columns) == 0 {
		return 1
	}
	max := d.Columns[0].Order
	for _, c := range d.Columns[1:] {
		if c.Order > max {
			max = c.Order
		}
	}
	return max + 1
}

// AddColumn appends a column. A nil order places it after the last column.
func (d *PositionDocument) AddColumn(id, name string, order *int) Column {
	col := Column{ID: id, Name: name}
	if order != nil {
		col.Order = *order
	} else {
		col.Order = d.NextOrder()
	}
	d.Columns = append(d.Columns, col)
	return col
}

// ApplyColumnOrder updates column orders. Every id must exist; on an unknown
// id nothing is changed.
func (d *PositionDocument) ApplyColumnOrder(orders []ColumnOrder) error {
	index := make(map[string]int, len(d.Columns))
	for i, c := range d.Columns {
		index[c.ID] = i
	}
	for _, o := range orders {
		if _, ok := index[o.ID]; !ok {
			return apperr.BadRequest("Unknown column id: %s", o.ID)
		}
	}
	for _, o := range orders {
		d.Columns[index[o.ID]].Order = o.Order
	}
	return nil
}

// RemoveColumn deletes a column and discards its issue list. The issues are
// left unplaced.
func (d *PositionDocument) RemoveColumn(id string) bool {
	found := false
	cols := d.Columns[:0]
	for _, c := range d.Columns {
		if c.ID == id {
			found = true
			continue
		}
		cols = append(cols, c)
	}
	d.Columns = cols
	delete(d.IssuePositions, id)
	return found
}

// MoveIssue takes issueID out of every column and inserts it into toColumnID
// at position, clamped to the destination length. It returns the position
// used.
func (d *PositionDocument) MoveIssue(issueID, toColumnID string, position int) int {
	d.removeEverywhere(issueID)
	return d.insert(toColumnID, issueID, position)
}

// ReorderIssue moves issueID to position within columnID. The issue must
// already be in that column; crossing columns is a move.
func (d *PositionDocument) ReorderIssue(columnID, issueID string, position int) (int, error) {
	if current, ok := d.ColumnOf(issueID); !ok || current != columnID {
		return 0, apperr.BadRequest("Issue %s is not in column %s", issueID, columnID)
	}
	d.removeEverywhere(issueID)
	return d.insert(columnID, issueID, position), nil
}

// ColumnOf returns the column holding issueID
func (d PositionDocument) ColumnOf(issueID string) (string, bool) {
	for col, ids := range d.IssuePositions {
		for _, id := range ids {
			if id == issueID {
				return col, true
			}
		}
	}
	return "", false
}

func (d *PositionDocument) removeEverywhere(issueID string) {
	for col, ids := range d.IssuePositions {
		kept := ids[:0]
		for _, id := range ids {
			if id != issueID {
				kept = append(kept, id)
			}
		}
		d.IssuePositions[col] = kept
	}
}

func (d *PositionDocument) insert(columnID, issueID string, position int) int {
	if d.IssuePositions == nil {
		d.IssuePositions = map[string][]string{}
	}
	list := d.IssuePositions[columnID]
	at := ClampPosition(position, len(list))

	list = append(list, "")
	copy(list[at+1:], list[at:])
	list[at] = issueID
	d.IssuePositions[columnID] = list
	return at
}

// ClampPosition limits position to [0, length]
func ClampPosition(position, length int) int {
	if position < 0 {
		return 0
	}
	if position > length {
		return length
	}
	return position
}

var whitespace = regexp.MustCompile(`\s+`)

// StatusForColumn derives an issue status from a column name:
// "In Progress" becomes "in_progress".
func StatusForColumn(name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(name), "_")
}
