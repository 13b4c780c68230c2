package boards

import (
	"testing"

	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoColumnDoc() PositionDocument {
	return PositionDocument{
		Columns: []Column{
			{ID: "c1", Name: "To Do", Order: 1},
			{ID: "c2", Name: "Done", Order: 2},
		},
		IssuePositions: map[string][]string{"c1": {"i1"}},
	}
}

func occurrences(doc PositionDocument, issueID string) int {
	n := 0
	for _, ids := range doc.IssuePositions {
		for _, id := range ids {
			if id == issueID {
				n++
			}
		}
	}
	return n
}

func TestSortedColumns_StableOnTies(t *testing.T) {
	doc := PositionDocument{Columns: []Column{
		{ID: "a", Order: 2},
		{ID: "b", Order: 1},
		{ID: "c", Order: 2},
		{ID: "d", Order: 1},
	}}

	ids := []string{}
	for _, c := range doc.SortedColumns() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
	// the stored order is untouched
	assert.Equal(t, "a", doc.Columns[0].ID)
}

func TestAddColumn_DefaultOrder(t *testing.T) {
	doc := NewPositionDocument()

	first := doc.AddColumn("c1", "To Do", nil)
	assert.Equal(t, 1, first.Order)

	seven := 7
	doc.AddColumn("c2", "Review", &seven)

	third := doc.AddColumn("c3", "Done", nil)
	assert.Equal(t, 8, third.Order)
}

func TestApplyColumnOrder_AllOrNothing(t *testing.T) {
	doc := twoColumnDoc()

	err := doc.ApplyColumnOrder([]ColumnOrder{{ID: "c2", Order: 1}, {ID: "nope", Order: 2}})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "Unknown column id: nope")
	assert.Equal(t, 2, doc.Columns[1].Order)

	require.NoError(t, doc.ApplyColumnOrder([]ColumnOrder{{ID: "c2", Order: 1}, {ID: "c1", Order: 2}}))
	names := []string{}
	for _, c := range doc.SortedColumns() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Done", "To Do"}, names)
}

func TestRemoveColumn_DiscardsIssues(t *testing.T) {
	doc := twoColumnDoc()
	doc.IssuePositions["c1"] = []string{"i1", "i2"}

	assert.True(t, doc.RemoveColumn("c1"))
	assert.Len(t, doc.Columns, 1)
	assert.Equal(t, 0, occurrences(doc, "i1"))
	assert.Equal(t, 0, occurrences(doc, "i2"))
	assert.Empty(t, doc.IssuePositions["c2"])

	assert.False(t, doc.RemoveColumn("c1"))
}

func TestMoveIssue_Scenario(t *testing.T) {
	doc := twoColumnDoc()

	pos := doc.MoveIssue("i1", "c2", 0)
	assert.Equal(t, 0, pos)
	assert.Equal(t, []string{}, doc.IssuePositions["c1"])
	assert.Equal(t, []string{"i1"}, doc.IssuePositions["c2"])
}

func TestMoveIssue_ClampsPosition(t *testing.T) {
	doc := twoColumnDoc()
	doc.IssuePositions["c2"] = []string{"a", "b"}

	assert.Equal(t, 2, doc.MoveIssue("i1", "c2", 99))
	assert.Equal(t, []string{"a", "b", "i1"}, doc.IssuePositions["c2"])

	assert.Equal(t, 0, doc.MoveIssue("i1", "c2", -3))
	assert.Equal(t, []string{"i1", "a", "b"}, doc.IssuePositions["c2"])
}

func TestMoveIssue_Idempotent(t *testing.T) {
	once := twoColumnDoc()
	once.MoveIssue("i1", "c2", 0)

	twice := twoColumnDoc()
	twice.MoveIssue("i1", "c2", 0)
	twice.MoveIssue("i1", "c2", 0)

	assert.Equal(t, once, twice)
}

func TestMoveIssue_AtMostOneColumn(t *testing.T) {
	doc := twoColumnDoc()
	doc.AddColumn("c3", "Review", nil)

	moves := []struct {
		issue, to string
		pos       int
	}{
		{"i1", "c2", 0}, {"i2", "c2", 1}, {"i1", "c3", 5},
		{"i2", "c1", 0}, {"i1", "c1", 1}, {"i3", "c3", 0},
	}
	for _, m := range moves {
		doc.MoveIssue(m.issue, m.to, m.pos)
		_, err := doc.ReorderIssue(m.to, m.issue, 0)
		require.NoError(t, err)
		for _, id := range []string{"i1", "i2", "i3"} {
			assert.LessOrEqual(t, occurrences(doc, id), 1, id)
		}
	}
	assert.Equal(t, []string{"i1", "i2"}, doc.IssuePositions["c1"])
}

func TestReorderIssue(t *testing.T) {
	doc := twoColumnDoc()
	doc.IssuePositions["c1"] = []string{"a", "b", "c"}

	pos, err := doc.ReorderIssue("c1", "a", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
	assert.Equal(t, []string{"b", "c", "a"}, doc.IssuePositions["c1"])

	pos, err = doc.ReorderIssue("c1", "b", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
	assert.Equal(t, []string{"c", "a", "b"}, doc.IssuePositions["c1"])
}

func TestReorderIssue_RejectsOtherColumn(t *testing.T) {
	doc := twoColumnDoc()
	doc.MoveIssue("x", "c1", 0)
	before := doc.Clone()

	_, err := doc.ReorderIssue("c2", "x", 0)
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
	assert.Equal(t, before, doc)

	_, err = doc.ReorderIssue("c1", "unplaced", 0)
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
}

func TestClone_IsDeep(t *testing.T) {
	doc := twoColumnDoc()
	clone := doc.Clone()

	clone.MoveIssue("i1", "c2", 0)
	clone.Columns[0].Name = "Backlog"

	assert.Equal(t, []string{"i1"}, doc.IssuePositions["c1"])
	assert.Equal(t, "To Do", doc.Columns[0].Name)
}

func TestStatusForColumn(t *testing.T) {
	assert.Equal(t, "done", StatusForColumn("Done"))
	assert.Equal(t, "in_progress", StatusForColumn("In Progress"))
	assert.Equal(t, "ready_for_qa", StatusForColumn("Ready \t for  QA"))
}
