package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/faculty-reporting-api/internal/models"
)

func TestFilterSetRendersIndicesOnce(t *testing.T) {
	fs := NewFilterSet().
		Add("status = ?", "PENDING").
		Add("(LOWER(topic) LIKE ? OR LOWER(recommendations) LIKE ?)", "%search%").
		Add("c.stream_id = ?", "stream-5")

	clause, args := fs.Render(1)
	assert.Equal(t, "status = $1 AND (LOWER(topic) LIKE $2 OR LOWER(recommendations) LIKE $2) AND c.stream_id = $3", clause)
	assert.Equal(t, []interface{}{"PENDING", "%search%", "stream-5"}, args)
}

func TestFilterSetRenderWithOffsetStart(t *testing.T) {
	fs := NewFilterSet().Add("week_of_reporting = ?", 12)

	clause, args := fs.Render(4)
	assert.Equal(t, "week_of_reporting = $4", clause)
	assert.Equal(t, []interface{}{12}, args)
}

func TestFilterSetBareClauseConsumesNoIndex(t *testing.T) {
	fs := NewFilterSet().
		AddClause("1 = 0").
		Add("status = ?", "PENDING")

	clause, args := fs.Render(1)
	assert.Equal(t, "1 = 0 AND status = $1", clause)
	assert.Len(t, args, 1)
}

func TestFilterSetEmpty(t *testing.T) {
	clause, args := NewFilterSet().Render(1)
	assert.Empty(t, clause)
	assert.Nil(t, args)
}

func TestScopeProgramLeaderUnfiltered(t *testing.T) {
	id := identity(models.RoleProgramLeader, "pl-1", nil)
	fs := Scope(id, ResourceReport, nil)
	assert.True(t, fs.Empty())
}

func TestScopeStudentStreamFilter(t *testing.T) {
	id := identity(models.RoleStudent, "stu-1", strPtr("stream-5"))
	clause, args := Scope(id, ResourceCourse, nil).Render(1)
	assert.Equal(t, "stream_id = $1", clause)
	assert.Equal(t, []interface{}{"stream-5"}, args)
}

func TestScopeLecturerReportsAddOwnerPredicate(t *testing.T) {
	id := identity(models.RoleLecturer, "lect-1", strPtr("stream-5"))
	clause, args := Scope(id, ResourceReport, nil).Render(1)
	assert.Equal(t, "c.stream_id = $1 AND r.lecturer_id = $2", clause)
	assert.Equal(t, []interface{}{"stream-5", "lect-1"}, args)
}

func TestScopeLecturerCoursesStreamOnly(t *testing.T) {
	id := identity(models.RoleLecturer, "lect-1", strPtr("stream-5"))
	clause, _ := Scope(id, ResourceCourse, nil).Render(1)
	assert.Equal(t, "stream_id = $1", clause)
}

func TestScopeNullStreamMatchesNothing(t *testing.T) {
	// A principal lecturer without a stream must see an empty result set,
	// never an unfiltered one.
	id := identity(models.RolePrincipalLecturer, "prl-1", nil)
	clause, args := Scope(id, ResourceReport, nil).Render(1)
	assert.Equal(t, "1 = 0", clause)
	assert.Empty(t, args)
}

func TestScopeUserRowsNarrowToSelfForNonAdmins(t *testing.T) {
	// List visibility matches what read_one grants: students and lecturers
	// resolve to their own row, principal lecturers to their stream.
	student := identity(models.RoleStudent, "stu-1", strPtr("stream-5"))
	clause, args := Scope(student, ResourceUser, nil).Render(1)
	assert.Equal(t, "stream_id = $1 AND id = $2", clause)
	assert.Equal(t, []interface{}{"stream-5", "stu-1"}, args)

	lect := identity(models.RoleLecturer, "lect-1", strPtr("stream-5"))
	clause, args = Scope(lect, ResourceUser, nil).Render(1)
	assert.Equal(t, "stream_id = $1 AND id = $2", clause)
	assert.Equal(t, []interface{}{"stream-5", "lect-1"}, args)

	prl := identity(models.RolePrincipalLecturer, "prl-1", strPtr("stream-5"))
	clause, _ = Scope(prl, ResourceUser, nil).Render(1)
	assert.Equal(t, "stream_id = $1", clause)
}

func TestScopeComposesWithCallerFilters(t *testing.T) {
	id := identity(models.RolePrincipalLecturer, "prl-1", strPtr("stream-5"))

	base := NewFilterSet().
		Add("r.status = ?", "PENDING").
		Add("r.week_of_reporting = ?", 3)
	clause, args := Scope(id, ResourceReport, base).Render(1)

	assert.Equal(t, "r.status = $1 AND r.week_of_reporting = $2 AND c.stream_id = $3", clause)
	assert.Equal(t, []interface{}{"PENDING", 3, "stream-5"}, args)
}

func TestScopeComplaintAuthorVisibility(t *testing.T) {
	student := identity(models.RoleStudent, "stu-1", strPtr("stream-5"))
	clause, args := Scope(student, ResourceComplaint, nil).Render(1)
	assert.Equal(t, "stream_id = $1 AND author_id = $2", clause)
	assert.Equal(t, []interface{}{"stream-5", "stu-1"}, args)

	prl := identity(models.RolePrincipalLecturer, "prl-1", strPtr("stream-5"))
	clause, _ = Scope(prl, ResourceComplaint, nil).Render(1)
	assert.Equal(t, "stream_id = $1", clause)
}
