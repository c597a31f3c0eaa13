package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/faculty-reporting-api/internal/models"
)

func strPtr(s string) *string { return &s }

func identity(role models.UserRole, userID string, streamID *string) Identity {
	return Identity{UserID: userID, Role: role, StreamID: streamID}
}

func TestStreamIsolationOnReadOne(t *testing.T) {
	// Rows in stream B must be invisible to every stream-affiliated role in stream A.
	report := ReportResource("r1", "stream-b", "lect-9", models.ReportStatusPending)
	course := CourseResource("c1", "stream-b", nil)
	class := ClassResource("k1", "stream-b")

	roles := []models.UserRole{models.RoleStudent, models.RoleLecturer, models.RolePrincipalLecturer}
	for _, role := range roles {
		id := identity(role, "u1", strPtr("stream-a"))
		for _, res := range []Resource{report, course, class} {
			d := Decide(id, ActionReadOne, res)
			assert.False(t, d.Allowed, "role %s should not read %s across streams", role, res.Type)
			assert.Equal(t, ReasonWrongStream, d.Reason)
		}
	}
}

func TestCrossStreamReadHidesExistence(t *testing.T) {
	id := identity(models.RoleStudent, "stu-1", strPtr("stream-5"))
	res := ReportResource("r1", "stream-6", "lect-1", models.ReportStatusPending)

	d := Decide(id, ActionReadOne, res)
	assert.False(t, d.Allowed)
	assert.True(t, HidesExistence(ActionReadOne, d.Reason), "cross-stream lookup must map to not-found")
}

func TestLecturerUpdateRequiresOwnershipAndPendingStatus(t *testing.T) {
	owner := identity(models.RoleLecturer, "lect-1", strPtr("stream-5"))
	other := identity(models.RoleLecturer, "lect-2", strPtr("stream-5"))

	pending := ReportResource("r1", "stream-5", "lect-1", models.ReportStatusPending)
	reviewed := ReportResource("r1", "stream-5", "lect-1", models.ReportStatusReviewed)
	approved := ReportResource("r1", "stream-5", "lect-1", models.ReportStatusApproved)

	assert.True(t, Decide(owner, ActionUpdate, pending).Allowed)
	assert.True(t, Decide(owner, ActionDelete, pending).Allowed)

	d := Decide(other, ActionUpdate, pending)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotOwner, d.Reason)

	for _, res := range []Resource{reviewed, approved} {
		d := Decide(owner, ActionUpdate, res)
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonInvalidStatus, d.Reason)
	}
}

func TestLecturerReadsOnlyOwnReports(t *testing.T) {
	id := identity(models.RoleLecturer, "lect-1", strPtr("stream-5"))

	own := ReportResource("r1", "stream-5", "lect-1", models.ReportStatusPending)
	peer := ReportResource("r2", "stream-5", "lect-2", models.ReportStatusPending)

	assert.True(t, Decide(id, ActionReadOne, own).Allowed)

	d := Decide(id, ActionReadOne, peer)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotOwner, d.Reason)
	assert.False(t, HidesExistence(ActionReadOne, d.Reason), "same-stream denial is a plain 403")
}

func TestLecturerCreateReportRequiresCourseAssignment(t *testing.T) {
	assigned := identity(models.RoleLecturer, "lect-1", strPtr("stream-5"))
	unassigned := identity(models.RoleLecturer, "lect-2", strPtr("stream-5"))

	course := Resource{Type: ResourceReport, OwnerStreamID: strPtr("stream-5"), OwnerUserID: strPtr("lect-1")}

	assert.True(t, Decide(assigned, ActionCreate, course).Allowed)

	d := Decide(unassigned, ActionCreate, course)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotOwner, d.Reason)
}

func TestProgramLeaderSupremacy(t *testing.T) {
	id := identity(models.RoleProgramLeader, "pl-1", nil)

	resources := []Resource{
		StreamResource("s1"),
		CourseResource("c1", "stream-9", nil),
		ClassResource("k1", "stream-9"),
		ReportResource("r1", "stream-9", "lect-1", models.ReportStatusApproved),
		UserResource("u1", strPtr("stream-9")),
	}
	actions := []Action{ActionReadOne, ActionList, ActionUpdate, ActionDelete, ActionReview}

	for _, res := range resources {
		for _, action := range actions {
			assert.True(t, Decide(id, action, res).Allowed, "program leader denied %s on %s", action, res.Type)
		}
	}

	// The single exception: reports are authored by lecturers only.
	d := Decide(id, ActionCreate, ListResource(ResourceReport))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonRoleForbidden, d.Reason)

	assert.True(t, Decide(id, ActionCreate, StreamResource("s2")).Allowed)
	assert.True(t, Decide(id, ActionCreate, CourseResource("c2", "stream-9", nil)).Allowed)
	assert.True(t, Decide(id, ActionCreate, ClassResource("k2", "stream-9")).Allowed)
}

func TestNullStreamPrincipalLecturerIsDenied(t *testing.T) {
	id := identity(models.RolePrincipalLecturer, "prl-1", nil)

	res := ReportResource("r1", "stream-5", "lect-1", models.ReportStatusPending)
	d := Decide(id, ActionReadOne, res)
	assert.False(t, d.Allowed, "nil stream must deny, never default-allow")

	d = Decide(id, ActionReview, res)
	assert.False(t, d.Allowed)
}

func TestPrincipalLecturerReviewScopedToStream(t *testing.T) {
	id := identity(models.RolePrincipalLecturer, "prl-1", strPtr("stream-5"))

	inStream := ReportResource("r1", "stream-5", "lect-1", models.ReportStatusPending)
	outStream := ReportResource("r2", "stream-6", "lect-2", models.ReportStatusPending)

	assert.True(t, Decide(id, ActionReview, inStream).Allowed)

	d := Decide(id, ActionReview, outStream)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonWrongStream, d.Reason)
}

func TestPrincipalLecturerCannotAdministerStructure(t *testing.T) {
	id := identity(models.RolePrincipalLecturer, "prl-1", strPtr("stream-5"))

	d := Decide(id, ActionCreate, CourseResource("c1", "stream-5", nil))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonRoleForbidden, d.Reason)

	d = Decide(id, ActionUpdate, StreamResource("stream-5"))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonRoleForbidden, d.Reason)

	// Stream-scoped rows remain mutable for the review workflow.
	assert.True(t, Decide(id, ActionUpdate, ReportResource("r1", "stream-5", "lect-1", models.ReportStatusPending)).Allowed)
}

func TestStudentDeniedAllMutationsOnReports(t *testing.T) {
	id := identity(models.RoleStudent, "stu-1", strPtr("stream-5"))
	res := ReportResource("r1", "stream-5", "stu-1", models.ReportStatusPending)

	for _, action := range []Action{ActionCreate, ActionUpdate, ActionDelete, ActionReview} {
		d := Decide(id, action, res)
		assert.False(t, d.Allowed, "student must not %s reports", action)
	}

	assert.True(t, Decide(id, ActionReadOne, res).Allowed)
}

func TestStudentRatingOwnStreamOnly(t *testing.T) {
	id := identity(models.RoleStudent, "stu-1", strPtr("stream-5"))

	own := RatingResource("", "stream-5", "stu-1")
	foreign := RatingResource("", "stream-6", "stu-1")

	assert.True(t, Decide(id, ActionCreate, own).Allowed)

	d := Decide(id, ActionCreate, foreign)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonWrongStream, d.Reason)
}

func TestUnknownRoleDeniedByDefault(t *testing.T) {
	id := identity(models.UserRole("INTRUDER"), "x", strPtr("stream-5"))
	d := Decide(id, ActionReadOne, ClassResource("k1", "stream-5"))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonRoleForbidden, d.Reason)
}

func TestReportStatusLifecycleIsForwardOnly(t *testing.T) {
	assert.True(t, models.ReportStatusPending.CanTransitionTo(models.ReportStatusReviewed))
	assert.True(t, models.ReportStatusPending.CanTransitionTo(models.ReportStatusApproved))
	assert.True(t, models.ReportStatusReviewed.CanTransitionTo(models.ReportStatusApproved))

	assert.False(t, models.ReportStatusReviewed.CanTransitionTo(models.ReportStatusPending))
	assert.False(t, models.ReportStatusApproved.CanTransitionTo(models.ReportStatusReviewed))
	assert.False(t, models.ReportStatusApproved.CanTransitionTo(models.ReportStatusPending))
	assert.False(t, models.ReportStatusApproved.CanTransitionTo(models.ReportStatusApproved))
}
