package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_TrimsScalarsAndLists(t *testing.T) {
	d := &Draft{
		RoleTitle:   "  Backend Engineer  ",
		CompanyName: "Acme ",
		CoreDuties:  []string{" build APIs ", "", "  "},
		Benefits:    []string{"  ", ""},
	}
	d.Normalize()

	assert.Equal(t, "Backend Engineer", d.RoleTitle)
	assert.Equal(t, "Acme", d.CompanyName)
	assert.Equal(t, []string{"build APIs"}, d.CoreDuties)
	assert.Nil(t, d.Benefits)
}

func TestSetField_ScalarAndListShapes(t *testing.T) {
	d := &Draft{}

	require.NoError(t, d.SetField(FieldRoleTitle, "  Data Analyst "))
	assert.Equal(t, "Data Analyst", d.RoleTitle)

	require.NoError(t, d.SetField(FieldMustHaves, []interface{}{"SQL", " Python "}))
	assert.Equal(t, []string{"SQL", "Python"}, d.MustHaves)

	// A single string is accepted as a one-element list.
	require.NoError(t, d.SetField(FieldBenefits, "remote work"))
	assert.Equal(t, []string{"remote work"}, d.Benefits)

	assert.Error(t, d.SetField(FieldRoleTitle, 42))
	assert.Error(t, d.SetField(FieldCoreDuties, []interface{}{1, 2}))
	assert.Error(t, d.SetField("notAField", "x"))
}

func TestSetField_LogoURLValidation(t *testing.T) {
	d := &Draft{}

	require.NoError(t, d.SetField(FieldLogoURL, "https://cdn.example.com/logo.png"))
	require.NoError(t, d.SetField(FieldLogoURL, "data:image/png;base64,AAAA"))
	require.NoError(t, d.SetField(FieldLogoURL, ""))

	assert.Error(t, d.SetField(FieldLogoURL, "cdn.example.com/logo.png"))
	assert.Error(t, d.SetField(FieldLogoURL, "javascript:alert(1)"))
}

func TestMerge_ScalarsIndividuallyListsWholesale(t *testing.T) {
	base := &Draft{
		RoleTitle:   "Engineer",
		CompanyName: "Acme",
		CoreDuties:  []string{"a", "b"},
		MustHaves:   []string{"x"},
	}
	base.Merge(&Draft{
		RoleTitle:  "Senior Engineer",
		CoreDuties: []string{"c"},
	})

	assert.Equal(t, "Senior Engineer", base.RoleTitle)
	assert.Equal(t, "Acme", base.CompanyName, "untouched scalar survives")
	assert.Equal(t, []string{"c"}, base.CoreDuties, "list replaced wholesale")
	assert.Equal(t, []string{"x"}, base.MustHaves, "absent list untouched")
}

func TestMissingRequired_AndRefinable(t *testing.T) {
	d := &Draft{RoleTitle: "Engineer", CompanyName: "Acme"}
	missing := d.MissingRequired()
	assert.Contains(t, missing, FieldLocation)
	assert.Contains(t, missing, FieldJobDescription)
	assert.False(t, d.IsRefinable())

	d.Location = "Berlin"
	d.SeniorityLevel = "Senior"
	d.EmploymentType = "Full-time"
	d.JobDescription = "Build things"
	assert.True(t, d.IsRefinable())
	assert.Empty(t, d.MissingRequired())
}

func TestEmptyFieldIDs_CoversScalarsAndLists(t *testing.T) {
	d := &Draft{RoleTitle: "Engineer", CoreDuties: []string{"build"}}
	empty := d.EmptyFieldIDs()

	assert.NotContains(t, empty, FieldRoleTitle)
	assert.NotContains(t, empty, FieldCoreDuties)
	assert.Contains(t, empty, FieldCompanyName)
	assert.Contains(t, empty, FieldBenefits)
}

func TestClone_IsDeep(t *testing.T) {
	d := &Draft{RoleTitle: "Engineer", CoreDuties: []string{"a"}}
	c := d.Clone()
	c.RoleTitle = "Analyst"
	c.CoreDuties[0] = "z"

	assert.Equal(t, "Engineer", d.RoleTitle)
	assert.Equal(t, "a", d.CoreDuties[0])
}

func TestFieldCatalog_IsClosed(t *testing.T) {
	for _, id := range ScalarFieldIDs {
		assert.True(t, IsScalarField(id))
		assert.True(t, IsDraftField(id))
	}
	for _, id := range ListFieldIDs {
		assert.True(t, IsListField(id))
		assert.True(t, IsDraftField(id))
	}
	assert.False(t, IsDraftField("salaryRange"))
	assert.False(t, IsDraftField(""))
}
