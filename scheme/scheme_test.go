package scheme_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stelladb/stellator/scheme"
)

func userScheme() *scheme.Scheme {
	return scheme.New("user").
		Field(scheme.ScalarField("name", scheme.TypeText, scheme.Unique, scheme.TransformNone)).
		Field(scheme.ScalarField("email", scheme.TypeText, scheme.Unique|scheme.Indexed, scheme.TransformAlias)).
		Field(scheme.ScalarField("password", scheme.TypeBytes, scheme.ForceExclude, scheme.TransformNone))
}

func TestAliasField(t *testing.T) {
	s := userScheme()
	f, ok := s.AliasField()
	require.True(t, ok)
	assert.Equal(t, "email", f.Name)
}

func TestResolveReadFields_DefaultStarWithForceExclude(t *testing.T) {
	s := userScheme()
	fields := s.ResolveReadFields(scheme.FieldRequest{})
	var names []string
	for _, f := range fields {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"name", "email"}, names)
}

func TestResolveReadFields_IncludeNone(t *testing.T) {
	s := userScheme()
	fields := s.ResolveReadFields(scheme.FieldRequest{IncludeNone: true})
	assert.Nil(t, fields)
}

func TestResolveReadFields_ExplicitIncludeAllOverridesForceExclude(t *testing.T) {
	s := userScheme()
	fields := s.ResolveReadFields(scheme.FieldRequest{IncludeAll: true, Include: []string{"password"}})
	found := false
	for _, f := range fields {
		if f.Name == "password" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestResolveForeignLink_OneToMany(t *testing.T) {
	user := scheme.New("user")
	post := scheme.New("post").
		Field(scheme.ObjectField("owner", user, scheme.Cascade, 0))
	user.Field(scheme.SetField("posts", post, scheme.Cascade, "", 0))

	postsField, _ := user.FieldByName("posts")
	link, ok := user.ResolveForeignLink(postsField)
	require.True(t, ok)
	assert.Equal(t, "owner", link.Name)
}

func TestResolveForeignLink_ManyToMany(t *testing.T) {
	tagScheme := scheme.New("tag")
	article := scheme.New("article").
		Field(scheme.SetField("tags", tagScheme, scheme.ReferencePolicy, "", 0))

	tagsField, _ := article.FieldByName("tags")
	_, ok := article.ResolveForeignLink(tagsField)
	assert.False(t, ok) // no reciprocal Object field: many-to-many join table
}

func TestAccessPolicyEvaluate(t *testing.T) {
	p := scheme.AccessPolicy{
		Update: true,
		UpdatePredicate: func(userID, objectOID int64) bool {
			return userID == objectOID
		},
	}
	assert.True(t, p.Evaluate(scheme.BeforeUpdate, 5, 5))
	assert.False(t, p.Evaluate(scheme.BeforeUpdate, 5, 6))
	assert.False(t, p.Evaluate(scheme.BeforeRemove, 5, 5))
}
