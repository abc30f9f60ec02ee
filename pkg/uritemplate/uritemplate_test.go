package uritemplate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
)

func TestPlaceholders(t *testing.T) {
	spans, err := Placeholders("users://{userId}/posts/{postId}")
	require.NoError(t, err)
	require.Len(t, spans, 2)
	assert.Equal(t, Placeholder{Name: "userId", Start: 8, End: 16}, spans[0])
	assert.Equal(t, "postId", spans[1].Name)
}

func TestPlaceholders_Malformed(t *testing.T) {
	for _, tmpl := range []string{
		"users://{userId/profile",
		"users://userId}/profile",
		"users://{a{b}}/profile",
		"users://{}/profile",
		"users://{  }/profile",
	} {
		t.Run(tmpl, func(t *testing.T) {
			_, err := Placeholders(tmpl)
			assert.True(t, mcperrors.IsCode(err, mcperrors.CodeTemplateMalformed), "got %v", err)
		})
	}
}

func TestResolve(t *testing.T) {
	uri, err := Resolve("users://{userId}/profile", map[string]string{"userId": "3"})

	require.NoError(t, err)
	assert.Equal(t, "users://3/profile", uri)
}

func TestResolve_NoPlaceholdersIsUnchanged(t *testing.T) {
	uri, err := Resolve("users://all", nil)

	require.NoError(t, err)
	assert.Equal(t, "users://all", uri)
}

func TestResolve_Idempotent(t *testing.T) {
	values := map[string]string{"userId": "42"}
	once, err := Resolve("users://{userId}/profile", values)
	require.NoError(t, err)

	twice, err := Resolve(once, values)

	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestResolve_MissingValue(t *testing.T) {
	_, err := Resolve("users://{userId}/posts/{postId}", map[string]string{"userId": "1", "postId": ""})

	require.True(t, mcperrors.IsCode(err, mcperrors.CodeTemplateUnresolved))
	mcpErr, _ := mcperrors.AsMCPError(err)
	data := mcpErr.Data().(*mcperrors.TemplateErrorData)
	assert.Equal(t, []string{"postId"}, data.Placeholders)
}

func TestResolve_ValuesAreLiteral(t *testing.T) {
	uri, err := Resolve("notes://{title}", map[string]string{"title": "a b/c"})

	require.NoError(t, err)
	assert.Equal(t, "notes://a b/c", uri)
}

func TestResolve_RejectsBracesInValues(t *testing.T) {
	for _, v := range []string{"{x}", "a}", "{", "x{y}z"} {
		uri, err := Resolve("users://{userId}/profile", map[string]string{"userId": v})

		assert.True(t, mcperrors.IsCode(err, mcperrors.CodeTemplateMalformed), "value %q: got %v", v, err)
		assert.Empty(t, uri)
	}
}

func TestResolve_SuccessIsAlwaysResolved(t *testing.T) {
	values := map[string]string{"a": "1", "b": "two words", "c": "é/x"}
	for _, tmpl := range []string{"x://{a}", "x://{a}/{b}/{c}", "x://{c}{a}{c}", "x://none"} {
		uri, err := Resolve(tmpl, values)

		require.NoError(t, err, tmpl)
		assert.True(t, IsResolved(uri), uri)
	}
}

func TestResolveWith_AsksOncePerNameInOrder(t *testing.T) {
	var asked []string
	uri, err := ResolveWith("x://{b}/{a}/{b}", func(name string) (string, error) {
		asked = append(asked, name)
		return name + "!", nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, asked)
	assert.Equal(t, "x://b!/a!/b!", uri)
}

func TestResolveWith_ResolvedURIAsksNothing(t *testing.T) {
	uri, err := ResolveWith("users://7/profile", func(string) (string, error) {
		t.Fatal("supply called for a resolved URI")
		return "", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "users://7/profile", uri)
}

func TestResolveWith_SupplierError(t *testing.T) {
	boom := errors.New("interrupted")
	_, err := ResolveWith("users://{userId}/profile", func(string) (string, error) {
		return "", boom
	})

	assert.ErrorIs(t, err, boom)
}

func TestIsResolved(t *testing.T) {
	assert.True(t, IsResolved("users://3/profile"))
	assert.False(t, IsResolved("users://{userId}/profile"))
	assert.False(t, IsResolved("users://{userId/profile"))
}
