package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/stepguide/internal/model"
)

const sampleCS = `namespace Sample
{
    public class Steps
    {
        [Step("Say <what> to <who>")]
        public void Say(string what, string who)
        {
        }

        [Step("Count <n>")]
        public void Count(int n)
        {
        }

        [Step("Count <n> and <m>")]
        public void Count(int n, int m)
        {
        }
    }
}
`

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func parseSample(t *testing.T) (*TreeSitter, *File) {
	t.Helper()
	ts := NewTreeSitter()
	f, err := ts.Parse(writeSource(t, "Steps.cs", sampleCS))
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return ts, f
}

func TestParse(t *testing.T) {
	t.Parallel()

	_, f := parseSample(t)
	assert.Equal(t, "csharp", f.Language.Name)
	assert.Len(t, f.Steps(), 3)
	assert.Equal(t, sampleCS, string(f.Source))
}

func TestParseMissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewTreeSitter().Parse(filepath.Join(t.TempDir(), "Missing.cs"))
	var nf *SourceNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseSyntaxError(t *testing.T) {
	t.Parallel()

	path := writeSource(t, "Broken.cs", "public class {\n    void (\n")
	_, err := NewTreeSitter().Parse(path)
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, path, pe.Path)
	assert.Contains(t, pe.Reason, "syntax error")
}

func TestParseUnsupported(t *testing.T) {
	t.Parallel()

	_, err := NewTreeSitter().Parse(writeSource(t, "notes.txt", "hello"))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "unsupported file type", pe.Reason)
}

func TestFindDeclaration(t *testing.T) {
	t.Parallel()

	ts, f := parseSample(t)

	d, err := ts.FindDeclaration(f, "Sample.Steps", "Say", "Say <what> to <who>")
	require.NoError(t, err)
	assert.Equal(t, "Say", d.Name)

	d, err = ts.FindDeclaration(f, "Steps", "Say", "")
	require.NoError(t, err, "simple class names match")
	assert.Equal(t, "Say", d.Name)
}

func TestFindDeclarationPrefersMatchingOverload(t *testing.T) {
	t.Parallel()

	ts, f := parseSample(t)

	d, err := ts.FindDeclaration(f, "Sample.Steps", "Count", "Count <n> and <m>")
	require.NoError(t, err)
	assert.Len(t, d.Parameters, 2)

	d, err = ts.FindDeclaration(f, "Sample.Steps", "Count", "Count <n>")
	require.NoError(t, err)
	assert.Len(t, d.Parameters, 1)

	d, err = ts.FindDeclaration(f, "Sample.Steps", "Count", "unknown")
	require.NoError(t, err)
	assert.Len(t, d.Parameters, 1, "first overload is the fallback")
}

func TestFindDeclarationNotFound(t *testing.T) {
	t.Parallel()

	ts, f := parseSample(t)

	_, err := ts.FindDeclaration(f, "Sample.Steps", "Missing", "")
	var tn *TargetNotFoundError
	require.True(t, errors.As(err, &tn))
	assert.Equal(t, "Missing", tn.Name)

	_, err = ts.FindDeclaration(f, "Other", "Say", "")
	require.True(t, errors.As(err, &tn))
}

func TestReplaceAndRender(t *testing.T) {
	t.Parallel()

	ts, f := parseSample(t)
	d, err := ts.FindDeclaration(f, "Sample.Steps", "Say", "Say <what> to <who>")
	require.NoError(t, err)

	lit, err := ts.ReplaceLiteralArgument(f, d, "Say <what> to <who>", "Say <who> to <what>")
	require.NoError(t, err)
	require.NotNil(t, lit)
	assert.Equal(t, `"Say <who> to <what>"`, lit.Content)
	assert.Equal(t, model.Span{Start: 5, StartChar: 14, End: 5, EndChar: 35}, lit.Span)

	params, err := ts.ReplaceParameterList(f, d, []model.Parameter{
		{Type: "string", Name: "who"},
		{Type: "string", Name: "what"},
	})
	require.NoError(t, err)
	require.NotNil(t, params)
	assert.Equal(t, "(string who, string what)", params.Content)
	assert.Equal(t, 6, params.Span.Start)

	out, err := ts.Render(f)
	require.NoError(t, err)
	assert.Contains(t, out, `[Step("Say <who> to <what>")]`)
	assert.Contains(t, out, "public void Say(string who, string what)")
	assert.Contains(t, out, "public void Count(int n, int m)")
}

func TestReplaceUnchanged(t *testing.T) {
	t.Parallel()

	ts, f := parseSample(t)
	d, err := ts.FindDeclaration(f, "Sample.Steps", "Say", "")
	require.NoError(t, err)

	lit, err := ts.ReplaceLiteralArgument(f, d, "Say <what> to <who>", "Say <what> to <who>")
	require.NoError(t, err)
	assert.Nil(t, lit)

	params, err := ts.ReplaceParameterList(f, d, d.Parameters)
	require.NoError(t, err)
	assert.Nil(t, params)

	out, err := ts.Render(f)
	require.NoError(t, err)
	assert.Equal(t, sampleCS, out)
}

func TestReplaceOverlapping(t *testing.T) {
	t.Parallel()

	ts, f := parseSample(t)
	d, err := ts.FindDeclaration(f, "Sample.Steps", "Say", "")
	require.NoError(t, err)

	_, err = ts.ReplaceParameterList(f, d, nil)
	require.NoError(t, err)
	_, err = ts.ReplaceParameterList(f, d, []model.Parameter{{Type: "int", Name: "x"}})
	assert.Error(t, err)
}

func TestReplacePythonKeepsSelf(t *testing.T) {
	t.Parallel()

	src := `from getgauge.python import step


class Steps:
    @step("Greet <name>")
    def greet(self, name):
        pass
`
	ts := NewTreeSitter()
	f, err := ts.Parse(writeSource(t, "steps.py", src))
	require.NoError(t, err)
	defer f.Close()

	d, err := ts.FindDeclaration(f, "Steps", "greet", "Greet <name>")
	require.NoError(t, err)

	_, err = ts.ReplaceParameterList(f, d, []model.Parameter{{Name: "name"}, {Name: "times"}})
	require.NoError(t, err)
	_, err = ts.ReplaceLiteralArgument(f, d, "Greet <name>", "Greet <name> <times> times")
	require.NoError(t, err)

	out, err := ts.Render(f)
	require.NoError(t, err)
	assert.Contains(t, out, `@step("Greet <name> <times> times")`)
	assert.Contains(t, out, "def greet(self, name, times):")
}
