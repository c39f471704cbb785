package refactor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/stepguide/internal/lang"
	"github.com/phobologic/stepguide/internal/model"
	"github.com/phobologic/stepguide/internal/source"
)

const refactoringSample = `using Gauge.CSharp.Lib.Attribute;

namespace Samples
{
    public class RefactoringSample
    {
        [Step("Refactoring Say <what> to <who>")]
        public void RefactoringSaySomething(string what, string who)
        {
            Console.WriteLine("{0}, {1}!", what, who);
        }

        [Step("Refactoring A context step which gets executed before every scenario")]
        public void RefactoringContext()
        {
        }

        [Step("Refactoring this is a test step")]
        public void RefactoringSampleTest()
        {
        }
    }
}
`

func writeSample(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newEngine() *Engine {
	return New(source.NewTreeSitter())
}

// parameterNames re-parses content and returns the parameter names of the
// step method called name.
func parameterNames(t *testing.T, path, content, name string) []string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	ts := source.NewTreeSitter()
	f, err := ts.Parse(path)
	require.NoError(t, err)
	defer f.Close()
	d, err := ts.FindDeclaration(f, "", name, "")
	require.NoError(t, err)

	names := make([]string, len(d.Parameters))
	for i, p := range d.Parameters {
		names[i] = p.Name
	}
	return names
}

func sayMethod(path string) model.Method {
	return model.Method{
		Name:      "Samples.RefactoringSample.RefactoringSaySomething",
		ClassName: "RefactoringSample",
		FileName:  path,
		StepText:  "Refactoring Say <what> to <who>",
	}
}

func TestReorderParameters(t *testing.T) {
	t.Parallel()

	path := writeSample(t, "RefactoringSample.cs", refactoringSample)
	const newText = "Refactoring Say <who> to <what>"

	change, err := newEngine().Refactor(sayMethod(path),
		[]model.ParamPosition{{Old: 0, New: 1}, {Old: 1, New: 0}},
		[]string{"who", "what"}, newText)
	require.NoError(t, err)

	require.Len(t, change.Diffs, 2)
	assert.Equal(t, `"Refactoring Say <who> to <what>"`, change.Diffs[0].Content)
	assert.Equal(t, "(string who, string what)", change.Diffs[1].Content)
	assert.Equal(t, 7, change.Diffs[0].Span.Start)
	assert.Equal(t, 8, change.Diffs[1].Span.Start)

	assert.Contains(t, change.FileContent, `[Step("Refactoring Say <who> to <what>")]`)
	assert.Equal(t, []string{"who", "what"}, parameterNames(t, path, change.FileContent, "RefactoringSaySomething"))
}

func TestAddParameters(t *testing.T) {
	t.Parallel()

	path := writeSample(t, "RefactoringSample.cs", refactoringSample)
	const newText = "Refactoring Say <what> to <who> in <where>"

	change, err := newEngine().Refactor(sayMethod(path),
		[]model.ParamPosition{{Old: 0, New: 0}, {Old: 1, New: 1}, {Old: -1, New: 2}},
		[]string{"what", "who", "where"}, newText)
	require.NoError(t, err)

	assert.Contains(t, change.FileContent, `[Step("Refactoring Say <what> to <who> in <where>")]`)
	assert.Contains(t, change.FileContent, "RefactoringSaySomething(string what, string who, string where)")
	assert.Equal(t, []string{"what", "who", "where"}, parameterNames(t, path, change.FileContent, "RefactoringSaySomething"))
}

func TestAddParametersWhenNoneExisted(t *testing.T) {
	t.Parallel()

	path := writeSample(t, "RefactoringSample.cs", refactoringSample)
	m := model.Method{
		Name:      "RefactoringSampleTest",
		ClassName: "RefactoringSample",
		FileName:  path,
		StepText:  "Refactoring this is a test step",
	}

	change, err := newEngine().Refactor(m,
		[]model.ParamPosition{{Old: -1, New: 0}},
		[]string{"foo"}, "Refactoring this is a test step <foo>")
	require.NoError(t, err)

	assert.Contains(t, change.FileContent, `[Step("Refactoring this is a test step <foo>")]`)
	assert.Equal(t, []string{"foo"}, parameterNames(t, path, change.FileContent, "RefactoringSampleTest"))
}

func TestAddParameterWithReservedName(t *testing.T) {
	t.Parallel()

	path := writeSample(t, "RefactoringSample.cs", refactoringSample)
	m := model.Method{
		Name:      "RefactoringSampleTest",
		ClassName: "RefactoringSample",
		FileName:  path,
		StepText:  "Refactoring this is a test step",
	}

	change, err := newEngine().Refactor(m,
		[]model.ParamPosition{{Old: -1, New: 0}},
		[]string{"class"}, "Refactoring this is a test step <class>")
	require.NoError(t, err)

	assert.Contains(t, change.FileContent, "RefactoringSampleTest(string @class)")
	assert.Equal(t, []string{"@class"}, parameterNames(t, path, change.FileContent, "RefactoringSampleTest"))
}

func TestRefactorReturnsAbsoluteFileName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "RefactoringSample.cs"), []byte(refactoringSample), 0o644))
	chdir(t, dir)

	m := model.Method{Name: "RefactoringContext", ClassName: "RefactoringSample", FileName: "RefactoringSample.cs"}
	change, err := newEngine().Refactor(m, nil, nil, "foo")
	require.NoError(t, err)

	want, err := filepath.Abs("RefactoringSample.cs")
	require.NoError(t, err)
	assert.Equal(t, want, change.FileName)
}

func TestRefactorAttributeText(t *testing.T) {
	t.Parallel()

	path := writeSample(t, "RefactoringSample.cs", refactoringSample)
	m := model.Method{Name: "RefactoringContext", ClassName: "RefactoringSample", FileName: path}

	change, err := newEngine().Refactor(m, nil, nil, "foo")
	require.NoError(t, err)

	assert.Contains(t, change.FileContent, `[Step("foo")]`)
	require.Len(t, change.Diffs, 1, "an empty parameter list stays untouched")
	assert.Equal(t, `"foo"`, change.Diffs[0].Content)
}

func TestRemoveParameters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		positions []model.ParamPosition
		newText   string
		want      []string
	}{
		{"keep first", []model.ParamPosition{{Old: 0, New: 0}}, "Refactoring Say <what> to someone", []string{"what"}},
		{"keep second", []model.ParamPosition{{Old: 1, New: 0}}, "Refactoring Say something to <who>", []string{"who"}},
		{"remove all", nil, "Refactoring Say something to someone", []string{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeSample(t, "RefactoringSample.cs", refactoringSample)
			change, err := newEngine().Refactor(sayMethod(path), tt.positions, nil, tt.newText)
			require.NoError(t, err)
			assert.Equal(t, tt.want, parameterNames(t, path, change.FileContent, "RefactoringSaySomething"))
		})
	}
}

func TestRefactorNoChange(t *testing.T) {
	t.Parallel()

	path := writeSample(t, "RefactoringSample.cs", refactoringSample)
	change, err := newEngine().Refactor(sayMethod(path),
		[]model.ParamPosition{{Old: 0, New: 0}, {Old: 1, New: 1}},
		[]string{"what", "who"}, "Refactoring Say <what> to <who>")
	require.NoError(t, err)

	assert.Empty(t, change.Diffs)
	assert.Equal(t, refactoringSample, change.FileContent)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, refactoringSample, string(data), "the engine never writes")
}

func TestRefactorTwiceIsStable(t *testing.T) {
	t.Parallel()

	path := writeSample(t, "RefactoringSample.cs", refactoringSample)
	const newText = "Refactoring Say <who> to <what>"

	first, err := newEngine().Refactor(sayMethod(path),
		[]model.ParamPosition{{Old: 0, New: 1}, {Old: 1, New: 0}},
		[]string{"who", "what"}, newText)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(first.FileContent), 0o644))

	m := sayMethod(path)
	m.StepText = newText
	second, err := newEngine().Refactor(m,
		[]model.ParamPosition{{Old: 0, New: 0}, {Old: 1, New: 1}},
		[]string{"who", "what"}, newText)
	require.NoError(t, err)

	assert.Empty(t, second.Diffs)
	assert.Equal(t, first.FileContent, second.FileContent)
}

func TestReorderKeepsTypesAndDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		file   string
		src    string
		method model.Method
		want   string
	}{
		{
			name: "csharp",
			file: "Greeter.cs",
			src: `namespace Samples
{
    public class Greeter
    {
        [Step("Say <what> to <who>")]
        public void Say(string what = "x", int who = 1)
        {
        }
    }
}
`,
			method: model.Method{Name: "Samples.Greeter.Say", ClassName: "Samples.Greeter"},
			want:   `public void Say(int who = 1, string what = "x")`,
		},
		{
			name: "java",
			file: "Greeter.java",
			src: `public class Greeter {
    @Step("Say <what> to <who>")
    public void say(final String what, int who) {
    }
}
`,
			method: model.Method{Name: "Greeter.say", ClassName: "Greeter"},
			want:   "public void say(int who, final String what)",
		},
		{
			name: "python",
			file: "greeter.py",
			src: `from getgauge.python import step


@step("Say <what> to <who>")
def say(what: str = "x", who: int = 1):
    pass
`,
			method: model.Method{Name: "greeter.say"},
			want:   `def say(who: int = 1, what: str = "x"):`,
		},
		{
			name: "python untyped defaults",
			file: "greeter.py",
			src: `from getgauge.python import step


@step("Say <what> to <who>")
def say(what="x", who=1):
    pass
`,
			method: model.Method{Name: "greeter.say"},
			want:   `def say(who=1, what="x"):`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := tt.method
			m.FileName = writeSample(t, tt.file, tt.src)
			m.StepText = "Say <what> to <who>"

			change, err := newEngine().Refactor(m,
				[]model.ParamPosition{{Old: 1, New: 0}, {Old: 0, New: 1}},
				[]string{"who", "what"}, "Say <who> to <what>")
			require.NoError(t, err)
			assert.Contains(t, change.FileContent, tt.want)
		})
	}
}

func TestRefactorErrors(t *testing.T) {
	t.Parallel()

	path := writeSample(t, "RefactoringSample.cs", refactoringSample)

	_, err := newEngine().Refactor(model.Method{Name: "Missing", ClassName: "RefactoringSample", FileName: path}, nil, nil, "x")
	var tn *source.TargetNotFoundError
	assert.True(t, errors.As(err, &tn))

	_, err = newEngine().Refactor(sayMethod(filepath.Join(t.TempDir(), "Gone.cs")), nil, nil, "x")
	var nf *source.SourceNotFoundError
	assert.True(t, errors.As(err, &nf))

	_, err = newEngine().Refactor(sayMethod(path),
		[]model.ParamPosition{{Old: 0, New: 0}, {Old: 0, New: 1}}, nil, "x <a> <b>")
	var im *InvalidMappingError
	assert.True(t, errors.As(err, &im))
}

func TestParametersValidation(t *testing.T) {
	t.Parallel()

	cs := lang.Languages["csharp"]
	old := []model.Parameter{{Type: "string", Name: "a"}, {Type: "int", Name: "b"}}

	tests := []struct {
		name      string
		positions []model.ParamPosition
	}{
		{"old below -1", []model.ParamPosition{{Old: -2, New: 0}}},
		{"old beyond arity", []model.ParamPosition{{Old: 2, New: 0}}},
		{"duplicate old", []model.ParamPosition{{Old: 1, New: 0}, {Old: 1, New: 1}}},
		{"new out of range", []model.ParamPosition{{Old: 0, New: 1}}},
		{"duplicate new", []model.ParamPosition{{Old: 0, New: 0}, {Old: 1, New: 0}}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parameters(cs, old, tt.positions, nil)
			var im *InvalidMappingError
			assert.True(t, errors.As(err, &im), "got %v", err)
		})
	}
}

func TestParametersNaming(t *testing.T) {
	t.Parallel()

	cs := lang.Languages["csharp"]
	old := []model.Parameter{{Type: "int", Name: "count"}}

	params, err := Parameters(cs, old,
		[]model.ParamPosition{{Old: -1, New: 0}, {Old: 0, New: 1}, {Old: -1, New: 2}},
		[]string{"", "total"})
	require.NoError(t, err)
	assert.Equal(t, []model.Parameter{
		{Type: "string", Name: "arg0"},
		{Type: "int", Name: "total"},
		{Type: "string", Name: "arg2"},
	}, params)
}

func TestParametersRenameKeepsDefault(t *testing.T) {
	t.Parallel()

	py := lang.Languages["python"]
	old := []model.Parameter{{Type: "str", Name: "what", Default: `"x"`}}

	params, err := Parameters(py, old, []model.ParamPosition{{Old: 0, New: 0}}, []string{"greeting"})
	require.NoError(t, err)
	assert.Equal(t, []model.Parameter{{Type: "str", Name: "greeting", Default: `"x"`}}, params)
}

func TestRefactorJava(t *testing.T) {
	t.Parallel()

	src := `package com.example;

public class Steps {
    @Step("Open <page>")
    public void open(String page) {
    }
}
`
	path := writeSample(t, "Steps.java", src)
	m := model.Method{Name: "com.example.Steps.open", ClassName: "com.example.Steps", FileName: path, StepText: "Open <page>"}

	change, err := newEngine().Refactor(m,
		[]model.ParamPosition{{Old: 0, New: 0}, {Old: -1, New: 1}},
		[]string{"page", "class"}, "Open <page> as <class>")
	require.NoError(t, err)

	assert.Contains(t, change.FileContent, `@Step("Open <page> as <class>")`)
	assert.Contains(t, change.FileContent, "public void open(String page, String _class)")
}

func TestRefactorPython(t *testing.T) {
	t.Parallel()

	src := `from getgauge.python import step


class Steps:
    @step("Open <page>")
    def open_page(self, page):
        pass
`
	path := writeSample(t, "steps.py", src)
	m := model.Method{Name: "Steps.open_page", ClassName: "Steps", FileName: path, StepText: "Open <page>"}

	change, err := newEngine().Refactor(m,
		[]model.ParamPosition{{Old: -1, New: 0}, {Old: 0, New: 1}},
		[]string{"browser", "page"}, "Open <browser> at <page>")
	require.NoError(t, err)

	assert.Contains(t, change.FileContent, `@step("Open <browser> at <page>")`)
	assert.Contains(t, change.FileContent, "def open_page(self, browser, page):")
}

func TestRefactorOverloadSuffix(t *testing.T) {
	t.Parallel()

	src := `namespace Samples
{
    public class Counter
    {
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
	path := writeSample(t, "Counter.cs", src)
	m := model.Method{Name: "Samples.Counter.Count-2", ClassName: "Samples.Counter", FileName: path, StepText: "Count <n> and <m>"}

	change, err := newEngine().Refactor(m,
		[]model.ParamPosition{{Old: 1, New: 0}, {Old: 0, New: 1}},
		[]string{"m", "n"}, "Count <m> and <n>")
	require.NoError(t, err)

	assert.Contains(t, change.FileContent, "public void Count(int n)\n")
	assert.Contains(t, change.FileContent, "public void Count(int m, int n)")
}
