// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

type Id int

const (
	ManifestNotFoundId Id = iota + 1
	ManifestInvalidId
	ConfigLoadFailedId
	SourceTreeUnreadableId
	ToolNotFoundId
	AnalyzerFailedId
	AnalyzerOutputMalformedId
	DependencyCycleId
	CompilerFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // must never be empty, every issue type is documented
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal markdown using the given glamour style.
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

const (
	docsBase   = "https://mu-build.dev/docs/"
	coqdepDocs = "https://coq.inria.fr/doc/master/refman/practical-tools/utilities.html#computing-module-dependencies"
	coqcDocs   = "https://coq.inria.fr/doc/master/refman/practical-tools/coq-commands.html"
)

var (
	render = glamour.Render

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# No Gallus.toml found!

mu looks for a ` + "`Gallus.toml`" + ` in the current directory and then in every parent
directory. The directory holding it is the project root.

## Things you can try:
- Run mu from inside your project, or point it at one:
~~~
$ mu build -C path/to/project
~~~

- Create a minimal manifest at the project root:
~~~toml
[package]
name = "my-theories"
version = "0.1.0"
~~~`,
		docLinks: []HttpLink{docsBase + "manifest"},
	}

	manifestInvalidIssue = &Issue{
		id: ManifestInvalidId,
		mdMsg: `
# Invalid Gallus.toml!

The manifest could not be read. Either it is not valid TOML, a required key is
missing, or a key holds a value of the wrong type.

## Required keys:
- ` + "`package.name`" + ` (string)
- ` + "`package.version`" + ` (string)

## Optional keys:
- ` + "`package.authors`" + ` (array of strings)
- ` + "`[dependencies]`" + ` (table of version strings)`,
		docLinks: []HttpLink{docsBase + "manifest"},
		extLinks: []HttpLink{"https://toml.io/en/v1.0.0"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Your mu configuration file could not be loaded.

## Things you can try:
- Show where mu reads its configuration from:
~~~
$ mu config path
~~~

- Compare with the defaults:
~~~
$ mu config show
~~~

- Regenerate a default configuration (only if none exists):
~~~
$ mu config init
~~~`,
		docLinks: []HttpLink{docsBase + "configuration"},
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	sourceTreeUnreadableIssue = &Issue{
		id: SourceTreeUnreadableId,
		mdMsg: `
# Failed to scan the project!

A directory below the project root could not be read, so nothing was built.

## Things you can try:
- Check the permissions of the directory named above
- Remove dangling symbolic links from the project tree`,
		docLinks: []HttpLink{docsBase + "layout"},
	}

	toolNotFoundIssue = &Issue{
		id: ToolNotFoundId,
		mdMsg: `
# Coq tool not found!

mu runs ` + "`coqdep`" + ` to find dependencies and ` + "`coqc`" + ` to compile, and one of them
could not be started.

## Things you can try:
- Make sure Coq is installed and on your PATH:
~~~
$ coqc --version
~~~

- Point mu at specific binaries in your configuration:
~~~cue
tools: {
	analyzer: "/opt/coq/bin/coqdep"
	compiler: "/opt/coq/bin/coqc"
}
~~~`,
		docLinks: []HttpLink{docsBase + "configuration"},
		extLinks: []HttpLink{"https://coq.inria.fr/download"},
	}

	analyzerFailedIssue = &Issue{
		id: AnalyzerFailedId,
		mdMsg: `
# Dependency analysis failed!

` + "`coqdep`" + ` exited with an error. Its output is shown above, unchanged.

## Things you can try:
- Look for a ` + "`Require`" + ` of a library that is not installed
- Run the printed command by hand to reproduce it`,
		docLinks: []HttpLink{docsBase + "troubleshooting"},
		extLinks: []HttpLink{coqdepDocs},
	}

	analyzerOutputMalformedIssue = &Issue{
		id: AnalyzerOutputMalformedId,
		mdMsg: `
# Unexpected coqdep output!

Every line printed by the dependency analyzer must have the form
` + "`<products> : <dependencies>`" + `, with exactly one colon. A file path containing
a colon produces such a line.

## Things you can try:
- Rename files or directories whose names contain ` + "`:`" + `
- Check that ` + "`tools.analyzer`" + ` really points at coqdep`,
		docLinks: []HttpLink{docsBase + "troubleshooting"},
		extLinks: []HttpLink{coqdepDocs},
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

The files listed above require each other, so none of them can be compiled first.

## Things you can try:
- Move the shared definitions into a new file both can require
- Inspect the graph:
~~~
$ mu deps
~~~`,
		docLinks: []HttpLink{docsBase + "troubleshooting"},
	}

	compilerFailedIssue = &Issue{
		id: CompilerFailedId,
		mdMsg: `
# Compilation failed!

` + "`coqc`" + ` reported an error. Its output is shown above, unchanged. The build
stopped at the first failing directory.

## Things you can try:
- Fix the reported error and run ` + "`mu build`" + ` again
- Print what mu would run without running it:
~~~
$ mu build --dry-run
~~~`,
		docLinks: []HttpLink{docsBase + "troubleshooting"},
		extLinks: []HttpLink{coqcDocs},
	}

	issues = map[Id]*Issue{
		manifestNotFoundIssue.Id():        manifestNotFoundIssue,
		manifestInvalidIssue.Id():         manifestInvalidIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		sourceTreeUnreadableIssue.Id():    sourceTreeUnreadableIssue,
		toolNotFoundIssue.Id():            toolNotFoundIssue,
		analyzerFailedIssue.Id():          analyzerFailedIssue,
		analyzerOutputMalformedIssue.Id(): analyzerOutputMalformedIssue,
		dependencyCycleIssue.Id():         dependencyCycleIssue,
		compilerFailedIssue.Id():          compilerFailedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
