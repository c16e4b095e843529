package chunker

import "strings"

// DefaultSeparators is the generic hierarchy: paragraphs, lines, token runs, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

var separatorTables = map[string][]string{
	"cpp": {
		"\nclass ", "\nvoid ", "\nint ", "\nfloat ", "\ndouble ",
		"\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ",
	},
	"go": {
		"\nfunc ", "\nvar ", "\nconst ", "\ntype ",
		"\nif ", "\nfor ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ",
	},
	"java": {
		"// LLM-REGION", "/* LLM-REGION", "/** LLM-REGION",
		"\nclass ", "\npublic ", "\nprotected ", "\nprivate ", "\nstatic ",
		"\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ",
	},
	"js": {
		"// LLM-REGION", "/* LLM-REGION", "/** LLM-REGION",
		"\nclass ", "\nfunction ", "\nconst ", "\nlet ", "\nvar ",
		"\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ", "\ndefault ",
		"\n\n", "\n", " ",
	},
	"php": {
		"\nfunction ", "\nclass ",
		"\nif ", "\nforeach ", "\nwhile ", "\ndo ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ",
	},
	"proto": {
		"\nmessage ", "\nservice ", "\nenum ", "\noption ", "\nimport ", "\nsyntax ",
		"\n\n", "\n", " ",
	},
	"python": {
		"\nclass ", "\ndef ", "\n\tdef ",
		"\n\n", "\n", " ",
	},
	"rst": {
		"\n===\n", "\n---\n", "\n***\n", "\n.. ",
		"\n\n", "\n", " ",
	},
	"ruby": {
		"\ndef ", "\nclass ",
		"\nif ", "\nunless ", "\nwhile ", "\nfor ", "\ndo ", "\nbegin ", "\nrescue ",
		"\n\n", "\n", " ",
	},
	"rust": {
		"\nfn ", "\nconst ", "\nlet ",
		"\nif ", "\nwhile ", "\nfor ", "\nloop ", "\nmatch ",
		"\n\n", "\n", " ",
	},
	"scala": {
		"\nclass ", "\nobject ", "\ndef ", "\nval ", "\nvar ",
		"\nif ", "\nfor ", "\nwhile ", "\nmatch ", "\ncase ",
		"\n\n", "\n", " ",
	},
	"swift": {
		"\nfunc ", "\nclass ", "\nstruct ", "\nenum ",
		"\nif ", "\nfor ", "\nwhile ", "\ndo ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ",
	},
	"markdown": {
		"\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
		"```\n\n", "\n\n***\n\n", "\n\n---\n\n", "\n\n___\n\n", "<table>",
		"\n\n", "\n", " ",
	},
	"latex": {
		"\n\\chapter{", "\n\\section{", "\n\\subsection{", "\n\\subsubsection{",
		"\n\\begin{enumerate}", "\n\\begin{itemize}", "\n\\begin{description}",
		"\n\\begin{list}", "\n\\begin{quote}", "\n\\begin{quotation}",
		"\n\\begin{verse}", "\n\\begin{verbatim}", "\n\\begin{align}",
		"$$", "$",
		"\n\n", "\n", " ",
	},
	"html": {
		"<body>", "<div>", "<p>", "<br>", "<li>",
		"<h1>", "<h2>", "<h3>", "<h4>", "<h5>", "<h6>",
		"<span>", "<table>", "<tr>", "<td>", "<th>", "<ul>", "<ol>",
		"<header>", "<footer>", "<nav>", "<head>", "<style>", "<script>", "<meta>", "<title>",
		" ",
	},
	"sol": {
		"\npragma ", "\nusing ", "\ncontract ", "\ninterface ", "\nlibrary ",
		"\nconstructor ", "\ntype ", "\nfunction ", "\nevent ", "\nmodifier ",
		"\nerror ", "\nstruct ", "\nenum ",
		"\nif ", "\nfor ", "\nwhile ", "\ndo while ", "\nassembly ",
		"\n\n", "\n", " ",
	},
}

var docTypeAliases = map[string]string{
	"c#":         "java",
	"csharp":     "java",
	"cs":         "java",
	"ts":         "java",
	"tsx":        "java",
	"typescript": "java",
	"jsx":        "js",
	"javascript": "js",
	"py":         "python",
	"md":         "markdown",
	"htm":        "html",
	"tex":        "latex",
	"rs":         "rust",
	"rb":         "ruby",
	"h":          "cpp",
	"hpp":        "cpp",
	"cc":         "cpp",
}

// Separators returns the split hierarchy for docType (a language or file extension,
// with or without a leading dot). Unknown types get DefaultSeparators.
func Separators(docType string) []string {
	key := strings.ToLower(strings.TrimPrefix(docType, "."))
	if alias, ok := docTypeAliases[key]; ok {
		key = alias
	}
	seps, ok := separatorTables[key]
	if !ok {
		seps = DefaultSeparators
	}
	out := make([]string, len(seps))
	copy(out, seps)
	return out
}
