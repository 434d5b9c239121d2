package service

import "strings"

// LSP completion item kinds and insert text formats used by the editor.
const (
	CompletionKindFunction = 3
	CompletionKindSnippet  = 15

	InsertTextFormatSnippet = 2
)

// CompletionRequest is the editor context at the cursor.
type CompletionRequest struct {
	Prefix   string `json:"prefix"`
	Line     string `json:"line"`
	Language string `json:"language"`
}

// Completion mirrors an LSP CompletionItem.
type Completion struct {
	Label            string `json:"label"`
	Kind             int    `json:"kind"`
	Detail           string `json:"detail"`
	Documentation    string `json:"documentation"`
	InsertText       string `json:"insertText"`
	InsertTextFormat int    `json:"insertTextFormat"`
	SortText         string `json:"sortText"`
}

type completionRule struct {
	triggers []string
	item     Completion
}

var completionRules = []completionRule{
	{
		triggers: []string{"comp", "react"},
		item: Completion{
			Label:         "React Component",
			Kind:          CompletionKindSnippet,
			Detail:        "Create a new React functional component",
			Documentation: "Create a new React functional component with props",
			InsertText: strings.Join([]string{
				"function ${1:ComponentName}({ ${2:props} }) {",
				"\treturn (",
				"\t\t<div>",
				"\t\t\t${3}",
				"\t\t</div>",
				"\t);",
				"}",
			}, "\n"),
		},
	},
	{
		triggers: []string{"con", "log"},
		item: Completion{
			Label:         "console.log",
			Kind:          CompletionKindFunction,
			Detail:        "Log output to the console",
			Documentation: "Log output to the console",
			InsertText:    "console.log(${1});",
		},
	},
	{
		triggers: []string{"fun", "function"},
		item: Completion{
			Label:         "function",
			Kind:          CompletionKindSnippet,
			Detail:        "Create a new function",
			Documentation: "Create a new function",
			InsertText:    "function ${1:name}(${2:params}) {\n\t${3}\n}",
		},
	},
	{
		triggers: []string{"arr", "=>"},
		item: Completion{
			Label:         "Arrow Function",
			Kind:          CompletionKindSnippet,
			Detail:        "Create a new arrow function",
			Documentation: "Create a new arrow function",
			InsertText:    "(${1:params}) => ${2}",
		},
	},
	{
		triggers: []string{"use", "state"},
		item: Completion{
			Label:         "useState",
			Kind:          CompletionKindSnippet,
			Detail:        "React useState hook",
			Documentation: "Declare a new state variable with useState hook",
			InsertText:    "const [${1:state}, set${1/(.*)/${1:/capitalize}/}] = useState(${2:initialState});",
		},
	},
	{
		triggers: []string{"use", "effect"},
		item: Completion{
			Label:         "useEffect",
			Kind:          CompletionKindSnippet,
			Detail:        "React useEffect hook",
			Documentation: "Setup side effects with useEffect hook",
			InsertText:    "useEffect(() => {\n\t${1}\n}, [${2}]);",
		},
	},
}

var completionLanguages = map[string]bool{
	"javascript":      true,
	"typescript":      true,
	"typescriptreact": true,
}

// Suggest returns the static snippets whose trigger words appear in the
// prefix, in a fixed order. An empty prefix matches every rule. Languages
// outside the JavaScript family get nothing.
func Suggest(req CompletionRequest) []Completion {
	out := []Completion{}
	if !completionLanguages[req.Language] {
		return out
	}
	for i, rule := range completionRules {
		if req.Prefix != "" && !containsAny(req.Prefix, rule.triggers) {
			continue
		}
		item := rule.item
		item.InsertTextFormat = InsertTextFormatSnippet
		item.SortText = string(rune('0' + i))
		out = append(out, item)
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
