// Package classify implements the client-capability classifier and the
// transmission policy it feeds: which downstream delivery shape a given
// request gets, chosen from the configured global mode, the request's
// stream flag, and the inferred client class.
package classify

import "strings"

// Class is one of the client categories the classifier distinguishes.
type Class string

const (
	ClassIDE         Class = "IDE"
	ClassCLI         Class = "CLI"
	ClassAPITesting  Class = "API-Testing"
	ClassBrowser     Class = "Browser"
	ClassEditor      Class = "Editor"
	ClassUnknown     Class = "Unknown"
)

// rule is one ordered (class, substrings) entry; the first rule whose
// substrings match any part of the lowercased User-Agent wins.
type rule struct {
	class      Class
	substrings []string
}

// rules is evaluated in order; first match wins.
var rules = []rule{
	{ClassIDE, []string{"rustrover", "intellij", "pycharm", "goland", "webstorm", "phpstorm", "datagrip", "clion", "rider", "jetbrains"}},
	{ClassCLI, []string{"curl", "wget", "httpie", "goose", "okhttp"}},
	{ClassAPITesting, []string{"postman", "insomnia", "thunder client", "paw"}},
	{ClassEditor, []string{"vscode", "code-oss", "cursor", "zed"}},
	{ClassBrowser, []string{"mozilla", "chrome", "safari", "firefox", "edge"}},
}

// Classification is the classifier's output: the inferred client Class
// plus whether the client's Accept header admits an SSE response.
type Classification struct {
	Class      Class
	AcceptsSSE bool
}

// Classify inspects User-Agent and Accept (case-insensitively) and returns
// the client class and SSE acceptance from the ordered substring rules.
func Classify(userAgent, accept string) Classification {
	ua := strings.ToLower(userAgent)

	class := ClassUnknown
	for _, r := range rules {
		for _, s := range r.substrings {
			if strings.Contains(ua, s) {
				class = r.class
				goto matched
			}
		}
	}
matched:

	return Classification{
		Class:      class,
		AcceptsSSE: acceptsSSE(accept),
	}
}

// acceptsSSE reports whether Accept admits text/event-stream: true if it
// contains "text/event-stream" or "*/*", or is empty (no stated
// preference).
func acceptsSSE(accept string) bool {
	if accept == "" {
		return true
	}
	lower := strings.ToLower(accept)
	return strings.Contains(lower, "text/event-stream") || strings.Contains(lower, "*/*")
}
