package classify

import "testing"

func TestClassifyStableAndCaseInsensitive(t *testing.T) {
	cases := []struct {
		ua   string
		want Class
	}{
		{"RustRover/2024.1", ClassIDE},
		{"rustrover/2024.1", ClassIDE},
		{"curl/8.4.0", ClassCLI},
		{"PostmanRuntime/7.36.0", ClassAPITesting},
		{"vscode/1.85", ClassEditor},
		{"Cursor/0.1", ClassEditor},
		{"Mozilla/5.0 (Macintosh) Chrome/120.0", ClassBrowser},
		{"some-unlisted-client/1.0", ClassUnknown},
	}
	for _, c := range cases {
		got := Classify(c.ua, "").Class
		if got != c.want {
			t.Errorf("Classify(%q) = %q, want %q", c.ua, got, c.want)
		}
		// Idempotent / stable on repeat classification.
		if got2 := Classify(c.ua, "").Class; got2 != got {
			t.Errorf("Classify(%q) not stable: %q then %q", c.ua, got, got2)
		}
	}
}

func TestAcceptsSSE(t *testing.T) {
	cases := []struct {
		accept string
		want   bool
	}{
		{"", true},
		{"*/*", true},
		{"text/event-stream", true},
		{"application/json", false},
	}
	for _, c := range cases {
		if got := Classify("curl", c.accept).AcceptsSSE; got != c.want {
			t.Errorf("AcceptsSSE(%q) = %v, want %v", c.accept, got, c.want)
		}
	}
}

func TestPolicyPrecedence(t *testing.T) {
	ide := Classification{Class: ClassIDE, AcceptsSSE: true}
	browser := Classification{Class: ClassBrowser, AcceptsSSE: true}
	editor := Classification{Class: ClassEditor, AcceptsSSE: true}
	unknownNoSSE := Classification{Class: ClassUnknown, AcceptsSSE: false}
	unknownSSE := Classification{Class: ClassUnknown, AcceptsSSE: true}

	cases := []struct {
		name       string
		configured Mode
		stream     bool
		c          Classification
		want       Mode
	}{
		{"stream false always non-streaming", ModeStandardSSE, false, browser, ModeNonStreaming},
		{"configured mode wins verbatim", ModeClassicSSE, true, browser, ModeClassicSSE},
		{"auto IDE forced non-streaming even with stream true", ModeAuto, true, ide, ModeNonStreaming},
		{"auto browser buffered", ModeAuto, true, browser, ModeBufferedSSE},
		{"auto editor standard", ModeAuto, true, editor, ModeStandardSSE},
		{"auto unknown no sse non-streaming", ModeAuto, true, unknownNoSSE, ModeNonStreaming},
		{"auto unknown sse standard", ModeAuto, true, unknownSSE, ModeStandardSSE},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Policy(c.configured, c.stream, c.c); got != c.want {
				t.Errorf("Policy() = %q, want %q", got, c.want)
			}
		})
	}
}
