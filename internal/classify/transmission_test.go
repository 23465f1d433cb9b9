package classify

import "testing"

func TestPolicyPrecedenceTransmission(t *testing.T) {
	cases := []struct {
		name       string
		configured Mode
		stream     bool
		class      Class
		acceptsSSE bool
		want       Mode
	}{
		{"stream false always non-streaming", ModeBufferedSSE, false, ClassBrowser, true, ModeNonStreaming},
		{"configured mode wins over class", ModeClassicSSE, true, ClassIDE, true, ModeClassicSSE},
		{"auto ide forced non-streaming", ModeAuto, true, ClassIDE, true, ModeNonStreaming},
		{"auto cli forced non-streaming", ModeAuto, true, ClassCLI, true, ModeNonStreaming},
		{"auto api-testing forced non-streaming", ModeAuto, true, ClassAPITesting, true, ModeNonStreaming},
		{"auto browser buffered", ModeAuto, true, ClassBrowser, true, ModeBufferedSSE},
		{"auto editor standard", ModeAuto, true, ClassEditor, true, ModeStandardSSE},
		{"auto unknown without sse accept", ModeAuto, true, ClassUnknown, false, ModeNonStreaming},
		{"auto unknown with sse accept", ModeAuto, true, ClassUnknown, true, ModeStandardSSE},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Policy(c.configured, c.stream, Classification{Class: c.class, AcceptsSSE: c.acceptsSSE})
			if got != c.want {
				t.Errorf("Policy(%q, %v, %q) = %q, want %q", c.configured, c.stream, c.class, got, c.want)
			}
		})
	}
}
