package hallucination

import "testing"

func TestIsHallucination(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{"ok", true},
		{"  hi ", true},
		{"subscribe", true},
		{"Subscribe.", true},
		{"I want to subscribe to the plan", false},
		{"thank you", true},
		{"Thank you.", true},
		{"thank you for the help with the report", false},
		{"you", true},
		{"you should call her", false},
		{"[Music]", true},
		{"[BLANK_AUDIO]", true},
		{"Thanks for watching!", true},
		{"Please subscribe to my channel", true},
		{"Subtítulos realizados por la comunidad de Amara.org", true},
		{"(door closes)", true},
		{"[inaudible]", true},
		{"(see attached) and more", false},
		{"...", true},
		{"?!?!", true},
		{"♪ ♪ ♪", true},
		{"hello world", false},
		{"1. 2. 3.", false},
		{"buy milk", false},
		{"gracias", true},
		{"gracias por todo lo que hiciste", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := IsHallucination(tt.text); got != tt.want {
				t.Errorf("IsHallucination(%q) = %v; want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		text   string
		want   string
		wantOK bool
	}{
		{"Thank you. Send the report today", "Send the report today", true},
		{"thank you, send it", "send it", true},
		{"Thanks! Call me later", "Call me later", true},
		{"Gracias. Nos vemos mañana", "Nos vemos mañana", true},
		{"Thank you very much. Next item", "Next item", true},
		{"thank you", "", false},
		{"Thank you.", "", false},
		{"Thanksgiving dinner is ready", "Thanksgiving dinner is ready", true},
		{"send the report", "send the report", true},
		{"  ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := Sanitize(tt.text)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Sanitize(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	if got, ok := Filter("Thank you. [Music]"); ok {
		t.Errorf("Filter kept %q", got)
	}
	if got, ok := Filter("Thank you. Buy more milk"); !ok || got != "Buy more milk" {
		t.Errorf("Filter = %q, %v", got, ok)
	}
	if _, ok := Filter("thank you"); ok {
		t.Error("Filter kept bare opener")
	}
}
