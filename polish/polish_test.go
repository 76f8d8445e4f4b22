package polish

import "testing"

func TestProcessFinal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		mode Mode
		want string
	}{
		{"spoken comma", "hola coma mundo", Fluent, "Hola, mundo."},
		{"fillers removed", "eh hola um mundo", Fluent, "Hola mundo."},
		{"fillers kept in basic", "eh hola", Basic, "Eh hola."},
		{"off only normalizes", "hola  coma mundo ,bye", Off, "hola coma mundo, bye"},
		{"question mark", "how are you question mark", Fluent, "How are you?"},
		{"spanish punto y coma", "uno punto y coma dos", Fluent, "Uno; dos."},
		{"new paragraph", "first part new paragraph second part", Fluent, "First part\n\nSecond part."},
		{"new line", "dear john new line thanks", Basic, "Dear john\nThanks."},
		{"sentence starts", "one. two! three? four", Fluent, "One. Two! Three? Four."},
		{"strips trailing comma", "hello world,", Fluent, "Hello world."},
		{"keeps existing terminal", "Hello world!", Fluent, "Hello world!"},
		{"inverted question", "¿qué tal? bien", Fluent, "¿Qué tal? Bien."},
		{"elongated filler", "ummm so uhhh yes", Fluent, "So yes."},
		{"filler punctuation moves", "I think so um. Next", Fluent, "I think so. Next."},
		{"decimal", "it costs 3.5 euros", Fluent, "It costs 3.5 euros."},
		{"period ends text", "hello period", Fluent, "Hello."},
		{"period before line break", "hello period new line bye", Fluent, "Hello.\nBye."},
		{"punctuated period", "hello period. how are you", Fluent, "Hello. How are you."},
		{"colon before command", "items colon new line apples", Fluent, "Items:\nApples."},
		{"punto ends text", "hola punto", Fluent, "Hola."},
		{"words inside a clause", "the trial period ended and my colon hurts", Fluent, "The trial period ended and my colon hurts."},
		{"punto inside a clause", "es el punto de partida", Fluent, "Es el punto de partida."},
		{"empty", "   ", Fluent, ""},
		{"only fillers", "um eh", Fluent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProcessFinal(tt.in, tt.mode); got != tt.want {
				t.Errorf("ProcessFinal(%q, %v) = %q; want %q", tt.in, tt.mode, got, tt.want)
			}
		})
	}
}

func TestProcessChunk(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		mode    Mode
		isFirst bool
		want    string
	}{
		{"first chunk capitalized", "hello there", Fluent, true, "Hello there"},
		{"later chunk untouched", "hello there", Fluent, false, "hello there"},
		{"no terminal punctuation", "and then", Basic, true, "And then"},
		{"off keeps case", "hello", Off, true, "hello"},
		{"fillers", "um and then", Fluent, false, "and then"},
		{"spoken period", "done period", Fluent, false, "done."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProcessChunk(tt.in, tt.mode, tt.isFirst); got != tt.want {
				t.Errorf("ProcessChunk(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNumberedList(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain list", "1. apples 2. bananas 3. oranges.", "1. Apples\n2. Bananas\n3. Oranges"},
		{"with preamble", "buy these for 1. apples 2. bananas 3. oranges.", "Buy these for:\n1. Apples\n2. Bananas\n3. Oranges"},
		{"not from one", "2. apples 3. bananas", "2. Apples 3. Bananas."},
		{"not consecutive", "1. apples 3. bananas", "1. Apples 3. Bananas."},
		{"single marker", "1. apples only", "1. Apples only."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProcessFinal(tt.in, Fluent); got != tt.want {
				t.Errorf("ProcessFinal(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a  b", "a b"},
		{"a , b", "a, b"},
		{"a,b", "a, b"},
		{"wait ...", "wait..."},
		{"at 10:30 today", "at 10:30 today"},
		{"see example.com now", "see example.com now"},
		{"one\n\n\n\ntwo", "one\n\ntwo"},
		{"  one \n two  ", "one\ntwo"},
		{"end .", "end."},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"off": Off, "Basic": Basic, "fluent": Fluent, "": Fluent} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("loud"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
