package chat

import "testing"

func TestGridSplitsRows(t *testing.T) {
	t.Parallel()

	buttons := make([]Button, 7)
	for i := range buttons {
		buttons[i] = Button{CustomID: string(rune('a' + i))}
	}
	layout := Grid(buttons, 5)
	if len(layout) != 2 {
		t.Fatalf("rows = %d, want 2", len(layout))
	}
	if len(layout[0]) != 5 || len(layout[1]) != 2 {
		t.Fatalf("row sizes = %d, %d, want 5, 2", len(layout[0]), len(layout[1]))
	}
	if got := len(layout.Buttons()); got != 7 {
		t.Fatalf("buttons = %d, want 7", got)
	}
	if Grid(nil, 5) != nil {
		t.Fatal("expected nil layout for no buttons")
	}
}

func TestLayoutEqual(t *testing.T) {
	t.Parallel()

	a := Layout{{{CustomID: "x", Label: "1d6"}}, {{CustomID: "y"}}}
	b := Layout{{{CustomID: "x", Label: "1d6"}}, {{CustomID: "y"}}}
	c := Layout{{{CustomID: "x", Label: "1d6", Disabled: true}}, {{CustomID: "y"}}}
	if !a.Equal(b) {
		t.Fatal("expected equal layouts")
	}
	if a.Equal(c) || a.Equal(a[:1]) {
		t.Fatal("expected different layouts")
	}
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	if (Event{ChannelID: "c", MessageID: "m"}).Validate() {
		t.Fatal("expected missing custom id to be invalid")
	}
	if !(Event{ChannelID: "c", MessageID: "m", CustomID: "x"}).Validate() {
		t.Fatal("expected valid event")
	}
}
