package dialogue_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/glossa/internal/dialogue"
)

func vendorGraph() *dialogue.Graph {
	return dialogue.NewGraph(dialogue.KindVendor, "greet", []dialogue.Node{
		{
			ID:     "greet",
			Phrase: dialogue.Phrase{Text: "¡Hola! ¿Qué necesitas?"},
			Options: []dialogue.Option{
				{Text: "Muéstrame tus armas", Next: "weapons"},
				{Text: "Adiós", Next: "bye"},
			},
		},
		{ID: "weapons", Phrase: dialogue.Phrase{Text: "Aquí están."}, Next: "bye"},
		{ID: "bye", Phrase: dialogue.Phrase{Text: "¡Hasta luego!"}},
	})
}

func TestParseCharacterKind(t *testing.T) {
	t.Parallel()

	for _, k := range dialogue.Kinds() {
		got, err := dialogue.ParseCharacterKind(strings.ToUpper(k.String()))
		if err != nil {
			t.Fatalf("ParseCharacterKind(%q): %v", k, err)
		}
		if got != k {
			t.Errorf("ParseCharacterKind(%q) = %v", k, got)
		}
		if dialogue.DefaultProfile(k).Range <= 0 {
			t.Errorf("DefaultProfile(%s) has no interaction range", k)
		}
	}
	if _, err := dialogue.ParseCharacterKind("dragon"); err == nil {
		t.Error("ParseCharacterKind(dragon) succeeded, want error")
	}
}

func TestCharacterKind_Invalid(t *testing.T) {
	t.Parallel()

	k := dialogue.CharacterKind(99)
	if k.IsValid() {
		t.Error("kind 99 reported valid")
	}
	if _, err := k.MarshalText(); err == nil {
		t.Error("MarshalText of invalid kind succeeded")
	}
	if p := dialogue.DefaultProfile(k); p != (dialogue.Profile{}) {
		t.Errorf("DefaultProfile of invalid kind = %+v, want zero", p)
	}
}

func TestSpeaker_UnmarshalText(t *testing.T) {
	t.Parallel()

	var s dialogue.Speaker
	if err := s.UnmarshalText([]byte("Player")); err != nil || s != dialogue.SpeakerPlayer {
		t.Errorf("UnmarshalText(Player) = %v, %v", s, err)
	}
	if err := s.UnmarshalText(nil); err != nil || s != dialogue.SpeakerNPC {
		t.Errorf("UnmarshalText(empty) = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("narrator")); err == nil {
		t.Error("UnmarshalText(narrator) succeeded, want error")
	}
}

func TestGraph_Validate(t *testing.T) {
	t.Parallel()

	if err := vendorGraph().Validate(); err != nil {
		t.Fatalf("valid graph: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(g *dialogue.Graph)
		want   string
	}{
		{"missing entry", func(g *dialogue.Graph) { g.Entry = "nope" }, "entry node"},
		{"dangling next", func(g *dialogue.Graph) { g.Nodes["weapons"].Next = "shop" }, `next "shop"`},
		{"dangling option", func(g *dialogue.Graph) { g.Nodes["greet"].Options[1].Next = "void" }, `target "void"`},
		{"empty text", func(g *dialogue.Graph) { g.Nodes["bye"].Text = " " }, "has no text"},
		{"next and options", func(g *dialogue.Graph) { g.Nodes["greet"].Next = "bye" }, "both next and options"},
		{"bad kind", func(g *dialogue.Graph) { g.Character = -1 }, "invalid character"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := vendorGraph()
			tc.mutate(g)
			err := g.Validate()
			if err == nil {
				t.Fatal("Validate succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestNode_Terminal(t *testing.T) {
	t.Parallel()

	g := vendorGraph()
	for id, want := range map[string]bool{"greet": false, "weapons": false, "bye": true} {
		n, ok := g.Node(id)
		if !ok {
			t.Fatalf("node %q missing", id)
		}
		if n.Terminal() != want {
			t.Errorf("node %q Terminal = %v, want %v", id, n.Terminal(), want)
		}
	}
	greet, _ := g.Node("greet")
	if !slices.Equal(greet.OptionTexts(), []string{"Muéstrame tus armas", "Adiós"}) {
		t.Errorf("OptionTexts = %q", greet.OptionTexts())
	}
}

func TestPhrase_Alternates(t *testing.T) {
	t.Parallel()

	p := dialogue.Phrase{
		Text:     "Hola amigo",
		Phonetic: "ola amigo",
		Variants: map[string]string{"en-US": "hola a me go", "de-DE": "ola amigo"},
	}
	if got := p.Alternates("en-US"); !slices.Equal(got, []string{"ola amigo", "hola a me go"}) {
		t.Errorf("Alternates(en-US) = %q", got)
	}
	if got := p.Alternates("fr-FR"); !slices.Equal(got, []string{"ola amigo"}) {
		t.Errorf("Alternates(fr-FR) = %q", got)
	}
	if got := p.Alternates(""); !slices.Equal(got, []string{"ola amigo", "ola amigo", "hola a me go"}) {
		t.Errorf("Alternates(\"\") = %q", got)
	}
}

func TestLinearScript_Parity(t *testing.T) {
	t.Parallel()

	pairs := []dialogue.PhrasePair{
		{Native: "Hello", Target: dialogue.Phrase{Text: "Hola"}},
		{Native: "Hello friend", Target: dialogue.Phrase{Text: "Hola amigo"}},
		{Native: "How are you?", Target: dialogue.Phrase{Text: "¿Cómo estás?"}},
		{Native: "Very well", Target: dialogue.Phrase{Text: "Muy bien"}},
	}
	g, err := dialogue.LinearScript(dialogue.KindCat, pairs)
	if err != nil {
		t.Fatalf("LinearScript: %v", err)
	}
	if g.Entry != dialogue.StepID(0) {
		t.Errorf("Entry = %q", g.Entry)
	}
	for i := range pairs {
		n, ok := g.Node(dialogue.StepID(i))
		if !ok {
			t.Fatalf("step %d missing", i)
		}
		if n.Speaker != dialogue.StepSpeaker(i) {
			t.Errorf("step %d speaker = %s, want %s", i, n.Speaker, dialogue.StepSpeaker(i))
		}
		if n.Translation != pairs[i].Native {
			t.Errorf("step %d translation = %q", i, n.Translation)
		}
		if last := i == len(pairs)-1; n.Terminal() != last {
			t.Errorf("step %d Terminal = %v, want %v", i, n.Terminal(), last)
		}
	}
	if dialogue.StepSpeaker(0) != dialogue.SpeakerNPC || dialogue.StepSpeaker(1) != dialogue.SpeakerPlayer {
		t.Error("even steps must be NPC and odd steps player")
	}

	if _, err := dialogue.LinearScript(dialogue.KindCat, nil); err == nil {
		t.Error("LinearScript(nil) succeeded, want error")
	}
}
