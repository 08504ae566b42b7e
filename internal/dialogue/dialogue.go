// Package dialogue defines the static dialogue content consumed by the
// engine: characters, branching node graphs, phrases and phrase pairs, plus
// the stores that load them (in-memory, YAML files and PostgreSQL).
//
// Content is loaded once and treated as read-only during play. A [Graph] is
// validated before it is handed to the engine, so the engine can rely on
// every node reference resolving.
package dialogue

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrNotFound is returned by stores when no content exists for a key.
var ErrNotFound = errors.New("dialogue: not found")

// CharacterKind identifies a conversational character. It replaces string
// keys so that voice parameters and content are looked up in tables indexed
// by the kind.
type CharacterKind int

const (
	KindVendor CharacterKind = iota
	KindCat
	KindGuide

	numKinds
)

// kindNames and defaultProfiles are indexed by CharacterKind. The array
// length checks below fail to compile when a kind is added without an entry.
var kindNames = [...]string{
	KindVendor: "vendor",
	KindCat:    "cat",
	KindGuide:  "guide",
}

var (
	_ [int(numKinds) - len(kindNames)]struct{}
	_ [len(kindNames) - int(numKinds)]struct{}
	_ [int(numKinds) - len(defaultProfiles)]struct{}
	_ [len(defaultProfiles) - int(numKinds)]struct{}
)

// Kinds returns every known character kind in declaration order.
func Kinds() []CharacterKind {
	out := make([]CharacterKind, 0, numKinds)
	for k := CharacterKind(0); k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}

// IsValid reports whether k is a known kind.
func (k CharacterKind) IsValid() bool {
	return k >= 0 && k < numKinds
}

// String returns the kind's configuration name.
func (k CharacterKind) String() string {
	if !k.IsValid() {
		return fmt.Sprintf("CharacterKind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseCharacterKind resolves a configuration name such as "vendor".
func ParseCharacterKind(s string) (CharacterKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := slices.Index(kindNames[:], s); i >= 0 {
		return CharacterKind(i), nil
	}
	return 0, fmt.Errorf("dialogue: unknown character %q; valid values: %s", s, strings.Join(kindNames[:], ", "))
}

// MarshalText implements [encoding.TextMarshaler].
func (k CharacterKind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("dialogue: invalid character kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler]; YAML and JSON both
// use it.
func (k *CharacterKind) UnmarshalText(b []byte) error {
	parsed, err := ParseCharacterKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Voice is the text-to-speech hint passed to the speaking collaborator.
type Voice struct {
	// Lang is the BCP-47 tag of the voice (e.g. "es-ES").
	Lang string `yaml:"lang" json:"lang"`

	// Name optionally selects a specific voice on the client.
	Name string `yaml:"name" json:"name,omitempty"`

	// Pitch and Rate are multipliers where 1 is the client default.
	Pitch float64 `yaml:"pitch" json:"pitch"`
	Rate  float64 `yaml:"rate" json:"rate"`
}

// Profile is the per-character presentation data.
type Profile struct {
	// DisplayName is shown in the dialogue box header.
	DisplayName string

	// Voice is the speech synthesis hint for the character's lines.
	Voice Voice

	// IdleAnimation is played when a conversation ends.
	IdleAnimation string

	// TalkAnimation is played while the character speaks.
	TalkAnimation string

	// Range is the maximum player distance, in world units, at which a
	// conversation may start or continue.
	Range float64
}

var defaultProfiles = [...]Profile{
	KindVendor: {
		DisplayName:   "Vendor",
		Voice:         Voice{Lang: "es-ES", Pitch: 0.9, Rate: 0.9},
		IdleAnimation: "idle",
		TalkAnimation: "talk",
		Range:         3,
	},
	KindCat: {
		DisplayName:   "Cat",
		Voice:         Voice{Lang: "es-ES", Pitch: 1.6, Rate: 1.1},
		IdleAnimation: "sit",
		TalkAnimation: "meow",
		Range:         2,
	},
	KindGuide: {
		DisplayName:   "Guide",
		Voice:         Voice{Lang: "es-ES", Pitch: 1, Rate: 0.85},
		IdleAnimation: "idle",
		TalkAnimation: "gesture",
		Range:         4,
	},
}

// DefaultProfile returns the built-in profile of k. Unknown kinds get a zero
// profile.
func DefaultProfile(k CharacterKind) Profile {
	if !k.IsValid() {
		return Profile{}
	}
	return defaultProfiles[k]
}

// Speaker says who delivers a node's line.
type Speaker int

const (
	// SpeakerNPC nodes are spoken by the character and advance on their own.
	SpeakerNPC Speaker = iota

	// SpeakerPlayer nodes must be said (or chosen) by the player.
	SpeakerPlayer
)

// String returns "npc" or "player".
func (s Speaker) String() string {
	if s == SpeakerPlayer {
		return "player"
	}
	return "npc"
}

// MarshalText implements [encoding.TextMarshaler].
func (s Speaker) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler]. Empty input means
// SpeakerNPC.
func (s *Speaker) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "", "npc":
		*s = SpeakerNPC
	case "player":
		*s = SpeakerPlayer
	default:
		return fmt.Errorf("dialogue: unknown speaker %q; valid values: npc, player", b)
	}
	return nil
}

// Phrase is a unit of spoken content in the language being practised.
type Phrase struct {
	// Text is the written phrase.
	Text string `yaml:"text" json:"text"`

	// Phonetic is an optional transcription of how the phrase sounds to a
	// recogniser running in the learner's locale.
	Phonetic string `yaml:"phonetic,omitempty" json:"phonetic,omitempty"`

	// Variants maps a recogniser locale (e.g. "en-US") to the spelling that
	// recogniser tends to produce for this phrase.
	Variants map[string]string `yaml:"variants,omitempty" json:"variants,omitempty"`

	// Lang is the BCP-47 tag of Text.
	Lang string `yaml:"lang,omitempty" json:"lang,omitempty"`
}

// Alternates returns the renderings a transcript may be scored against
// besides Text: the phonetic transcription and the variant for locale. An
// empty locale includes every variant, in locale order.
func (p Phrase) Alternates(locale string) []string {
	var out []string
	if p.Phonetic != "" {
		out = append(out, p.Phonetic)
	}
	if locale != "" {
		if v, ok := p.Variants[locale]; ok {
			out = append(out, v)
		}
		return out
	}
	locales := make([]string, 0, len(p.Variants))
	for l := range p.Variants {
		locales = append(locales, l)
	}
	slices.Sort(locales)
	for _, l := range locales {
		out = append(out, p.Variants[l])
	}
	return out
}

// Option is one player response at a branching node.
type Option struct {
	// Text is what the player says or clicks.
	Text string `yaml:"text" json:"text"`

	// Next is the id of the node reached by choosing this option.
	Next string `yaml:"next" json:"next"`
}

// Node is one step of a conversation.
type Node struct {
	// ID is unique within its graph.
	ID string `yaml:"id" json:"id"`

	// Speaker says who delivers Text.
	Speaker Speaker `yaml:"speaker" json:"speaker"`

	// Phrase is the line of this node.
	Phrase `yaml:",inline"`

	// Translation is Text in the learner's mother language.
	Translation string `yaml:"translation,omitempty" json:"translation,omitempty"`

	// Next is the implicit successor of a node without options.
	Next string `yaml:"next,omitempty" json:"next,omitempty"`

	// Options are the player's responses. A node with options branches; a
	// node with neither options nor Next is terminal.
	Options []Option `yaml:"options,omitempty" json:"options,omitempty"`
}

// Terminal reports whether the conversation ends at n.
func (n *Node) Terminal() bool {
	return len(n.Options) == 0 && n.Next == ""
}

// OptionTexts returns the display text of every option.
func (n *Node) OptionTexts() []string {
	out := make([]string, len(n.Options))
	for i, o := range n.Options {
		out[i] = o.Text
	}
	return out
}

// Graph is the complete conversation of one character.
type Graph struct {
	// Character owns the conversation.
	Character CharacterKind

	// Entry is the id of the first node.
	Entry string

	// Nodes maps node ids to nodes.
	Nodes map[string]*Node
}

// NewGraph builds a graph from nodes in authoring order. It does not
// validate; call [Graph.Validate].
func NewGraph(kind CharacterKind, entry string, nodes []Node) *Graph {
	g := &Graph{Character: kind, Entry: entry, Nodes: make(map[string]*Node, len(nodes))}
	for i := range nodes {
		n := nodes[i]
		g.Nodes[n.ID] = &n
	}
	return g
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// SortedNodes returns the nodes ordered by id, for stable serialisation.
func (g *Graph) SortedNodes() []Node {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, *g.Nodes[id])
	}
	return out
}

// Validate checks that the entry and every Next and option target exist and
// that no node is empty. It returns all problems joined.
func (g *Graph) Validate() error {
	var errs []error
	prefix := "dialogue: " + g.Character.String()

	if !g.Character.IsValid() {
		errs = append(errs, fmt.Errorf("%s: invalid character kind", prefix))
	}
	if len(g.Nodes) == 0 {
		errs = append(errs, fmt.Errorf("%s: graph has no nodes", prefix))
	}
	if _, ok := g.Nodes[g.Entry]; !ok {
		errs = append(errs, fmt.Errorf("%s: entry node %q does not exist", prefix, g.Entry))
	}

	for _, n := range g.SortedNodes() {
		if n.ID == "" {
			errs = append(errs, fmt.Errorf("%s: node with empty id", prefix))
			continue
		}
		if strings.TrimSpace(n.Text) == "" {
			errs = append(errs, fmt.Errorf("%s: node %q has no text", prefix, n.ID))
		}
		if n.Next != "" && len(n.Options) > 0 {
			errs = append(errs, fmt.Errorf("%s: node %q has both next and options", prefix, n.ID))
		}
		if n.Next != "" {
			if _, ok := g.Nodes[n.Next]; !ok {
				errs = append(errs, fmt.Errorf("%s: node %q: next %q does not exist", prefix, n.ID, n.Next))
			}
		}
		for i, o := range n.Options {
			if strings.TrimSpace(o.Text) == "" {
				errs = append(errs, fmt.Errorf("%s: node %q: options[%d] has no text", prefix, n.ID, i))
			}
			if _, ok := g.Nodes[o.Next]; !ok {
				errs = append(errs, fmt.Errorf("%s: node %q: options[%d] target %q does not exist", prefix, n.ID, i, o.Next))
			}
		}
	}
	return errors.Join(errs...)
}
