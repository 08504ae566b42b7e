package dialogue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the top-level structure of a dialogue content YAML file.
//
// Example:
//
//	conversations:
//	  - character: vendor
//	    entry: greet
//	    nodes:
//	      - id: greet
//	        text: "¡Hola! ¿Qué necesitas?"
//	        translation: "Hello! What do you need?"
//	        options:
//	          - text: "Muéstrame tus armas"
//	            next: weapons
//	      - id: weapons
//	        text: "Aquí están mis mejores espadas."
//	lessons:
//	  - character: cat
//	    mother: en
//	    target: es
//	    pairs:
//	      - native: "Hello friend"
//	        target: {text: "Hola amigo", phonetic: "ola amigo"}
type File struct {
	Conversations []ConversationDef `yaml:"conversations"`
	Lessons       []LessonDef       `yaml:"lessons"`
}

// ConversationDef is an authored branching conversation.
type ConversationDef struct {
	Character CharacterKind `yaml:"character"`
	Entry     string        `yaml:"entry"`
	Nodes     []Node        `yaml:"nodes"`
}

// LessonDef is a list of phrase pairs practised with a character. It becomes
// a [LinearScript] for the character and is also stored by language pair.
type LessonDef struct {
	Character CharacterKind `yaml:"character"`
	Mother    string        `yaml:"mother"`
	Target    string        `yaml:"target"`
	Pairs     []PhrasePair  `yaml:"pairs"`
}

// LoadFile reads and parses a dialogue content file from disk.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dialogue: open content file %q: %w", path, err)
	}
	defer f.Close()

	df, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("dialogue: parse content file %q: %w", path, err)
	}
	return df, nil
}

// LoadFromReader parses dialogue YAML from r. Unknown keys are rejected to
// catch typos.
func LoadFromReader(r io.Reader) (*File, error) {
	var df File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&df); err != nil {
		return nil, fmt.Errorf("dialogue: decode yaml: %w", err)
	}
	return &df, nil
}

// Graphs builds and validates every conversation and lesson in f. A
// character may appear only once across both lists.
func (f *File) Graphs() ([]*Graph, error) {
	var (
		out  []*Graph
		errs []error
		seen = make(map[CharacterKind]bool)
	)
	add := func(g *Graph) {
		if seen[g.Character] {
			errs = append(errs, fmt.Errorf("dialogue: character %s defined more than once", g.Character))
			return
		}
		seen[g.Character] = true
		out = append(out, g)
	}

	for _, c := range f.Conversations {
		g := NewGraph(c.Character, c.Entry, c.Nodes)
		if len(g.Nodes) != len(c.Nodes) {
			errs = append(errs, fmt.Errorf("dialogue: %s: duplicate node ids", c.Character))
			continue
		}
		if err := g.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		add(g)
	}
	for _, l := range f.Lessons {
		g, err := LinearScript(l.Character, l.Pairs)
		if err != nil {
			errs = append(errs, fmt.Errorf("dialogue: lesson %s->%s: %w", l.Mother, l.Target, err))
			continue
		}
		add(g)
	}
	return out, errors.Join(errs...)
}

// Import validates f and writes its graphs and phrase pairs into store.
// It returns the number of graphs saved; the first store error aborts.
func Import(ctx context.Context, store Store, f *File) (int, error) {
	if f == nil {
		return 0, errors.New("dialogue: content file must not be nil")
	}
	graphs, err := f.Graphs()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, g := range graphs {
		if err := store.SaveGraph(ctx, g); err != nil {
			return n, fmt.Errorf("dialogue: import %s: %w", g.Character, err)
		}
		n++
	}
	for _, l := range f.Lessons {
		if err := store.SavePhrasePairs(ctx, l.Mother, l.Target, l.Pairs); err != nil {
			return n, fmt.Errorf("dialogue: import lesson %s->%s: %w", l.Mother, l.Target, err)
		}
	}
	return n, nil
}
