package dialogue

import (
	"errors"
	"fmt"
)

// PhrasePair couples a phrase in the language being practised with its
// meaning in the learner's mother language.
type PhrasePair struct {
	// Native is the phrase in the mother language.
	Native string `yaml:"native" json:"native"`

	// Target is the phrase in the practised language.
	Target Phrase `yaml:"target" json:"target"`
}

// StepID returns the node id LinearScript assigns to step i.
func StepID(i int) string {
	return fmt.Sprintf("step-%d", i)
}

// LinearScript turns an ordered list of phrase pairs into a conversation
// where turn parity is a function of the step index: even steps are spoken
// by the character, odd steps must be repeated by the player. The last step
// is terminal.
func LinearScript(kind CharacterKind, pairs []PhrasePair) (*Graph, error) {
	if len(pairs) == 0 {
		return nil, errors.New("dialogue: linear script needs at least one phrase pair")
	}
	nodes := make([]Node, len(pairs))
	for i, p := range pairs {
		nodes[i] = Node{
			ID:          StepID(i),
			Speaker:     StepSpeaker(i),
			Phrase:      p.Target,
			Translation: p.Native,
		}
		if i+1 < len(pairs) {
			nodes[i].Next = StepID(i + 1)
		}
	}
	g := NewGraph(kind, StepID(0), nodes)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// StepSpeaker is the turn parity rule of linear scripts.
func StepSpeaker(step int) Speaker {
	if step%2 == 0 {
		return SpeakerNPC
	}
	return SpeakerPlayer
}
