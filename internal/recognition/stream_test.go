package recognition_test

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/glossa/internal/recognition"
	"github.com/MrWong99/glossa/pkg/provider/stt"
	sttmock "github.com/MrWong99/glossa/pkg/provider/stt/mock"
)

type event struct {
	kind  string
	text  string
	final bool
}

func collectingHandler() (recognition.Handler, func() []event, <-chan struct{}) {
	var (
		mu     sync.Mutex
		events []event
	)
	ended := make(chan struct{})
	h := recognition.Handler{
		OnResult: func(text string, final bool) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, event{"result", text, final})
		},
		OnError: func(err error) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, event{kind: "error", text: err.Error()})
		},
		OnEnd: func() { close(ended) },
	}
	return h, func() []event {
		mu.Lock()
		defer mu.Unlock()
		return slices.Clone(events)
	}, ended
}

func TestStreamRecognizer_ForwardsAndEnds(t *testing.T) {
	t.Parallel()

	s := sttmock.NewStream()
	p := &sttmock.Provider{Streams: []*sttmock.Stream{s}}
	r := recognition.NewStreamRecognizer(p, stt.StreamConfig{Language: "es-ES", Interim: true})

	h, events, ended := collectingHandler()
	if err := r.Start(h); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.FinalsCh <- stt.Transcript{Text: "hola amigo", IsFinal: true}
	s.ErrorsCh <- &stt.Error{Code: "no-speech"}
	s.End()

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("OnEnd not called after stream ended")
	}
	got := events()
	if len(got) != 2 {
		t.Fatalf("events = %+v", got)
	}
	if !slices.Contains(got, event{"result", "hola amigo", true}) {
		t.Errorf("final not forwarded: %+v", got)
	}
	if p.StartStreamCalls[0].Cfg.Language != "es-ES" {
		t.Errorf("stream config = %+v", p.StartStreamCalls[0].Cfg)
	}
}

func TestStreamRecognizer_StopClosesWithoutEnd(t *testing.T) {
	t.Parallel()

	s := sttmock.NewStream()
	p := &sttmock.Provider{Streams: []*sttmock.Stream{s}}
	r := recognition.NewStreamRecognizer(p, stt.StreamConfig{})

	h, _, ended := collectingHandler()
	if err := r.Start(h); err != nil {
		t.Fatal(err)
	}
	r.Stop()
	r.Stop()

	if s.CloseCalls() != 1 {
		t.Errorf("Close calls = %d, want 1", s.CloseCalls())
	}
	select {
	case <-ended:
		t.Error("OnEnd called after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStreamRecognizer_Hints(t *testing.T) {
	t.Parallel()

	s := sttmock.NewStream()
	p := &sttmock.Provider{Streams: []*sttmock.Stream{s}}
	r := recognition.NewStreamRecognizer(p, stt.StreamConfig{})

	if err := r.SetHints([]string{"hola"}); err != nil {
		t.Fatal(err)
	}
	h, _, _ := collectingHandler()
	if err := r.Start(h); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Stop)
	if got := p.StartStreamCalls[0].Cfg.Hints; !slices.Equal(got, []string{"hola"}) {
		t.Errorf("stream hints = %q", got)
	}
	if err := r.SetHints([]string{"adiós"}); err != nil {
		t.Fatal(err)
	}
	if got := s.Hints(); len(got) != 1 || got[0][0] != "adiós" {
		t.Errorf("open stream hints = %q", got)
	}
}

func TestStreamRecognizer_StartError(t *testing.T) {
	t.Parallel()

	p := &sttmock.Provider{StartStreamErr: &stt.Error{Code: "not-allowed"}}
	r := recognition.NewStreamRecognizer(p, stt.StreamConfig{})
	h, _, _ := collectingHandler()
	err := r.Start(h)
	var se *stt.Error
	if !errors.As(err, &se) || se.Code != "not-allowed" {
		t.Errorf("Start error = %v", err)
	}
}

func TestStreamRecognizer_DrivesController(t *testing.T) {
	t.Parallel()

	p := &sttmock.Provider{}
	r := recognition.NewStreamRecognizer(p, stt.StreamConfig{})
	c := recognition.NewController(r, recognition.Config{}, recognition.WithMetrics(testMetrics(t)))

	got := make(chan transcript, 4)
	sink := sinkFunc(func(token uint64, text string, final bool) { got <- transcript{token, text, final} })
	if err := c.Listen(9, sink); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Stop)

	p.Started[0].FinalsCh <- stt.Transcript{Text: "muy bien", IsFinal: true}
	select {
	case tr := <-got:
		if tr != (transcript{9, "muy bien", true}) {
			t.Errorf("transcript = %+v", tr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no transcript delivered")
	}
}

type sinkFunc func(token uint64, text string, final bool)

func (f sinkFunc) Transcript(token uint64, text string, final bool) { f(token, text, final) }
func (sinkFunc) RecognitionStatus(uint64, recognition.Status)       {}
