package generator

import (
	"errors"
	"fmt"
	"testing"

	storybook "github.com/opd-ai/storybook/src"
)

var _ storybook.Progressor = (*GenerationProgress)(nil)

func TestStateMachine(t *testing.T) {
	tests := []struct {
		name   string
		steps  []GenerationState
		want   GenerationState
		reject int
	}{
		{"happy path", []GenerationState{StateGenerating, StateCompleted}, StateCompleted, 0},
		{"error is terminal", []GenerationState{StateGenerating, StateError, StateCompleted}, StateError, 1},
		{"completed is terminal", []GenerationState{StateGenerating, StateCompleted, StateGenerating}, StateCompleted, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gp := NewGenerationProgress("s1")
			rejected := 0
			for _, s := range tt.steps {
				if !gp.UpdateState(s) {
					rejected++
				}
			}
			if gp.GetState() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, gp.GetState())
			}
			if rejected != tt.reject {
				t.Errorf("Expected %d rejected transitions, got %d", tt.reject, rejected)
			}
		})
	}
}

func TestProgressSnapshot(t *testing.T) {
	gp := NewGenerationProgress("s1")
	gp.UpdateState(StateGenerating)
	gp.UpdatePage(0, 20)
	gp.UpdateOutput("Page 1: submitting generation")
	gp.UpdatePage(5, 20)

	snap := gp.Snapshot()
	if snap.Percent != 25 || snap.Page != 5 || snap.Total != 20 {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
	if snap.Message != "Page 1: submitting generation" {
		t.Errorf("Expected last output, got %q", snap.Message)
	}

	gp.Complete("/download/Alex_dragons_20.pdf")
	snap = gp.Snapshot()
	if snap.State != string(StateCompleted) || snap.Percent != 100 || snap.Download == "" {
		t.Errorf("Unexpected completed snapshot %+v", snap)
	}

	msgs := gp.Messages()
	last := msgs[len(msgs)-1]
	if last.Status != string(StateCompleted) || last.Download != "/download/Alex_dragons_20.pdf" {
		t.Errorf("Unexpected final message %+v", last)
	}
}

func TestProgressFail(t *testing.T) {
	gp := NewGenerationProgress("s1")
	gp.UpdateState(StateGenerating)
	gp.Fail("remote", errors.New("Leonardo request failed (422)"))

	snap := gp.Snapshot()
	if snap.State != string(StateError) || snap.ErrorKind != "remote" {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
	if snap.Error != "Leonardo request failed (422)" {
		t.Errorf("Expected verbatim error, got %q", snap.Error)
	}
	if !gp.IsDone() {
		t.Errorf("Expected failed session to be done")
	}
}

func TestMessageHistoryLimit(t *testing.T) {
	h := NewMessageHistory(3)
	for i := 0; i < 5; i++ {
		h.AddMessage(WSMessage{Type: "update", Status: string(StateGenerating), Message: fmt.Sprint(i)})
	}
	msgs := h.GetMessages()
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Message != "2" || msgs[2].Message != "4" {
		t.Errorf("Expected the newest messages, got %v", msgs)
	}
}
