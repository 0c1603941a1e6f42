package schema

import "testing"

func TestValidID(t *testing.T) {
	cases := map[string]bool{
		"task-123":    true,
		"feat-login":  true,
		"epic-v2":     true,
		"Task-123":    false,
		"task_123":    false,
		"bogus-123":   false,
		"task-":       false,
	}
	for id, want := range cases {
		if got := ValidID(id); got != want {
			t.Errorf("ValidID(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestValidLeafID(t *testing.T) {
	if !ValidLeafID("backend-auth") {
		t.Error("expected valid leaf id")
	}
	if ValidLeafID("1-backend") {
		t.Error("expected invalid leaf id starting with digit")
	}
}

func TestClassificationClamp(t *testing.T) {
	c := Classification{Confidence: 1.5}
	c.Clamp()
	if c.Confidence != 1 {
		t.Errorf("expected clamp to 1, got %v", c.Confidence)
	}
	c.Confidence = -0.5
	c.Clamp()
	if c.Confidence != 0 {
		t.Errorf("expected clamp to 0, got %v", c.Confidence)
	}
}

func TestPhaseTerminal(t *testing.T) {
	if !PhaseComplete.Terminal() || !PhasePaused.Terminal() || !PhaseFailed.Terminal() {
		t.Error("expected complete/paused/failed to be terminal")
	}
	if PhaseBuilding.Terminal() {
		t.Error("expected building to not be terminal")
	}
}

func TestTaskHasCompleted(t *testing.T) {
	task := &Task{CompletedAgents: []AgentID{AgentArchitect, AgentTester}}
	if !task.HasCompleted(AgentArchitect) {
		t.Error("expected architect to be completed")
	}
	if task.HasCompleted(AgentReviewer) {
		t.Error("expected reviewer to not be completed")
	}
}
