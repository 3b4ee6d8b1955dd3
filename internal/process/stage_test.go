package process

import "testing"

func TestStageDescriptions(t *testing.T) {
	for stage := range transitions {
		if stage.Description() == string(stage) && stage != StageError {
			if _, ok := stageDescriptions[stage]; !ok {
				t.Errorf("Stage %s has no description", stage)
			}
		}
	}
}

func TestTerminalStages(t *testing.T) {
	tests := []struct {
		stage    Stage
		terminal bool
	}{
		{StageCompleted, true},
		{StageError, true},
		{StageCancelled, true},
		{StageInitializing, false},
		{StagePaymentRequested, false},
		{StageBankOTPRequested, false},
	}

	for _, tt := range tests {
		if got := tt.stage.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.stage, got, tt.terminal)
		}
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to Stage
		ok       bool
	}{
		{StageInitializing, StageNavigating, true},
		{StageOTPRequested, StageOTPSubmitted, true},
		{StageOTPSubmitted, StageOTPRequested, true}, // retry loop
		{StageOrderSummary, StageOrderSummary, true}, // same-stage refresh
		{StageCompleted, StageCompleted, false},
		{StageSummaryCompleted, StageOrderSummary, true}, // step re-dispatched
		{StagePaymentRequested, StageBankOTPRequested, false},
		{StageNavigating, StageCompleted, false},
		{StagePaymentRequested, StageCancelled, true},
		{StageCompleted, StageCancelled, false}, // terminal stages are frozen
		{StageError, StageNavigating, false},
	}

	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("ValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}
