package decision

import (
	"testing"

	"github.com/podforge/api/internal/model"
)

func boolPtr(v bool) *bool { return &v }

func TestDecide_OverrideWinsOverEverything(t *testing.T) {
	// Override forces standard even for a studio user with noisy audio.
	res := Decide(Input{
		Override:     boolPtr(false),
		PlanTier:     model.PlanStudio,
		QualityLabel: model.QualityVeryNoisy,
	})
	if res.UseAdvancedProvider {
		t.Error("expected standard route from override")
	}
	if res.Decision != model.DecisionStandard {
		t.Errorf("expected standard decision, got %v", res.Decision)
	}

	res = Decide(Input{Override: boolPtr(true), QualityLabel: model.QualityClean})
	if !res.UseAdvancedProvider || res.Decision != model.DecisionAdvanced {
		t.Errorf("expected advanced route from override, got %+v", res)
	}
}

func TestDecide_StudioTierUsesAdvanced(t *testing.T) {
	res := Decide(Input{PlanTier: model.PlanStudio, QualityLabel: model.QualityClean})
	if !res.UseAdvancedProvider || res.Decision != model.DecisionAdvanced {
		t.Errorf("expected advanced for studio tier, got %+v", res)
	}
}

func TestDecide_QualityLabels(t *testing.T) {
	cases := []struct {
		label    model.QualityLabel
		decision model.AudioDecision
		advanced bool
	}{
		{model.QualityClean, model.DecisionStandard, false},
		{model.QualityNoisy, model.DecisionAdvanced, true},
		{model.QualityVeryNoisy, model.DecisionAsk, false},
		{model.QualityClipping, model.DecisionAsk, false},
		{model.QualityLowVolume, model.DecisionAdvanced, true},
	}

	for _, tc := range cases {
		res := Decide(Input{PlanTier: model.PlanFree, QualityLabel: tc.label})
		if res.Decision != tc.decision {
			t.Errorf("label %q: expected %v, got %v", tc.label, tc.decision, res.Decision)
		}
		if res.UseAdvancedProvider != tc.advanced {
			t.Errorf("label %q: expected advanced=%v, got %v", tc.label, tc.advanced, res.UseAdvancedProvider)
		}
	}
}

func TestDecide_NoLabelDefaultsToStandard(t *testing.T) {
	res := Decide(Input{PlanTier: model.PlanCreator})
	if res.UseAdvancedProvider || res.Decision != model.DecisionStandard {
		t.Errorf("expected standard default, got %+v", res)
	}
	if res.Reason == "" {
		t.Error("expected a reason on every decision")
	}
}

func TestDecide_IsDeterministic(t *testing.T) {
	in := Input{PlanTier: model.PlanFree, QualityLabel: model.QualityNoisy}
	first := Decide(in)
	for i := 0; i < 5; i++ {
		if Decide(in) != first {
			t.Fatal("expected identical results for identical input")
		}
	}
}
