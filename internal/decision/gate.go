// Package decision chooses the audio-processing route for an episode.
// Decide is pure: no I/O, same output for the same input. The orchestrator
// is responsible for turning an "ask" decision into a paused episode.
package decision

import (
	"fmt"

	"github.com/podforge/api/internal/model"
)

// Input is everything the gate looks at, in priority order: an explicit
// per-episode override, the owner's plan tier, then the quality label.
type Input struct {
	Override     *bool
	PlanTier     model.PlanTier
	QualityLabel model.QualityLabel
}

// Result is the routing decision plus a human-readable reason recorded in
// episode metadata.
type Result struct {
	UseAdvancedProvider bool
	Decision            model.AudioDecision
	Reason              string
}

// labelDecisions maps audio-analysis labels to routing decisions. Labels
// missing from the table fall through to the standard pipeline.
var labelDecisions = map[model.QualityLabel]model.AudioDecision{
	model.QualityClean:     model.DecisionStandard,
	model.QualityNoisy:     model.DecisionAdvanced,
	model.QualityVeryNoisy: model.DecisionAsk,
	model.QualityClipping:  model.DecisionAsk,
	model.QualityLowVolume: model.DecisionAdvanced,
}

// Decide resolves the processing route for one episode.
func Decide(in Input) Result {
	if in.Override != nil {
		d := model.DecisionStandard
		if *in.Override {
			d = model.DecisionAdvanced
		}
		return Result{
			UseAdvancedProvider: *in.Override,
			Decision:            d,
			Reason:              "explicit override",
		}
	}

	if in.PlanTier == model.PlanStudio {
		return Result{
			UseAdvancedProvider: true,
			Decision:            model.DecisionAdvanced,
			Reason:              "studio plan always uses the advanced provider",
		}
	}

	if d, ok := labelDecisions[in.QualityLabel]; ok {
		return Result{
			UseAdvancedProvider: d == model.DecisionAdvanced,
			Decision:            d,
			Reason:              fmt.Sprintf("quality label %q", in.QualityLabel),
		}
	}

	return Result{
		UseAdvancedProvider: false,
		Decision:            model.DecisionStandard,
		Reason:              "no quality label, default pipeline",
	}
}
