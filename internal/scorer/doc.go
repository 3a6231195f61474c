// Package scorer computes the composite relevance score used to rank search results.
//
// A score blends normalized text relevance with auxiliary signals:
//
//	score = (text*0.4 + type*0.2 + freshness*0.15 + author*0.1 + manual*0.1 + engagement*0.05) * boost
//
// Freshness decays exponentially with age and halves every DecayDays.
// Author authority and engagement come from a Signals implementation;
// NeutralSignals reports 1.0 for both until a model is plugged in.
//
// Weights are passed per call and are not required to sum to 1.
package scorer
