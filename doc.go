// Package actgate is an approval gateway for personal automations: every
// action with an external side effect (sending a message, moving a file,
// calling a third-party API) is captured as a proposal, decided by a human
// or a conservative auto-approval policy, executed through a crash-safe
// gateway and recorded in an append-only, sanitized audit trail.
//
// The package exposes a high-level Service façade:
//
//	svc := actgate.New()
//	id, _ := svc.Submit(ctx, &proposal.Proposal{
//		ActionKind:     "send-message",
//		Target:         "contact/alex",
//		Parameters:     map[string]interface{}{"body": "lunch?"},
//		RiskTier:       proposal.RiskLow,
//		CapabilityName: "printer",
//	})
//	svc.Decide(ctx, id, ledger.DecisionApprove, "sam", "fine")
//	go svc.Runtime().Start(ctx)
//
// For more details see the individual sub-packages.
package actgate
