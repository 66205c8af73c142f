package engine

import "github.com/opentorque/acctpolicy/internal/reason"

// Decision is the result of any engine check: admission, pre-select,
// post-select, or timeout evaluation.
type Decision struct {
	// Allow is true when the job may proceed (admitted, runnable, or
	// not timed out).
	Allow bool

	// Terminal, when Allow is false, distinguishes a hard rejection
	// (the job must be cancelled; retrying will not help) from a hold
	// (the job should wait and be re-checked later, e.g. once usage
	// drops). Validate decisions are always Terminal when denied;
	// pre-/post-select denials, whether from a QoS or an association
	// limit, are Terminal only when a QoS in the job's resolved QoS
	// pair carries DENY_LIMIT (spec.md section 4.1, "DENY_LIMIT
	// converts a hold into a rejection").
	Terminal bool

	Reason reason.Code
	Desc   string
}

func allow() Decision {
	return Decision{Allow: true, Reason: reason.NoReason}
}

func reject(r reason.Code, desc string) Decision {
	return Decision{Allow: false, Terminal: true, Reason: r, Desc: desc}
}

func hold(r reason.Code, desc string, denyLimit bool) Decision {
	return Decision{Allow: false, Terminal: denyLimit, Reason: r, Desc: desc}
}
