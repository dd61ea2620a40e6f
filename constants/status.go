package constants

// MatchStatus is the canonical cross-feed reconciliation status of a dossier.
type MatchStatus string

// Stable values (store these exact strings in DB).
const (
	MatchOK            MatchStatus = "OK"             // present on both sides
	MatchAbsentPIDI    MatchStatus = "ABSENT_PIDI"    // Praxedo only
	MatchAbsentPraxedo MatchStatus = "ABSENT_PRAXEDO" // PIDI only
	MatchUnknown       MatchStatus = "INCONNU"        // key could not be paired cleanly
)

// VerdictStatus is the billability outcome for a dossier.
type VerdictStatus string

const (
	VerdictFacturable    VerdictStatus = "FACTURABLE"
	VerdictConditionnel  VerdictStatus = "CONDITIONNEL" // produced downstream by article comparison, never by the evaluator
	VerdictNonFacturable VerdictStatus = "NON_FACTURABLE"
	VerdictAVerifier     VerdictStatus = "A_VERIFIER"
)

// Verdict reason codes, stored alongside the status when it is not cleanly FACTURABLE.
const (
	ReasonNoRule         = "NO_MATCHING_RULE"
	ReasonClotureOutside = "CLOTURE_NOT_IN_RULE"
	ReasonClotureNonRemu = "CLOTURE_NOT_REMUNERATED"
)

// RemuEligible is the literal marker in the remuneration reference data
// meaning a closure code is paid by the supplier.
const RemuEligible = "OUI"
